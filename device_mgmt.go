package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"github.com/ugokukun/controller/ccapi"
	"github.com/ugokukun/controller/config"
	"github.com/ugokukun/controller/keigan"
	"github.com/ugokukun/controller/transport"
	"os"
	"path/filepath"
	"time"
)

// MinimumRetryWindow is the total retry window below which a camera is
// unlikely to recover from a busy period mid shoot.
const MinimumRetryWindow = 2 * time.Second

func loadDeviceConfiguration(cfgDir string) (config.DeviceConfig, error) {
	return config.LoadDeviceConfig(filepath.Join(cfgDir, "devices.json"))
}

// startDevices brings up every configured device. A camera that fails to
// connect aborts startup, a motor that fails is logged and skipped so a
// camera only rig still comes up.
func startDevices(ctx context.Context, cfg config.DeviceConfig, dataDir string, l logwrap.Logger) (map[string]*ccapi.Session, map[string]*keigan.Session, error) {
	retry := cfg.EffectiveRetry()

	if window := time.Duration(retry.MaxAttempts) * retry.WaitDuration(); window < MinimumRetryWindow {
		l.LogWarn(ctx, "Configured retry window is very short, busy cameras may fail runs.", logwrap.Datum("window", window.String()))
	}

	policy := transport.Policy{
		WaitTime:       retry.WaitDuration(),
		MaxAttempts:    retry.MaxAttempts,
		ConnectTimeout: retry.ConnectDuration(),
		ReadTimeout:    retry.ReadDuration(),
	}

	cameras := map[string]*ccapi.Session{}

	for id, address := range cfg.Cameras {
		wl := logwrap.New(nest.Wrap(l))
		wl.AddOptionsToLogger(logwrap.Source("ccapi"))

		session, err := ccapi.Connect(ctx, ccapi.SessionConfig{
			ID:                  id,
			Address:             address,
			Policy:              policy,
			DisableAutoPowerOff: cfg.AutoPowerOffDisabled(),
			SyncTime:            cfg.SyncTime,
		}, wl)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to camera '%s': %w", id, err)
		}

		cameras[id] = session

		if err := dumpCameraState(dataDir, session); err != nil {
			l.LogWarn(ctx, "Failed to write camera state dump.", logwrap.Datum("camera", id), logwrap.Err(err))
		}
	}

	motors := map[string]*keigan.Session{}

	for id, port := range cfg.Motors {
		wl := logwrap.New(nest.Wrap(l))
		wl.AddOptionsToLogger(logwrap.Source("keigan"))

		session, err := keigan.Connect(ctx, keigan.SessionConfig{
			ID:       id,
			Port:     port,
			SpeedRPM: cfg.MotorSpeed,
		}, wl)
		if err != nil {
			l.LogError(ctx, "Failed to connect to motor, continuing without it.", logwrap.Datum("motor", id), logwrap.Err(err))
			continue
		}

		motors[id] = session
	}

	return cameras, motors, nil
}

// dumpCameraState records the camera's post connection snapshot under the
// data directory, for operators diagnosing a rig without stopping it.
func dumpCameraState(dataDir string, session *ccapi.Session) error {
	data, err := json.MarshalIndent(session.DumpState(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal camera state: %w", err)
	}

	name := filepath.Join(dataDir, fmt.Sprintf("camera-%s.json", session.ID()))
	return safeWriteFile(name, data, os.FileMode(0600))
}
