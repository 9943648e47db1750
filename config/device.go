package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type configError string

func (e configError) Error() string {
	return string(e)
}

// ErrNoCameras is fatal: a rig with no cameras cannot do anything useful.
// An empty motor map is only a warning at startup.
const ErrNoCameras = configError("no cameras in device configuration")

// RetryConfig mirrors the retry policy the original tooling exposed:
// seconds between attempts, an attempt ceiling and a split connect/read
// timeout.
type RetryConfig struct {
	WaitTime       float64 `json:"wait_time"`
	MaxAttempts    int     `json:"max_attempts"`
	ConnectTimeout float64 `json:"connect_timeout"`
	ReadTimeout    float64 `json:"read_timeout"`
}

// DefaultRetry matches the original controller's defaults.
var DefaultRetry = RetryConfig{
	WaitTime:       0.5,
	MaxAttempts:    20,
	ConnectTimeout: 3.0,
	ReadTimeout:    7.5,
}

func (r RetryConfig) WaitDuration() time.Duration {
	return time.Duration(r.WaitTime * float64(time.Second))
}

func (r RetryConfig) ConnectDuration() time.Duration {
	return time.Duration(r.ConnectTimeout * float64(time.Second))
}

func (r RetryConfig) ReadDuration() time.Duration {
	return time.Duration(r.ReadTimeout * float64(time.Second))
}

// DeviceConfig is the device descriptor file: device kind to id to
// connection string. Camera connection strings are "ip:port", motor
// connection strings are serial paths. The kind keys are the vendor names
// the original descriptor format used.
type DeviceConfig struct {
	Cameras map[string]string `json:"cannon"`
	Motors  map[string]string `json:"keigan"`

	Retry      *RetryConfig `json:"retry"`
	MotorSpeed int          `json:"motor_speed_rpm"`

	DisableAutoPowerOff *bool `json:"disable_auto_power_off"`
	SyncTime            bool  `json:"sync_time"`
}

// EffectiveRetry returns the configured retry policy or the defaults.
func (d DeviceConfig) EffectiveRetry() RetryConfig {
	if d.Retry != nil {
		return *d.Retry
	}

	return DefaultRetry
}

// AutoPowerOffDisabled defaults to true; leaving a camera free to power
// itself off mid run loses the rest of the shoot.
func (d DeviceConfig) AutoPowerOffDisabled() bool {
	if d.DisableAutoPowerOff != nil {
		return *d.DisableAutoPowerOff
	}

	return true
}

// LoadDeviceConfig reads and validates the device descriptor file.
func LoadDeviceConfig(path string) (DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("failed to read device configuration '%s': %w", path, err)
	}

	var cfg DeviceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DeviceConfig{}, fmt.Errorf("failed to parse device configuration '%s': %w", path, err)
	}

	if len(cfg.Cameras) == 0 {
		return DeviceConfig{}, fmt.Errorf("%w: %s", ErrNoCameras, path)
	}

	if cfg.MotorSpeed == 0 {
		cfg.MotorSpeed = 30
	}

	return cfg, nil
}
