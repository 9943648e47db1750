package config

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"os"
	"path/filepath"
	"testing"
)

func writeDeviceFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "devices.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func Test_LoadDeviceConfig(t *testing.T) {
	t.Run("loads camera and motor maps keyed by device id", func(t *testing.T) {
		path := writeDeviceFile(t, `{
			"cannon": {"cam1": "192.168.1.2:8080", "cam2": "192.168.1.3:8080"},
			"keigan": {"table1": "/dev/ttyUSB0"}
		}`)

		cfg, err := LoadDeviceConfig(path)

		assert.NoError(t, err)
		assert.Equal(t, "192.168.1.2:8080", cfg.Cameras["cam1"])
		assert.Equal(t, "/dev/ttyUSB0", cfg.Motors["table1"])
		assert.Equal(t, DefaultRetry, cfg.EffectiveRetry())
		assert.True(t, cfg.AutoPowerOffDisabled())
	})

	t.Run("is fatal when no cameras are present", func(t *testing.T) {
		path := writeDeviceFile(t, `{"cannon": {}, "keigan": {"table1": "/dev/ttyUSB0"}}`)

		_, err := LoadDeviceConfig(path)

		assert.True(t, errors.Is(err, ErrNoCameras))
	})

	t.Run("tolerates an absent motor map", func(t *testing.T) {
		path := writeDeviceFile(t, `{"cannon": {"cam1": "192.168.1.2:8080"}}`)

		cfg, err := LoadDeviceConfig(path)

		assert.NoError(t, err)
		assert.Empty(t, cfg.Motors)
	})

	t.Run("honours an explicit retry policy", func(t *testing.T) {
		path := writeDeviceFile(t, `{
			"cannon": {"cam1": "192.168.1.2:8080"},
			"retry": {"wait_time": 3, "max_attempts": 5, "connect_timeout": 3, "read_timeout": 7.5}
		}`)

		cfg, err := LoadDeviceConfig(path)

		assert.NoError(t, err)
		assert.Equal(t, 5, cfg.EffectiveRetry().MaxAttempts)
		assert.Equal(t, 3.0, cfg.EffectiveRetry().WaitTime)
	})

	t.Run("fails on unreadable or malformed files", func(t *testing.T) {
		_, err := LoadDeviceConfig(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)

		path := writeDeviceFile(t, `{not json`)
		_, err = LoadDeviceConfig(path)
		assert.Error(t, err)
	})
}
