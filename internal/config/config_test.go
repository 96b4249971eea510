package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.DeviceIP = "10.0.0.2"
	return cfg
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	screen := validConfig()
	screen.Mode = ModeScreen
	assert.NoError(t, screen.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "midi" }},
		{"missing device ip", func(c *Config) { c.DeviceIP = "" }},
		{"smoothing zero", func(c *Config) { c.SmoothingFactor = 0 }},
		{"smoothing above one", func(c *Config) { c.SmoothingFactor = 1.5 }},
		{"gamma zero", func(c *Config) { c.Gamma = 0 }},
		{"saturation boost below one", func(c *Config) { c.SaturationBoost = 0.5 }},
		{"negative update interval", func(c *Config) { c.MinUpdateIntervalMs = -1 }},
		{"negative threshold", func(c *Config) { c.PerceptualThreshold = -0.1 }},
		{"inverted brightness range", func(c *Config) { c.MinBrightness = 0.9 }},
		{"frame size zero", func(c *Config) { c.FrameSize = 0 }},
		{"history length zero", func(c *Config) { c.HistoryLen = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateScreenMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = ModeScreen
	cfg.RefreshRateHz = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Mode = ModeScreen
	cfg.MonitorIndex = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "device_ip: 10.0.0.2\nsmoothing_factor: 0.6\nvisualize: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2", cfg.DeviceIP)
	assert.Equal(t, 0.6, cfg.SmoothingFactor)
	assert.True(t, cfg.Visualize)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1024, cfg.FrameSize)
	assert.Equal(t, ModeAudio, cfg.Mode)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TAPO_EMAIL", "env@example.com")
	t.Setenv("TAPO_PASSWORD", "envpass")
	t.Setenv("TAPO_IP", "10.0.0.9")

	cfg := Default()
	cfg.Email = "file@example.com"
	cfg.ApplyEnv()

	// Explicit values win over the environment.
	assert.Equal(t, "file@example.com", cfg.Email)
	assert.Equal(t, "envpass", cfg.Password)
	assert.Equal(t, "10.0.0.9", cfg.DeviceIP)
}

func TestMinUpdateInterval(t *testing.T) {
	cfg := Default()
	cfg.MinUpdateIntervalMs = 50

	assert.Equal(t, 50*time.Millisecond, cfg.MinUpdateInterval())
}
