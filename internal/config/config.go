// Package config carries the explicit configuration passed into each
// pipeline component at construction. There is no process-wide mutable
// configuration.
package config

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Mode selects the signal source for a session. It is chosen once at startup
// and never switched mid-stream.
type Mode string

const (
	ModeAudio  Mode = "audio"
	ModeScreen Mode = "screen"
)

// Config is the full runtime configuration for one sync session.
type Config struct {
	Mode Mode `yaml:"mode"`

	// Device and account.
	DeviceIP string `yaml:"device_ip"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// Audio capture.
	AudioDeviceID int     `yaml:"audio_device_id"`
	FrameSize     int     `yaml:"frame_size"`
	Channels      int     `yaml:"channels"`
	SampleRate    float64 `yaml:"sample_rate"`
	HistoryLen    int     `yaml:"history_len"`

	// Screen capture.
	MonitorIndex  int     `yaml:"monitor_index"`
	RefreshRateHz float64 `yaml:"refresh_rate_hz"`
	PowerFactor   float64 `yaml:"power_factor"`

	// Color mapping and transitions.
	SmoothingFactor     float64 `yaml:"smoothing_factor"`
	Gamma               float64 `yaml:"gamma"`
	SaturationBoost     float64 `yaml:"saturation_boost"`
	MinBrightness       float64 `yaml:"min_brightness"`
	MaxBrightness       float64 `yaml:"max_brightness"`
	MinUpdateIntervalMs int     `yaml:"min_update_interval_ms"`
	PerceptualThreshold float64 `yaml:"perceptual_threshold"`

	// Runtime behaviour.
	Visualize bool `yaml:"visualize"`
	Debug     bool `yaml:"debug"`
}

// Default returns the tuned defaults for both modes.
func Default() Config {
	return Config{
		Mode:                ModeAudio,
		AudioDeviceID:       -1,
		FrameSize:           1024,
		Channels:            2,
		HistoryLen:          300,
		MonitorIndex:        0,
		RefreshRateHz:       30,
		PowerFactor:         1.8,
		SmoothingFactor:     0.4,
		Gamma:               1.2,
		SaturationBoost:     1.5,
		MinBrightness:       0.1,
		MaxBrightness:       0.8,
		MinUpdateIntervalMs: 50,
		PerceptualThreshold: 0.02,
	}
}

// Load starts from the defaults and overlays the YAML file at path, when
// path is non-empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "parse config file %s", path)
	}

	return cfg, nil
}

// ApplyEnv fills credentials and device address from the environment when
// they were not set by file or flags.
func (c *Config) ApplyEnv() {
	if c.Email == "" {
		c.Email = os.Getenv("TAPO_EMAIL")
	}
	if c.Password == "" {
		c.Password = os.Getenv("TAPO_PASSWORD")
	}
	if c.DeviceIP == "" {
		c.DeviceIP = os.Getenv("TAPO_IP")
	}
}

// Validate enforces the documented parameter ranges.
func (c Config) Validate() error {
	if c.Mode != ModeAudio && c.Mode != ModeScreen {
		return eris.Errorf("invalid mode %q (want audio or screen)", c.Mode)
	}
	if c.DeviceIP == "" {
		return eris.New("device IP is required")
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return eris.Errorf("smoothing factor %g out of range (0,1]", c.SmoothingFactor)
	}
	if c.Gamma <= 0 {
		return eris.Errorf("gamma %g must be > 0", c.Gamma)
	}
	if c.SaturationBoost < 1 {
		return eris.Errorf("saturation boost %g must be >= 1", c.SaturationBoost)
	}
	if c.MinUpdateIntervalMs < 0 {
		return eris.Errorf("min update interval %dms must be >= 0", c.MinUpdateIntervalMs)
	}
	if c.PerceptualThreshold < 0 {
		return eris.Errorf("perceptual threshold %g must be >= 0", c.PerceptualThreshold)
	}
	if c.MinBrightness < 0 || c.MaxBrightness > 1 || c.MinBrightness >= c.MaxBrightness {
		return eris.Errorf("brightness range [%g,%g] must satisfy 0 <= min < max <= 1", c.MinBrightness, c.MaxBrightness)
	}
	if c.Mode == ModeAudio {
		if c.FrameSize <= 0 {
			return eris.Errorf("frame size %d must be > 0", c.FrameSize)
		}
		if c.HistoryLen <= 0 {
			return eris.Errorf("history length %d must be > 0", c.HistoryLen)
		}
	}
	if c.Mode == ModeScreen {
		if c.RefreshRateHz <= 0 {
			return eris.Errorf("refresh rate %gHz must be > 0", c.RefreshRateHz)
		}
		if c.MonitorIndex < 0 {
			return eris.Errorf("monitor index %d must be >= 0", c.MonitorIndex)
		}
	}
	return nil
}

// MinUpdateInterval returns the configured minimum inter-update interval.
func (c Config) MinUpdateInterval() time.Duration {
	return time.Duration(c.MinUpdateIntervalMs) * time.Millisecond
}
