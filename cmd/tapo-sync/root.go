package main

import (
	"github.com/spf13/cobra"

	"github.com/cybre/tapo-light-sync/internal/config"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tapo-sync",
		Short:         "Drive a smart light from live audio or screen color",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	defaults := config.Default()
	root.PersistentFlags().String("ip", "", "device IP address (defaults to TAPO_IP)")
	root.PersistentFlags().String("email", "", "account email (defaults to TAPO_EMAIL)")
	root.PersistentFlags().String("password", "", "account password (defaults to TAPO_PASSWORD)")
	root.PersistentFlags().Float64("smoothing", defaults.SmoothingFactor, "transition smoothing factor in (0,1]; smaller is smoother")
	root.PersistentFlags().Float64("gamma", defaults.Gamma, "brightness gamma correction exponent")
	root.PersistentFlags().Float64("saturation-boost", defaults.SaturationBoost, "saturation boost multiplier (>= 1)")
	root.PersistentFlags().Float64("min-brightness", defaults.MinBrightness, "brightness floor for active signal")
	root.PersistentFlags().Float64("max-brightness", defaults.MaxBrightness, "brightness ceiling")
	root.PersistentFlags().Int("min-update-interval-ms", defaults.MinUpdateIntervalMs, "minimum milliseconds between device updates")
	root.PersistentFlags().Float64("perceptual-threshold", defaults.PerceptualThreshold, "minimum perceptual change required to send an update")
	root.PersistentFlags().Bool("visualize", false, "render a live terminal visualization")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(newAudioCommand(&configPath))
	root.AddCommand(newScreenCommand(&configPath))

	return root
}

// resolveConfig layers file, flags, and environment into the final Config:
// defaults < config file < explicitly set flags, with env filling missing
// credentials last.
func resolveConfig(cmd *cobra.Command, configPath string, mode config.Mode) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode

	flags := cmd.Flags()
	if flags.Changed("ip") {
		cfg.DeviceIP, _ = flags.GetString("ip")
	}
	if flags.Changed("email") {
		cfg.Email, _ = flags.GetString("email")
	}
	if flags.Changed("password") {
		cfg.Password, _ = flags.GetString("password")
	}
	if flags.Changed("smoothing") {
		cfg.SmoothingFactor, _ = flags.GetFloat64("smoothing")
	}
	if flags.Changed("gamma") {
		cfg.Gamma, _ = flags.GetFloat64("gamma")
	}
	if flags.Changed("saturation-boost") {
		cfg.SaturationBoost, _ = flags.GetFloat64("saturation-boost")
	}
	if flags.Changed("min-brightness") {
		cfg.MinBrightness, _ = flags.GetFloat64("min-brightness")
	}
	if flags.Changed("max-brightness") {
		cfg.MaxBrightness, _ = flags.GetFloat64("max-brightness")
	}
	if flags.Changed("min-update-interval-ms") {
		cfg.MinUpdateIntervalMs, _ = flags.GetInt("min-update-interval-ms")
	}
	if flags.Changed("perceptual-threshold") {
		cfg.PerceptualThreshold, _ = flags.GetFloat64("perceptual-threshold")
	}
	if flags.Changed("visualize") {
		cfg.Visualize, _ = flags.GetBool("visualize")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
