package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cybre/tapo-light-sync/internal/capture"
	"github.com/cybre/tapo-light-sync/internal/color"
	"github.com/cybre/tapo-light-sync/internal/config"
	"github.com/cybre/tapo-light-sync/internal/feature"
	"github.com/cybre/tapo-light-sync/internal/normalize"
)

func newScreenCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Sync the light to the ambient color of a display",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, *configPath, config.ModeScreen)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("monitor") {
				cfg.MonitorIndex, _ = flags.GetInt("monitor")
			}
			if flags.Changed("refresh-rate") {
				cfg.RefreshRateHz, _ = flags.GetFloat64("refresh-rate")
			}
			if flags.Changed("power-factor") {
				cfg.PowerFactor, _ = flags.GetFloat64("power-factor")
			}

			return runScreen(cmd.Context(), cfg)
		},
	}

	defaults := config.Default()
	cmd.Flags().Int("monitor", defaults.MonitorIndex, "display index to capture")
	cmd.Flags().Float64("refresh-rate", defaults.RefreshRateHz, "screen capture rate in Hz")
	cmd.Flags().Float64("power-factor", defaults.PowerFactor, "luminance weighting exponent for the screen average")

	return cmd
}

func runScreen(ctx context.Context, cfg config.Config) error {
	source, err := capture.NewScreenSource(capture.ScreenConfig{
		MonitorIndex: cfg.MonitorIndex,
		RefreshRate:  cfg.RefreshRateHz,
	})
	if err != nil {
		return eris.Wrap(err, "screen capture unavailable")
	}

	return runSession(ctx, cfg, source, stages{
		extractor:  feature.NewScreenExtractor(0, cfg.PowerFactor),
		normalizer: normalize.NewStatic(0, 255),
		mapper: color.NewScreenMapper(color.ScreenMapperConfig{
			Gamma:           cfg.Gamma,
			SaturationBoost: cfg.SaturationBoost,
			MinBrightness:   cfg.MinBrightness,
			MaxBrightness:   cfg.MaxBrightness,
		}),
	})
}
