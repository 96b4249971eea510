package main

import (
	"context"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cybre/tapo-light-sync/internal/capture"
	"github.com/cybre/tapo-light-sync/internal/color"
	"github.com/cybre/tapo-light-sync/internal/config"
	"github.com/cybre/tapo-light-sync/internal/feature"
	"github.com/cybre/tapo-light-sync/internal/normalize"
)

func newAudioCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Sync the light to the audio spectrum of an input device",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, *configPath, config.ModeAudio)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("device") {
				cfg.AudioDeviceID, _ = flags.GetInt("device")
			}
			if flags.Changed("frame-size") {
				cfg.FrameSize, _ = flags.GetInt("frame-size")
			}
			if flags.Changed("channels") {
				cfg.Channels, _ = flags.GetInt("channels")
			}
			if flags.Changed("sample-rate") {
				cfg.SampleRate, _ = flags.GetFloat64("sample-rate")
			}
			if flags.Changed("history-len") {
				cfg.HistoryLen, _ = flags.GetInt("history-len")
			}

			return runAudio(cmd.Context(), cfg)
		},
	}

	defaults := config.Default()
	cmd.Flags().Int("device", defaults.AudioDeviceID, "audio input device index (-1 = system default)")
	cmd.Flags().Int("frame-size", defaults.FrameSize, "analysis frame size in samples")
	cmd.Flags().Int("channels", defaults.Channels, "input channels to capture (<= device max)")
	cmd.Flags().Float64("sample-rate", defaults.SampleRate, "capture sample rate (0 = device default)")
	cmd.Flags().Int("history-len", defaults.HistoryLen, "normalization history window in frames")

	return cmd
}

func runAudio(ctx context.Context, cfg config.Config) error {
	if err := portaudio.Initialize(); err != nil {
		return eris.Wrap(err, "initialize PortAudio")
	}
	defer portaudio.Terminate()

	source, err := capture.NewAudioSource(capture.AudioConfig{
		DeviceIndex: cfg.AudioDeviceID,
		FrameSize:   cfg.FrameSize,
		Channels:    cfg.Channels,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return eris.Wrap(err, "audio capture device unavailable")
	}

	if err := source.Start(); err != nil {
		_ = source.Close()
		return eris.Wrap(err, "audio capture device unavailable")
	}

	extractor := feature.NewBandExtractor(cfg.FrameSize, nil)

	return runSession(ctx, cfg, source, stages{
		extractor:  extractor,
		normalizer: normalize.NewAdaptive(extractor.Size(), cfg.HistoryLen),
		mapper: color.NewAudioMapper(color.AudioMapperConfig{
			Gamma:         cfg.Gamma,
			MinBrightness: cfg.MinBrightness,
			MaxBrightness: cfg.MaxBrightness,
		}),
	})
}
