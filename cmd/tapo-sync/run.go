package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/term"

	"github.com/cybre/tapo-light-sync/internal/capture"
	"github.com/cybre/tapo-light-sync/internal/color"
	"github.com/cybre/tapo-light-sync/internal/config"
	"github.com/cybre/tapo-light-sync/internal/dispatch"
	"github.com/cybre/tapo-light-sync/internal/feature"
	"github.com/cybre/tapo-light-sync/internal/normalize"
	"github.com/cybre/tapo-light-sync/internal/pipeline"
	"github.com/cybre/tapo-light-sync/internal/tapo"
	"github.com/cybre/tapo-light-sync/internal/transition"
	"github.com/cybre/tapo-light-sync/internal/ui"
)

// stages are the mode-specific pipeline pieces built by the subcommands.
type stages struct {
	extractor  feature.Extractor
	normalizer normalize.Normalizer
	mapper     color.Mapper
}

// runSession logs in, opens the device session, and runs the pipeline until
// cancellation or a fatal session error.
func runSession(ctx context.Context, cfg config.Config, source capture.Source, st stages) error {
	defer func() {
		if err := source.Close(); err != nil {
			slog.Warn("failed to close capture source", slog.Any("error", err))
		}
	}()

	visualize := cfg.Visualize && term.IsTerminal(int(os.Stdout.Fd()))
	logger := setupLogger(cfg.Debug, visualize)

	client := tapo.NewClient(cfg.Email, cfg.Password)
	handle, err := client.Login()
	if err != nil {
		return err
	}

	session, err := client.Open(ctx, cfg.DeviceIP, handle)
	if err != nil {
		return err
	}

	logger.Info("device session established", slog.String("ip", cfg.DeviceIP))

	dispatcher := dispatch.New(session, dispatch.Options{
		Transition: cfg.MinUpdateInterval(),
		Classifier: tapo.Classify,
		Logger:     logger,
		Dial: func(ctx context.Context) (dispatch.Session, error) {
			return client.Open(ctx, cfg.DeviceIP, handle)
		},
	})
	// Shutdown powers the light off before the session is torn down.
	defer func(ctx context.Context) {
		if err := dispatcher.Shutdown(ctx); err != nil {
			logger.Warn("failed to close device session", slog.Any("error", err))
		}
	}(context.WithoutCancel(ctx))

	if err := dispatcher.SetPower(ctx, true); err != nil {
		logger.Warn("failed to turn on light", slog.Any("error", err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var viz *ui.Visualizer
	if visualize {
		viz = ui.NewVisualizer(cancel)
		defer viz.Close()
	}

	p := &pipeline.Pipeline{
		Source:     source,
		Extractor:  st.extractor,
		Normalizer: st.normalizer,
		Mapper:     st.mapper,
		Transition: transition.NewEngine(cfg.SmoothingFactor, cfg.MinUpdateInterval(), cfg.PerceptualThreshold),
		Dispatcher: dispatcher,
		Visualizer: viz,
		Logger:     logger,
	}

	if err := p.Run(runCtx); err != nil && !eris.Is(err, context.Canceled) {
		logger.Error("sync session failed", slog.Any("error", err))
		return err
	}

	logger.Info("sync session stopped")
	return nil
}

func setupLogger(debug, visualize bool) *slog.Logger {
	logOutput := os.Stdout
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	if visualize && !debug {
		logLevel = slog.LevelWarn
	}
	if visualize {
		logOutput = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}
