// Package pipeline wires capture, feature extraction, normalization, color
// mapping, transition smoothing and device dispatch into one session loop.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cybre/tapo-light-sync/internal/capture"
	"github.com/cybre/tapo-light-sync/internal/color"
	"github.com/cybre/tapo-light-sync/internal/dispatch"
	"github.com/cybre/tapo-light-sync/internal/feature"
	"github.com/cybre/tapo-light-sync/internal/normalize"
	"github.com/cybre/tapo-light-sync/internal/transition"
	"github.com/cybre/tapo-light-sync/internal/ui"
)

// Pipeline owns one synchronization session. The capture goroutine feeds a
// single-slot latest-wins channel; the tick goroutine pushes each batch
// through extract → normalize → map → smooth → dispatch. Dispatch itself
// never blocks the tick loop.
type Pipeline struct {
	Source     capture.Source
	Extractor  feature.Extractor
	Normalizer normalize.Normalizer
	Mapper     color.Mapper
	Transition *transition.Engine
	Dispatcher *dispatch.Dispatcher
	Visualizer *ui.Visualizer
	Logger     *slog.Logger
}

// Run drives the session until ctx is cancelled or a fatal session error
// surfaces. Per-tick capture glitches and transient dispatch failures are
// absorbed and logged; only session-level fatal conditions return an error.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	logger := p.Logger

	batches := make(chan capture.Batch, 1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			batch, err := p.Source.NextBatch(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("capture glitch, substituting neutral frame", slog.Any("error", err))
				batch = capture.Batch{Timestamp: time.Now()}
			}
			capture.Offer(batches, batch)
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case batch := <-batches:
				if err := p.tick(gctx, batch); err != nil {
					return err
				}
			}
		}
	})

	err := g.Wait()
	if closeErr := p.Dispatcher.Close(); closeErr != nil {
		logger.Warn("failed to close dispatcher", slog.Any("error", closeErr))
	}
	return err
}

func (p *Pipeline) tick(ctx context.Context, batch capture.Batch) error {
	ts := batch.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	raw := p.Extractor.Extract(batch)
	normalized := p.Normalizer.Normalize(raw)
	target := p.Mapper.Map(normalized)
	smoothed, emit := p.Transition.Step(target, ts)

	if p.Visualizer != nil {
		p.Visualizer.Update(ui.Frame{
			Hue:        smoothed.Hue,
			Saturation: smoothed.Saturation,
			Brightness: smoothed.Brightness,
			Channels:   normalized,
			Source:     batch.Type.String(),
			State:      p.Dispatcher.State().String(),
			Stats:      p.Dispatcher.Snapshot(),
		})
	}

	if !emit {
		return nil
	}

	outcome := p.Dispatcher.Submit(ctx, smoothed)
	if outcome.Kind == dispatch.Failed {
		if p.Dispatcher.State() != dispatch.StateClosed {
			p.Logger.Warn("color command rejected", slog.Any("reason", outcome.Reason))
			return nil
		}
		if err := p.Dispatcher.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return outcome.Reason
		}
		p.Logger.Info("device session recovered, resuming dispatch")
	}

	return nil
}
