package capture

import (
	"context"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/rotisserie/eris"
)

// ScreenConfig selects the display and capture cadence.
type ScreenConfig struct {
	MonitorIndex int
	// RefreshRate is the capture frequency in Hz.
	RefreshRate float64
}

// ScreenSource grabs frames from one display at a fixed rate.
type ScreenSource struct {
	monitor  int
	interval time.Duration
	ticker   *time.Ticker
}

// NewScreenSource validates the monitor index against the active displays
// and prepares the capture ticker.
func NewScreenSource(cfg ScreenConfig) (*ScreenSource, error) {
	displays := screenshot.NumActiveDisplays()
	if displays == 0 {
		return nil, eris.New("no active displays available for capture")
	}

	monitor := cfg.MonitorIndex
	if monitor < 0 || monitor >= displays {
		return nil, eris.Errorf("invalid monitor index %d (have %d displays)", monitor, displays)
	}

	rate := cfg.RefreshRate
	if rate <= 0 {
		rate = 30
	}
	interval := time.Duration(float64(time.Second) / rate)

	return &ScreenSource{
		monitor:  monitor,
		interval: interval,
		ticker:   time.NewTicker(interval),
	}, nil
}

// NextBatch waits for the next capture tick and grabs a frame. A failed grab
// is a transient capture error: the wrapped error is returned alongside an
// empty batch so the pipeline can substitute a neutral vector and continue.
func (s *ScreenSource) NextBatch(ctx context.Context) (Batch, error) {
	select {
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case <-s.ticker.C:
	}

	img, err := screenshot.CaptureDisplay(s.monitor)
	if err != nil {
		return Batch{Type: SourceScreen, Timestamp: time.Now()}, eris.Wrap(err, "capture display")
	}

	bounds := img.Bounds()
	return Batch{
		Type:      SourceScreen,
		Timestamp: time.Now(),
		Pixels:    img.Pix,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// Close stops the capture ticker.
func (s *ScreenSource) Close() error {
	s.ticker.Stop()
	return nil
}
