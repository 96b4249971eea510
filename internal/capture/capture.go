package capture

import (
	"context"
	"time"
)

// SourceType tags a Batch with the capture backend that produced it.
type SourceType int

const (
	SourceAudio SourceType = iota
	SourceScreen
)

// String returns a human-friendly name for the source type.
func (t SourceType) String() string {
	switch t {
	case SourceAudio:
		return "audio"
	case SourceScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// Batch is one captured sample batch: either interleaved audio samples or an
// RGBA frame, depending on Type. A Batch is owned by a single pipeline tick
// and discarded after feature extraction.
type Batch struct {
	Type      SourceType
	Timestamp time.Time

	// Audio fields.
	Samples    []float32
	Channels   int
	SampleRate float64

	// Screen fields. Pixels is RGBA, 4 bytes per pixel, row-major.
	Pixels []uint8
	Width  int
	Height int
}

// Empty reports whether the batch carries no usable payload. Empty batches
// stand in for glitched captures so downstream stages produce a neutral
// feature vector instead of an error.
func (b Batch) Empty() bool {
	return len(b.Samples) == 0 && len(b.Pixels) == 0
}

// Source produces sample batches. NextBatch blocks until a batch is
// available or ctx is cancelled.
type Source interface {
	NextBatch(ctx context.Context) (Batch, error)
	Close() error
}

// Offer delivers a batch into ch with latest-wins semantics: when the
// consumer lags and the channel is full, the stale batch is discarded so the
// freshest capture always wins.
func Offer(ch chan Batch, batch Batch) {
	select {
	case ch <- batch:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- batch:
		default:
		}
	}
}
