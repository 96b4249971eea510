package feature

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/cybre/tapo-light-sync/internal/capture"
)

// DefaultBandEdges are the cumulative upper band edges in Hz for the 10-band
// audio analysis. Each band spans from the previous edge (or 0) to its own.
func DefaultBandEdges() []float64 {
	return []float64{50, 100, 250, 500, 1000, 2000, 4000, 6000, 10000, 20000}
}

// BandExtractor computes per-band spectral magnitudes from audio batches. It
// reuses scratch buffers to keep allocations predictable on the hot path.
type BandExtractor struct {
	edges     []float64
	frameSize int
	window    []float64
	mono      []float64
	windowed  []float64
}

// NewBandExtractor constructs an extractor for the given analysis frame size
// and band edges. Nil edges select DefaultBandEdges.
func NewBandExtractor(frameSize int, edges []float64) *BandExtractor {
	if frameSize <= 0 {
		panic("feature: frameSize must be > 0")
	}
	if len(edges) == 0 {
		edges = DefaultBandEdges()
	}

	return &BandExtractor{
		edges:     edges,
		frameSize: frameSize,
		window:    HannWindow(frameSize),
		windowed:  make([]float64, frameSize),
	}
}

// Size returns the number of bands.
func (e *BandExtractor) Size() int {
	return len(e.edges)
}

// Extract mixes the batch to mono, applies a Hann window and FFT, and
// buckets the half-spectrum magnitudes into the configured bands. Batches
// shorter than the frame size are zero-padded; empty or silent batches yield
// the zero vector.
func (e *BandExtractor) Extract(batch capture.Batch) Vector {
	out := make(Vector, len(e.edges))
	if len(batch.Samples) == 0 || batch.SampleRate <= 0 {
		return out
	}

	e.mono = ToMono(batch.Samples, batch.Channels, e.mono)

	n := e.frameSize
	for i := range e.windowed {
		if i < len(e.mono) {
			e.windowed[i] = e.mono[i] * e.window[i]
		} else {
			e.windowed[i] = 0
		}
	}

	spectrum := fft.FFTReal(e.windowed)
	half := n / 2
	if half == 0 {
		return out
	}

	binWidth := batch.SampleRate / float64(n)
	prevEdge := 0.0
	for i, edge := range e.edges {
		lo := int(prevEdge / binWidth)
		hi := int(edge / binWidth)
		if hi > half {
			hi = half
		}
		if lo < 0 {
			lo = 0
		}

		if hi > lo {
			var sum float64
			for bin := lo; bin < hi; bin++ {
				sum += cmplx.Abs(spectrum[bin]) / float64(n)
			}
			out[i] = sum / float64(hi-lo)
		}
		prevEdge = edge
	}

	return out
}

// ToMono averages interleaved multi-channel samples into a mono frame.
func ToMono(samples []float32, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameLen := len(samples) / channels
	if cap(dst) < frameLen {
		dst = make([]float64, frameLen)
	} else {
		dst = dst[:frameLen]
	}
	idx := 0
	for i := 0; i < frameLen; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[idx])
			idx++
		}
		dst[i] = sum / float64(channels)
	}
	return dst
}

// HannWindow returns a precomputed Hann window for the requested size.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < n; i++ {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return window
}
