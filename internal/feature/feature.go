// Package feature converts raw sample batches into fixed-size feature
// vectors: per-band spectral magnitudes for audio, aggregate channel color
// for screen frames.
package feature

import "github.com/cybre/tapo-light-sync/internal/capture"

// Vector is a fixed-length sequence of non-negative feature values. Its
// length is constant for the lifetime of a session and determined by the
// active extractor.
type Vector []float64

// Extractor turns one sample batch into a feature vector. Implementations
// must return an all-zero vector for empty or silent batches rather than
// failing.
type Extractor interface {
	Extract(batch capture.Batch) Vector
	// Size is the fixed vector length this extractor produces.
	Size() int
}
