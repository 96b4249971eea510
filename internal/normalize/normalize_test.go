package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/tapo-light-sync/internal/feature"
)

func TestAdaptiveWarmup(t *testing.T) {
	n := NewAdaptive(1, 300)

	for i := 0; i < 19; i++ {
		out := n.Normalize(feature.Vector{float64(i + 1)})
		assert.Zerof(t, out[0], "frame %d", i)
	}

	out := n.Normalize(feature.Vector{100})
	assert.Greater(t, out[0], 0.0)
}

func TestAdaptiveMonotoneInputStaysBounded(t *testing.T) {
	n := NewAdaptive(1, 50)

	prev := 0.0
	for i := 0; i < 80; i++ {
		out := n.Normalize(feature.Vector{float64(i)})
		require.Len(t, out, 1)
		v := out[0]

		assert.GreaterOrEqualf(t, v, 0.0, "frame %d", i)
		assert.LessOrEqualf(t, v, 1.0, "frame %d", i)
		assert.GreaterOrEqualf(t, v, prev, "frame %d", i)
		prev = v
	}
}

func TestAdaptiveConstantInput(t *testing.T) {
	n := NewAdaptive(1, 50)

	var out feature.Vector
	for iter := 0; iter < 60; iter++ {
		out = n.Normalize(feature.Vector{0.5})
	}

	assert.False(t, math.IsNaN(out[0]))
	assert.Zero(t, out[0])
}

func TestAdaptiveTransientDecays(t *testing.T) {
	n := NewAdaptive(1, 30)

	// A burst of loud frames inflates the ceiling. Once it leaves the window
	// the normalizer returns to the ambient level.
	for iter := 0; iter < 30; iter++ {
		n.Normalize(feature.Vector{1})
	}
	for iter := 0; iter < 5; iter++ {
		n.Normalize(feature.Vector{100})
	}
	spiked := n.Normalize(feature.Vector{2})[0]

	for iter := 0; iter < 30; iter++ {
		n.Normalize(feature.Vector{1})
	}
	settled := n.Normalize(feature.Vector{2})[0]

	assert.Greater(t, settled, spiked)
}

func TestAdaptiveIndependentChannels(t *testing.T) {
	n := NewAdaptive(2, 30)

	var out feature.Vector
	for i := 0; i < 40; i++ {
		out = n.Normalize(feature.Vector{float64(i), 1000})
	}

	assert.Greater(t, out[0], 0.0)
	assert.Zero(t, out[1])
}

func TestStaticBounds(t *testing.T) {
	n := NewStatic(0, 255)

	out := n.Normalize(feature.Vector{-5, 0, 127.5, 255, 300})

	assert.Zero(t, out[0])
	assert.Zero(t, out[1])
	assert.InDelta(t, 0.5, out[2], 1e-9)
	assert.InDelta(t, 1.0, out[3], 1e-9)
	assert.InDelta(t, 1.0, out[4], 1e-9)
}

func TestNewStaticPanicsOnInvertedBounds(t *testing.T) {
	assert.Panics(t, func() { NewStatic(10, 10) })
}
