// Package normalize maps raw feature magnitudes into [0,1], either
// adaptively against recent signal history or against fixed bounds.
package normalize

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cybre/tapo-light-sync/internal/feature"
	"github.com/cybre/tapo-light-sync/internal/utils"
)

const epsilon = 1e-9

// Normalizer rescales each channel of a feature vector into [0,1]. The
// returned vector is freshly allocated; the input is never mutated.
type Normalizer interface {
	Normalize(raw feature.Vector) feature.Vector
}

// Adaptive tracks a sliding window of raw values per channel and normalizes
// against the window's median (floor) and 90th percentile (ceiling). The
// bounded window doubles as the decay mechanism: a loud transient raises the
// ceiling only until it falls out of the window, so normalization follows
// the recent ambient level instead of a historical peak.
type Adaptive struct {
	channels []channelState
	floorQ   float64
	ceilQ    float64
	warmup   int
	scratch  []float64
}

type channelState struct {
	history []float64
	next    int
	count   int
}

// NewAdaptive constructs an adaptive normalizer for the given channel count
// and history window length.
func NewAdaptive(channels, historyLen int) *Adaptive {
	if channels <= 0 {
		panic("normalize: channels must be > 0")
	}
	if historyLen <= 0 {
		historyLen = 300
	}

	states := make([]channelState, channels)
	for i := range states {
		states[i] = channelState{history: make([]float64, historyLen)}
	}

	return &Adaptive{
		channels: states,
		floorQ:   0.5,
		ceilQ:    0.9,
		warmup:   20,
		scratch:  make([]float64, 0, historyLen),
	}
}

// Normalize records each channel's raw value and emits
// clamp((raw-floor)/(ceiling-floor), 0, 1). Channels still warming up emit 0.
func (a *Adaptive) Normalize(raw feature.Vector) feature.Vector {
	out := make(feature.Vector, len(raw))
	for i, v := range raw {
		if i >= len(a.channels) {
			break
		}
		ch := &a.channels[i]
		ch.push(v)

		if ch.count < a.warmup {
			continue
		}

		floor, ceiling := a.bounds(ch)
		span := ceiling - floor
		if span < epsilon {
			span = epsilon
		}
		out[i] = utils.Clamp((v-floor)/span, 0.0, 1.0)
	}
	return out
}

func (a *Adaptive) bounds(ch *channelState) (float64, float64) {
	a.scratch = append(a.scratch[:0], ch.history[:ch.count]...)
	sort.Float64s(a.scratch)

	floor := stat.Quantile(a.floorQ, stat.Empirical, a.scratch, nil)
	ceiling := stat.Quantile(a.ceilQ, stat.Empirical, a.scratch, nil)
	if ceiling < floor {
		ceiling = floor
	}
	return floor, ceiling
}

func (ch *channelState) push(v float64) {
	ch.history[ch.next] = v
	ch.next = (ch.next + 1) % len(ch.history)
	if ch.count < len(ch.history) {
		ch.count++
	}
}

// Static rescales against fixed bounds. Screen color channels use this: the
// captured RGB means are already bounded, and adaptive rescaling would shift
// the perceived hue.
type Static struct {
	floor   float64
	ceiling float64
}

// NewStatic constructs a fixed-bounds normalizer.
func NewStatic(floor, ceiling float64) *Static {
	if ceiling <= floor {
		panic("normalize: ceiling must be > floor")
	}
	return &Static{floor: floor, ceiling: ceiling}
}

// Normalize maps each value linearly from [floor,ceiling] into [0,1].
func (s *Static) Normalize(raw feature.Vector) feature.Vector {
	out := make(feature.Vector, len(raw))
	span := s.ceiling - s.floor
	for i, v := range raw {
		out[i] = utils.Clamp((v-s.floor)/span, 0.0, 1.0)
	}
	return out
}
