// Package transition smooths raw color targets over time and rate-limits
// how often a new command may be emitted toward the device.
package transition

import (
	"math"
	"time"

	"github.com/cybre/tapo-light-sync/internal/color"
)

// Engine applies per-channel exponential smoothing to incoming color targets
// and gates emissions by a perceptual threshold and a minimum inter-update
// interval. Hue is interpolated along the shorter arc of the color circle so
// a 350°→10° transition passes through 0°, never backward through 180°.
type Engine struct {
	alpha       float64
	minInterval time.Duration
	threshold   float64

	smoothed    color.Command
	lastEmitted color.Command
	lastEmit    time.Time
	hasEmitted  bool
}

// Neutral is the smoothed state at session start: warm white at zero
// brightness.
func Neutral() color.Command {
	return color.Command{Hue: 30, Saturation: 0.2, Brightness: 0}
}

// NewEngine constructs an Engine. alpha must be in (0,1]; smaller values
// smooth harder. threshold is the minimum perceptual distance (see
// color.Distance) between consecutive emissions.
func NewEngine(alpha float64, minInterval time.Duration, threshold float64) *Engine {
	if alpha <= 0 || alpha > 1 {
		panic("transition: alpha must be in (0,1]")
	}
	if threshold < 0 {
		threshold = 0
	}
	return &Engine{
		alpha:       alpha,
		minInterval: minInterval,
		threshold:   threshold,
		smoothed:    Neutral(),
	}
}

// Step folds target into the smoothed state using the batch's capture
// timestamp ts, and reports whether the new smoothed command should be
// dispatched. A command is emitted only when at least minInterval has passed
// since the previous emission and the perceptual distance from the last
// emitted command exceeds the threshold. Identical consecutive commands are
// never re-emitted.
func (e *Engine) Step(target color.Command, ts time.Time) (color.Command, bool) {
	e.smoothed = color.Command{
		Hue:        stepHue(e.smoothed.Hue, target.Hue, e.alpha),
		Saturation: e.smoothed.Saturation + e.alpha*(target.Saturation-e.smoothed.Saturation),
		Brightness: e.smoothed.Brightness + e.alpha*(target.Brightness-e.smoothed.Brightness),
	}

	if e.hasEmitted {
		if ts.Sub(e.lastEmit) < e.minInterval {
			return e.smoothed, false
		}
		if color.Distance(e.smoothed, e.lastEmitted) <= e.threshold {
			return e.smoothed, false
		}
	}

	e.lastEmitted = e.smoothed
	e.lastEmit = ts
	e.hasEmitted = true
	return e.smoothed, true
}

// Smoothed returns the current smoothed command without stepping.
func (e *Engine) Smoothed() color.Command {
	return e.smoothed
}

func stepHue(current, target, alpha float64) float64 {
	delta := math.Mod(target-current+540, 360) - 180
	return math.Mod(current+alpha*delta+360, 360)
}
