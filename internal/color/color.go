// Package color maps normalized feature vectors to HSB color commands.
package color

import (
	"math"

	"github.com/cybre/tapo-light-sync/internal/feature"
)

// Command is one target color for the light: hue in [0,360), saturation and
// brightness in [0,1]. Commands are immutable values; smoothing always
// derives a new Command from the previous state and the new target.
type Command struct {
	Hue        float64
	Saturation float64
	Brightness float64
}

// Mapper converts a normalized feature vector into a target Command. Mappers
// are pure functions of their input: all adaptation lives in the normalizer.
type Mapper interface {
	Map(normalized feature.Vector) Command
}

// HueDistance returns the absolute angular distance between two hues along
// the shorter arc of the color circle, in [0,180].
func HueDistance(a, b float64) float64 {
	return math.Abs(math.Mod(b-a+540, 360) - 180)
}

// Distance is the perceptual distance between two commands: the largest of
// the normalized hue delta and the absolute saturation and brightness
// deltas, each scaled into [0,1].
func Distance(a, b Command) float64 {
	d := HueDistance(a.Hue, b.Hue) / 180
	if s := math.Abs(a.Saturation - b.Saturation); s > d {
		d = s
	}
	if v := math.Abs(a.Brightness - b.Brightness); v > d {
		d = v
	}
	return d
}
