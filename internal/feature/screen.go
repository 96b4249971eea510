package feature

import (
	"math"

	"github.com/cybre/tapo-light-sync/internal/capture"
)

// ScreenExtractor reduces a captured frame to its weighted mean R, G and B
// channel values in [0,255]. Pixels are weighted by luminance raised to a
// power factor so bright regions dominate the ambient color.
type ScreenExtractor struct {
	gridSize    int
	powerFactor float64
}

// NewScreenExtractor constructs an extractor sampling roughly
// gridSize x gridSize pixels per frame.
func NewScreenExtractor(gridSize int, powerFactor float64) *ScreenExtractor {
	if gridSize <= 0 {
		gridSize = 150
	}
	if powerFactor <= 0 {
		powerFactor = 1.8
	}
	return &ScreenExtractor{
		gridSize:    gridSize,
		powerFactor: powerFactor,
	}
}

// Size returns 3: one value per color channel.
func (e *ScreenExtractor) Size() int {
	return 3
}

// Extract samples the frame on a fixed grid and returns the weighted mean
// [R, G, B]. An empty or all-black frame yields the zero vector; when all
// weights vanish the plain mean is used so dark frames stay well-defined.
func (e *ScreenExtractor) Extract(batch capture.Batch) Vector {
	out := make(Vector, 3)
	if len(batch.Pixels) == 0 || batch.Width <= 0 || batch.Height <= 0 {
		return out
	}

	stepX := max(1, batch.Width/e.gridSize)
	stepY := max(1, batch.Height/e.gridSize)

	var sumR, sumG, sumB float64
	var plainR, plainG, plainB float64
	var weightSum float64
	var count int

	for y := 0; y < batch.Height; y += stepY {
		row := y * batch.Width
		for x := 0; x < batch.Width; x += stepX {
			idx := (row + x) * 4
			if idx+2 >= len(batch.Pixels) {
				continue
			}
			r := float64(batch.Pixels[idx])
			g := float64(batch.Pixels[idx+1])
			b := float64(batch.Pixels[idx+2])

			luma := (r + g + b) / 3
			weight := math.Pow(luma, e.powerFactor)

			sumR += r * weight
			sumG += g * weight
			sumB += b * weight
			weightSum += weight

			plainR += r
			plainG += g
			plainB += b
			count++
		}
	}

	if count == 0 {
		return out
	}

	if weightSum > 0 {
		out[0] = sumR / weightSum
		out[1] = sumG / weightSum
		out[2] = sumB / weightSum
	} else {
		out[0] = plainR / float64(count)
		out[1] = plainG / float64(count)
		out[2] = plainB / float64(count)
	}

	return out
}
