package color

import (
	"math"

	"github.com/crazy3lf/colorconv"

	"github.com/cybre/tapo-light-sync/internal/feature"
	"github.com/cybre/tapo-light-sync/internal/utils"
)

// AudioMapperConfig tunes the band-to-color mapping. The coefficients are
// tuned by feel and configurable, not a contract.
type AudioMapperConfig struct {
	// Gamma is the power-law exponent applied to aggregate energy before it
	// becomes brightness. Values above 1 compress quiet passages.
	Gamma float64
	// WarmHue and CoolHue anchor the hue range: low-frequency energy pulls
	// toward WarmHue, high-frequency energy toward CoolHue.
	WarmHue float64
	CoolHue float64
	// SaturationFloor keeps quiet passages from desaturating to white.
	SaturationFloor float64
	MinBrightness   float64
	MaxBrightness   float64
}

// DefaultAudioMapperConfig returns the tuned defaults.
func DefaultAudioMapperConfig() AudioMapperConfig {
	return AudioMapperConfig{
		Gamma:           1.2,
		WarmHue:         0,
		CoolHue:         240,
		SaturationFloor: 0.4,
		MinBrightness:   0.1,
		MaxBrightness:   1.0,
	}
}

// AudioMapper maps normalized band energies to a color. Hue follows the
// energy-weighted band position (bass warm, treble cool), saturation follows
// mid-band energy, brightness follows gamma-corrected aggregate energy.
type AudioMapper struct {
	cfg AudioMapperConfig
}

// NewAudioMapper constructs a mapper, filling zero config fields with the
// defaults.
func NewAudioMapper(cfg AudioMapperConfig) *AudioMapper {
	def := DefaultAudioMapperConfig()
	if cfg.Gamma <= 0 {
		cfg.Gamma = def.Gamma
	}
	if cfg.CoolHue <= 0 {
		cfg.CoolHue = def.CoolHue
	}
	if cfg.SaturationFloor <= 0 {
		cfg.SaturationFloor = def.SaturationFloor
	}
	if cfg.MaxBrightness <= 0 {
		cfg.MaxBrightness = def.MaxBrightness
	}
	return &AudioMapper{cfg: cfg}
}

// Map converts normalized band energies into a target Command. An all-zero
// vector maps to zero brightness.
func (m *AudioMapper) Map(normalized feature.Vector) Command {
	n := len(normalized)
	if n == 0 {
		return Command{Hue: m.cfg.WarmHue, Saturation: m.cfg.SaturationFloor}
	}

	var total, weighted float64
	for i, v := range normalized {
		total += v
		weighted += v * float64(i)
	}

	overall := total / float64(n)
	if overall <= 0 {
		return Command{Hue: m.cfg.WarmHue, Saturation: m.cfg.SaturationFloor}
	}

	// Spectral tilt: 0 when all energy sits in the lowest band, 1 in the
	// highest.
	tilt := 0.0
	if n > 1 {
		tilt = weighted / (total * float64(n-1))
	}
	hue := math.Mod(m.cfg.WarmHue+tilt*(m.cfg.CoolHue-m.cfg.WarmHue)+360, 360)

	mid := utils.Mean(normalized[n*3/10 : n*6/10])
	saturation := utils.Clamp(m.cfg.SaturationFloor+mid*(1-m.cfg.SaturationFloor), m.cfg.SaturationFloor, 1.0)

	level := math.Pow(overall, m.cfg.Gamma)
	brightness := utils.Clamp(m.cfg.MinBrightness+level*(m.cfg.MaxBrightness-m.cfg.MinBrightness), 0.0, 1.0)

	return Command{Hue: hue, Saturation: saturation, Brightness: brightness}
}

// ScreenMapperConfig tunes the RGB-to-color mapping.
type ScreenMapperConfig struct {
	Gamma float64
	// SaturationBoost multiplies the measured saturation so muted screen
	// content still produces vivid ambient color; the result is clamped to 1.
	SaturationBoost float64
	MinBrightness   float64
	MaxBrightness   float64
}

// DefaultScreenMapperConfig returns the tuned defaults.
func DefaultScreenMapperConfig() ScreenMapperConfig {
	return ScreenMapperConfig{
		Gamma:           1.2,
		SaturationBoost: 1.5,
		MinBrightness:   0.1,
		MaxBrightness:   0.8,
	}
}

// ScreenMapper maps a normalized [r,g,b] vector to a color command.
type ScreenMapper struct {
	cfg ScreenMapperConfig
}

// NewScreenMapper constructs a mapper, filling zero config fields with the
// defaults.
func NewScreenMapper(cfg ScreenMapperConfig) *ScreenMapper {
	def := DefaultScreenMapperConfig()
	if cfg.Gamma <= 0 {
		cfg.Gamma = def.Gamma
	}
	if cfg.SaturationBoost <= 0 {
		cfg.SaturationBoost = def.SaturationBoost
	}
	if cfg.MaxBrightness <= 0 {
		cfg.MaxBrightness = def.MaxBrightness
	}
	return &ScreenMapper{cfg: cfg}
}

// Map converts the normalized mean screen color into a target Command. The
// vector carries [r,g,b] in [0,1]; brightness is the gamma-corrected HSV
// value, with a black frame mapping to zero brightness.
func (m *ScreenMapper) Map(normalized feature.Vector) Command {
	var r, g, b uint8
	if len(normalized) >= 3 {
		r = uint8(math.Round(utils.Clamp(normalized[0], 0.0, 1.0) * 255))
		g = uint8(math.Round(utils.Clamp(normalized[1], 0.0, 1.0) * 255))
		b = uint8(math.Round(utils.Clamp(normalized[2], 0.0, 1.0) * 255))
	}

	hue, sat, val := colorconv.RGBToHSV(r, g, b)

	sat = math.Min(sat*m.cfg.SaturationBoost, 1.0)

	brightness := 0.0
	if val > 0 {
		level := math.Pow(val, m.cfg.Gamma)
		brightness = utils.Clamp(m.cfg.MinBrightness+level*(m.cfg.MaxBrightness-m.cfg.MinBrightness), 0.0, 1.0)
	}

	return Command{
		Hue:        math.Mod(hue+360, 360),
		Saturation: sat,
		Brightness: brightness,
	}
}
