package app

import (
	"image/color"
	"math"
)

const (
	ThemeDefault   Theme = "default"
	ThemeThermal   Theme = "thermal"
	ThemeGrayscale Theme = "grayscale"
)

type Theme string

var validThemes = map[Theme]struct{}{
	ThemeDefault:   {},
	ThemeThermal:   {},
	ThemeGrayscale: {},
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
// H: [0-360], S: [0-1], V: [0-1]
func (hsv HSV) RGB() color.Color {
	h := hsv.H
	s := hsv.S
	v := hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	// Normalize hue to [0-6]
	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64

	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

// powerToColorEnhanced maps a normalized power value [0-1] to an RGB color
// with extra differentiation in the lower power ranges, where the noise
// floor of a quiet band lives.
func powerToColorEnhanced(normalizedPower float64) color.Color {
	power := math.Max(0, math.Min(1, normalizedPower))
	enhancedPower := math.Pow(power, 0.7)

	var hsv HSV

	switch {
	case power < 0.25:
		// Black -> Blue transition
		hsv = HSV{H: 240, S: 1.0, V: enhancedPower * 4}
	case power < 0.5:
		// Blue -> Cyan transition
		hsv = HSV{H: 240 - ((power - 0.25) * 240), S: 1.0, V: enhancedPower * 1.5}
	case power < 0.75:
		// Cyan -> Yellow transition
		p := (power - 0.5) * 4
		hsv = HSV{H: 180 - (p * 120), S: 1.0, V: math.Min(1.0, enhancedPower*1.5)}
	default:
		// Yellow -> Red transition
		p := (power - 0.75) * 4
		hsv = HSV{H: 60 - (p * 60), S: 1.0, V: 1.0}
	}

	return hsv.RGB()
}

// colorTheme returns the mapping from normalized power [0-1] to a color.
func colorTheme(theme Theme) func(float64) color.Color {
	switch theme {
	case ThemeGrayscale: // Black -> White
		return func(power float64) color.Color {
			v := math.Pow(math.Max(0, math.Min(1, power)), 0.7) * 255
			return color.RGBA{R: uint8(v), G: uint8(v), B: uint8(v), A: 0xff}
		}

	case ThemeThermal: // Black -> Red -> Yellow -> White
		return func(power float64) color.Color {
			power = math.Max(0, math.Min(1, power))
			if power < 0.33 {
				p := power * 3
				return color.RGBA{R: uint8(p * 255), A: 0xff}
			} else if power < 0.66 {
				p := (power - 0.33) * 3
				return color.RGBA{R: 255, G: uint8(p * 255), A: 0xff}
			}
			p := (power - 0.66) * 3
			return color.RGBA{R: 255, G: 255, B: uint8(p * 255), A: 0xff}
		}

	default:
		return powerToColorEnhanced
	}
}
