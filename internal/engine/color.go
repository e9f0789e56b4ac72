package engine

import (
	"image/color"
	"math"
)

var (
	placeholderColor = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	placeholderCross = color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
	gridLineColor    = color.NRGBA{R: 0x00, G: 0xff, B: 0xcc, A: 0xff}
	authoringBG      = color.NRGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
	projectingBG     = color.NRGBA{A: 0xff}
	selectionColor   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	handleFill       = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	handleStroke     = color.NRGBA{R: 0x00, G: 0x99, B: 0xff, A: 0xff}
	drawPathColor    = color.NRGBA{R: 0xff, G: 0xcc, B: 0x00, A: 0xff}
	laserColor       = color.NRGBA{R: 0xff, G: 0x22, B: 0x22, A: 0xff}
	laserGlow        = color.NRGBA{R: 0xff, G: 0x22, B: 0x22, A: 0x55}
	snapColor        = color.NRGBA{R: 0x33, G: 0xff, B: 0x66, A: 0xff}
)

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa" (leading # optional).
// Anything unparseable yields opaque white.
func ParseHex(s string) color.NRGBA {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	var v [8]uint8
	switch len(s) {
	case 3:
		for i := 0; i < 3; i++ {
			h, ok := hexNibble(s[i])
			if !ok {
				return white
			}
			v[2*i], v[2*i+1] = h, h
		}
		v[6], v[7] = 0xf, 0xf
	case 6, 8:
		for i := 0; i < len(s); i++ {
			h, ok := hexNibble(s[i])
			if !ok {
				return white
			}
			v[i] = h
		}
		if len(s) == 6 {
			v[6], v[7] = 0xf, 0xf
		}
	default:
		return white
	}
	return color.NRGBA{
		R: v[0]<<4 | v[1],
		G: v[2]<<4 | v[3],
		B: v[4]<<4 | v[5],
		A: v[6]<<4 | v[7],
	}
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// HSL builds an opaque colour from hue in degrees, saturation and lightness
// in [0,1].
func HSL(h, s, l float64) color.NRGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.NRGBA{R: unit8(r + m), G: unit8(g + m), B: unit8(b + m), A: 0xff}
}

func unit8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// withAlpha scales the colour's alpha by a in [0,1].
func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * math.Max(0, math.Min(1, a))))
	return c
}
