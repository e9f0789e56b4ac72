package engine

import (
	"image/color"
	"math"
	"time"

	"github.com/inamate/projmap/internal/surface"
)

const (
	// breatheLow is the fraction of base opacity at the bottom of a breath.
	breatheLow = 0.3
	// strobeBase is the strobe half-period at speed 1.
	strobeBase = 500 * time.Millisecond
	// rainbowRate is degrees of hue per second at speed 1.
	rainbowRate = 36.0
)

// Modulated is the visual state of a surface at one instant.
type Modulated struct {
	Opacity float64
	Color   color.NRGBA
}

// EvaluateEffect applies a time-based effect to a base opacity and colour.
// It is pure: the same inputs always produce the same output.
func EvaluateEffect(opacity float64, base color.NRGBA, effect surface.Effect, speed float64, t time.Duration) Modulated {
	speed = surface.ClampSpeed(speed)
	out := Modulated{Opacity: opacity, Color: base}

	switch effect {
	case surface.EffectStrobe:
		period := float64(strobeBase) / speed
		bucket := int64(math.Floor(float64(t) / period))
		if bucket%2 != 0 {
			out.Opacity = 0
		}
	case surface.EffectBreathe:
		phase := 0.5 + 0.5*math.Sin(t.Seconds()*speed*2)
		out.Opacity = opacity * (breatheLow + (1-breatheLow)*phase)
	case surface.EffectRainbow:
		hue := math.Mod(t.Seconds()*rainbowRate*speed, 360)
		out.Color = HSL(hue, 1, 0.5)
	}
	return out
}
