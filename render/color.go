package render

import (
	"image/color"

	"github.com/gdamore/tcell/v2"
)

// RGB stores explicit 8-bit color channels, decoupled from tcell
type RGB struct {
	R, G, B uint8
}

// Predefined colors
var (
	RGBBlack = RGB{0, 0, 0}
	// RGBBackdrop is the canvas fill and the colour trails fade toward
	RGBBackdrop = RGB{20, 20, 20}
)

// FromNRGBA drops the alpha channel
func FromNRGBA(c color.NRGBA) RGB {
	return RGB{R: c.R, G: c.G, B: c.B}
}

// Blend performs alpha blending: result = src*alpha + dst*(1-alpha)
func (dst RGB) Blend(src RGB, alpha float64) RGB {
	if alpha <= 0 {
		return dst
	}
	if alpha >= 1 {
		return src
	}
	inv := 1.0 - alpha
	return RGB{
		R: clamp(float64(src.R)*alpha + float64(dst.R)*inv + 0.5),
		G: clamp(float64(src.G)*alpha + float64(dst.G)*inv + 0.5),
		B: clamp(float64(src.B)*alpha + float64(dst.B)*inv + 0.5),
	}
}

// FadeToward moves dst one alpha step toward target
// Unlike Blend it always moves at least one unit per channel while alpha > 0,
// otherwise low alphas stall short of the target on 8-bit channels
func (dst RGB) FadeToward(target RGB, alpha float64) RGB {
	if alpha <= 0 {
		return dst
	}
	out := dst.Blend(target, alpha)
	out.R = nudge(dst.R, out.R, target.R)
	out.G = nudge(dst.G, out.G, target.G)
	out.B = nudge(dst.B, out.B, target.B)
	return out
}

func nudge(from, blended, target uint8) uint8 {
	if blended != from || from == target {
		return blended
	}
	if from < target {
		return from + 1
	}
	return from - 1
}

// TCell converts to a tcell true colour
func (dst RGB) TCell() tcell.Color {
	return tcell.NewRGBColor(int32(dst.R), int32(dst.G), int32(dst.B))
}

// clamp converts float to uint8, saturating at the channel bounds
func clamp(v float64) uint8 {
	if v >= 255.0 {
		return 255
	}
	if v <= 0.0 {
		return 0
	}
	return uint8(v)
}
