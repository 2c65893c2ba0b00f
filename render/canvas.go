// Package render rasterises particle geometry into a half-block pixel grid
// and flushes it to a tcell screen. Each terminal cell holds two vertically
// stacked pixels drawn with '▀' (upper pixel as foreground, lower as
// background), which keeps pixels roughly square.
package render

import (
	"image/color"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/gyro-particles/particle"
)

// DefaultFadeAlpha matches a 10/255 translucent backdrop per frame
const DefaultFadeAlpha = 10.0 / 255.0

const halfBlock = '▀'

// PixelCanvas is an off-screen RGB pixel buffer addressed in logical
// canvas coordinates; the logical rectangle is letterboxed into the grid
type PixelCanvas struct {
	pixels []RGB
	pw, ph int

	logical particle.Bounds
	scale   float64
	offX    float64
	offY    float64

	Backdrop  RGB
	FadeAlpha float64
}

// NewPixelCanvas sizes a canvas for cols x rows terminal cells
func NewPixelCanvas(cols, rows int, logical particle.Bounds) *PixelCanvas {
	c := &PixelCanvas{
		logical:   logical,
		Backdrop:  RGBBackdrop,
		FadeAlpha: DefaultFadeAlpha,
	}
	c.Resize(cols, rows)
	return c
}

// Resize adjusts the grid, reallocating only if capacity is insufficient
func (c *PixelCanvas) Resize(cols, rows int) {
	cols = max(cols, 0)
	rows = max(rows, 0)
	c.pw, c.ph = cols, rows*2

	size := c.pw * c.ph
	if cap(c.pixels) < size {
		c.pixels = make([]RGB, size)
	} else {
		c.pixels = c.pixels[:size]
	}

	c.scale = 0
	if c.logical.W > 0 && c.logical.H > 0 {
		c.scale = math.Min(float64(c.pw)/c.logical.W, float64(c.ph)/c.logical.H)
	}
	c.offX = (float64(c.pw) - c.logical.W*c.scale) / 2
	c.offY = (float64(c.ph) - c.logical.H*c.scale) / 2

	c.Clear()
}

// Size returns the pixel grid dimensions
func (c *PixelCanvas) Size() (w, h int) {
	return c.pw, c.ph
}

// Clear fills every pixel with the backdrop
func (c *PixelCanvas) Clear() {
	for i := range c.pixels {
		c.pixels[i] = c.Backdrop
	}
}

// Fade moves every pixel one FadeAlpha step toward the backdrop, leaving trails
func (c *PixelCanvas) Fade() {
	for i, p := range c.pixels {
		c.pixels[i] = p.FadeToward(c.Backdrop, c.FadeAlpha)
	}
}

// At returns the pixel at grid position (x, y)
func (c *PixelCanvas) At(x, y int) RGB {
	if x < 0 || y < 0 || x >= c.pw || y >= c.ph {
		return RGBBlack
	}
	return c.pixels[y*c.pw+x]
}

// ToGrid maps a logical point to continuous grid coordinates
func (c *PixelCanvas) ToGrid(v particle.Vec) (float64, float64) {
	return c.offX + v.X*c.scale, c.offY + v.Y*c.scale
}

// FillPolygon alpha-blends a convex polygon into every pixel whose centre lies inside it
func (c *PixelCanvas) FillPolygon(pts []particle.Vec, fill color.NRGBA) {
	if len(pts) < 3 || c.scale == 0 || fill.A == 0 {
		return
	}

	gx := make([]float64, len(pts))
	gy := make([]float64, len(pts))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, p := range pts {
		gx[i], gy[i] = c.ToGrid(p)
		minX, maxX = math.Min(minX, gx[i]), math.Max(maxX, gx[i])
		minY, maxY = math.Min(minY, gy[i]), math.Max(maxY, gy[i])
	}

	x0 := max(int(math.Floor(minX)), 0)
	y0 := max(int(math.Floor(minY)), 0)
	x1 := min(int(math.Ceil(maxX)), c.pw-1)
	y1 := min(int(math.Ceil(maxY)), c.ph-1)

	src := FromNRGBA(fill)
	alpha := float64(fill.A) / 255

	for y := y0; y <= y1; y++ {
		cy := float64(y) + 0.5
		row := y * c.pw
		for x := x0; x <= x1; x++ {
			if !inside(gx, gy, float64(x)+0.5, cy) {
				continue
			}
			c.pixels[row+x] = c.pixels[row+x].Blend(src, alpha)
		}
	}
}

// inside reports whether (px, py) lies in the convex polygon, either winding
func inside(xs, ys []float64, px, py float64) bool {
	var pos, neg bool
	n := len(xs)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := (xs[j]-xs[i])*(py-ys[i]) - (ys[j]-ys[i])*(px-xs[i])
		if cross > 0 {
			pos = true
		} else if cross < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

// Flush writes the grid to s with its top-left cell at (col, row)
func (c *PixelCanvas) Flush(s tcell.Screen, col, row int) {
	for y := 0; y+1 < c.ph; y += 2 {
		for x := 0; x < c.pw; x++ {
			upper := c.pixels[y*c.pw+x]
			lower := c.pixels[(y+1)*c.pw+x]
			style := tcell.StyleDefault.Foreground(upper.TCell()).Background(lower.TCell())
			s.SetContent(col+x, row+y/2, halfBlock, nil, style)
		}
	}
}
