// Package particle implements the sensor-forced particle model.
//
// Each frame a particle takes the current acceleration and (optional)
// orientation, gains velocity, jitters, spins, decays by friction, moves and
// wraps toroidally around the canvas. Drawing is delegated to a Canvas.
package particle

import (
	"image/color"
	"math"

	"github.com/lixenwraith/gyro-particles/sensor"
)

// Vec is a 2D float vector
type Vec struct {
	X, Y float64
}

// Bounds is the wrap rectangle [0,W]x[0,H]
type Bounds struct {
	W, H float64
}

// Canvas is the rendering collaborator: a filled polygon in canvas coordinates, no outline
type Canvas interface {
	FillPolygon(pts []Vec, fill color.NRGBA)
}

// Particle is one visual entity
type Particle struct {
	X, Y   float64
	VX, VY float64
	Size   float64

	BaseColor color.NRGBA
	Color     color.NRGBA

	// Rotation is in degrees and unbounded
	Rotation      float64
	RotationSpeed float64
}

// Update advances the particle by one frame
// jitter is the per-axis drift for this frame; orientation may be nil
func (p *Particle) Update(accX, accY float64, orientation *sensor.OrientationReading, jitter Vec, b Bounds) {
	p.VX += accX * AccelCoupling
	p.VY += accY * AccelCoupling

	p.VX += jitter.X
	p.VY += jitter.Y

	if orientation != nil {
		p.RotationSpeed += orientation.Gamma * GammaCoupling
		p.Rotation += p.RotationSpeed
		p.Color = OrientationColor(*orientation, p.BaseColor.A)
	}

	// Friction after spin, before integration: this frame's forcing and
	// damping both land in this frame's displacement
	p.VX *= Friction
	p.VY *= Friction
	p.RotationSpeed *= Friction

	p.X += p.VX
	p.Y += p.VY

	p.X = wrap(p.X, b.W)
	p.Y = wrap(p.Y, b.H)
}

// wrap re-enters on the opposite edge on strict overshoot only
func wrap(v, limit float64) float64 {
	if v < 0 {
		return limit
	}
	if v > limit {
		return 0
	}
	return v
}

// OrientationColor maps alpha to red and beta to green, blue saturated
func OrientationColor(o sensor.OrientationReading, a uint8) color.NRGBA {
	return color.NRGBA{
		R: channel(o.Alpha / 360 * 255),
		G: channel((o.Beta + 180) / 360 * 255),
		B: 255,
		A: a,
	}
}

// channel rounds and clamps to [0,255]
func channel(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// Geometry returns the three triangle vertices in canvas coordinates
// Vertices sit at 0°, 120°, 240° offset by Rotation, radius Size, centred on (X, Y)
func (p *Particle) Geometry() [3]Vec {
	var pts [3]Vec
	for i := range pts {
		rad := (float64(i)*120 + p.Rotation) * math.Pi / 180
		pts[i] = Vec{
			X: p.X + math.Cos(rad)*p.Size,
			Y: p.Y + math.Sin(rad)*p.Size,
		}
	}
	return pts
}

// Draw hands the particle's triangle to c without mutating the particle
func (p *Particle) Draw(c Canvas) {
	pts := p.Geometry()
	c.FillPolygon(pts[:], p.Color)
}
