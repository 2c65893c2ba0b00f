package particle

import (
	"image/color"
	"math/rand/v2"
)

// Field is a fixed-size arena of particles advanced once per frame
// Slice order is draw order; particles never interact
type Field struct {
	particles []Particle
	bounds    Bounds
	rng       *rand.Rand
}

// NewField spawns n particles inside b using rng for every random draw
func NewField(n int, b Bounds, rng *rand.Rand) *Field {
	f := &Field{
		particles: make([]Particle, n),
		bounds:    b,
		rng:       rng,
	}
	for i := range f.particles {
		f.particles[i] = f.spawn()
	}
	return f
}

// NewSeededField is NewField with a PCG generator seeded from seed
func NewSeededField(n int, b Bounds, seed uint64) *Field {
	return NewField(n, b, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func (f *Field) spawn() Particle {
	base := color.NRGBA{
		R: uint8(f.uniform(BaseRGMin, BaseRGMax)),
		G: uint8(f.uniform(BaseRGMin, BaseRGMax)),
		B: 255,
		A: uint8(f.uniform(BaseAlphaMin, BaseAlphaMax)),
	}
	return Particle{
		X:         f.uniform(0, f.bounds.W),
		Y:         f.uniform(0, f.bounds.H),
		Size:      f.uniform(SizeMin, SizeMax),
		BaseColor: base,
		Color:     base,
		Rotation:  f.uniform(0, RotationMax),
	}
}

// uniform draws from [lo, hi)
func (f *Field) uniform(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}

// drift draws one jitter component from [-DriftAmplitude, DriftAmplitude)
func (f *Field) drift() float64 {
	return f.uniform(-DriftAmplitude, DriftAmplitude)
}

// Tick updates then draws every particle in insertion order
// canvas may be nil for update-only frames
func (f *Field) Tick(fs *ForcingState, canvas Canvas) {
	for i := range f.particles {
		p := &f.particles[i]
		jitter := Vec{X: f.drift(), Y: f.drift()}
		p.Update(fs.AccelX, fs.AccelY, fs.Orientation, jitter, f.bounds)
		if canvas != nil {
			p.Draw(canvas)
		}
	}
}

// Len returns the particle count
func (f *Field) Len() int {
	return len(f.particles)
}

// At returns a copy of particle i
func (f *Field) At(i int) Particle {
	return f.particles[i]
}

// Bounds returns the wrap rectangle
func (f *Field) Bounds() Bounds {
	return f.bounds
}

// Each calls fn for every particle in draw order
func (f *Field) Each(fn func(i int, p *Particle)) {
	for i := range f.particles {
		fn(i, &f.particles[i])
	}
}
