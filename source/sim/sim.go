// Package sim provides synthetic motion and orientation sources that tick at
// independent rates, for running without real hardware.
package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lixenwraith/gyro-particles/core"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/status"
)

// Config controls the synthetic device
type Config struct {
	MotionHz      int
	OrientationHz int
	// Consent answers permission requests when set to granted or denied;
	// prompt means the sources do not require consent at all
	Consent sensor.Permission
	// ConsentDelay simulates the time a user takes to answer the dialog
	ConsentDelay time.Duration
}

// DefaultConfig mirrors typical phone sensor rates
func DefaultConfig() Config {
	return Config{
		MotionHz:      60,
		OrientationHz: 20,
		Consent:       sensor.PermissionPrompt,
	}
}

// New builds the motion and orientation pair for cfg
func New(cfg Config, reg *status.Registry) (sensor.Source[sensor.AccelerationReading], sensor.Source[sensor.OrientationReading]) {
	start := time.Now()
	m := &ticker[sensor.AccelerationReading]{
		hz:     cfg.MotionHz,
		sample: func(t float64) sensor.AccelerationReading { return noisy(MotionAt(t)) },
		start:  start,
	}
	o := &ticker[sensor.OrientationReading]{
		hz:     cfg.OrientationHz,
		sample: OrientationAt,
		start:  start,
	}
	if reg != nil {
		m.produced = reg.Counter(status.MotionReadings).Add
		o.produced = reg.Counter(status.OrientationReadings).Add
	}

	if cfg.Consent == sensor.PermissionPrompt {
		return m, o
	}
	return &gated[sensor.AccelerationReading]{Source: m, answer: cfg.Consent, delay: cfg.ConsentDelay},
		&gated[sensor.OrientationReading]{Source: o, answer: cfg.Consent, delay: cfg.ConsentDelay}
}

// MotionAt is the noiseless acceleration of a gently rocked device at t seconds
func MotionAt(t float64) sensor.AccelerationReading {
	return sensor.AccelerationReading{
		X:         2.5 * math.Sin(0.8*t),
		Y:         1.8 * math.Cos(0.5*t),
		Z:         9.81,
		Timestamp: time.Duration(t * float64(time.Second)),
	}
}

// OrientationAt is the orientation of a slowly spinning, tilting device at t seconds
func OrientationAt(t float64) sensor.OrientationReading {
	return sensor.OrientationReading{
		Alpha: math.Mod(t*30, 360),
		Beta:  60 * math.Sin(0.3*t),
		Gamma: 45 * math.Sin(0.7*t),
	}
}

func noisy(r sensor.AccelerationReading) sensor.AccelerationReading {
	r.X += rand.Float64()*0.1 - 0.05
	r.Y += rand.Float64()*0.1 - 0.05
	r.Z += rand.Float64()*0.04 - 0.02
	return r
}

// ticker emits sample(t) every 1/hz on its own goroutine per subscriber
type ticker[T any] struct {
	hz       int
	sample   func(t float64) T
	start    time.Time
	produced func(int64) int64
}

func (k *ticker[T]) Subscribe(fn func(T)) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	core.Go(func() {
		defer close(done)
		k.run(fn, stop)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}

func (k *ticker[T]) run(fn func(T), stop <-chan struct{}) {
	t := time.NewTicker(period(k.hz))
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			fn(k.sample(now.Sub(k.start).Seconds()))
			if k.produced != nil {
				k.produced(1)
			}
		}
	}
}

// MaxHz caps the tick rate; faster rates would round the period to zero
const MaxHz = 1000

// period converts hz to a ticker period, clamping hz to 1..MaxHz
func period(hz int) time.Duration {
	return time.Second / time.Duration(min(max(hz, 1), MaxHz))
}

// gated adds a canned consent answer to a source
type gated[T any] struct {
	sensor.Source[T]
	answer sensor.Permission
	delay  time.Duration
}

func (g *gated[T]) RequestPermission(ctx context.Context) (sensor.Permission, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return sensor.PermissionPrompt, ctx.Err()
		}
	}
	return g.answer, nil
}
