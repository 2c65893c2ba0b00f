// Package session wires a sensor stream to a particle field.
//
// Readings arrive on source goroutines and are handed to the frame goroutine
// through a buffered channel. Everything that touches ForcingState or the
// field (Drain, Frame, Stop, Complete) must run on that one goroutine;
// Snapshot and RequestStart may be called from anywhere.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/gyro-particles/particle"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/status"
)

// Status messages
const (
	MsgIdle       = `Press "s" to start reading`
	MsgRequesting = "Requesting sensor permission..."
	MsgStreaming  = "Reading motion data..."
	MsgStopped    = "Stopped reading."
)

// DefaultBuffer holds a few frames worth of readings at typical sensor rates
const DefaultBuffer = 256

// Config sizes the field
type Config struct {
	Bounds    particle.Bounds
	Particles int
	// Seed 0 picks a time based seed
	Seed uint64
	// Buffer is the reading hand-off capacity, DefaultBuffer when zero
	Buffer int
}

// Canvas is a particle canvas that can leave trails
type Canvas interface {
	particle.Canvas
	Fade()
}

// View is a presentation snapshot
type View struct {
	State       sensor.State
	Requesting  bool
	Motion      sensor.AccelerationReading
	HasMotion   bool
	Orientation sensor.OrientationReading
	HasOrient   bool
	Message     string
	IsError     bool
	Frames      int64
	Dropped     int64
}

// Session owns the stream, forcing state and particles of one visualisation
type Session struct {
	stream *sensor.Stream
	field  *particle.Field

	// frame goroutine only
	forcing particle.ForcingState

	readings chan sensor.Reading
	results  chan error

	dropped *atomic.Int64
	frames  *atomic.Int64

	mu          sync.Mutex
	requesting  bool
	motion      sensor.AccelerationReading
	hasMotion   bool
	orientation sensor.OrientationReading
	hasOrient   bool
	message     string
	isError     bool
}

// New creates an idle session over stream; reg may be nil
func New(cfg Config, stream *sensor.Stream, reg *status.Registry) *Session {
	if reg == nil {
		reg = status.NewRegistry()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Session{
		stream:   stream,
		field:    particle.NewSeededField(cfg.Particles, cfg.Bounds, seed),
		readings: make(chan sensor.Reading, cfg.Buffer),
		results:  make(chan error, 1),
		dropped:  reg.Counter(status.DroppedReadings),
		frames:   reg.Counter(status.Frames),
		message:  MsgIdle,
	}
}

// Field exposes the particles for inspection
func (s *Session) Field() *particle.Field { return s.field }

// Forcing returns a copy of the current forcing state
func (s *Session) Forcing() particle.ForcingState { return s.forcing }

// RequestStart begins permission acquisition on its own goroutine
// The outcome arrives on Results and must be passed to Complete
// Returns false if streaming or a request is already in flight
func (s *Session) RequestStart(ctx context.Context) bool {
	s.mu.Lock()
	if s.requesting || s.stream.Streaming() {
		s.mu.Unlock()
		return false
	}
	s.requesting = true
	s.setStatus(MsgRequesting, false)
	s.mu.Unlock()

	go func() {
		s.results <- s.stream.RequestPermission(ctx)
	}()
	return true
}

// Results delivers permission outcomes started by RequestStart
func (s *Session) Results() <-chan error { return s.results }

// Complete finishes a permission request, starting the stream on success
// Starting is guarded by the stream itself, so a late result never
// attaches a second listener pair
func (s *Session) Complete(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesting = false

	if err != nil {
		s.setStatus(err.Error(), true)
		return err
	}
	s.stream.Start(s.onReading)
	s.setStatus(MsgStreaming, false)
	return nil
}

// onReading runs on source goroutines; dispatch is serialised by the stream
func (s *Session) onReading(r sensor.Reading) {
	select {
	case s.readings <- r:
	default:
		s.dropped.Add(1)
	}
}

// Stop detaches the stream and discards readings still queued,
// so nothing delivered before Stop reaches ForcingState afterwards
func (s *Session) Stop() {
	s.stream.Stop()
	for {
		select {
		case <-s.readings:
		default:
			s.mu.Lock()
			s.setStatus(MsgStopped, false)
			s.mu.Unlock()
			return
		}
	}
}

// Drain applies queued readings in arrival order and returns how many
func (s *Session) Drain() int {
	n := 0
	for {
		select {
		case r := <-s.readings:
			s.apply(r)
			n++
		default:
			return n
		}
	}
}

func (s *Session) apply(r sensor.Reading) {
	s.forcing.Apply(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.Kind {
	case sensor.KindMotion:
		s.motion, s.hasMotion = r.Motion, true
	case sensor.KindOrientation:
		s.orientation, s.hasOrient = r.Orientation, true
	}
}

// Frame drains readings, fades the canvas and advances every particle once
// canvas may be nil for a headless step
func (s *Session) Frame(canvas Canvas) {
	s.Drain()
	if canvas == nil {
		s.field.Tick(&s.forcing, nil)
	} else {
		canvas.Fade()
		s.field.Tick(&s.forcing, canvas)
	}
	s.frames.Add(1)
}

// Snapshot returns the presentation state
func (s *Session) Snapshot() View {
	state := s.stream.State()

	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		State:       state,
		Requesting:  s.requesting,
		Motion:      s.motion,
		HasMotion:   s.hasMotion,
		Orientation: s.orientation,
		HasOrient:   s.hasOrient,
		Message:     s.message,
		IsError:     s.isError,
		Frames:      s.frames.Load(),
		Dropped:     s.dropped.Load(),
	}
}

// setStatus requires s.mu
func (s *Session) setStatus(msg string, isError bool) {
	s.message, s.isError = msg, isError
}

// Run drives a session without a terminal: it requests permission, then
// renders frames at interval until frames have been drawn or ctx ends
func (s *Session) Run(ctx context.Context, canvas Canvas, interval time.Duration, frames int) error {
	if !s.RequestStart(ctx) {
		return nil
	}
	defer s.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	drawn := 0
	for drawn < frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.results:
			if err := s.Complete(err); err != nil {
				return err
			}
		case <-ticker.C:
			s.Frame(canvas)
			drawn++
		}
	}
	return nil
}
