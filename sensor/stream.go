// Package sensor manages the lifecycle of the motion and orientation streams
// and multiplexes both into a single tagged Reading handler.
//
// Permission acquisition is separate from streaming: RequestPermission is
// blocking and fallible, Start and Stop are synchronous and never fail.
// Calls in an invalid state are no-ops.
package sensor

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the stream lifecycle state
type State int32

const (
	StateIdle State = iota
	StateRequestingPermission
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting permission"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Stream subscribes to two independently clocked sources
type Stream struct {
	motion      Source[AccelerationReading]
	orientation Source[OrientationReading]

	mu                sync.Mutex
	state             State
	cancelMotion      func()
	cancelOrientation func()
	generation        uint64

	// live holds the generation currently allowed to dispatch, 0 when stopped
	live atomic.Uint64
	// dispatchMu serialises handler calls across both sources
	dispatchMu sync.Mutex
}

// NewStream creates an idle stream; a nil source means the host lacks it
func NewStream(motion Source[AccelerationReading], orientation Source[OrientationReading]) *Stream {
	return &Stream{
		motion:      motion,
		orientation: orientation,
	}
}

// State returns the current lifecycle state
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Streaming reports whether listeners are attached
func (s *Stream) Streaming() bool {
	return s.State() == StateStreaming
}

// RequestPermission asks each consent-gated source in turn, motion first
// It blocks for as long as the host takes to answer; ctx is the only bound
func (s *Stream) RequestPermission(ctx context.Context) error {
	if s.motion == nil || s.orientation == nil {
		return ErrUnsupported
	}

	s.mu.Lock()
	entered := s.state == StateIdle
	if entered {
		s.state = StateRequestingPermission
	}
	s.mu.Unlock()

	if entered {
		defer func() {
			s.mu.Lock()
			if s.state == StateRequestingPermission {
				s.state = StateIdle
			}
			s.mu.Unlock()
		}()
	}

	if err := request(ctx, KindMotion, s.motion); err != nil {
		return err
	}
	return request(ctx, KindOrientation, s.orientation)
}

func request(ctx context.Context, kind Kind, src any) error {
	pr, ok := src.(PermissionRequester)
	if !ok {
		return nil
	}
	p, err := pr.RequestPermission(ctx)
	if err != nil {
		return &PermissionRequestError{Sensor: kind, Err: err}
	}
	if p != PermissionGranted {
		return &PermissionDeniedError{Sensor: kind, Permission: p}
	}
	return nil
}

// Start attaches one listener per source and begins delivering readings
// Calling Start while streaming keeps the existing listener pair
// onReading must not call Stop synchronously
func (s *Stream) Start(onReading func(Reading)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStreaming {
		return
	}

	s.generation++
	gen := s.generation
	s.live.Store(gen)

	if s.motion != nil {
		s.cancelMotion = s.motion.Subscribe(func(r AccelerationReading) {
			s.dispatch(gen, onReading, MotionReading(r))
		})
	}
	if s.orientation != nil {
		s.cancelOrientation = s.orientation.Subscribe(func(r OrientationReading) {
			s.dispatch(gen, onReading, OrientationUpdate(r))
		})
	}
	s.state = StateStreaming
}

func (s *Stream) dispatch(gen uint64, fn func(Reading), r Reading) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if s.live.Load() != gen {
		return
	}
	fn(r)
}

// Stop detaches both listeners; no reading reaches the handler after it returns
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	s.live.Store(0)
	cm, co := s.cancelMotion, s.cancelOrientation
	s.cancelMotion = nil
	s.cancelOrientation = nil
	s.state = StateIdle
	s.mu.Unlock()

	if cm != nil {
		cm()
	}
	if co != nil {
		co()
	}

	// Barrier: wait out a dispatch that passed the generation check
	s.dispatchMu.Lock()
	s.dispatchMu.Unlock()
}
