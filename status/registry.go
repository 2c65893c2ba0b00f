// Package status holds lock-free telemetry counters shared between sensor
// sources, the session and the presentation layer.
package status

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Well-known counter keys
const (
	MotionReadings      = "readings.motion"
	OrientationReadings = "readings.orientation"
	DroppedReadings     = "readings.dropped"
	MalformedMessages   = "source.malformed"
	ConnectedClients    = "source.clients"
	Frames              = "frames"
	FrameRate           = "fps"
)

// Registry is the central metrics facade
// Writers cache pointers during init; hot paths touch atomics only
type Registry struct {
	Ints   *MetricMap[atomic.Int64]
	Floats *MetricMap[AtomicFloat]
}

// NewRegistry creates an initialized Registry
func NewRegistry() *Registry {
	return &Registry{
		Ints:   NewMetricMap[atomic.Int64](),
		Floats: NewMetricMap[AtomicFloat](),
	}
}

// Counter returns the integer metric for key
func (r *Registry) Counter(key string) *atomic.Int64 {
	return r.Ints.Get(key)
}

// Gauge returns the float metric for key
func (r *Registry) Gauge(key string) *AtomicFloat {
	return r.Floats.Get(key)
}

// Value reads an integer metric, zero if never touched
func (r *Registry) Value(key string) int64 {
	if c, ok := r.Ints.Peek(key); ok {
		return c.Load()
	}
	return 0
}

// Summary renders every metric as sorted "key=value" pairs
func (r *Registry) Summary() string {
	var parts []string
	r.Ints.Range(func(k string, v *atomic.Int64) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, v.Load()))
	})
	r.Floats.Range(func(k string, v *AtomicFloat) {
		parts = append(parts, fmt.Sprintf("%s=%.1f", k, v.Get()))
	})
	return strings.Join(parts, " ")
}
