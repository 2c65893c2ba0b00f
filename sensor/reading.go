package sensor

import "time"

// AccelerationReading is one motion sample in m/s², gravity included
type AccelerationReading struct {
	X, Y, Z float64
	// Timestamp is the host event time relative to its own epoch
	Timestamp time.Duration
}

// OrientationReading is one orientation sample in degrees
// Alpha in [0,360), Beta in [-180,180], Gamma in [-90,90]
type OrientationReading struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// Kind tags which branch of a Reading carries data
type Kind uint8

const (
	KindMotion Kind = iota + 1
	KindOrientation
)

func (k Kind) String() string {
	switch k {
	case KindMotion:
		return "motion"
	case KindOrientation:
		return "orientation"
	default:
		return "unknown"
	}
}

// Reading is the multiplexed stream element
// Exactly one branch is meaningful, selected by Kind; the other branch is
// "no update this call", never zero
type Reading struct {
	Kind        Kind
	Motion      AccelerationReading
	Orientation OrientationReading
}

// MotionReading wraps an acceleration sample
func MotionReading(r AccelerationReading) Reading {
	return Reading{Kind: KindMotion, Motion: r}
}

// OrientationUpdate wraps an orientation sample
func OrientationUpdate(r OrientationReading) Reading {
	return Reading{Kind: KindOrientation, Orientation: r}
}

// AsMotion returns the acceleration branch and whether it is present
func (r Reading) AsMotion() (AccelerationReading, bool) {
	return r.Motion, r.Kind == KindMotion
}

// AsOrientation returns the orientation branch and whether it is present
func (r Reading) AsOrientation() (OrientationReading, bool) {
	return r.Orientation, r.Kind == KindOrientation
}
