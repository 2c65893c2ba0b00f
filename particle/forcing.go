package particle

import "github.com/lixenwraith/gyro-particles/sensor"

// ForcingState is the latest sensor-derived input to the field
// The reading handler is its only writer; Field.Tick only reads it
type ForcingState struct {
	AccelX, AccelY float64
	// Orientation is nil until the first orientation reading arrives and is
	// never cleared by motion readings
	Orientation *sensor.OrientationReading
}

// Apply folds one reading into the state
// Motion overwrites AccelX/AccelY (Z is not a forcing input); orientation
// replaces the previous orientation wholesale
func (f *ForcingState) Apply(r sensor.Reading) {
	switch r.Kind {
	case sensor.KindMotion:
		f.AccelX = r.Motion.X
		f.AccelY = r.Motion.Y
	case sensor.KindOrientation:
		o := r.Orientation
		f.Orientation = &o
	}
}
