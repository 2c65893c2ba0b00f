package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lixenwraith/gyro-particles/sensor"
)

// Envelope types
const (
	MsgMotion            = "motion"
	MsgOrientation       = "orientation"
	MsgPermission        = "permission"
	MsgRequestPermission = "request_permission"
)

// Envelope is the outer frame of every message
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// MotionPayload mirrors DeviceMotionEvent.accelerationIncludingGravity
// Null axes decode as zero
type MotionPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp float64 `json:"timestamp"` // milliseconds
}

// Reading converts the payload to a sensor reading
func (p MotionPayload) Reading() sensor.AccelerationReading {
	return sensor.AccelerationReading{
		X:         p.X,
		Y:         p.Y,
		Z:         p.Z,
		Timestamp: time.Duration(p.Timestamp * float64(time.Millisecond)),
	}
}

// OrientationPayload mirrors DeviceOrientationEvent
type OrientationPayload struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Reading converts the payload to a sensor reading
func (p OrientationPayload) Reading() sensor.OrientationReading {
	return sensor.OrientationReading{Alpha: p.Alpha, Beta: p.Beta, Gamma: p.Gamma}
}

// PermissionPayload carries a consent answer (client -> server) or a
// consent request (server -> client, State empty)
type PermissionPayload struct {
	Sensor string `json:"sensor"`
	State  string `json:"state,omitempty"`
}

// Encode wraps payload in an envelope of type t
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty envelope type")
	}
	if payload == nil {
		return nil, fmt.Errorf("encode %q: nil payload", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", t, err)
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

// DecodeEnvelope parses the outer frame
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode: empty message")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// DecodePayload parses the envelope payload into T
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("decode %q payload: %w", env.T, err)
	}
	return out, nil
}

// sensorName is the wire spelling of a sensor kind
func sensorName(k sensor.Kind) string {
	return k.String()
}

func parseSensor(s string) (sensor.Kind, bool) {
	switch s {
	case "motion":
		return sensor.KindMotion, true
	case "orientation":
		return sensor.KindOrientation, true
	default:
		return 0, false
	}
}
