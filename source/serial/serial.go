// Package serial reads sensor readings from a microcontroller that prints one
// sample per line over a serial link:
//
//	M,<x>,<y>,<z>[,<timestamp ms>]
//	O,<alpha>,<beta>,<gamma>
//
// Lines starting with '#' and blank lines are ignored. Anything else that
// does not parse, including NaN and infinite values, is counted as
// malformed and skipped.
package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/status"
)

var (
	// ErrSkip marks comment and blank lines
	ErrSkip = errors.New("skip line")
	// ErrNonFinite rejects NaN and infinite values, which would never wrap back onto the canvas
	ErrNonFinite = errors.New("value is not finite")
)

// Config describes the port to open
type Config struct {
	Port     string
	BaudRate int
}

// Mode converts the config to go.bug.st/serial settings, 8N1
func (c Config) Mode() *serial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = 115200
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Device publishes parsed lines from a port to its two sources
type Device struct {
	port io.ReadCloser

	motion      sensor.Feed[sensor.AccelerationReading]
	orientation sensor.Feed[sensor.OrientationReading]

	motionCount      *atomic.Int64
	orientationCount *atomic.Int64
	malformed        *atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// Open opens a real serial port
func Open(cfg Config, reg *status.Registry) (*Device, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial: no port configured")
	}
	port, err := serial.Open(cfg.Port, cfg.Mode())
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Port, err)
	}
	return NewDevice(port, reg), nil
}

// NewDevice wraps any line-oriented reader; reg may be nil
func NewDevice(port io.ReadCloser, reg *status.Registry) *Device {
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &Device{
		port:             port,
		motionCount:      reg.Counter(status.MotionReadings),
		orientationCount: reg.Counter(status.OrientationReadings),
		malformed:        reg.Counter(status.MalformedMessages),
	}
}

// Motion returns the acceleration source
func (d *Device) Motion() sensor.Source[sensor.AccelerationReading] { return &d.motion }

// Orientation returns the orientation source
func (d *Device) Orientation() sensor.Source[sensor.OrientationReading] { return &d.orientation }

// Run reads lines until the port hits EOF, fails, or ctx is cancelled
// Cancelling ctx closes the port to unblock the pending read
func (d *Device) Run(ctx context.Context) error {
	scan := bufio.NewScanner(d.port)

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = d.Close()
			return ctx.Err()

		case err := <-scanErr:
			return fmt.Errorf("serial: read: %w", err)

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return fmt.Errorf("serial: read: %w", err)
				default:
					return nil
				}
			}
			d.handleLine(line)
		}
	}
}

func (d *Device) handleLine(line string) {
	r, err := ParseLine(line)
	if errors.Is(err, ErrSkip) {
		return
	}
	if err != nil {
		d.malformed.Add(1)
		log.Printf("serial: %v", err)
		return
	}

	switch r.Kind {
	case sensor.KindMotion:
		d.motionCount.Add(1)
		d.motion.Publish(r.Motion)
	case sensor.KindOrientation:
		d.orientationCount.Add(1)
		d.orientation.Publish(r.Orientation)
	}
}

// Close closes the port; safe to call more than once
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.port.Close()
	})
	return d.closeErr
}

// ParseLine decodes one protocol line
func ParseLine(line string) (sensor.Reading, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return sensor.Reading{}, ErrSkip
	}

	fields := strings.Split(line, ",")
	tag := strings.ToUpper(strings.TrimSpace(fields[0]))
	vals, err := parseFloats(fields[1:])
	if err != nil {
		return sensor.Reading{}, fmt.Errorf("line %q: %w", line, err)
	}

	switch tag {
	case "M":
		if len(vals) != 3 && len(vals) != 4 {
			return sensor.Reading{}, fmt.Errorf("line %q: motion wants 3 or 4 values, got %d", line, len(vals))
		}
		r := sensor.AccelerationReading{X: vals[0], Y: vals[1], Z: vals[2]}
		if len(vals) == 4 {
			r.Timestamp = time.Duration(vals[3] * float64(time.Millisecond))
		}
		return sensor.MotionReading(r), nil

	case "O":
		if len(vals) != 3 {
			return sensor.Reading{}, fmt.Errorf("line %q: orientation wants 3 values, got %d", line, len(vals))
		}
		return sensor.OrientationUpdate(sensor.OrientationReading{
			Alpha: vals[0],
			Beta:  vals[1],
			Gamma: vals[2],
		}), nil

	default:
		return sensor.Reading{}, fmt.Errorf("line %q: unknown tag %q", line, tag)
	}
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i+1, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("field %d: %w", i+1, ErrNonFinite)
		}
		out[i] = v
	}
	return out, nil
}
