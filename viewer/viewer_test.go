package viewer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/gyro-particles/particle"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/session"
	"github.com/lixenwraith/gyro-particles/status"
)

type consentFeed[T any] struct {
	sensor.Feed[T]
	answer sensor.Permission
}

func (c *consentFeed[T]) RequestPermission(context.Context) (sensor.Permission, error) {
	return c.answer, nil
}

type harness struct {
	screen tcell.SimulationScreen
	motion *consentFeed[sensor.AccelerationReading]
	orient *consentFeed[sensor.OrientationReading]
	sess   *session.Session
	app    *App
}

func newHarness(t *testing.T, answer sensor.Permission) *harness {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(60, 20)
	t.Cleanup(screen.Fini)

	h := &harness{
		screen: screen,
		motion: &consentFeed[sensor.AccelerationReading]{answer: answer},
		orient: &consentFeed[sensor.OrientationReading]{answer: answer},
	}
	reg := status.NewRegistry()
	h.sess = session.New(session.Config{
		Bounds:    particle.Bounds{W: 340, H: 340},
		Particles: 20,
		Seed:      3,
	}, sensor.NewStream(h.motion, h.orient), reg)
	h.app = New(screen, h.sess, nil, reg, Options{Source: "test"})
	return h
}

func (h *harness) row(y int) string {
	w, _ := h.screen.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := h.screen.GetContent(x, y)
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

// grant presses s and feeds the permission result back like Run does
func (h *harness) grant(t *testing.T) {
	t.Helper()
	require.True(t, h.app.handleEvent(key('s')))
	select {
	case err := <-h.sess.Results():
		h.app.completePermission(err)
	case <-time.After(2 * time.Second):
		t.Fatal("permission result never arrived")
	}
}

func TestDrawFrameStatusBar(t *testing.T) {
	h := newHarness(t, sensor.PermissionGranted)
	h.app.drawFrame()

	assert.Contains(t, h.row(0), "Motion & Gyro Particles")
	assert.Contains(t, h.row(0), "[test]")
	assert.Contains(t, h.row(0), "(idle)")
	assert.Contains(t, h.row(1), "X:    0.00")
	assert.Contains(t, h.row(2), "α:    0.0°")
	assert.Equal(t, session.MsgIdle, h.row(3))
	assert.Contains(t, h.row(4), "frames=1")
	assert.Contains(t, h.row(5), "[s] start")

	// Canvas starts below the header with half-block cells
	r, _, _, _ := h.screen.GetContent(0, statusRows)
	assert.Equal(t, '▀', r)
}

func TestStartKeyStreamsAndShowsReadings(t *testing.T) {
	h := newHarness(t, sensor.PermissionGranted)
	h.grant(t)
	assert.Equal(t, sensor.StateStreaming, h.sess.Snapshot().State)

	h.motion.Publish(sensor.AccelerationReading{X: 1.234, Y: -5, Z: 9.81})
	h.orient.Publish(sensor.OrientationReading{Alpha: 45, Beta: -12.34, Gamma: 3})
	h.app.drawFrame()

	assert.Contains(t, h.row(0), "(streaming)")
	assert.Contains(t, h.row(1), "X:    1.23")
	assert.Contains(t, h.row(1), "Z:    9.81")
	assert.Contains(t, h.row(2), "β:  -12.3°")
	assert.Equal(t, session.MsgStreaming, h.row(3))

	// Start is ignored while streaming
	require.True(t, h.app.handleEvent(key('s')))
	select {
	case <-h.sess.Results():
		t.Fatal("second start issued a permission request")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStopKey(t *testing.T) {
	h := newHarness(t, sensor.PermissionGranted)

	// Stop while idle is a no-op and keeps the idle message
	require.True(t, h.app.handleEvent(key('x')))
	assert.Equal(t, session.MsgIdle, h.sess.Snapshot().Message)

	h.grant(t)
	require.True(t, h.app.handleEvent(key('x')))

	v := h.sess.Snapshot()
	assert.Equal(t, sensor.StateIdle, v.State)
	assert.Equal(t, session.MsgStopped, v.Message)
	assert.Equal(t, 0, h.motion.Len())
}

func TestPermissionErrorHighlighted(t *testing.T) {
	h := newHarness(t, sensor.PermissionDenied)
	h.grant(t)
	h.app.drawFrame()

	assert.Equal(t, "motion permission not granted (denied)", h.row(3))
	_, _, style, _ := h.screen.GetContent(0, 3)
	_, bg, _ := style.Decompose()
	assert.Equal(t, tcell.NewRGBColor(255, 235, 238), bg)
}

func TestQuitKeys(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want bool
	}{
		{"q", key('q'), false},
		{"Q", key('Q'), false},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), false},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), false},
		{"mute", key('m'), true},
		{"other", key('z'), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, sensor.PermissionGranted)
			assert.Equal(t, tt.want, h.app.handleEvent(tt.ev))
		})
	}
}

func TestResizeRelayoutsCanvas(t *testing.T) {
	h := newHarness(t, sensor.PermissionGranted)
	w, ph := h.app.canvas.Size()
	assert.Equal(t, 60, w)
	assert.Equal(t, (20-statusRows)*2, ph)

	h.screen.SetSize(80, 30)
	h.app.handleEvent(tcell.NewEventResize(80, 30))
	w, ph = h.app.canvas.Size()
	assert.Equal(t, 80, w)
	assert.Equal(t, (30-statusRows)*2, ph)
}

func TestRunQuitsOnKey(t *testing.T) {
	h := newHarness(t, sensor.PermissionGranted)

	done := make(chan error, 1)
	go func() { done <- h.app.Run(context.Background()) }()

	require.NoError(t, h.screen.PostEvent(key('s')))
	require.Eventually(t, func() bool {
		return h.sess.Snapshot().State == sensor.StateStreaming
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.screen.PostEvent(key('q')))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on q")
	}
	assert.Equal(t, sensor.StateIdle, h.sess.Snapshot().State, "Run stops the stream on exit")
}

func TestFormatHelpers(t *testing.T) {
	v := session.View{}
	assert.Equal(t, "Acceleration  X:    0.00  Y:    0.00  Z:    0.00 m/s²", formatAcceleration(v))
	assert.Equal(t, "Rotation      α:    0.0°  β:    0.0°  γ:    0.0°", formatRotation(v))

	v.HasMotion = true
	v.Motion = sensor.AccelerationReading{X: -0.006, Y: 12.3456, Z: 100}
	assert.Equal(t, "Acceleration  X:   -0.01  Y:   12.35  Z:  100.00 m/s²", formatAcceleration(v))

	v.Requesting = true
	assert.Equal(t, "(requesting permission)", stateLabel(v))
}
