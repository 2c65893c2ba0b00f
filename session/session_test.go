package session

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/gyro-particles/particle"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/status"
)

// gatedFeed is a feed whose consent answer is fixed
type gatedFeed[T any] struct {
	sensor.Feed[T]
	answer sensor.Permission
}

func (g *gatedFeed[T]) RequestPermission(context.Context) (sensor.Permission, error) {
	return g.answer, nil
}

type fixture struct {
	motion      *gatedFeed[sensor.AccelerationReading]
	orientation *gatedFeed[sensor.OrientationReading]
	reg         *status.Registry
	s           *Session
}

func newFixture(t *testing.T, answer sensor.Permission, buffer int) *fixture {
	t.Helper()
	f := &fixture{
		motion:      &gatedFeed[sensor.AccelerationReading]{answer: answer},
		orientation: &gatedFeed[sensor.OrientationReading]{answer: answer},
		reg:         status.NewRegistry(),
	}
	stream := sensor.NewStream(f.motion, f.orientation)
	f.s = New(Config{
		Bounds:    particle.Bounds{W: 340, H: 340},
		Particles: 10,
		Seed:      1,
		Buffer:    buffer,
	}, stream, f.reg)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.True(t, f.s.RequestStart(context.Background()))
	select {
	case err := <-f.s.Results():
		require.NoError(t, f.s.Complete(err))
	case <-time.After(2 * time.Second):
		t.Fatal("permission result never arrived")
	}
}

type fadeCanvas struct {
	fades int
	polys int
}

func (c *fadeCanvas) Fade() { c.fades++ }

func (c *fadeCanvas) FillPolygon([]particle.Vec, color.NRGBA) { c.polys++ }

func TestSession_InitialView(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	v := f.s.Snapshot()
	assert.Equal(t, sensor.StateIdle, v.State)
	assert.Equal(t, MsgIdle, v.Message)
	assert.False(t, v.HasMotion)
	assert.False(t, v.HasOrient)
	assert.Equal(t, 10, f.s.Field().Len())
	assert.Nil(t, f.s.Forcing().Orientation)
}

func TestSession_StartAndApply(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	f.start(t)

	v := f.s.Snapshot()
	assert.Equal(t, sensor.StateStreaming, v.State)
	assert.Equal(t, MsgStreaming, v.Message)
	assert.False(t, v.IsError)

	f.motion.Publish(sensor.AccelerationReading{X: 1.5, Y: -2, Z: 9.8})
	f.orientation.Publish(sensor.OrientationReading{Alpha: 90, Beta: 0, Gamma: 10})

	canvas := &fadeCanvas{}
	f.s.Frame(canvas)

	fs := f.s.Forcing()
	assert.Equal(t, 1.5, fs.AccelX)
	assert.Equal(t, -2.0, fs.AccelY)
	require.NotNil(t, fs.Orientation)
	assert.Equal(t, 10.0, fs.Orientation.Gamma)

	v = f.s.Snapshot()
	assert.True(t, v.HasMotion)
	assert.Equal(t, 9.8, v.Motion.Z)
	assert.True(t, v.HasOrient)
	assert.Equal(t, int64(1), v.Frames)
	assert.Equal(t, 1, canvas.fades)
	assert.Equal(t, 10, canvas.polys)
}

func TestSession_RequestStartRejectedWhileBusy(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	require.True(t, f.s.RequestStart(context.Background()))
	assert.False(t, f.s.RequestStart(context.Background()), "request already in flight")
	assert.True(t, f.s.Snapshot().Requesting)

	require.NoError(t, f.s.Complete(<-f.s.Results()))
	assert.False(t, f.s.RequestStart(context.Background()), "already streaming")
}

func TestSession_PermissionDenied(t *testing.T) {
	f := newFixture(t, sensor.PermissionDenied, 0)
	require.True(t, f.s.RequestStart(context.Background()))

	err := f.s.Complete(<-f.s.Results())
	var denied *sensor.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, sensor.KindMotion, denied.Sensor)

	v := f.s.Snapshot()
	assert.Equal(t, sensor.StateIdle, v.State)
	assert.True(t, v.IsError)
	assert.Equal(t, err.Error(), v.Message)
	assert.False(t, v.Requesting)
	assert.Equal(t, 0, f.motion.Len())

	// Retry is allowed after a failure
	assert.True(t, f.s.RequestStart(context.Background()))
	<-f.s.Results()
}

func TestSession_LateResultDoesNotDuplicateListeners(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	f.start(t)
	require.NoError(t, f.s.Complete(nil))

	assert.Equal(t, 1, f.motion.Len())
	assert.Equal(t, 1, f.orientation.Len())
}

func TestSession_StopDiscardsQueued(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	f.start(t)

	f.motion.Publish(sensor.AccelerationReading{X: 7})
	f.s.Stop()

	assert.Equal(t, 0, f.s.Drain())
	assert.Equal(t, 0.0, f.s.Forcing().AccelX)
	assert.Equal(t, 0, f.motion.Len())

	f.motion.Publish(sensor.AccelerationReading{X: 8})
	assert.Equal(t, 0, f.s.Drain())

	v := f.s.Snapshot()
	assert.Equal(t, sensor.StateIdle, v.State)
	assert.Equal(t, MsgStopped, v.Message)

	// Stop while idle is harmless
	f.s.Stop()
	assert.Equal(t, sensor.StateIdle, f.s.Snapshot().State)
}

func TestSession_DropsWhenFull(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 2)
	f.start(t)

	for i := 1; i <= 5; i++ {
		f.motion.Publish(sensor.AccelerationReading{X: float64(i)})
	}
	assert.Equal(t, int64(3), f.reg.Value(status.DroppedReadings))
	assert.Equal(t, 2, f.s.Drain())
	assert.Equal(t, 2.0, f.s.Forcing().AccelX, "last queued reading wins")
	assert.Equal(t, int64(3), f.s.Snapshot().Dropped)
}

func TestSession_DrainPreservesOrder(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	f.start(t)

	f.motion.Publish(sensor.AccelerationReading{X: 1})
	f.orientation.Publish(sensor.OrientationReading{Alpha: 5})
	f.motion.Publish(sensor.AccelerationReading{X: 3})
	assert.Equal(t, 3, f.s.Drain())

	fs := f.s.Forcing()
	assert.Equal(t, 3.0, fs.AccelX)
	require.NotNil(t, fs.Orientation)
	assert.Equal(t, 5.0, fs.Orientation.Alpha)
}

func TestSession_FrameWithoutCanvas(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	before := f.s.Field().At(0)
	f.s.Frame(nil)
	assert.NotEqual(t, before, f.s.Field().At(0), "drift moves particles even while idle")
	assert.Equal(t, int64(1), f.reg.Value(status.Frames))
}

func TestSession_Run(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	canvas := &fadeCanvas{}

	require.NoError(t, f.s.Run(context.Background(), canvas, time.Millisecond, 5))
	assert.Equal(t, 5, canvas.fades)
	assert.Equal(t, int64(5), f.s.Snapshot().Frames)
	assert.Equal(t, sensor.StateIdle, f.s.Snapshot().State, "Run stops the stream on exit")
}

func TestSession_RunDenied(t *testing.T) {
	f := newFixture(t, sensor.PermissionDenied, 0)
	err := f.s.Run(context.Background(), nil, time.Hour, 5)
	var denied *sensor.PermissionDeniedError
	assert.True(t, errors.As(err, &denied))
}

func TestSession_RunCancelled(t *testing.T) {
	f := newFixture(t, sensor.PermissionGranted, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.s.Run(ctx, nil, time.Hour, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
