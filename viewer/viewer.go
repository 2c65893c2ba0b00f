// Package viewer hosts a session in a tcell terminal: it owns the event
// loop, the frame ticker and the status bar.
package viewer

import (
	"context"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/gyro-particles/audio"
	"github.com/lixenwraith/gyro-particles/core"
	"github.com/lixenwraith/gyro-particles/render"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/session"
	"github.com/lixenwraith/gyro-particles/status"
)

// Options tunes the viewer
type Options struct {
	FrameInterval time.Duration
	// Source labels the status bar, e.g. "sim" or "remote :8080"
	Source string
}

// App is the interactive terminal front end
type App struct {
	screen  tcell.Screen
	session *session.Session
	sound   *audio.SoundManager
	reg     *status.Registry
	opts    Options

	canvas        *render.PixelCanvas
	width, height int

	// Permission requests are cancelled when the viewer exits
	ctx    context.Context
	cancel context.CancelFunc

	fps        *status.AtomicFloat
	fpsFrames  int
	fpsStarted time.Time
}

// New creates a viewer over an initialised screen; sound and reg may be nil
func New(screen tcell.Screen, s *session.Session, sound *audio.SoundManager, reg *status.Registry, opts Options) *App {
	if reg == nil {
		reg = status.NewRegistry()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 60
	}

	a := &App{
		screen:  screen,
		session: s,
		sound:   sound,
		reg:     reg,
		opts:    opts,
		fps:     reg.Gauge(status.FrameRate),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	w, h := screen.Size()
	a.canvas = render.NewPixelCanvas(w, max(h-statusRows, 0), s.Field().Bounds())
	a.width, a.height = w, h
	return a
}

// Run processes input and renders frames until the user quits or ctx ends
func (a *App) Run(ctx context.Context) error {
	defer a.cancel()
	defer a.session.Stop()

	ticker := time.NewTicker(a.opts.FrameInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	// Input polling stops when the screen is finalised
	core.Go(func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	})

	a.fpsStarted = time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-eventChan:
			if !a.handleEvent(ev) {
				return nil
			}

		case err := <-a.session.Results():
			a.completePermission(err)

		case <-ticker.C:
			a.drawFrame()
		}
	}
}

// handleEvent returns false when the viewer should exit
func (a *App) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return false
			case 's', 'S':
				a.start()
			case 'x', 'X':
				a.stop()
			case 'm', 'M':
				a.sound.SetMuted(!a.sound.Muted())
			}
		}

	case *tcell.EventResize:
		a.handleResize()
	}
	return true
}

func (a *App) start() {
	if a.session.RequestStart(a.ctx) {
		log.Printf("viewer: requesting sensor permission")
	}
}

func (a *App) stop() {
	if a.session.Snapshot().State != sensor.StateStreaming {
		return
	}
	a.session.Stop()
	a.sound.PlayStop()
	log.Printf("viewer: stopped streaming")
}

func (a *App) completePermission(err error) {
	if err := a.session.Complete(err); err != nil {
		log.Printf("viewer: permission failed: %v", err)
		a.sound.PlayError()
		return
	}
	log.Printf("viewer: streaming started")
	a.sound.PlayStart()
}

func (a *App) handleResize() {
	w, h := a.screen.Size()
	if w == a.width && h == a.height {
		return
	}
	a.width, a.height = w, h
	a.canvas.Resize(w, max(h-statusRows, 0))
	a.screen.Clear()
}

// drawFrame advances the session one frame and presents it
func (a *App) drawFrame() {
	a.session.Frame(a.canvas)
	a.canvas.Flush(a.screen, 0, statusRows)
	a.drawStatus(a.session.Snapshot())
	a.screen.Show()
	a.tickFPS()
}

func (a *App) tickFPS() {
	a.fpsFrames++
	if elapsed := time.Since(a.fpsStarted); elapsed >= time.Second {
		a.fps.Set(float64(a.fpsFrames) / elapsed.Seconds())
		a.fpsFrames = 0
		a.fpsStarted = time.Now()
	}
}
