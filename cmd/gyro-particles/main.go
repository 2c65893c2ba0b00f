package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/lixenwraith/gyro-particles/audio"
	"github.com/lixenwraith/gyro-particles/config"
	"github.com/lixenwraith/gyro-particles/core"
	"github.com/lixenwraith/gyro-particles/particle"
	"github.com/lixenwraith/gyro-particles/render"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/session"
	"github.com/lixenwraith/gyro-particles/status"
	"github.com/lixenwraith/gyro-particles/viewer"
)

// Off-screen canvas used without a terminal
const (
	headlessCols = 80
	headlessRows = 40
)

type flags struct {
	configPath string
	source     string
	listen     string
	serialPort string
	particles  int
	seed       uint64
	frames     int
	debug      bool
	noAudio    bool
	headless   bool
}

func parseFlags(fs *flag.FlagSet, args []string) (flags, map[string]bool, error) {
	var f flags
	fs.StringVar(&f.configPath, "config", "gyro-particles.yaml", "YAML config file (optional)")
	fs.StringVar(&f.source, "source", "", "sensor source: sim, remote, serial")
	fs.StringVar(&f.listen, "listen", "", "remote source listen address")
	fs.StringVar(&f.serialPort, "port", "", "serial source device")
	fs.IntVar(&f.particles, "particles", 0, "particle count")
	fs.Uint64Var(&f.seed, "seed", 0, "particle seed, 0 for time based")
	fs.IntVar(&f.frames, "frames", 0, "frames to render in headless mode")
	fs.BoolVar(&f.debug, "debug", false, "write logs to "+logDir+"/"+logFileName)
	fs.BoolVar(&f.noAudio, "no-audio", false, "disable audio cues")
	fs.BoolVar(&f.headless, "headless", false, "render off-screen even on a terminal")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// apply overlays explicitly set flags on cfg
func (f flags) apply(cfg *config.Config, set map[string]bool) {
	if set["source"] {
		cfg.Source = f.source
	}
	if set["listen"] {
		cfg.Remote.Listen = f.listen
	}
	if set["port"] {
		cfg.Serial.Port = f.serialPort
	}
	if set["particles"] {
		cfg.Canvas.Particles = f.particles
	}
	if set["seed"] {
		cfg.Canvas.Seed = f.seed
	}
	if set["frames"] {
		cfg.Frames = f.frames
	}
	if set["debug"] {
		cfg.Debug = f.debug
	}
	if set["no-audio"] {
		cfg.Audio = !f.noAudio
	}
}

func main() {
	os.Exit(start(flag.CommandLine, os.Args[1:]))
}

// start runs the program and returns the exit code, so deferred cleanup
// (log file, terminal) completes before the process exits
func start(fs *flag.FlagSet, args []string) int {
	// Panic recovery: restore the terminal before printing the trace
	defer func() {
		if r := recover(); r != nil {
			core.HandleCrash(r)
		}
	}()

	f, set, err := parseFlags(fs, args)
	if err != nil {
		return 2
	}

	cfg, err := config.Load(f.configPath, func(c *config.Config) { f.apply(c, set) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	if logFile := setupLogging(cfg.Debug); logFile != nil {
		defer logFile.Close()
	}

	if err := run(cfg, f.headless || !term.IsTerminal(int(os.Stdout.Fd()))); err != nil {
		log.Printf("exiting: %v", err)
		fmt.Fprintf(os.Stderr, "gyro-particles: %v\n", err)
		return 1
	}
	return 0
}

func run(cfg config.Config, headless bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := status.NewRegistry()
	src, err := openSources(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer src.Close()

	sess := newSession(cfg, src, reg)
	if headless {
		return runHeadless(ctx, cfg, sess, reg, os.Stdout)
	}
	return runViewer(ctx, cfg, sess, reg, src.label)
}

func newSession(cfg config.Config, src sources, reg *status.Registry) *session.Session {
	return session.New(session.Config{
		Bounds:    particle.Bounds{W: cfg.Canvas.Width, H: cfg.Canvas.Height},
		Particles: cfg.Canvas.Particles,
		Seed:      cfg.Canvas.Seed,
	}, sensor.NewStream(src.motion, src.orientation), reg)
}

// runHeadless renders cfg.Frames frames off-screen and writes the metric summary to out
func runHeadless(ctx context.Context, cfg config.Config, sess *session.Session, reg *status.Registry, out io.Writer) error {
	canvas := render.NewPixelCanvas(headlessCols, headlessRows, sess.Field().Bounds())
	log.Printf("headless: rendering %d frames", cfg.Frames)

	err := sess.Run(ctx, canvas, cfg.FrameInterval(), cfg.Frames)
	summary := reg.Summary()
	log.Printf("headless: done: %s", summary)
	fmt.Fprintln(out, summary)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runViewer(ctx context.Context, cfg config.Config, sess *session.Session, reg *status.Registry, label string) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	core.SetCrashScreen(screen)
	defer func() {
		core.SetCrashScreen(nil)
		screen.Fini()
	}()

	var sound *audio.SoundManager
	if cfg.Audio {
		sound = audio.NewSoundManager(audio.DefaultConfig())
		if err := sound.Initialize(); err != nil {
			// Non-fatal, the viewer runs without sound
			log.Printf("audio initialization failed: %v", err)
		}
		defer sound.Cleanup()
	}

	app := viewer.New(screen, sess, sound, reg, viewer.Options{
		FrameInterval: cfg.FrameInterval(),
		Source:        label,
	})
	return app.Run(ctx)
}
