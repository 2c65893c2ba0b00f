package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
)

// Cue durations
const (
	chirpNote    = 70 * time.Millisecond
	chirpGap     = 25 * time.Millisecond
	buzzDuration = 180 * time.Millisecond
	buzzAttack   = 5 * time.Millisecond
	buzzRelease  = 60 * time.Millisecond
)

// Waveform maps a phase in [0,1) to an amplitude in [-1,1]
type Waveform func(phase float64) float64

// Sine and Saw are the waveforms the cues use
var (
	Sine Waveform = func(p float64) float64 { return math.Sin(2 * math.Pi * p) }
	Saw  Waveform = func(p float64) float64 { return 2*p - 1 }
)

// tone is a mono streamer that ends after n samples
type tone struct {
	wave  Waveform
	step  float64
	phase float64
	left  int
}

// NewTone plays wave at freq for duration
func NewTone(wave Waveform, freq float64, duration time.Duration, rate beep.SampleRate) beep.Streamer {
	return &tone{wave: wave, step: freq / float64(rate), left: rate.N(duration)}
}

func (t *tone) Stream(samples [][2]float64) (int, bool) {
	if t.left <= 0 {
		return 0, false
	}
	n := min(len(samples), t.left)
	for i := range samples[:n] {
		v := t.wave(t.phase)
		samples[i] = [2]float64{v, v}
		_, t.phase = math.Modf(t.phase + t.step)
	}
	t.left -= n
	return n, true
}

func (t *tone) Err() error { return nil }

// ramp fades s in over attack samples and out over the last release samples of total
type ramp struct {
	beep.Streamer
	pos, attack, release, total int
}

// NewRamp applies a linear fade in and fade out to s, cutting it at duration
func NewRamp(s beep.Streamer, duration, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	return &ramp{
		Streamer: beep.Take(rate.N(duration), s),
		attack:   rate.N(attack),
		release:  rate.N(release),
		total:    rate.N(duration),
	}
}

func (r *ramp) Stream(samples [][2]float64) (int, bool) {
	n, ok := r.Streamer.Stream(samples)
	for i := range samples[:n] {
		g := r.gain()
		samples[i][0] *= g
		samples[i][1] *= g
		r.pos++
	}
	return n, ok
}

func (r *ramp) gain() float64 {
	g := 1.0
	if r.pos < r.attack {
		g = float64(r.pos) / float64(r.attack)
	}
	if tail := r.total - r.pos; r.release > 0 && tail <= r.release {
		g = min(g, float64(tail)/float64(r.release))
	}
	return g
}

// newVolume scales linearly; zero or less is silent
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// chirp plays freqs as short sine notes separated by silence
func chirp(rate beep.SampleRate, vol float64, freqs ...float64) beep.Streamer {
	var parts []beep.Streamer
	for i, f := range freqs {
		if i > 0 {
			parts = append(parts, beep.Silence(rate.N(chirpGap)))
		}
		sine, err := generators.SineTone(rate, f)
		if err != nil {
			// Above Nyquist for beep's generator; ours aliases but still plays
			sine = NewTone(Sine, f, chirpNote, rate)
		}
		parts = append(parts, beep.Take(rate.N(chirpNote), sine))
	}
	return newVolume(beep.Seq(parts...), vol)
}

// CreateStartSound is a rising two-note chirp for streaming started
func CreateStartSound(cfg Config) beep.Streamer {
	return chirp(cfg.SampleRate, cfg.Volume*0.5, 660, 990)
}

// CreateStopSound is a falling two-note chirp for streaming stopped
func CreateStopSound(cfg Config) beep.Streamer {
	return chirp(cfg.SampleRate, cfg.Volume*0.5, 990, 660)
}

// CreateErrorSound is a short saw buzz for denied or failed permission
func CreateErrorSound(cfg Config) beep.Streamer {
	saw := NewTone(Saw, 110, buzzDuration, cfg.SampleRate)
	shaped := NewRamp(saw, buzzDuration, buzzAttack, buzzRelease, cfg.SampleRate)
	return newVolume(shaped, cfg.Volume*0.4)
}
