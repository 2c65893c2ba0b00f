// Package audio plays short feedback cues for stream lifecycle events.
// Every method is safe on a nil or uninitialised manager so the viewer runs
// unchanged on hosts without an audio device.
package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Config holds output settings
type Config struct {
	SampleRate beep.SampleRate
	Volume     float64 // linear, 0..1
}

// DefaultConfig returns the standard output settings
func DefaultConfig() Config {
	return Config{
		SampleRate: beep.SampleRate(44100),
		Volume:     0.8,
	}
}

// Cue names a feedback sound
type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueError
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueStop:
		return "stop"
	case CueError:
		return "error"
	default:
		return "unknown"
	}
}

// SoundManager owns the speaker and a mixer that cues are added to
type SoundManager struct {
	mu          sync.Mutex
	cfg         Config
	mixer       *beep.Mixer
	master      *beep.Ctrl
	initialized bool
	played      map[Cue]int
}

// NewSoundManager creates an uninitialised manager
func NewSoundManager(cfg Config) *SoundManager {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	mixer := &beep.Mixer{}
	return &SoundManager{
		cfg:    cfg,
		mixer:  mixer,
		master: &beep.Ctrl{Streamer: mixer},
		played: make(map[Cue]int),
	}
}

// Initialize opens the speaker; failure leaves the manager silent
func (sm *SoundManager) Initialize() error {
	if sm == nil {
		return nil
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if err := speaker.Init(sm.cfg.SampleRate, sm.cfg.SampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(sm.master)
	sm.initialized = true
	return nil
}

// Enabled reports whether cues reach the speaker
func (sm *SoundManager) Enabled() bool {
	if sm == nil {
		return false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.initialized
}

// SetMuted pauses or resumes all output
func (sm *SoundManager) SetMuted(muted bool) {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.initialized {
		sm.master.Paused = muted
		return
	}
	speaker.Lock()
	sm.master.Paused = muted
	speaker.Unlock()
}

// Muted reports the mute state
func (sm *SoundManager) Muted() bool {
	if sm == nil {
		return true
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.master.Paused
}

// Play queues cue on the mixer
func (sm *SoundManager) Play(cue Cue) {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return
	}

	var s beep.Streamer
	switch cue {
	case CueStart:
		s = CreateStartSound(sm.cfg)
	case CueStop:
		s = CreateStopSound(sm.cfg)
	case CueError:
		s = CreateErrorSound(sm.cfg)
	default:
		return
	}

	speaker.Lock()
	sm.mixer.Add(s)
	speaker.Unlock()
	sm.played[cue]++
}

// PlayStart signals that streaming began
func (sm *SoundManager) PlayStart() { sm.Play(CueStart) }

// PlayStop signals that streaming ended
func (sm *SoundManager) PlayStop() { sm.Play(CueStop) }

// PlayError signals a permission failure
func (sm *SoundManager) PlayError() { sm.Play(CueError) }

// Played returns how many times cue reached the mixer
func (sm *SoundManager) Played(cue Cue) int {
	if sm == nil {
		return 0
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.played[cue]
}

// Cleanup drops queued cues and releases the speaker
func (sm *SoundManager) Cleanup() {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return
	}

	speaker.Lock()
	sm.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	sm.initialized = false
}
