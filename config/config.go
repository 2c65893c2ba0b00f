// Package config loads runtime settings from an optional YAML file and the
// environment. Command-line flags are applied on top by the binary.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source kinds
const (
	SourceSim    = "sim"
	SourceRemote = "remote"
	SourceSerial = "serial"
)

// MaxSimHz bounds the simulated sensor rates
const MaxSimHz = 1000

// Environment overrides
const (
	EnvSource     = "GYRO_SOURCE"
	EnvListen     = "GYRO_LISTEN"
	EnvSerialPort = "GYRO_SERIAL_PORT"
	EnvSerialBaud = "GYRO_SERIAL_BAUD"
	EnvParticles  = "GYRO_PARTICLES"
	EnvSeed       = "GYRO_SEED"
	EnvAudio      = "GYRO_AUDIO"
	EnvDebug      = "GYRO_DEBUG"
)

type CanvasConfig struct {
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	Particles int     `yaml:"particles"`
	// Seed 0 picks a time based seed
	Seed      uint64 `yaml:"seed"`
	FrameRate int    `yaml:"frame_rate"`
}

type SimConfig struct {
	MotionHz      int `yaml:"motion_hz"`
	OrientationHz int `yaml:"orientation_hz"`
	// Consent is the simulated answer: none skips the consent step
	Consent      string        `yaml:"consent"` // none, granted, denied
	ConsentDelay time.Duration `yaml:"consent_delay"`
}

type RemoteConfig struct {
	Listen         string `yaml:"listen"`
	Path           string `yaml:"path"`
	RequireConsent bool   `yaml:"require_consent"`
}

type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// Config is the top-level structure of gyro-particles.yaml
type Config struct {
	Canvas CanvasConfig `yaml:"canvas"`
	Source string       `yaml:"source"`
	Sim    SimConfig    `yaml:"sim"`
	Remote RemoteConfig `yaml:"remote"`
	Serial SerialConfig `yaml:"serial"`
	Audio  bool         `yaml:"audio"`
	Debug  bool         `yaml:"debug"`

	// Frames bounds a headless run
	Frames int `yaml:"frames"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Canvas: CanvasConfig{
			Width:     340,
			Height:    340,
			Particles: 100,
			FrameRate: 60,
		},
		Source: SourceSim,
		Sim: SimConfig{
			MotionHz:      60,
			OrientationHz: 20,
			Consent:       "granted",
			ConsentDelay:  300 * time.Millisecond,
		},
		Remote: RemoteConfig{
			Listen:         ":8080",
			Path:           "/ws",
			RequireConsent: true,
		},
		Serial: SerialConfig{
			BaudRate: 115200,
		},
		Audio:  true,
		Frames: 600,
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides, then each override in order. A missing file at either location
// is not an error.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	for _, fn := range overrides {
		fn(&cfg)
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvSource, &c.Source)
	str(EnvListen, &c.Remote.Listen)
	str(EnvSerialPort, &c.Serial.Port)

	if v, ok := lookup(EnvSerialBaud); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSerialBaud, err)
		}
		c.Serial.BaudRate = n
	}
	if v, ok := lookup(EnvParticles); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParticles, err)
		}
		c.Canvas.Particles = n
	}
	if v, ok := lookup(EnvSeed); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		c.Canvas.Seed = n
	}
	if v, ok := lookup(EnvAudio); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAudio, err)
		}
		c.Audio = b
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate rejects settings the session cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas size %vx%v must be positive", c.Canvas.Width, c.Canvas.Height))
	}
	if c.Canvas.Particles < 0 {
		errs = append(errs, fmt.Errorf("particle count %d is negative", c.Canvas.Particles))
	}
	if c.Canvas.FrameRate <= 0 || c.Canvas.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("frame rate %d outside 1..240", c.Canvas.FrameRate))
	}
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("frame count %d is negative", c.Frames))
	}

	switch c.Source {
	case SourceSim:
		for _, hz := range []int{c.Sim.MotionHz, c.Sim.OrientationHz} {
			if hz <= 0 || hz > MaxSimHz {
				errs = append(errs, fmt.Errorf("sim rate %d outside 1..%d", hz, MaxSimHz))
			}
		}
		switch c.Sim.Consent {
		case "none", "granted", "denied":
		default:
			errs = append(errs, fmt.Errorf("sim consent %q: want none, granted or denied", c.Sim.Consent))
		}
	case SourceRemote:
		if c.Remote.Listen == "" {
			errs = append(errs, fmt.Errorf("remote source needs a listen address"))
		}
		if !strings.HasPrefix(c.Remote.Path, "/") {
			errs = append(errs, fmt.Errorf("remote path %q must start with /", c.Remote.Path))
		}
	case SourceSerial:
		if c.Serial.Port == "" {
			errs = append(errs, fmt.Errorf("serial source needs a port"))
		}
		if c.Serial.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("serial baud rate %d must be positive", c.Serial.BaudRate))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}

	return errors.Join(errs...)
}

// FrameInterval returns the frame period for the configured rate
func (c Config) FrameInterval() time.Duration {
	if c.Canvas.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Canvas.FrameRate)
}
