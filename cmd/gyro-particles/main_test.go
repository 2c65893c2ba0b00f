package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/gyro-particles/config"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/status"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("gyro-particles", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestFlags_OnlySetFlagsOverride(t *testing.T) {
	f, set, err := parseFlags(newFlagSet(), []string{"-particles", "40", "-no-audio"})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Canvas.Seed = 7
	f.apply(&cfg, set)

	assert.Equal(t, 40, cfg.Canvas.Particles)
	assert.False(t, cfg.Audio)
	assert.Equal(t, uint64(7), cfg.Canvas.Seed, "unset -seed keeps the config value")
	assert.Equal(t, config.SourceSim, cfg.Source)
	assert.Equal(t, "gyro-particles.yaml", f.configPath)
}

func TestFlags_SourceSelection(t *testing.T) {
	f, set, err := parseFlags(newFlagSet(), []string{"-source", "serial", "-port", "/dev/ttyUSB0", "-headless"})
	require.NoError(t, err)
	assert.True(t, f.headless)

	cfg := config.Default()
	f.apply(&cfg, set)
	assert.Equal(t, config.SourceSerial, cfg.Source)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.NoError(t, cfg.Validate())
}

func TestFlags_Unknown(t *testing.T) {
	_, _, err := parseFlags(newFlagSet(), []string{"-bogus"})
	assert.Error(t, err)
}

func TestSimConfigConsent(t *testing.T) {
	tests := []struct {
		consent string
		want    sensor.Permission
	}{
		{"none", sensor.PermissionPrompt},
		{"granted", sensor.PermissionGranted},
		{"denied", sensor.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.consent, func(t *testing.T) {
			got := simConfig(config.SimConfig{MotionHz: 10, OrientationHz: 5, Consent: tt.consent})
			assert.Equal(t, tt.want, got.Consent)
			assert.Equal(t, 10, got.MotionHz)
		})
	}
}

func TestOpenSources_Sim(t *testing.T) {
	cfg := config.Default()
	src, err := openSources(context.Background(), cfg, status.NewRegistry())
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "sim", src.label)
	_, ok := src.motion.(sensor.PermissionRequester)
	assert.True(t, ok, "granted consent gates the sim sources")
}

func TestOpenSources_SerialMissingPort(t *testing.T) {
	cfg := config.Default()
	cfg.Source = config.SourceSerial
	cfg.Serial.Port = "/nonexistent/gyro-tty"
	_, err := openSources(context.Background(), cfg, status.NewRegistry())
	assert.Error(t, err)
}

func TestRunHeadless_Sim(t *testing.T) {
	inTempDir(t)

	cfg := config.Default()
	cfg.Sim.ConsentDelay = 0
	cfg.Canvas.Particles = 10
	cfg.Canvas.Seed = 1
	cfg.Canvas.FrameRate = 240
	cfg.Frames = 5

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reg := status.NewRegistry()
	src, err := openSources(ctx, cfg, reg)
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, runHeadless(ctx, cfg, newSession(cfg, src, reg), reg, &out))
	assert.Contains(t, out.String(), "frames=5")
}

func TestRunHeadless_DeniedConsent(t *testing.T) {
	inTempDir(t)

	cfg := config.Default()
	cfg.Sim.Consent = "denied"
	cfg.Sim.ConsentDelay = 0
	cfg.Frames = 5

	reg := status.NewRegistry()
	src, err := openSources(context.Background(), cfg, reg)
	require.NoError(t, err)

	var out strings.Builder
	err = runHeadless(context.Background(), cfg, newSession(cfg, src, reg), reg, &out)
	var denied *sensor.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestStart_InvalidConfig(t *testing.T) {
	inTempDir(t)
	code := start(newFlagSet(), []string{"-config", "absent.yaml", "-source", "bogus"})
	assert.Equal(t, 1, code)
}

func TestStart_BadFlag(t *testing.T) {
	inTempDir(t)
	assert.Equal(t, 2, start(newFlagSet(), []string{"-bogus"}))
}

func TestStart_FailureClosesLog(t *testing.T) {
	inTempDir(t)
	code := start(newFlagSet(), []string{
		"-config", "absent.yaml",
		"-debug", "-headless",
		"-source", "serial", "-port", "/nonexistent/gyro-tty",
	})
	assert.Equal(t, 1, code)

	data, err := os.ReadFile(filepath.Join(logDir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "exiting: serial: open /nonexistent/gyro-tty")

	// The log file was closed on the way out
	f, ok := log.Writer().(*os.File)
	require.True(t, ok, "debug logging writes to a file")
	_, err = f.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
