package main

import (
	"context"
	"fmt"
	"log"

	"github.com/lixenwraith/gyro-particles/config"
	"github.com/lixenwraith/gyro-particles/core"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/source/remote"
	"github.com/lixenwraith/gyro-particles/source/serial"
	"github.com/lixenwraith/gyro-particles/source/sim"
	"github.com/lixenwraith/gyro-particles/status"
)

// sources is the opened motion and orientation pair plus whatever owns them
type sources struct {
	motion      sensor.Source[sensor.AccelerationReading]
	orientation sensor.Source[sensor.OrientationReading]
	label       string
	closer      func() error
}

func (s sources) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// openSources builds the configured backend; background readers live until ctx ends
func openSources(ctx context.Context, cfg config.Config, reg *status.Registry) (sources, error) {
	switch cfg.Source {
	case config.SourceSim:
		m, o := sim.New(simConfig(cfg.Sim), reg)
		return sources{motion: m, orientation: o, label: "sim"}, nil

	case config.SourceRemote:
		rc := remote.DefaultConfig()
		rc.Listen = cfg.Remote.Listen
		rc.Path = cfg.Remote.Path
		rc.RequireConsent = cfg.Remote.RequireConsent
		srv := remote.NewServer(rc, reg)
		core.Go(func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.Printf("remote: server stopped: %v", err)
			}
		})
		return sources{
			motion:      srv.Motion(),
			orientation: srv.Orientation(),
			label:       "remote " + rc.Listen + rc.Path,
		}, nil

	case config.SourceSerial:
		dev, err := serial.Open(serial.Config{Port: cfg.Serial.Port, BaudRate: cfg.Serial.BaudRate}, reg)
		if err != nil {
			return sources{}, err
		}
		core.Go(func() {
			if err := dev.Run(ctx); err != nil {
				log.Printf("serial: reader stopped: %v", err)
			}
		})
		return sources{
			motion:      dev.Motion(),
			orientation: dev.Orientation(),
			label:       "serial " + cfg.Serial.Port,
			closer:      dev.Close,
		}, nil
	}
	return sources{}, fmt.Errorf("unknown source %q", cfg.Source)
}

// simConfig maps the file settings onto the simulator; consent "none" means
// the sources never ask
func simConfig(c config.SimConfig) sim.Config {
	consent := sensor.PermissionPrompt
	if c.Consent != "none" {
		consent = sensor.ParsePermission(c.Consent)
	}
	return sim.Config{
		MotionHz:      c.MotionHz,
		OrientationHz: c.OrientationHz,
		Consent:       consent,
		ConsentDelay:  c.ConsentDelay,
	}
}
