package main

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/johnelliott/watersensord/pkg/config"
	"github.com/johnelliott/watersensord/pkg/mono"
	"github.com/johnelliott/watersensord/pkg/nowlink"
	"github.com/johnelliott/watersensord/pkg/tank"
)

// outPin adapts a periph output pin, honoring invert for active-low
// wiring.
type outPin struct {
	pin    gpio.PinIO
	invert bool
}

func (p outPin) Set(high bool) {
	if err := p.pin.Out(gpio.Level(high != p.invert)); err != nil {
		log.Errorf("Failed to drive %s: %s", p.pin, err)
	}
}

// inPin adapts a periph input pin, honoring invert.
type inPin struct {
	pin    gpio.PinIO
	invert bool
}

func (p inPin) Read() bool {
	return bool(p.pin.Read()) != p.invert
}

// driftSampler fakes a slowly sloshing tank for running without
// hardware attached.
type driftSampler struct {
	d    float32
	step float32
}

func newDriftSampler() *driftSampler {
	return &driftSampler{d: 45, step: 0.5}
}

func (s *driftSampler) Measure() (float32, bool) {
	s.d += s.step
	if s.d > 60 || s.d < 30 {
		s.step = -s.step
	}
	return s.d, true
}

// hostHardware owns the process-lifetime hardware handles. They
// survive node restarts; only node state is rebuilt per boot.
type hostHardware struct {
	sampler tank.Sampler
	button  tank.InPin
	led     tank.OutPin
	medium  *tank.FileMedium
	carrier tank.Carrier
	clock   mono.Clock
}

func openHardware(ctx context.Context, cfg *config.Config) (*hostHardware, error) {
	if cfg.Radio.Backend == "mock" {
		return mockHardware(cfg)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("Failed to init gpio host: %s", err)
	}

	clock := mono.NewWall()

	trig, err := outputPin(cfg.Pins.Trigger, false)
	if err != nil {
		return nil, err
	}
	echo, err := inputPin(cfg.Pins.Echo, false, gpio.PullDown)
	if err != nil {
		return nil, err
	}

	h := &hostHardware{
		sampler: tank.NewSonar(trig, echo, clock),
		clock:   clock,
	}

	if cfg.Pins.Button != "" {
		h.button, err = inputPin(cfg.Pins.Button, cfg.Pins.ButtonInvert, gpio.PullUp)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Pins.LED != "" {
		h.led, err = outputPin(cfg.Pins.LED, cfg.Pins.LEDInvert)
		if err != nil {
			return nil, err
		}
	}

	h.medium, err = tank.OpenFileMedium(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	h.carrier, err = openCarrier(ctx, cfg)
	if err != nil {
		h.medium.Close()
		return nil, err
	}
	return h, nil
}

// mockHardware runs the daemon with no radio, GPIO or sensor, for
// development off the board. Settings still persist to the store
// file.
func mockHardware(cfg *config.Config) (*hostHardware, error) {
	log.Warn("Mock backend, running without hardware")
	medium, err := tank.OpenFileMedium(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	carrier := tank.NewFakeCarrier()
	carrier.AutoConfirm = true
	return &hostHardware{
		sampler: newDriftSampler(),
		medium:  medium,
		carrier: carrier,
		clock:   mono.NewWall(),
	}, nil
}

func openCarrier(ctx context.Context, cfg *config.Config) (tank.Carrier, error) {
	switch cfg.Radio.Backend {
	case "serial":
		return nowlink.OpenSerial(cfg.Radio.Serial.Port, cfg.Radio.Serial.Baud)
	case "ble":
		return nowlink.OpenBLE(ctx, cfg.Radio.BLE.Adapter, cfg.Radio.BLE.Addr)
	}
	return nil, fmt.Errorf("Unknown radio backend %q", cfg.Radio.Backend)
}

func outputPin(name string, invert bool) (tank.OutPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("No gpio pin named %s", name)
	}
	p := outPin{pin: pin, invert: invert}
	p.Set(false)
	return p, nil
}

func inputPin(name string, invert bool, pull gpio.Pull) (tank.InPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("No gpio pin named %s", name)
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("Failed to watch %s: %s", name, err)
	}
	return inPin{pin: pin, invert: invert}, nil
}

func (h *hostHardware) Close() {
	if c, ok := h.carrier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Errorf("Failed to close carrier: %s", err)
		}
	}
	if err := h.medium.Close(); err != nil {
		log.Errorf("Failed to close settings store: %s", err)
	}
}
