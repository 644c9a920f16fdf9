// Package tank implements the water level sensor node runtime.
package tank

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/mono"
)

// ErrRestart is returned by Run when the node must be rebuilt from
// persistent settings, after a save or a factory reset.
var ErrRestart = errors.New("node restart requested")

// ErrNotRunning is returned by collaborator requests once the run
// loop has exited.
var ErrNotRunning = errors.New("node not running")

const (
	tickInterval    = 10 * time.Millisecond
	ledPeriodMs     = 3000
	resetBlinkMs    = 100
	resetBlinkCount = 3
)

// Reading is one measurement cycle result.
type Reading struct {
	DistanceCm  float32
	Valid       bool
	FillPercent float32
	SampledAt   uint32
}

// Sampler measures distance to the liquid surface. A false return
// marks the reading invalid, distance is meaningless then.
type Sampler interface {
	Measure() (float32, bool)
}

// Hardware collects everything the node drives. Button and LED may be
// nil on boards without them.
type Hardware struct {
	Sampler Sampler
	Carrier Carrier
	Clock   mono.Clock
	Store   *Store
	Button  InPin
	LED     OutPin
}

type saveReq struct {
	cfg  Settings
	errC chan error
}

type sampleReq struct {
	readingC chan Reading
}

// Node is one boot of the sensor runtime. It samples on a cadence,
// forwards readings over the peer link, and serves collaborator
// requests. A Node runs once; after Run returns the supervisor builds
// a fresh one.
type Node struct {
	mu      sync.RWMutex
	cfg     Settings
	reading Reading
	status  LinkStatus

	hw   Hardware
	link *PeerLink
	hold *HoldButton

	saveC   chan saveReq
	resetC  chan chan error
	sampleC chan sampleReq
	quitC   chan struct{}

	lastSampleAt uint32
	lastBlinkAt  uint32
	ledOn        bool
}

func NewNode(cfg Settings, hw Hardware) *Node {
	return &Node{
		cfg:     cfg,
		hw:      hw,
		link:    NewPeerLink(hw.Carrier),
		hold:    NewHoldButton(hw.Button),
		saveC:   make(chan saveReq),
		resetC:  make(chan chan error),
		sampleC: make(chan sampleReq),
		quitC:   make(chan struct{}),
	}
}

// Run drives the node until the context is cancelled or a restart is
// requested. It samples immediately on boot, then on the configured
// cadence.
func (n *Node) Run(ctx context.Context) error {
	defer close(n.quitC)

	n.link.Init(n.cfg.PeerAddr)
	n.setStatus(n.link.Status())

	n.setLED(n.cfg.LEDEnabled)
	n.ledOn = n.cfg.LEDEnabled
	n.lastBlinkAt = n.hw.Clock.Millis()

	n.sample(n.hw.Clock.Millis())

	tic := time.NewTicker(tickInterval)
	defer tic.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-n.saveC:
			if err := req.cfg.Validate(); err != nil {
				req.errC <- err
				continue
			}
			if err := n.hw.Store.Save(req.cfg); err != nil {
				req.errC <- fmt.Errorf("Failed to save settings: %s", err)
				continue
			}
			req.errC <- nil
			log.Info("Settings saved, restarting")
			return ErrRestart

		case errC := <-n.resetC:
			err := n.factoryReset()
			errC <- err
			if err != nil {
				continue
			}
			return ErrRestart

		case req := <-n.sampleC:
			n.sample(n.hw.Clock.Millis())
			req.readingC <- n.GetLastReading()

		case <-tic.C:
			now := n.hw.Clock.Millis()
			if mono.Since(now, n.lastSampleAt) >= n.cfg.SampleIntervalMs {
				n.sample(now)
			}
			n.link.Tick(now)
			n.setStatus(n.link.Status())
			n.blinkTick(now)
			if n.hold.Tick(now) {
				if err := n.factoryReset(); err != nil {
					log.Errorf("Failed to factory reset: %s", err)
					continue
				}
				return ErrRestart
			}
		}
	}
}

// sample runs one measurement cycle: measure, derive fill, publish
// the reading, forward it to the peer. Forced and scheduled samples
// both land here, so both reset the cadence timer.
func (n *Node) sample(now uint32) {
	d, ok := n.hw.Sampler.Measure()
	r := Reading{
		DistanceCm:  d,
		Valid:       ok,
		FillPercent: FillPercent(d, ok, n.cfg.TankHeightCm),
		SampledAt:   now,
	}
	n.mu.Lock()
	n.reading = r
	n.mu.Unlock()
	n.lastSampleAt = now
	n.Log().Debug("Sampled")

	n.link.Send(Payload{
		DistanceCm:   r.DistanceCm,
		FillPercent:  r.FillPercent,
		TankHeightCm: n.cfg.TankHeightCm,
	}, now)
	n.setStatus(n.link.Status())
}

func (n *Node) factoryReset() error {
	log.Warn("Factory reset")
	if err := n.hw.Store.Clear(); err != nil {
		return fmt.Errorf("Failed to clear settings store: %s", err)
	}
	n.blink(resetBlinkCount, resetBlinkMs)
	return nil
}

// blink signals the reset visually before the restart.
func (n *Node) blink(count int, periodMs uint32) {
	if n.hw.LED == nil {
		return
	}
	d := time.Duration(periodMs) * time.Millisecond
	for i := 0; i < count; i++ {
		n.hw.LED.Set(true)
		n.hw.Clock.Sleep(d)
		n.hw.LED.Set(false)
		n.hw.Clock.Sleep(d)
	}
	n.ledOn = false
}

// blinkTick toggles the heartbeat LED.
func (n *Node) blinkTick(now uint32) {
	if !n.cfg.LEDEnabled {
		return
	}
	if mono.Since(now, n.lastBlinkAt) < ledPeriodMs {
		return
	}
	n.lastBlinkAt = now
	n.ledOn = !n.ledOn
	n.setLED(n.ledOn)
}

func (n *Node) setLED(on bool) {
	if n.hw.LED == nil {
		return
	}
	n.hw.LED.Set(on)
}

// Log returns a logger annotated with the node's current state.
func (n *Node) Log() *log.Entry {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return log.WithFields(log.Fields{
		"distanceCm": n.reading.DistanceCm,
		"fill":       n.reading.FillPercent,
		"valid":      n.reading.Valid,
		"link":       n.status,
	})
}

// GetSettings returns the settings this boot is running on.
func (n *Node) GetSettings() Settings {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg
}

// GetLastReading returns the most recent measurement.
func (n *Node) GetLastReading() Reading {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.reading
}

// GetLinkStatus returns the peer link state as of the last tick.
func (n *Node) GetLinkStatus() LinkStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Node) setStatus(s LinkStatus) {
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

// RequestSave validates and persists cfg, then stops the run loop
// with ErrRestart so the supervisor reboots onto the new settings. On
// a validation or write failure nothing changes and the loop keeps
// running.
func (n *Node) RequestSave(cfg Settings) error {
	req := saveReq{cfg: cfg, errC: make(chan error, 1)}
	select {
	case n.saveC <- req:
		return <-req.errC
	case <-n.quitC:
		return ErrNotRunning
	}
}

// RequestReset clears the settings store and stops the run loop with
// ErrRestart, so the node comes back on defaults.
func (n *Node) RequestReset() error {
	errC := make(chan error, 1)
	select {
	case n.resetC <- errC:
		return <-errC
	case <-n.quitC:
		return ErrNotRunning
	}
}

// ForceSample runs a measurement cycle now, with the same side
// effects as a scheduled one, and returns the fresh reading.
func (n *Node) ForceSample() (Reading, error) {
	req := sampleReq{readingC: make(chan Reading, 1)}
	select {
	case n.sampleC <- req:
		return <-req.readingC, nil
	case <-n.quitC:
		return Reading{}, ErrNotRunning
	}
}
