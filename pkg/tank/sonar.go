package tank

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/mono"
)

// OutPin is a digital output line.
type OutPin interface {
	Set(high bool)
}

// InPin is a digital input line.
type InPin interface {
	Read() bool
}

// HC-SR04 style pulse-echo timing.
const (
	settleUs       = 2
	triggerPulseUs = 10
	echoTimeoutUs  = 30000

	// Speed of sound in cm per microsecond, halved below for the
	// round trip.
	cmPerUs = 0.034
)

// Sonar ranges the liquid surface over a trigger and an echo line.
type Sonar struct {
	trig OutPin
	echo InPin
	clk  mono.Clock
}

func NewSonar(trig OutPin, echo InPin, clk mono.Clock) *Sonar {
	return &Sonar{trig: trig, echo: echo, clk: clk}
}

// PulseCm converts an echo pulse width to centimeters.
func PulseCm(durationUs uint32) float32 {
	return float32(durationUs) * cmPerUs / 2
}

// Measure fires one trigger pulse and times the echo. It returns
// ok=false when no echo completes inside the timeout, and it returns
// within the timeout bound even with the echo line stuck high or low.
func (s *Sonar) Measure() (float32, bool) {
	s.trig.Set(false)
	s.clk.Sleep(settleUs * time.Microsecond)
	s.trig.Set(true)
	s.clk.Sleep(triggerPulseUs * time.Microsecond)
	s.trig.Set(false)

	// One shared deadline covers both edges.
	start := s.clk.Micros()
	for !s.echo.Read() {
		if mono.Since(s.clk.Micros(), start) > echoTimeoutUs {
			log.Trace("Echo never rose")
			return 0, false
		}
	}
	riseAt := s.clk.Micros()
	for s.echo.Read() {
		if mono.Since(s.clk.Micros(), start) > echoTimeoutUs {
			log.Trace("Echo stuck high")
			return 0, false
		}
	}
	d := PulseCm(mono.Since(s.clk.Micros(), riseAt))
	log.Tracef("Echo %.1fcm", d)
	return d, true
}
