// Package mono provides the wrapping millisecond/microsecond counters
// the node schedules against.
package mono

import (
	"sync"
	"time"
)

// Clock is the time source for the node runtime. Both counters wrap
// when their range is exhausted; interval checks must go through Since
// rather than comparing against a computed deadline.
type Clock interface {
	Millis() uint32
	Micros() uint32
	Sleep(d time.Duration)
}

var _ Clock = (*Wall)(nil)
var _ Clock = (*Sim)(nil)

// Since returns now-then on a wrapping counter.
func Since(now, then uint32) uint32 {
	return now - then
}

// Wall is the real clock, anchored at process start.
type Wall struct {
	start time.Time
}

func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

func (w *Wall) Millis() uint32 {
	return uint32(time.Since(w.start).Milliseconds())
}

func (w *Wall) Micros() uint32 {
	return uint32(time.Since(w.start).Microseconds())
}

func (w *Wall) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Sim is a deterministic clock for tests. Time moves only through
// Advance and Sleep, plus step microseconds on every Micros read so
// pin polling loops always make progress toward their deadline.
type Sim struct {
	mu    sync.Mutex
	nowUs uint64
	step  uint64
}

func NewSim(stepUs uint64) *Sim {
	return &Sim{step: stepUs}
}

func (s *Sim) Millis() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(s.nowUs / 1000)
}

func (s *Sim) Micros() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowUs += s.step
	return uint32(s.nowUs)
}

func (s *Sim) Sleep(d time.Duration) {
	s.Advance(d)
}

// Advance moves simulated time forward.
func (s *Sim) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowUs += uint64(d.Microseconds())
}

// NowUs reads the counter without the Micros read step.
func (s *Sim) NowUs() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowUs
}
