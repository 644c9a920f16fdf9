package mono

import (
	"testing"
	"time"
)

func TestSince(t *testing.T) {
	t.Run("Plain", func(t *testing.T) {
		if d := Since(5000, 2000); d != 3000 {
			t.Fatalf("Bad interval %v", d)
		}
	})
	t.Run("Wraparound", func(t *testing.T) {
		// last sampled just before the counter wrapped
		if d := Since(5, 0xfffffffb); d != 10 {
			t.Fatalf("Bad interval %v", d)
		}
	})
	t.Run("Zero", func(t *testing.T) {
		if d := Since(1234, 1234); d != 0 {
			t.Fatalf("Bad interval %v", d)
		}
	})
}

func TestSim(t *testing.T) {
	t.Run("Advance", func(t *testing.T) {
		clk := NewSim(0)
		if ms := clk.Millis(); ms != 0 {
			t.Fatalf("Bad start time %v", ms)
		}
		clk.Advance(2500 * time.Millisecond)
		if ms := clk.Millis(); ms != 2500 {
			t.Fatalf("Bad time after advance %v", ms)
		}
	})
	t.Run("Sleep", func(t *testing.T) {
		clk := NewSim(0)
		clk.Sleep(10 * time.Microsecond)
		if us := clk.NowUs(); us != 10 {
			t.Fatalf("Bad time after sleep %v", us)
		}
	})
	t.Run("MicrosStep", func(t *testing.T) {
		clk := NewSim(7)
		if us := clk.Micros(); us != 7 {
			t.Fatalf("Bad first read %v", us)
		}
		if us := clk.Micros(); us != 14 {
			t.Fatalf("Bad second read %v", us)
		}
		// Millis does not step
		if ms := clk.Millis(); ms != 0 {
			t.Fatalf("Millis stepped the clock %v", ms)
		}
	})
}
