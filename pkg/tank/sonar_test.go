package tank

import (
	"testing"

	"github.com/johnelliott/watersensord/pkg/mono"
)

type pinFunc func() bool

func (f pinFunc) Read() bool { return f() }

type nullPin struct{}

func (nullPin) Set(high bool) {}

func TestPulseCm(t *testing.T) {
	cases := []struct {
		name string
		us   uint32
		want float32
	}{
		{"Zero", 0, 0},
		{"TenCm", 588, 9.996},
		{"OneMeter", 5882, 99.994},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := PulseCm(c.us)
			if got < c.want-0.01 || got > c.want+0.01 {
				t.Fatalf("Bad distance %v", got)
			}
		})
	}
}

func TestSonarMeasure(t *testing.T) {
	clk := mono.NewSim(10)
	echo := pinFunc(func() bool {
		u := clk.NowUs()
		return u >= 100 && u < 688
	})
	s := NewSonar(nullPin{}, echo, clk)

	d, ok := s.Measure()
	if !ok {
		t.Fatal("Reading should be valid")
	}
	// Echo window is 588us, about 10cm, with sim clock slop.
	if d < 9 || d > 11 {
		t.Fatalf("Bad distance %v", d)
	}
}

func TestSonarNoEcho(t *testing.T) {
	clk := mono.NewSim(10)
	s := NewSonar(nullPin{}, pinFunc(func() bool { return false }), clk)
	d, ok := s.Measure()
	if ok {
		t.Fatal("Reading should be invalid")
	}
	if d != 0 {
		t.Fatalf("Bad distance %v", d)
	}
}

func TestSonarStuckHigh(t *testing.T) {
	clk := mono.NewSim(10)
	echo := pinFunc(func() bool {
		return clk.NowUs() >= 100
	})
	s := NewSonar(nullPin{}, echo, clk)
	d, ok := s.Measure()
	if ok {
		t.Fatal("Reading should be invalid")
	}
	if d != 0 {
		t.Fatalf("Bad distance %v", d)
	}
}
