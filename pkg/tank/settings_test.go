package tank

import (
	"testing"
)

func TestParseMAC(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		m, err := ParseMAC("5c:cf:7f:01:02:03")
		if err != nil {
			t.Fatalf("Bad error %v", err)
		}
		want := MAC{0x5c, 0xcf, 0x7f, 0x01, 0x02, 0x03}
		if m != want {
			t.Fatalf("Bad address %v", m)
		}
		if m.String() != "5C:CF:7F:01:02:03" {
			t.Fatalf("Bad string %v", m.String())
		}
	})
	t.Run("Garbage", func(t *testing.T) {
		if _, err := ParseMAC("not-a-mac"); err == nil {
			t.Fatal("Expected parse error")
		}
	})
	t.Run("TooLong", func(t *testing.T) {
		if _, err := ParseMAC("01:02:03:04:05:06:07:08"); err == nil {
			t.Fatal("Expected length error")
		}
	})
	t.Run("Sentinel", func(t *testing.T) {
		if !SentinelAddr.IsSentinel() {
			t.Fatal("Sentinel not detected")
		}
		if (MAC{0x5c, 0xcf, 0x7f, 0x01, 0x02, 0x03}).IsSentinel() {
			t.Fatal("Real address flagged as sentinel")
		}
	})
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"Defaults", func(s *Settings) {}, true},
		{"ZeroInterval", func(s *Settings) { s.SampleIntervalMs = 0 }, false},
		{"ZeroHeight", func(s *Settings) { s.TankHeightCm = 0 }, false},
		{"NegativeHeight", func(s *Settings) { s.TankHeightCm = -5 }, false},
		{"MaxHeight", func(s *Settings) { s.TankHeightCm = 1000 }, true},
		{"OverMaxHeight", func(s *Settings) { s.TankHeightCm = 1000.5 }, false},
		{"LongPrefix", func(s *Settings) { s.SSIDPrefix = "0123456789abcdef" }, false},
		{"MaxPrefix", func(s *Settings) { s.SSIDPrefix = "0123456789abcde" }, true},
		{"EmptyPassphrase", func(s *Settings) { s.Passphrase = "" }, true},
		{"ShortPassphrase", func(s *Settings) { s.Passphrase = "seven77" }, false},
		{"MinPassphrase", func(s *Settings) { s.Passphrase = "eight888" }, true},
		{"MaxPassphrase", func(s *Settings) { s.Passphrase = "0123456789012345678901234567890" }, true},
		{"LongPassphrase", func(s *Settings) { s.Passphrase = "01234567890123456789012345678901" }, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := DefaultSettings()
			c.mutate(&s)
			err := s.Validate()
			if c.ok && err != nil {
				t.Fatalf("Bad error %v", err)
			}
			if !c.ok && err == nil {
				t.Fatal("Expected validation error")
			}
		})
	}
}

func TestNetworkName(t *testing.T) {
	s := DefaultSettings()
	addr := MAC{0x5c, 0xcf, 0x7f, 0xa1, 0xb2, 0xc3}
	if got := s.NetworkName(addr); got != "WATER_SENSOR_A1B2C3" {
		t.Fatalf("Bad network name %v", got)
	}
}
