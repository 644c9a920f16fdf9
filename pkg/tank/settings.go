package tank

import (
	"fmt"
	"net"
	"strings"
)

// MAC is a 6-byte radio hardware address.
type MAC [6]byte

// SentinelAddr is the all-bits-set address meaning no peer is
// configured. It leaves the peer link disabled for the whole run.
var SentinelAddr = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses a colon or dash separated address string.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, fmt.Errorf("Failed to parse peer address: %s", err)
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("Bad peer address length %d", len(hw))
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

func (m MAC) String() string {
	return strings.ToUpper(net.HardwareAddr(m[:]).String())
}

func (m MAC) IsSentinel() bool {
	return m == SentinelAddr
}

// Settings is the device configuration active for one run of the
// node. It is created at boot from the store or from defaults and
// only replaced by a save, which restarts the runtime.
type Settings struct {
	PeerAddr         MAC
	SampleIntervalMs uint32
	TankHeightCm     float32
	LEDEnabled       bool
	SSIDPrefix       string
	Passphrase       string
}

// DefaultSettings are the shipped firmware defaults, used whenever the
// store holds no valid record.
func DefaultSettings() Settings {
	return Settings{
		PeerAddr:         SentinelAddr,
		SampleIntervalMs: 5000,
		TankHeightCm:     50,
		LEDEnabled:       true,
		SSIDPrefix:       "WATER_SENSOR_",
		Passphrase:       "HardPassword1234",
	}
}

// Validate checks a candidate configuration at the save boundary. A
// rejected candidate never reaches the store or the running node.
func (s Settings) Validate() error {
	if s.SampleIntervalMs == 0 {
		return fmt.Errorf("Sample interval must be over zero ms")
	}
	if s.TankHeightCm <= 0 || s.TankHeightCm > 1000 {
		return fmt.Errorf("Tank height %.1fcm out of range (0,1000]", s.TankHeightCm)
	}
	if len(s.SSIDPrefix) > 15 {
		return fmt.Errorf("Network name prefix over 15 chars")
	}
	if n := len(s.Passphrase); n != 0 && (n < 8 || n > 31) {
		return fmt.Errorf("Passphrase must be empty or 8 to 31 chars")
	}
	return nil
}

// NetworkName is the name the node advertises, the configured prefix
// plus the tail of its own radio address.
func (s Settings) NetworkName(addr MAC) string {
	return fmt.Sprintf("%s%02X%02X%02X", s.SSIDPrefix, addr[3], addr[4], addr[5])
}
