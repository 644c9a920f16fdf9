package tank

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chewxy/math32"
)

// ErrNoRecord means the store holds no valid settings record and the
// caller should keep its defaults.
var ErrNoRecord = errors.New("no settings record")

// Settings block layout. Offsets match the shipped firmware's EEPROM
// page so a raw image moves between firmware and this daemon
// unchanged. Multi-byte fields are little-endian.
const (
	StoreSize = 64

	offPeerAddr   = 0
	offInterval   = 6
	offTankHeight = 10
	offLED        = 14
	offSSIDPrefix = 15
	offPassphrase = 31
	offMarker     = 63

	ssidPrefixLen = 16
	passphraseLen = 32

	markerByte = 0xaa
)

// Medium is the byte-addressable non-volatile device the store writes
// to. Commit flushes buffered bytes out to the physical medium.
type Medium interface {
	io.ReaderAt
	io.WriterAt
	Commit() error
}

// Store reads and writes the settings block on a Medium.
type Store struct {
	m Medium
}

func NewStore(m Medium) *Store {
	return &Store{m: m}
}

// Load returns the stored settings, or ErrNoRecord when the marker
// byte is absent. It never returns a partially populated Settings.
func (s *Store) Load() (Settings, error) {
	var mk [1]byte
	if _, err := s.m.ReadAt(mk[:], offMarker); err != nil {
		return Settings{}, fmt.Errorf("Failed to read settings marker: %s", err)
	}
	if mk[0] != markerByte {
		return Settings{}, ErrNoRecord
	}

	var b [StoreSize]byte
	if _, err := s.m.ReadAt(b[:], 0); err != nil {
		return Settings{}, fmt.Errorf("Failed to read settings block: %s", err)
	}

	var cfg Settings
	copy(cfg.PeerAddr[:], b[offPeerAddr:offPeerAddr+6])
	cfg.SampleIntervalMs = binary.LittleEndian.Uint32(b[offInterval:])
	cfg.TankHeightCm = math32.Float32frombits(binary.LittleEndian.Uint32(b[offTankHeight:]))
	cfg.LEDEnabled = b[offLED] != 0
	cfg.SSIDPrefix = cstr(b[offSSIDPrefix : offSSIDPrefix+ssidPrefixLen])
	cfg.Passphrase = cstr(b[offPassphrase : offPassphrase+passphraseLen])
	return cfg, nil
}

// Save serializes every field at its fixed offset and writes the
// marker byte last. An interrupted save before the marker write
// leaves the store without a valid record rather than holding a torn
// one. Write and commit failures are returned, not retried.
func (s *Store) Save(cfg Settings) error {
	var b [offMarker]byte
	copy(b[offPeerAddr:], cfg.PeerAddr[:])
	binary.LittleEndian.PutUint32(b[offInterval:], cfg.SampleIntervalMs)
	binary.LittleEndian.PutUint32(b[offTankHeight:], math32.Float32bits(cfg.TankHeightCm))
	if cfg.LEDEnabled {
		b[offLED] = 0x01
	}
	copy(b[offSSIDPrefix:offSSIDPrefix+ssidPrefixLen], cfg.SSIDPrefix)
	copy(b[offPassphrase:offPassphrase+passphraseLen], cfg.Passphrase)

	if _, err := s.m.WriteAt(b[:], 0); err != nil {
		return fmt.Errorf("Failed to write settings block: %s", err)
	}
	if _, err := s.m.WriteAt([]byte{markerByte}, offMarker); err != nil {
		return fmt.Errorf("Failed to write settings marker: %s", err)
	}
	if err := s.m.Commit(); err != nil {
		return fmt.Errorf("Failed to commit settings: %s", err)
	}
	return nil
}

// Clear overwrites the whole block, marker included, with 0xff. A
// subsequent Load reports ErrNoRecord.
func (s *Store) Clear() error {
	b := bytes.Repeat([]byte{0xff}, StoreSize)
	if _, err := s.m.WriteAt(b, 0); err != nil {
		return fmt.Errorf("Failed to clear settings block: %s", err)
	}
	if err := s.m.Commit(); err != nil {
		return fmt.Errorf("Failed to commit clear: %s", err)
	}
	return nil
}

// cstr trims a NUL-padded fixed-width field.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// FileMedium is a Medium backed by a plain file, the daemon's
// stand-in for the firmware's EEPROM page.
type FileMedium struct {
	f *os.File
}

var _ Medium = (*FileMedium)(nil)

// OpenFileMedium opens or creates the backing file and pads it out to
// the store size. A fresh file reads as no-record.
func OpenFileMedium(path string) (*FileMedium, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("Failed to open settings store: %s", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("Failed to stat settings store: %s", err)
	}
	if st.Size() < StoreSize {
		if err := f.Truncate(StoreSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("Failed to size settings store: %s", err)
		}
	}
	return &FileMedium{f: f}, nil
}

func (m *FileMedium) ReadAt(p []byte, off int64) (int, error) {
	return m.f.ReadAt(p, off)
}

func (m *FileMedium) WriteAt(p []byte, off int64) (int, error) {
	return m.f.WriteAt(p, off)
}

func (m *FileMedium) Commit() error {
	return m.f.Sync()
}

func (m *FileMedium) Close() error {
	return m.f.Close()
}
