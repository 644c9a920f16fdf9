package tank

import (
	"bytes"
	"errors"
	"testing"
)

type writeRec struct {
	off int64
	n   int
}

// memMedium is an in-memory settings medium that records writes and
// commits, with injectable failures.
type memMedium struct {
	buf      [StoreSize]byte
	writes   []writeRec
	attempts int
	commits  int

	failWriteAt int
	commitErr   error
}

func newMemMedium() *memMedium {
	return &memMedium{failWriteAt: -1}
}

func (m *memMedium) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.buf[off:]), nil
}

func (m *memMedium) WriteAt(p []byte, off int64) (int, error) {
	m.attempts++
	if m.failWriteAt == m.attempts-1 {
		return 0, errors.New("medium rejected write")
	}
	copy(m.buf[off:], p)
	m.writes = append(m.writes, writeRec{off: off, n: len(p)})
	return len(p), nil
}

func (m *memMedium) Commit() error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++
	return nil
}

func TestStoreLoadEmpty(t *testing.T) {
	t.Run("Zeroed", func(t *testing.T) {
		s := NewStore(newMemMedium())
		if _, err := s.Load(); !errors.Is(err, ErrNoRecord) {
			t.Fatalf("Bad error %v", err)
		}
	})
	t.Run("Erased", func(t *testing.T) {
		m := newMemMedium()
		for i := range m.buf {
			m.buf[i] = 0xff
		}
		s := NewStore(m)
		if _, err := s.Load(); !errors.Is(err, ErrNoRecord) {
			t.Fatalf("Bad error %v", err)
		}
	})
}

func TestStoreRoundTrip(t *testing.T) {
	m := newMemMedium()
	s := NewStore(m)

	in := Settings{
		PeerAddr:         MAC{0x5c, 0xcf, 0x7f, 0x01, 0x02, 0x03},
		SampleIntervalMs: 2500,
		TankHeightCm:     137.5,
		LEDEnabled:       true,
		SSIDPrefix:       "TANK_",
		Passphrase:       "HardPassword1234",
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Bad error %v", err)
	}
	out, err := s.Load()
	if err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if out != in {
		t.Fatalf("Bad settings %+v", out)
	}
}

func TestStoreMarkerWrittenLast(t *testing.T) {
	m := newMemMedium()
	s := NewStore(m)
	if err := s.Save(DefaultSettings()); err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if len(m.writes) != 2 {
		t.Fatalf("Bad write count %v", len(m.writes))
	}
	last := m.writes[len(m.writes)-1]
	if last.off != 63 || last.n != 1 {
		t.Fatalf("Bad final write %+v", last)
	}
	if m.buf[63] != 0xaa {
		t.Fatalf("Bad marker byte %#x", m.buf[63])
	}
	if m.commits != 1 {
		t.Fatalf("Bad commit count %v", m.commits)
	}
}

func TestStoreClear(t *testing.T) {
	m := newMemMedium()
	s := NewStore(m)
	if err := s.Save(DefaultSettings()); err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Bad error %v", err)
	}
	if !bytes.Equal(m.buf[:], bytes.Repeat([]byte{0xff}, StoreSize)) {
		t.Fatalf("Bad block after clear % 0#x", m.buf)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("Bad error %v", err)
	}
}

func TestStoreCommitError(t *testing.T) {
	m := newMemMedium()
	m.commitErr = errors.New("flash worn out")
	s := NewStore(m)
	if err := s.Save(DefaultSettings()); err == nil {
		t.Fatal("Expected commit error")
	}
}

func TestStoreCrashBeforeMarker(t *testing.T) {
	m := newMemMedium()
	m.failWriteAt = 1
	s := NewStore(m)
	if err := s.Save(DefaultSettings()); err == nil {
		t.Fatal("Expected write error")
	}
	// Body landed but the marker never did, so the record must not
	// be trusted.
	if _, err := s.Load(); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("Bad error %v", err)
	}
}
