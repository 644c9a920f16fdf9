package nowlink

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"testing"
)

func TestReadFrame(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader(txResultOKBytes))
		frame, err := readFrame(r)
		if err != nil {
			t.Fatalf("Bad error %v", err)
		}
		if !bytes.Equal(frame, txResultOKBytes) {
			t.Fatalf("Bad frame %x", frame)
		}
	})

	t.Run("LeadingNoise", func(t *testing.T) {
		stream := append([]byte{0x00, 0xff, 0xa5, 0x13, 0xa5}, txResultOKBytes...)
		r := bufio.NewReader(bytes.NewReader(stream))
		frame, err := readFrame(r)
		if err != nil {
			t.Fatalf("Bad error %v", err)
		}
		if !bytes.Equal(frame, txResultOKBytes) {
			t.Fatalf("Bad frame %x", frame)
		}
	})

	t.Run("BackToBack", func(t *testing.T) {
		stream := append(append([]byte{}, identRespBytes...), txResultFailBytes...)
		r := bufio.NewReader(bytes.NewReader(stream))
		first, err := readFrame(r)
		if err != nil {
			t.Fatalf("Bad error %v", err)
		}
		if got := fmt.Sprintf("%x", first); got != fmt.Sprintf("%x", identRespBytes) {
			t.Fatalf("Bad frame %v", got)
		}
		second, err := readFrame(r)
		if err != nil {
			t.Fatalf("Bad error %v", err)
		}
		if got := fmt.Sprintf("%x", second); got != fmt.Sprintf("%x", txResultFailBytes) {
			t.Fatalf("Bad frame %v", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader(nil))
		if _, err := readFrame(r); err != io.EOF {
			t.Fatalf("Bad error %v", err)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader(txResultOKBytes[:6]))
		if _, err := readFrame(r); err == nil {
			t.Fatal("Expected read error")
		}
	})
}
