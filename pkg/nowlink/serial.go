package nowlink

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/johnelliott/watersensord/pkg/tank"
)

const identTimeout = 3 * time.Second

// Serial drives the radio bridge over a UART.
type Serial struct {
	frameSink
	port  serial.Port
	wmu   sync.Mutex
	addr  tank.MAC
	quitC chan struct{}
}

var _ tank.Carrier = (*Serial)(nil)

// OpenSerial connects to the bridge on portName and waits for it to
// identify itself.
func OpenSerial(portName string, baud int) (*Serial, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("Failed to open serial port %s: %s", portName, err)
	}

	s := &Serial{
		frameSink: newFrameSink(),
		port:      port,
		quitC:     make(chan struct{}),
	}
	go s.readLoop()

	if err := s.write(IdentCommand); err != nil {
		port.Close()
		return nil, err
	}
	select {
	case addr := <-s.identC:
		s.addr = addr
		log.Infof("Radio bridge %s up on %s", addr, portName)
	case <-time.After(identTimeout):
		close(s.quitC)
		port.Close()
		return nil, fmt.Errorf("Bridge on %s did not identify itself", portName)
	}
	return s, nil
}

func (s *Serial) readLoop() {
	r := bufio.NewReader(s.port)
	for {
		frame, err := readFrame(r)
		if err != nil {
			select {
			case <-s.quitC:
				return
			default:
			}
			if err == io.EOF {
				log.Warn("Serial port closed")
				return
			}
			log.Debugf("Failed to read frame: %s", err)
			continue
		}
		s.dispatch(frame)
	}
}

// readFrame scans to the next preamble and reads one whole frame.
func readFrame(r *bufio.Reader) ([]byte, error) {
	hi, lo := byte(Preamble>>8), byte(Preamble&0xff)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != hi {
			continue
		}
		nxt, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if nxt != lo {
			// The payload can contain the first preamble byte, so
			// rescan from the byte after it.
			if err := r.UnreadByte(); err != nil {
				return nil, err
			}
			continue
		}
		dl, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		frame := make([]byte, 3+int(dl))
		frame[0], frame[1], frame[2] = hi, lo, dl
		if _, err := io.ReadFull(r, frame[3:]); err != nil {
			return nil, err
		}
		return frame, nil
	}
}

func (s *Serial) write(b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.port.Write(b); err != nil {
		return fmt.Errorf("Failed to write frame: %s", err)
	}
	return nil
}

func (s *Serial) AddPeer(peer tank.MAC) error {
	b, err := NewAddPeerCommand([6]byte(peer))
	if err != nil {
		return err
	}
	return s.write(b)
}

func (s *Serial) Send(peer tank.MAC, payload []byte) error {
	if len(payload) != payloadLen {
		return fmt.Errorf("Bad payload length %d", len(payload))
	}
	var p [payloadLen]byte
	copy(p[:], payload)
	b, err := NewSendCommand([6]byte(peer), p)
	if err != nil {
		return err
	}
	return s.write(b)
}

func (s *Serial) LocalAddr() tank.MAC {
	return s.addr
}

// Close stops the read loop and releases the port.
func (s *Serial) Close() error {
	close(s.quitC)
	return s.port.Close()
}
