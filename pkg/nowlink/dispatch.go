package nowlink

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/tank"
)

// frameSink routes decoded bridge frames to their consumers. Both
// transport backends embed one and feed it whole frames.
type frameSink struct {
	mu       sync.Mutex
	onResult func(peer tank.MAC, ok bool)
	identC   chan tank.MAC
}

func newFrameSink() frameSink {
	return frameSink{identC: make(chan tank.MAC, 1)}
}

// OnResult registers the single delivery callback.
func (s *frameSink) OnResult(fn func(peer tank.MAC, ok bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// dispatch decodes one whole frame. Corrupt and unknown frames are
// dropped, the link layer retries around us.
func (s *frameSink) dispatch(frame []byte) {
	if len(frame) < 4 {
		log.Tracef("Dropping short frame % 0#x", frame)
		return
	}
	switch frame[3] {
	case cmdCodeTxResult:
		f, err := NewTxResultFrame(frame)
		if err != nil {
			log.Debugf("Failed to decode send result: %s", err)
			return
		}
		s.mu.Lock()
		fn := s.onResult
		s.mu.Unlock()
		if fn != nil {
			fn(tank.MAC(f.Peer), f.OK())
		}
	case cmdCodeIdent:
		f, err := NewIdentFrame(frame)
		if err != nil {
			log.Debugf("Failed to decode ident: %s", err)
			return
		}
		select {
		case s.identC <- tank.MAC(f.Addr):
		default:
		}
	default:
		log.Tracef("Dropping unknown frame % 0#x", frame)
	}
}
