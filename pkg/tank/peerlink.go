package tank

import (
	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/mono"
)

// RetryIntervalMs is the fixed gap between transmission attempts after
// a failure. It is independent of the sample interval.
const RetryIntervalMs = 1000

// Carrier is the vendor point-to-point radio the node sends readings
// over. Send is fire and forget; its outcome arrives later through
// the single completion callback registered with OnResult, possibly
// on another goroutine.
type Carrier interface {
	AddPeer(peer MAC) error
	Send(peer MAC, payload []byte) error
	OnResult(fn func(peer MAC, ok bool))
	LocalAddr() MAC
}

// LinkState names the transmission state machine states.
type LinkState int

const (
	Disabled LinkState = iota
	Idle
	AwaitingRetry
)

func (s LinkState) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Idle:
		return "idle"
	case AwaitingRetry:
		return "awaiting retry"
	}
	return "unknown"
}

// LinkStatus is the collaborator-facing view of the link.
type LinkStatus int

const (
	LinkDisabled LinkStatus = iota
	LinkOk
	LinkError
)

func (s LinkStatus) String() string {
	switch s {
	case LinkDisabled:
		return "disabled"
	case LinkOk:
		return "ok"
	case LinkError:
		return "error"
	}
	return "unknown"
}

// sendResult is one carrier completion signal.
type sendResult struct {
	peer MAC
	ok   bool
}

// PeerLink owns transmission attempts, delivery tracking and retry
// over the radio carrier. All methods except deliver run on the node
// loop.
type PeerLink struct {
	carrier Carrier
	peer    MAC
	enabled bool

	lastSendAt        uint32
	lastRetryAt       uint32
	lastSendSucceeded bool
	havePayload       bool
	payload           Payload

	results chan sendResult
}

func NewPeerLink(c Carrier) *PeerLink {
	return &PeerLink{
		carrier:           c,
		lastSendSucceeded: true,
		results:           make(chan sendResult, 8),
	}
}

// Init registers the peer with the carrier. A sentinel address, or a
// carrier that rejects the peer, leaves the link Disabled for the
// whole run; only a save (and the restart it implies) can change
// that.
func (l *PeerLink) Init(peer MAC) bool {
	if peer.IsSentinel() {
		log.Info("Peer link disabled, no peer configured")
		return false
	}
	l.carrier.OnResult(l.deliver)
	if err := l.carrier.AddPeer(peer); err != nil {
		log.Errorf("Failed to register peer %s: %s", peer, err)
		return false
	}
	l.peer = peer
	l.enabled = true
	return true
}

// deliver is the carrier completion callback. It may run on any
// goroutine; results are parked and applied on the next Tick.
func (l *PeerLink) deliver(peer MAC, ok bool) {
	select {
	case l.results <- sendResult{peer: peer, ok: ok}:
	default:
		log.Warn("Send result dropped, inbox full")
	}
}

// Send transmits a reading. It never blocks on delivery: the outcome
// lands via the completion callback, and a failure is retried from
// Tick. The payload is retained so retries resend the last reading.
func (l *PeerLink) Send(p Payload, now uint32) {
	if !l.enabled {
		return
	}
	l.payload = p
	l.havePayload = true
	l.transmit(now)
	l.lastSendAt = now
}

// transmit issues one attempt and starts the retry clock, so a failed
// attempt at t is not retried before t+RetryIntervalMs.
func (l *PeerLink) transmit(now uint32) {
	l.lastRetryAt = now
	b, err := l.payload.MarshalBinary()
	if err != nil {
		log.Errorf("Failed to serialize reading payload: %s", err)
		l.lastSendSucceeded = false
		return
	}
	if err := l.carrier.Send(l.peer, b); err != nil {
		log.Debugf("Send to %s failed: %s", l.peer, err)
		l.lastSendSucceeded = false
		return
	}
}

// Tick applies parked completion results, then re-sends the retained
// payload once the retry interval has elapsed. Retries repeat until a
// success signal arrives or a fresh Send replaces the payload; there
// is no backoff growth and no attempt cap. Failures never escalate
// past this state machine.
func (l *PeerLink) Tick(now uint32) {
	for drained := false; !drained; {
		select {
		case r := <-l.results:
			if r.peer != l.peer {
				log.Tracef("Ignoring result for %s", r.peer)
				continue
			}
			l.lastSendSucceeded = r.ok
			if r.ok {
				log.Debug("Peer delivery confirmed")
			} else {
				log.Debugf("Peer delivery failed, retry due in %dms", RetryIntervalMs)
			}
		default:
			drained = true
		}
	}

	if l.State() == AwaitingRetry && l.havePayload &&
		mono.Since(now, l.lastRetryAt) >= RetryIntervalMs {
		log.Tracef("Retrying send to %s", l.peer)
		l.transmit(now)
	}
}

// State derives the named state from the transmission record.
func (l *PeerLink) State() LinkState {
	if !l.enabled {
		return Disabled
	}
	if !l.lastSendSucceeded {
		return AwaitingRetry
	}
	return Idle
}

// Status maps the link state to the collaborator contract.
func (l *PeerLink) Status() LinkStatus {
	switch l.State() {
	case Disabled:
		return LinkDisabled
	case AwaitingRetry:
		return LinkError
	}
	return LinkOk
}
