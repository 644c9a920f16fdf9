package tank

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// FakeCarrier is an in-memory Carrier for tests and for running the
// daemon without a radio bridge attached.
type FakeCarrier struct {
	mu       sync.Mutex
	peers    []MAC
	sent     [][]byte
	onResult func(peer MAC, ok bool)

	addPeerErr error
	sendErr    error

	// AutoConfirm reports every accepted send as delivered, from
	// inside Send itself.
	AutoConfirm bool

	addr MAC
}

var _ Carrier = (*FakeCarrier)(nil)

func NewFakeCarrier() *FakeCarrier {
	return &FakeCarrier{
		addr: MAC{0x5c, 0xcf, 0x7f, 0xa1, 0xb2, 0xc3},
	}
}

func (f *FakeCarrier) OnResult(fn func(peer MAC, ok bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onResult = fn
}

func (f *FakeCarrier) AddPeer(peer MAC) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addPeerErr != nil {
		return f.addPeerErr
	}
	f.peers = append(f.peers, peer)
	return nil
}

func (f *FakeCarrier) Send(peer MAC, payload []byte) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	b := make([]byte, len(payload))
	copy(b, payload)
	f.sent = append(f.sent, b)
	fn := f.onResult
	auto := f.AutoConfirm
	f.mu.Unlock()

	log.Tracef("Fake carrier accepted % 0#x for %s", payload, peer)
	if auto && fn != nil {
		fn(peer, true)
	}
	return nil
}

func (f *FakeCarrier) LocalAddr() MAC {
	return f.addr
}

// Complete reports a delivery outcome for an earlier send, the way
// the real radio does from its interrupt context.
func (f *FakeCarrier) Complete(peer MAC, ok bool) {
	f.mu.Lock()
	fn := f.onResult
	f.mu.Unlock()
	if fn != nil {
		fn(peer, ok)
	}
}

func (f *FakeCarrier) SetSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *FakeCarrier) SetAddPeerErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addPeerErr = err
}

func (f *FakeCarrier) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *FakeCarrier) LastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *FakeCarrier) Peers() []MAC {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]MAC, len(f.peers))
	copy(out, f.peers)
	return out
}
