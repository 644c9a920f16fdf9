package nowlink

import (
	"testing"

	"github.com/johnelliott/watersensord/pkg/tank"
)

func TestDispatchTxResult(t *testing.T) {
	s := newFrameSink()
	var gotPeer tank.MAC
	var gotOK bool
	called := 0
	s.OnResult(func(peer tank.MAC, ok bool) {
		gotPeer = peer
		gotOK = ok
		called++
	})

	s.dispatch(txResultOKBytes)
	if called != 1 {
		t.Fatalf("Bad call count %v", called)
	}
	if gotPeer != tank.MAC(testPeer) {
		t.Fatalf("Bad peer %v", gotPeer)
	}
	if !gotOK {
		t.Fatal("Delivered result should be OK")
	}

	s.dispatch(txResultFailBytes)
	if called != 2 {
		t.Fatalf("Bad call count %v", called)
	}
	if gotOK {
		t.Fatal("Failed result should not be OK")
	}
}

func TestDispatchIdent(t *testing.T) {
	s := newFrameSink()
	s.dispatch(identRespBytes)
	select {
	case addr := <-s.identC:
		if addr != (tank.MAC{0x5c, 0xcf, 0x7f, 0xa1, 0xb2, 0xc3}) {
			t.Fatalf("Bad address %v", addr)
		}
	default:
		t.Fatal("No ident delivered")
	}
}

func TestDispatchDrops(t *testing.T) {
	s := newFrameSink()
	called := false
	s.OnResult(func(tank.MAC, bool) { called = true })

	corrupt := append([]byte{}, txResultOKBytes...)
	corrupt[len(corrupt)-1]++
	s.dispatch(corrupt)
	s.dispatch([]byte{0xa5})
	s.dispatch([]byte{0xa5, 0x5a, 0x05, 0x7f, 0x00, 0x00, 0x00, 0x00})

	if called {
		t.Fatal("Bad frame reached the result callback")
	}
	select {
	case <-s.identC:
		t.Fatal("Bad frame delivered an ident")
	default:
	}
}
