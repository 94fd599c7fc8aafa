package hardware

import (
	"testing"
	"time"
)

func TestInterfaceReachesOnlineAfterHandshake(t *testing.T) {
	iface := newFakeInterface("a")
	iface.Online()
	defer iface.Offline()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if iface.State() == StateOnline {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected interface to reach StateOnline once the kernel handshake completed, got %s", iface.State())
}

func TestInterfaceOnStateChangedUnsubscribe(t *testing.T) {
	iface := newFakeInterface("a")
	var transitions []State
	unsub := iface.OnStateChanged(func(s State) { transitions = append(transitions, s) })

	iface.Online()
	time.Sleep(50 * time.Millisecond)
	unsub()
	iface.Offline()

	if len(transitions) == 0 {
		t.Fatalf("expected at least one observed state transition before unsubscribing")
	}
	count := len(transitions)
	time.Sleep(10 * time.Millisecond)
	if len(transitions) != count {
		t.Fatalf("expected no further notifications after unsubscribe")
	}
}
