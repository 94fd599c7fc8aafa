package hardware

import (
	"context"
	"testing"
	"time"
)

type fakeIOHandler struct{}

func (fakeIOHandler) Start(ctx context.Context, onReceive func([]byte), onError func(error)) error {
	return nil
}
func (fakeIOHandler) Send(frame []byte) error { return nil }
func (fakeIOHandler) Stop() error             { return nil }

type fakeProtocol struct{}

func (fakeProtocol) OnConnect(k *Kernel) error {
	k.Started()
	return nil
}
func (fakeProtocol) HandleFrame(frame []byte, k *Kernel) error { return nil }

func newFakeInterface(id string) *Interface {
	kernel := NewKernel(fakeIOHandler{}, fakeProtocol{})
	return NewInterface(id, kernel, nil)
}

func TestSupervisorStartBringsInterfacesOnline(t *testing.T) {
	a := newFakeInterface("a")
	b := newFakeInterface("b")
	sup := NewSupervisor(a, b)
	sup.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.State() == StateOnline && b.State() == StateOnline {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if a.State() != StateOnline {
		t.Fatalf("expected interface a online, got %s", a.State())
	}
	if b.State() != StateOnline {
		t.Fatalf("expected interface b online, got %s", b.State())
	}

	done := make(chan error, 1)
	go func() { done <- sup.Stop(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return once every interface went offline")
	}

	if a.State() != StateOffline || b.State() != StateOffline {
		t.Fatalf("expected both interfaces offline after Stop, got a=%s b=%s", a.State(), b.State())
	}
}

func TestSupervisorInterfacesPreservesOrder(t *testing.T) {
	a := newFakeInterface("a")
	b := newFakeInterface("b")
	sup := NewSupervisor(a, b)
	got := sup.Interfaces()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("expected Interfaces() to preserve construction order")
	}
}
