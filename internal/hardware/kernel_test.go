package hardware

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type scriptedIOHandler struct {
	startErr  error
	sendErr   error
	received  func([]byte)
	onErrFunc func(error)
	sent      [][]byte
	stopped   bool
}

func (h *scriptedIOHandler) Start(ctx context.Context, onReceive func([]byte), onError func(error)) error {
	if h.startErr != nil {
		return h.startErr
	}
	h.received = onReceive
	h.onErrFunc = onError
	return nil
}

func (h *scriptedIOHandler) Send(frame []byte) error {
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sent = append(h.sent, frame)
	return nil
}

func (h *scriptedIOHandler) Stop() error {
	h.stopped = true
	return nil
}

type scriptedProtocol struct {
	onConnectErr error
	onHandleErr  error
	dispatched   [][]byte
}

func (p *scriptedProtocol) OnConnect(k *Kernel) error {
	if p.onConnectErr != nil {
		return p.onConnectErr
	}
	k.Started()
	return nil
}

func (p *scriptedProtocol) HandleFrame(frame []byte, k *Kernel) error {
	p.dispatched = append(p.dispatched, frame)
	return p.onHandleErr
}

func TestKernelRunTransitionsThroughStartedOnSuccessfulHandshake(t *testing.T) {
	io := &scriptedIOHandler{}
	proto := &scriptedProtocol{}
	k := NewKernel(io, proto)

	var seen []KernelState
	k.SetOnStateChange(func(s KernelState) { seen = append(seen, s) })

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- k.Run(ctx, nil) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && k.State() != KernelStateStarted {
		time.Sleep(5 * time.Millisecond)
	}
	if k.State() != KernelStateStarted {
		t.Fatalf("expected kernel to reach Started, got %s", k.State())
	}
	cancel()
	if err := <-runDone; err != context.Canceled {
		t.Fatalf("expected Run to return context.Canceled, got %v", err)
	}
	if !io.stopped {
		t.Fatalf("expected Run to stop the IOHandler on exit")
	}

	want := []KernelState{KernelStateInitial, KernelStateProtocolVersion, KernelStateStarted}
	if len(seen) != len(want) {
		t.Fatalf("expected state transitions %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected state transitions %v, got %v", want, seen)
		}
	}
}

func TestKernelRunFailsWhenTransportStartErrors(t *testing.T) {
	io := &scriptedIOHandler{startErr: fmt.Errorf("dial refused")}
	proto := &scriptedProtocol{}
	k := NewKernel(io, proto)

	err := k.Run(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected Run to surface a transport start error")
	}
}

func TestKernelRunFailsWhenHandshakeErrors(t *testing.T) {
	io := &scriptedIOHandler{}
	proto := &scriptedProtocol{onConnectErr: fmt.Errorf("bad version")}
	k := NewKernel(io, proto)

	err := k.Run(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected Run to surface a handshake error")
	}
	if !io.stopped {
		t.Fatalf("expected Run to stop the IOHandler even when the handshake fails")
	}
}

func TestKernelDispatchesReceivedFramesToProtocol(t *testing.T) {
	io := &scriptedIOHandler{}
	proto := &scriptedProtocol{}
	k := NewKernel(io, proto)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- k.Run(ctx, nil) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && io.received == nil {
		time.Sleep(5 * time.Millisecond)
	}
	if io.received == nil {
		t.Fatalf("expected the kernel to register an onReceive callback with the transport")
	}
	io.received([]byte{0x01, 0x02})

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(proto.dispatched) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if len(proto.dispatched) != 1 {
		t.Fatalf("expected exactly one frame dispatched to the protocol, got %d", len(proto.dispatched))
	}
}

func TestKernelFailAbortsRunOnFrameHandlingError(t *testing.T) {
	io := &scriptedIOHandler{}
	proto := &scriptedProtocol{onHandleErr: fmt.Errorf("bad checksum")}
	k := NewKernel(io, proto)

	runDone := make(chan error, 1)
	go func() { runDone <- k.Run(context.Background(), nil) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && io.received == nil {
		time.Sleep(5 * time.Millisecond)
	}
	io.received([]byte{0xFF})

	select {
	case err := <-runDone:
		if err == nil {
			t.Fatalf("expected Run to return an error after a frame-handling failure")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return once the protocol reported a handling error")
	}
}

func TestKernelSendWritesThroughTransport(t *testing.T) {
	io := &scriptedIOHandler{}
	k := NewKernel(io, &scriptedProtocol{})
	if err := k.Send([]byte{0x01}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(io.sent) != 1 {
		t.Fatalf("expected one frame sent through the transport, got %d", len(io.sent))
	}
}
