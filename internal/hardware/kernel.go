package hardware

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// KernelState is the protocol-level handshake state machine every
// Kernel goes through once its IOHandler transport comes up.
type KernelState uint8

const (
	KernelStateInitial KernelState = iota
	KernelStateProtocolVersion
	KernelStateStarted
)

func (s KernelState) String() string {
	switch s {
	case KernelStateProtocolVersion:
		return "ProtocolVersion"
	case KernelStateStarted:
		return "Started"
	default:
		return "Initial"
	}
}

// Protocol is the wire-format-specific half of a Kernel: framing,
// handshake and frame dispatch. dinamoframe and cbusascii are the two
// concrete implementations.
type Protocol interface {
	// OnConnect is invoked once as the IOHandler transport comes up; it
	// should send whatever handshake/version-query frame the wire
	// protocol requires and call k.Started() or k.Fail() once it knows
	// the outcome (synchronously, or later from HandleFrame).
	OnConnect(k *Kernel) error
	// HandleFrame processes one received frame.
	HandleFrame(frame []byte, k *Kernel) error
}

// Kernel owns one protocol's handshake/state machine atop an IOHandler
// transport. It is driven entirely from the Interface's single IO
// goroutine; Send is safe to call from other goroutines.
type Kernel struct {
	IO       IOHandler
	Protocol Protocol

	mu    sync.Mutex
	state KernelState

	log *zap.Logger

	doneCh chan error

	onStateChange func(KernelState)
}

// NewKernel constructs a Kernel around a transport and protocol.
func NewKernel(io IOHandler, protocol Protocol) *Kernel {
	return &Kernel{IO: io, Protocol: protocol}
}

func (k *Kernel) State() KernelState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *Kernel) setState(s KernelState) {
	k.mu.Lock()
	k.state = s
	hook := k.onStateChange
	k.mu.Unlock()
	if hook != nil {
		hook(s)
	}
}

// SetOnStateChange registers the callback invoked whenever the Kernel's
// state transitions. Used by Interface to mirror KernelStateStarted into
// its own externally observable State.
func (k *Kernel) SetOnStateChange(fn func(KernelState)) {
	k.mu.Lock()
	k.onStateChange = fn
	k.mu.Unlock()
}

// Started transitions the kernel to Started. Called by a Protocol once
// it has confirmed the far end speaks a compatible version.
func (k *Kernel) Started() {
	k.setState(KernelStateStarted)
}

// Fail aborts the current Run with err; the owning Interface will
// reconnect after its backoff.
func (k *Kernel) Fail(err error) {
	select {
	case k.doneCh <- err:
	default:
	}
}

// Send writes one outbound frame via the IOHandler.
func (k *Kernel) Send(frame []byte) error {
	return k.IO.Send(frame)
}

// Run starts the IOHandler, performs the Protocol handshake and blocks
// until ctx is cancelled or an unrecoverable error occurs.
func (k *Kernel) Run(ctx context.Context, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	k.log = log
	k.setState(KernelStateInitial)
	k.doneCh = make(chan error, 1)

	onReceive := func(frame []byte) {
		if err := k.Protocol.HandleFrame(frame, k); err != nil {
			k.Fail(fmt.Errorf("hardware: frame handling: %w", err))
		}
	}
	onError := func(err error) { k.Fail(err) }

	if err := k.IO.Start(ctx, onReceive, onError); err != nil {
		return fmt.Errorf("hardware: transport start: %w", err)
	}
	defer k.IO.Stop()

	k.setState(KernelStateProtocolVersion)
	if err := k.Protocol.OnConnect(k); err != nil {
		return fmt.Errorf("hardware: handshake: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-k.doneCh:
		return err
	}
}
