// Package hardware runs the supervisory state machine that owns a
// physical command-station/accessory-bus connection: an Interface holds
// an IOHandler transport and a Kernel state machine, each interface
// running its own dedicated goroutine ("IO context") so a stalled
// transport on one interface never blocks another.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the externally observable state of an Interface.
type State uint8

const (
	StateOffline State = iota
	StateInitializing
	StateOnline
	StateError
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateOnline:
		return "Online"
	case StateError:
		return "Error"
	default:
		return "Offline"
	}
}

// IOHandler is the transport contract a Kernel drives: it owns sending
// and receiving raw bytes/frames and is started/stopped by the Interface
// alongside the Kernel's own state machine.
type IOHandler interface {
	// Start begins I/O, delivering received frames to onReceive until
	// ctx is cancelled or Stop is called. onError reports unrecoverable
	// transport failures (e.g. connection reset).
	Start(ctx context.Context, onReceive func([]byte), onError func(error)) error
	// Send writes one outbound frame.
	Send(frame []byte) error
	// Stop releases transport resources. Idempotent.
	Stop() error
}

// Interface supervises one Kernel/IOHandler pair: connecting, running
// its dedicated IO goroutine, and reconnecting with backoff on failure
// until explicitly stopped.
type Interface struct {
	ID     string
	Kernel *Kernel

	log *zap.Logger

	mu    sync.RWMutex
	state State
	err   error

	cancel context.CancelFunc
	done   chan struct{}

	onStateChanged map[int]func(State)
	nextSubID      int
}

// NewInterface constructs an Interface around a Kernel. The Kernel's
// IOHandler and protocol-specific logic must already be configured.
func NewInterface(id string, kernel *Kernel, log *zap.Logger) *Interface {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interface{ID: id, Kernel: kernel, log: log.With(zap.String("interface", id))}
}

func (i *Interface) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Interface) LastError() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.err
}

// OnStateChanged registers a callback fired whenever the interface's
// State transitions. The returned function removes the subscription.
func (i *Interface) OnStateChanged(fn func(State)) func() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.onStateChanged == nil {
		i.onStateChanged = map[int]func(State){}
	}
	id := i.nextSubID
	i.nextSubID++
	i.onStateChanged[id] = fn
	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.onStateChanged, id)
	}
}

func (i *Interface) setState(s State, err error) {
	i.mu.Lock()
	i.state = s
	i.err = err
	hooks := make([]func(State), 0, len(i.onStateChanged))
	for _, fn := range i.onStateChanged {
		hooks = append(hooks, fn)
	}
	i.mu.Unlock()
	for _, fn := range hooks {
		fn(s)
	}
}

// Online starts the interface's dedicated IO goroutine. It reconnects
// automatically with exponential backoff (capped at 30s) whenever the
// IOHandler or Kernel reports an error, until Offline is called.
func (i *Interface) Online() {
	ctx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.ioContext(ctx)
}

// Offline stops the interface's IO goroutine and transport.
func (i *Interface) Offline() {
	if i.cancel != nil {
		i.cancel()
	}
	if i.done != nil {
		<-i.done
	}
	i.setState(StateOffline, nil)
}

func (i *Interface) ioContext(ctx context.Context) {
	defer close(i.done)
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	i.Kernel.SetOnStateChange(func(s KernelState) {
		if s == KernelStateStarted {
			i.setState(StateOnline, nil)
		}
	})
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		i.setState(StateInitializing, nil)
		err := i.Kernel.Run(ctx, i.log)
		if err == nil {
			// Run returns nil only if a Protocol called Fail(nil); a
			// cancelled ctx comes back as context.Canceled below.
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}

		i.setState(StateError, err)
		i.log.Warn("interface error, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

var ErrNotOnline = fmt.Errorf("hardware: interface not online")
