// Package script embeds a sandboxed scripting bridge: each world script
// runs in its own goja VM with a restricted set of globals (world, log,
// event subscriptions through world.on, persistent per-script variables;
// no enum or set globals are installed) and
// a hard execution budget, so a runaway or malicious script can never
// stall the server's own goroutines.
package script

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/trainmaster/server/internal/script/store"
)

const (
	// ExecutionBudgetWarning is logged (not aborted) once a single call
	// into a script has run this long.
	ExecutionBudgetWarning = 5 * time.Millisecond
	// ExecutionBudgetAbort forcibly interrupts a script call that has
	// run this long, protecting the rest of the world from one runaway
	// handler.
	ExecutionBudgetAbort = 10 * time.Millisecond
)

// ErrBudgetExceeded is the error goja surfaces (wrapped) when Interrupt
// aborts a call for exceeding ExecutionBudgetAbort.
var ErrBudgetExceeded = fmt.Errorf("script: execution budget exceeded")

// EventSet is a small pub/sub hub a script can Connect a JS function to.
// Firing makes a defensive snapshot copy of its subscriber list first, so
// a handler that connects or disconnects itself (or another handler)
// mid-fire never mutates the slice being iterated.
type EventSet struct {
	mu   sync.Mutex
	subs map[int]func(args ...interface{})
	next int
}

func NewEventSet() *EventSet { return &EventSet{subs: map[int]func(args ...interface{}){}} }

// Connect registers fn and returns a token Disconnect can later use.
func (e *EventSet) Connect(fn func(args ...interface{})) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	e.subs[id] = fn
	return id
}

// Disconnect removes a previously Connected handler.
func (e *EventSet) Disconnect(token int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, token)
}

// Fire invokes every currently connected handler with args, from a
// stable snapshot taken before the first call runs.
func (e *EventSet) Fire(args ...interface{}) {
	e.mu.Lock()
	snapshot := make([]func(args ...interface{}), 0, len(e.subs))
	for _, fn := range e.subs {
		snapshot = append(snapshot, fn)
	}
	e.mu.Unlock()
	for _, fn := range snapshot {
		fn(args...)
	}
}

// World is the restricted surface a script's "world" global exposes. The
// concrete methods are supplied by the caller (wired to the actual board
// world) and kept deliberately small: a script can look up and command
// devices, but cannot reach the Go runtime, filesystem or network.
type World interface {
	GetBlockState(name string) (string, bool)
	SetTurnoutPosition(name string, position string) error
	SetSignalAspect(name string, aspect string) error
	Log(level, message string)
}

// Sandbox is one script's isolated execution environment: its own goja
// VM, its own persistent-variable namespace, and its own event
// subscriptions, all released together by Stop.
type Sandbox struct {
	Name string

	vm     *goja.Runtime
	log    *zap.Logger
	store  *store.Store
	world  World

	mu      sync.Mutex
	events  map[string]*EventSet
	running bool
}

// NewSandbox constructs a Sandbox bound to world and backed by st for
// persistent variables, named name (used both for logging and as the
// persistent-variable namespace key).
func NewSandbox(name string, world World, st *store.Store, log *zap.Logger) *Sandbox {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sandbox{
		Name:   name,
		log:    log.With(zap.String("script", name)),
		store:  st,
		world:  world,
		events: map[string]*EventSet{},
	}
	s.vm = goja.New()
	s.installGlobals()
	return s
}

func (s *Sandbox) installGlobals() {
	logObj := s.vm.NewObject()
	logObj.Set("debug", func(msg string) { s.log.Debug(msg) })
	logObj.Set("info", func(msg string) { s.log.Info(msg) })
	logObj.Set("warning", func(msg string) { s.log.Warn(msg) })
	logObj.Set("error", func(msg string) { s.log.Error(msg) })
	s.vm.Set("log", logObj)

	worldObj := s.vm.NewObject()
	worldObj.Set("getBlockState", func(name string) goja.Value {
		state, ok := s.world.GetBlockState(name)
		if !ok {
			return goja.Null()
		}
		return s.vm.ToValue(state)
	})
	worldObj.Set("setTurnoutPosition", func(name, position string) error {
		return s.world.SetTurnoutPosition(name, position)
	})
	worldObj.Set("setSignalAspect", func(name, aspect string) error {
		return s.world.SetSignalAspect(name, aspect)
	})
	worldObj.Set("on", func(event string) *EventSet { return s.eventSet(event) })
	s.vm.Set("world", worldObj)

	varsObj := s.vm.NewObject()
	varsObj.Set("get", func(key string) goja.Value {
		v, ok := s.store.Get(s.Name, key)
		if !ok {
			return goja.Undefined()
		}
		return s.vm.ToValue(v)
	})
	varsObj.Set("set", func(key string, value interface{}) error {
		return s.store.Set(s.Name, key, value)
	})
	s.vm.Set("persistent", varsObj)
}

func (s *Sandbox) eventSet(name string) *EventSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.events[name]
	if !ok {
		es = NewEventSet()
		s.events[name] = es
	}
	return es
}

// Event returns (creating if necessary) the named EventSet so Go code
// can Fire it when the corresponding world event occurs.
func (s *Sandbox) Event(name string) *EventSet { return s.eventSet(name) }

// Start compiles and runs a script's top-level body, then calls its
// init() function if one was defined, each under the execution budget.
func (s *Sandbox) Start(source string) error {
	if err := s.runUnderBudget(func() error {
		_, err := s.vm.RunString(source)
		return err
	}); err != nil {
		return fmt.Errorf("script %s: %w", s.Name, err)
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return s.callIfDefined("init")
}

// Stop calls the script's fini() function, if defined, under budget.
func (s *Sandbox) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.callIfDefined("fini")
}

func (s *Sandbox) callIfDefined(name string) error {
	fnVal := s.vm.Get(name)
	if fnVal == nil || goja.IsUndefined(fnVal) {
		return nil
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil
	}
	return s.runUnderBudget(func() error {
		_, err := fn(goja.Undefined())
		return err
	})
}

// runUnderBudget runs fn with a warning logged past
// ExecutionBudgetWarning and a forced goja.Interrupt past
// ExecutionBudgetAbort, mirroring the sandbox's pcallDurationWarning /
// pcallDurationMax limits.
func (s *Sandbox) runUnderBudget(fn func() error) error {
	warn := time.AfterFunc(ExecutionBudgetWarning, func() {
		s.log.Warn("script call exceeded warning budget", zap.Duration("budget", ExecutionBudgetWarning))
	})
	abort := time.AfterFunc(ExecutionBudgetAbort, func() {
		s.vm.Interrupt(ErrBudgetExceeded)
	})
	defer warn.Stop()
	defer abort.Stop()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if elapsed > ExecutionBudgetAbort {
		s.log.Error("script call aborted for exceeding execution budget", zap.Duration("elapsed", elapsed))
	}
	return err
}
