package interlocking

import (
	"sync"
	"time"
)

// ExtOutputChangeAction is the escalation response taken when a device
// keeps reporting a position other than the one it was commanded to
// take, even after every correction retry has been exhausted.
type ExtOutputChangeAction uint8

const (
	ExtOutputChangeActionDoNothing ExtOutputChangeAction = iota
	ExtOutputChangeActionEmergencyStopTrain
	ExtOutputChangeActionEmergencyStopWorld
	ExtOutputChangeActionPowerOffWorld
)

// RetryState is the anti-regression state machine's current phase.
type RetryState uint8

const (
	RetryStateStable RetryState = iota
	RetryStateCorrecting
	RetryStateEscalating
)

func (s RetryState) String() string {
	switch s {
	case RetryStateCorrecting:
		return "Correcting"
	case RetryStateEscalating:
		return "Escalating"
	default:
		return "Stable"
	}
}

const (
	defaultMaxAttempts   = 3
	defaultRetryInterval = 60 * time.Second
)

// AntiRegression drives one device's resync loop: every time the device
// is commanded into a sub-state, it watches the device's actual
// feedback for up to maxAttempts retries spaced retryInterval apart.
// If the device still disagrees after the last retry, it escalates by
// invoking onEscalate with the configured action.
type AntiRegression struct {
	mu            sync.Mutex
	state         RetryState
	attemptsLeft  int
	maxAttempts   int
	retryInterval time.Duration
	action        ExtOutputChangeAction
	timer         *time.Timer

	// Command re-sends the device's intended command (e.g. re-pulse the
	// turnout motor output). Match reports whether the device's current
	// feedback already agrees with what was commanded.
	Command func()
	Match   func() bool
	OnEscalate func(ExtOutputChangeAction)
}

// NewAntiRegression constructs a retry state machine for one device.
// action is taken if correction never converges; maxAttempts and the
// retry interval are always set to 3 retries spaced 60s apart.
func NewAntiRegression(action ExtOutputChangeAction, command func(), match func() bool, onEscalate func(ExtOutputChangeAction)) *AntiRegression {
	return &AntiRegression{
		state:         RetryStateStable,
		maxAttempts:   defaultMaxAttempts,
		retryInterval: defaultRetryInterval,
		action:        action,
		Command:       command,
		Match:         match,
		OnEscalate:    onEscalate,
	}
}

// State returns the current phase.
func (a *AntiRegression) State() RetryState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Notify is called whenever the device's feedback changes (or on a
// polling tick). If the feedback now matches, the machine returns to
// Stable and cancels any pending retry. Otherwise, if it is Stable, it
// starts correcting.
func (a *AntiRegression) Notify() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Match != nil && a.Match() {
		a.stopTimerLocked()
		a.state = RetryStateStable
		a.attemptsLeft = 0
		return
	}
	if a.state == RetryStateStable {
		a.beginCorrectingLocked()
	}
}

func (a *AntiRegression) beginCorrectingLocked() {
	a.state = RetryStateCorrecting
	a.attemptsLeft = a.maxAttempts
	a.scheduleRetryLocked()
}

func (a *AntiRegression) scheduleRetryLocked() {
	a.stopTimerLocked()
	a.timer = time.AfterFunc(a.retryInterval, a.onTick)
}

func (a *AntiRegression) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AntiRegression) onTick() {
	a.mu.Lock()
	if a.Match != nil && a.Match() {
		a.state = RetryStateStable
		a.attemptsLeft = 0
		a.mu.Unlock()
		return
	}
	if a.attemptsLeft <= 0 {
		a.state = RetryStateEscalating
		action := a.action
		onEscalate := a.OnEscalate
		a.mu.Unlock()
		if onEscalate != nil {
			onEscalate(action)
		}
		return
	}
	a.attemptsLeft--
	cmd := a.Command
	a.scheduleRetryLocked()
	a.mu.Unlock()
	if cmd != nil {
		cmd()
	}
}

// Stop cancels any pending retry timer, e.g. when the device is removed
// from the world.
func (a *AntiRegression) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
}
