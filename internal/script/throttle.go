package script

import (
	"fmt"
	"sync"

	"github.com/trainmaster/server/internal/board"
)

// Throttle is a scriptable handle onto one Train: scripts drive trains
// through this narrow surface (speed step, direction, emergency stop)
// instead of touching board.Train or the kernel layer directly, keeping
// the sandbox's reach bounded the same way World does for devices.
type Throttle struct {
	mu        sync.Mutex
	Train     *board.Train
	speedStep int
	maxStep   int
	forward   bool
	estopped  bool

	onChange []func()
}

// NewThrottle constructs a Throttle over train with the given number of
// speed steps (e.g. 28 or 128 depending on the command format in use).
func NewThrottle(train *board.Train, maxStep int) *Throttle {
	if maxStep <= 0 {
		maxStep = 28
	}
	return &Throttle{Train: train, maxStep: maxStep, forward: true}
}

// SetSpeedStep sets the throttle's speed step, clamped to [0, maxStep].
// It is rejected (without effect) while emergency-stopped.
func (t *Throttle) SetSpeedStep(step int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.estopped {
		return fmt.Errorf("script: throttle for %q is emergency stopped", t.Train.Name)
	}
	if step < 0 {
		step = 0
	}
	if step > t.maxStep {
		step = t.maxStep
	}
	t.speedStep = step
	t.notifyLocked()
	return nil
}

func (t *Throttle) SpeedStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speedStep
}

// SetDirection sets the throttle's travel direction. Like SetSpeedStep,
// rejected while emergency-stopped.
func (t *Throttle) SetDirection(forward bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.estopped {
		return fmt.Errorf("script: throttle for %q is emergency stopped", t.Train.Name)
	}
	t.forward = forward
	t.notifyLocked()
	return nil
}

func (t *Throttle) Forward() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.forward
}

// EmergencyStop immediately zeroes the speed step and latches the
// throttle so further speed/direction changes are rejected until
// Release.
func (t *Throttle) EmergencyStop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speedStep = 0
	t.estopped = true
	t.notifyLocked()
}

// Release clears a previous EmergencyStop latch.
func (t *Throttle) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.estopped = false
	t.notifyLocked()
}

// OnChange registers a callback fired whenever speed, direction or the
// emergency-stop latch changes.
func (t *Throttle) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

func (t *Throttle) notifyLocked() {
	for _, fn := range t.onChange {
		fn()
	}
}
