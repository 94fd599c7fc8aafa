package interlocking

import (
	"sync"

	"go.uber.org/zap"

	"github.com/trainmaster/server/internal/board"
)

// ParseExtOutputChangeAction converts the config file's
// ext_output_change_action string into the enum AntiRegression escalates
// with. An unrecognized value behaves as DoNothing (config.Validate does
// not check this key).
func ParseExtOutputChangeAction(s string) ExtOutputChangeAction {
	switch s {
	case "emergency_stop_train":
		return ExtOutputChangeActionEmergencyStopTrain
	case "emergency_stop_world":
		return ExtOutputChangeActionEmergencyStopWorld
	case "power_off_world":
		return ExtOutputChangeActionPowerOffWorld
	default:
		return ExtOutputChangeActionDoNothing
	}
}

// Escalator carries the world-level actions an exhausted AntiRegression
// takes, per extOutputChangeAction. Every field is optional; a nil field
// is a no-op escalation (still logged).
type Escalator struct {
	// EmergencyStopTrain is called once per distinct Train occupying the
	// reserved path's source or destination block.
	EmergencyStopTrain func(*board.Train)
	EmergencyStopWorld func()
	PowerOffWorld      func()
}

// run dispatches action, logging the specific escalation code taken
// (E3007-E3010) alongside the triggering device's own code. A nil
// Escalator still logs, it just performs no action.
func (e *Escalator) run(log *zap.Logger, device string, action ExtOutputChangeAction, trains []*board.Train) {
	switch action {
	case ExtOutputChangeActionEmergencyStopTrain:
		log.Error("escalating: emergency-stopping trains on the reserved path",
			zap.String("code", "E3008"), zap.String("device", device))
		if e == nil || e.EmergencyStopTrain == nil {
			return
		}
		seen := map[*board.Train]bool{}
		for _, tr := range trains {
			if tr == nil || seen[tr] {
				continue
			}
			seen[tr] = true
			e.EmergencyStopTrain(tr)
		}
	case ExtOutputChangeActionEmergencyStopWorld:
		log.Error("escalating: emergency-stopping the world", zap.String("code", "E3009"), zap.String("device", device))
		if e != nil && e.EmergencyStopWorld != nil {
			e.EmergencyStopWorld()
		}
	case ExtOutputChangeActionPowerOffWorld:
		log.Error("escalating: powering off the world", zap.String("code", "E3010"), zap.String("device", device))
		if e != nil && e.PowerOffWorld != nil {
			e.PowerOffWorld()
		}
	default:
		log.Warn("escalating: no action configured, leaving the device as-is",
			zap.String("code", "E3007"), zap.String("device", device))
	}
}

// deviceWatch is one locked device's running AntiRegression loop plus its
// external-change subscription.
type deviceWatch struct {
	ar    *AntiRegression
	unsub func()
}

func (w *deviceWatch) stop() {
	w.ar.Stop()
	w.unsub()
}

// RegressionGuard wires board devices' ObserveExternalChange hooks to an
// AntiRegression retry/escalate loop per §4.4: a turnout, direction
// control or signal that reports a position/aspect other than the one a
// reservation committed it to is retried up to AntiRegression's budget,
// then escalated via Escalate. One RegressionGuard typically lives for
// the life of the world and is shared across every BlockPath reservation.
type RegressionGuard struct {
	Log *zap.Logger

	// CorrectOutputPosWhenLocked gates the retry loop: when false, a
	// locked device's external change escalates immediately instead of
	// retrying, matching the config option of the same name.
	CorrectOutputPosWhenLocked bool
	Action                     ExtOutputChangeAction
	Escalate                   *Escalator

	// CommandTurnout/CommandDirectionControl/CommandSignal re-issue a
	// device's intended output to hardware (e.g. re-pulse a turnout
	// motor, re-send an aspect code). Each is optional.
	CommandTurnout          func(*board.Turnout, board.TurnoutPosition)
	CommandDirectionControl func(*board.DirectionControl, board.DirectionControlState)
	CommandSignal           func(*board.Signal, board.Aspect)

	mu       sync.Mutex
	watchers map[*board.BlockPath][]*deviceWatch
}

func (g *RegressionGuard) log() *zap.Logger {
	if g.Log == nil {
		return zap.NewNop()
	}
	return g.Log
}

func pathTrains(path *board.BlockPath) []*board.Train {
	var trains []*board.Train
	if tr := path.FromBlock.ReservedBy(); tr != nil {
		trains = append(trains, tr)
	}
	if path.ToBlock != nil {
		if tr := path.ToBlock.ReservedBy(); tr != nil {
			trains = append(trains, tr)
		}
	}
	return trains
}

// Watch starts one AntiRegression loop for every turnout, direction
// control and signal path reserves. Call once right after a successful
// Reserve(path, train).
func (g *RegressionGuard) Watch(path *board.BlockPath) {
	if g == nil {
		return
	}
	log := g.log()
	trains := pathTrains(path)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.watchers == nil {
		g.watchers = map[*board.BlockPath][]*deviceWatch{}
	}

	for _, req := range path.Turnouts {
		g.watchers[path] = append(g.watchers[path], g.watchTurnout(log, req, trains))
	}
	for _, req := range path.DirectionControls {
		g.watchers[path] = append(g.watchers[path], g.watchDirectionControl(log, req, trains))
	}
	for _, sig := range path.Signals {
		g.watchers[path] = append(g.watchers[path], g.watchSignal(log, sig, trains))
	}
}

// Unwatch stops every AntiRegression loop Watch started for path. Call
// once alongside Release(path).
func (g *RegressionGuard) Unwatch(path *board.BlockPath) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, w := range g.watchers[path] {
		w.stop()
	}
	delete(g.watchers, path)
}

func (g *RegressionGuard) watchTurnout(log *zap.Logger, req board.TurnoutRequirement, trains []*board.Train) *deviceWatch {
	turnout, want := req.Turnout, req.Position
	name := turnout.Node.String()
	var lastObserved board.TurnoutPosition
	haveObserved := false

	ar := NewAntiRegression(g.Action,
		func() {
			log.Info("re-issuing turnout command to correct external regression",
				zap.String("code", "N3003"), zap.String("turnout", name), zap.String("want", want.String()))
			if g.CommandTurnout != nil {
				g.CommandTurnout(turnout, want)
			}
		},
		func() bool { return !haveObserved || lastObserved == want },
		func(action ExtOutputChangeAction) {
			log.Error("turnout failed to recover from external state change, escalating",
				zap.String("code", "E3003"), zap.String("turnout", name))
			g.Escalate.run(log, "turnout "+name, action, trains)
		},
	)

	unsub := turnout.ObserveExternalChange(func(pos board.TurnoutPosition) {
		lastObserved = pos
		haveObserved = true
		if !turnout.Reserved() || pos == want {
			return
		}
		if ar.State() == RetryStateStable {
			log.Warn("locked turnout position changed externally",
				zap.String("code", "W3003"), zap.String("turnout", name),
				zap.String("observed", pos.String()), zap.String("want", want.String()))
		}
		if !g.CorrectOutputPosWhenLocked {
			ar.Stop()
			g.Escalate.run(log, "turnout "+name, g.Action, trains)
			return
		}
		ar.Notify()
	})

	return &deviceWatch{ar: ar, unsub: unsub}
}

func (g *RegressionGuard) watchDirectionControl(log *zap.Logger, req board.DirectionControlRequirement, trains []*board.Train) *deviceWatch {
	dc, want := req.DirectionControl, req.State
	name := dc.Node.String()
	var lastObserved board.DirectionControlState
	haveObserved := false

	ar := NewAntiRegression(g.Action,
		func() {
			log.Info("re-issuing direction control command to correct external regression",
				zap.String("code", "N3003"), zap.String("direction_control", name), zap.String("want", want.String()))
			if g.CommandDirectionControl != nil {
				g.CommandDirectionControl(dc, want)
			}
		},
		func() bool { return !haveObserved || lastObserved == want },
		func(action ExtOutputChangeAction) {
			log.Error("direction control failed to recover from external state change, escalating",
				zap.String("code", "E3003"), zap.String("direction_control", name))
			g.Escalate.run(log, "direction control "+name, action, trains)
		},
	)

	unsub := dc.ObserveExternalChange(func(state board.DirectionControlState) {
		lastObserved = state
		haveObserved = true
		if !dc.Reserved() || state == want {
			return
		}
		if ar.State() == RetryStateStable {
			log.Warn("locked direction control state changed externally",
				zap.String("code", "W3003"), zap.String("direction_control", name),
				zap.String("observed", state.String()), zap.String("want", want.String()))
		}
		if !g.CorrectOutputPosWhenLocked {
			ar.Stop()
			g.Escalate.run(log, "direction control "+name, g.Action, trains)
			return
		}
		ar.Notify()
	})

	return &deviceWatch{ar: ar, unsub: unsub}
}

func (g *RegressionGuard) watchSignal(log *zap.Logger, sig *board.Signal, trains []*board.Train) *deviceWatch {
	name := sig.Node.String()
	var lastObserved board.Aspect
	haveObserved := false

	ar := NewAntiRegression(g.Action,
		func() {
			want := sig.Aspect()
			log.Info("re-issuing signal aspect command to correct external regression",
				zap.String("code", "N3004"), zap.String("signal", name))
			if g.CommandSignal != nil {
				g.CommandSignal(sig, want)
			}
		},
		func() bool { return !haveObserved || lastObserved == sig.Aspect() },
		func(action ExtOutputChangeAction) {
			log.Error("signal failed to recover from external state change, escalating",
				zap.String("code", "E3004"), zap.String("signal", name))
			g.Escalate.run(log, "signal "+name, action, trains)
		},
	)

	unsub := sig.ObserveExternalChange(func(a board.Aspect) {
		lastObserved = a
		haveObserved = true
		if !sig.HasReservedPath() || a == sig.Aspect() {
			return
		}
		if ar.State() == RetryStateStable {
			log.Warn("locked signal aspect changed externally",
				zap.String("code", "W3004"), zap.String("signal", name))
		}
		if !g.CorrectOutputPosWhenLocked {
			ar.Stop()
			g.Escalate.run(log, "signal "+name, g.Action, trains)
			return
		}
		ar.Notify()
	})

	return &deviceWatch{ar: ar, unsub: unsub}
}
