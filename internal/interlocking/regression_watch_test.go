package interlocking

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/trainmaster/server/internal/board"
)

func TestParseExtOutputChangeAction(t *testing.T) {
	cases := map[string]ExtOutputChangeAction{
		"do_nothing":           ExtOutputChangeActionDoNothing,
		"emergency_stop_train": ExtOutputChangeActionEmergencyStopTrain,
		"emergency_stop_world": ExtOutputChangeActionEmergencyStopWorld,
		"power_off_world":      ExtOutputChangeActionPowerOffWorld,
		"nonsense":             ExtOutputChangeActionDoNothing,
	}
	for s, want := range cases {
		if got := ParseExtOutputChangeAction(s); got != want {
			t.Fatalf("ParseExtOutputChangeAction(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestRegressionGuardRecommitsTurnoutOnExternalChange(t *testing.T) {
	_, path := buildTestPath(t)
	train := &board.Train{ID: "loco-1"}
	if err := Reserve(path, train); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer Release(path)

	guard := &RegressionGuard{
		Log:                        zap.NewNop(),
		CorrectOutputPosWhenLocked: true,
		Action:                     ExtOutputChangeActionDoNothing,
	}
	guard.Watch(path)
	defer guard.Unwatch(path)

	want := path.Turnouts[0].Position
	other := board.TurnoutPositionStraight
	if want == other {
		other = board.TurnoutPositionLeft
	}

	path.Turnouts[0].Turnout.ReportExternalChange(other)

	watchers := guard.watchers[path]
	if len(watchers) == 0 {
		t.Fatalf("expected a watcher to have been registered for the reserved turnout")
	}
	if watchers[0].ar.State() != RetryStateCorrecting {
		t.Fatalf("expected the anti-regression loop to enter Correcting on a mismatched report, got %s", watchers[0].ar.State())
	}

	path.Turnouts[0].Turnout.ReportExternalChange(want)
	if watchers[0].ar.State() != RetryStateStable {
		t.Fatalf("expected Stable once the reported position matches again, got %s", watchers[0].ar.State())
	}
}

func TestRegressionGuardEscalatesImmediatelyWhenCorrectionDisabled(t *testing.T) {
	_, path := buildTestPath(t)
	train := &board.Train{ID: "loco-1"}
	if err := Reserve(path, train); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer Release(path)

	escalated := make(chan ExtOutputChangeAction, 1)
	guard := &RegressionGuard{
		Log:                        zap.NewNop(),
		CorrectOutputPosWhenLocked: false,
		Action:                     ExtOutputChangeActionEmergencyStopTrain,
		Escalate: &Escalator{
			EmergencyStopTrain: func(tr *board.Train) {
				select {
				case escalated <- ExtOutputChangeActionEmergencyStopTrain:
				default:
				}
			},
		},
	}
	guard.Watch(path)
	defer guard.Unwatch(path)

	want := path.Turnouts[0].Position
	other := board.TurnoutPositionStraight
	if want == other {
		other = board.TurnoutPositionLeft
	}
	path.Turnouts[0].Turnout.ReportExternalChange(other)

	select {
	case a := <-escalated:
		if a != ExtOutputChangeActionEmergencyStopTrain {
			t.Fatalf("expected EmergencyStopTrain escalation, got %v", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for immediate escalation")
	}
}

func TestRegressionGuardIgnoresUnreservedTurnout(t *testing.T) {
	b := board.NewBoard()
	turnout := b.AddTurnout(board.TileIDRailTurnoutLeft45)

	guard := &RegressionGuard{Log: zap.NewNop()}
	path := &board.BlockPath{
		FromBlock: b.AddBlock("a"),
		Turnouts:  []board.TurnoutRequirement{{Turnout: turnout, Position: board.TurnoutPositionStraight}},
	}
	guard.Watch(path)
	defer guard.Unwatch(path)

	turnout.ReportExternalChange(board.TurnoutPositionLeft)
	time.Sleep(5 * time.Millisecond)
}
