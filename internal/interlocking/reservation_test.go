package interlocking

import (
	"testing"

	"github.com/trainmaster/server/internal/board"
)

func buildTestPath(t *testing.T) (*board.Board, *board.BlockPath) {
	t.Helper()
	b := board.NewBoard()
	approach := b.AddBlock("approach")
	dest := b.AddBlock("dest")
	turnout := b.AddTurnout(board.TileIDRailTurnoutLeft45)

	connect := func(a, bEnd board.Endpoint) {
		if _, err := b.Connect(a, bEnd); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	connect(board.Endpoint{Node: approach.Node, Slot: int(board.BlockSideB)}, board.Endpoint{Node: turnout.Node, Slot: 0})
	connect(board.Endpoint{Node: turnout.Node, Slot: 1}, board.Endpoint{Node: dest.Node, Slot: int(board.BlockSideA)})

	paths, err := board.FindBlockPaths(b, approach, board.BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected exactly one path, got %d", len(paths))
	}
	return b, paths[0]
}

func TestReserveThenRelease(t *testing.T) {
	_, path := buildTestPath(t)
	train := &board.Train{ID: "loco-1"}

	if err := Reserve(path, train); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if path.FromBlock.State() != board.BlockStateReserved {
		t.Fatalf("expected FromBlock Reserved, got %s", path.FromBlock.State())
	}
	if path.Turnouts[0].Turnout.Position() != path.Turnouts[0].Position {
		t.Fatalf("expected turnout committed to the path's required position")
	}

	Release(path)
	if path.FromBlock.State() != board.BlockStateFree {
		t.Fatalf("expected FromBlock Free after release, got %s", path.FromBlock.State())
	}
	if path.Turnouts[0].Turnout.Reserved() {
		t.Fatalf("expected turnout reservation released")
	}
}

func TestReserveNotifiesSignalsAlongPath(t *testing.T) {
	b := board.NewBoard()
	approach := b.AddBlock("approach")
	dest := b.AddBlock("dest")
	sig := b.AddSignal(board.SignalKindThreeAspect)

	connect := func(a, bEnd board.Endpoint) {
		if _, err := b.Connect(a, bEnd); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	connect(board.Endpoint{Node: approach.Node, Slot: int(board.BlockSideB)}, board.Endpoint{Node: sig.Node, Slot: 0})
	connect(board.Endpoint{Node: sig.Node, Slot: 1}, board.Endpoint{Node: dest.Node, Slot: int(board.BlockSideA)})

	paths, err := board.FindBlockPaths(b, approach, board.BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if len(paths) != 1 || len(paths[0].Signals) != 1 {
		t.Fatalf("expected one path carrying the one signal it passes, got %+v", paths)
	}
	path := paths[0]

	if sig.HasReservedPath() {
		t.Fatalf("expected the signal to start with no reserved path")
	}

	train := &board.Train{ID: "loco-1"}
	if err := Reserve(path, train); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !sig.HasReservedPathTo(dest) {
		t.Fatalf("expected the signal to hold a reservation reaching %q after Reserve", dest.Name)
	}

	Release(path)
	if sig.HasReservedPath() {
		t.Fatalf("expected the signal's reservation to clear after Release")
	}
}

func TestReserveRollsBackOnConflict(t *testing.T) {
	_, path := buildTestPath(t)
	train := &board.Train{ID: "loco-1"}

	// Hold the turnout for a conflicting position directly, simulating
	// another path already committed through it.
	conflicting := board.TurnoutPositionRight
	if path.Turnouts[0].Position == conflicting {
		conflicting = board.TurnoutPositionStraight
	}
	if err := path.Turnouts[0].Turnout.Reserve(conflicting); err != nil {
		t.Fatalf("seed conflicting reservation: %v", err)
	}

	if err := Reserve(path, train); err == nil {
		t.Fatalf("expected Reserve to fail due to the conflicting turnout reservation")
	}
	if path.FromBlock.State() != board.BlockStateFree {
		t.Fatalf("expected FromBlock to be rolled back to Free, got %s", path.FromBlock.State())
	}
}
