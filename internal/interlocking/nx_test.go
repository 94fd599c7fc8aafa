package interlocking

import (
	"testing"

	"github.com/trainmaster/server/internal/board"
)

func buildNXLayout(t *testing.T) (*board.Board, *board.Block, *board.Block, *board.NXButton, *board.NXButton) {
	t.Helper()
	b := board.NewBoard()
	approach := b.AddBlock("approach")
	dest := b.AddBlock("dest")
	entry := b.AddNXButton()
	exit := b.AddNXButton()

	if _, err := b.Connect(board.Endpoint{Node: approach.Node, Slot: int(board.BlockSideB)}, board.Endpoint{Node: dest.Node, Slot: int(board.BlockSideA)}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	paths, err := board.FindBlockPaths(b, approach, board.BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected one path, got %d", len(paths))
	}
	paths[0].NXButtonFrom = entry
	paths[0].NXButtonTo = exit
	approach.AddPath(paths[0])

	return b, approach, dest, entry, exit
}

func TestNXManagerPressPairReservesRoute(t *testing.T) {
	_, approach, _, entry, exit := buildNXLayout(t)
	mgr := NewNXManager()
	train := &board.Train{ID: "loco-1"}

	path, err := mgr.Press(entry, approach, train)
	if err != nil {
		t.Fatalf("press entry: %v", err)
	}
	if path != nil {
		t.Fatalf("expected the first press to only arm the button, got an immediate reservation")
	}

	path, err = mgr.Press(exit, nil, train)
	if err != nil {
		t.Fatalf("press exit: %v", err)
	}
	if path == nil {
		t.Fatalf("expected the second press to complete the pair and reserve a path")
	}
	if approach.State() != board.BlockStateReserved {
		t.Fatalf("expected approach block reserved, got %s", approach.State())
	}
}

func TestNXManagerPressingSameButtonTwiceDisarms(t *testing.T) {
	_, approach, _, entry, _ := buildNXLayout(t)
	mgr := NewNXManager()
	train := &board.Train{ID: "loco-1"}

	if _, err := mgr.Press(entry, approach, train); err != nil {
		t.Fatalf("press entry: %v", err)
	}
	path, err := mgr.Press(entry, approach, train)
	if err != nil {
		t.Fatalf("press entry again: %v", err)
	}
	if path != nil {
		t.Fatalf("expected pressing the armed button again to disarm rather than reserve")
	}
}

func TestNXManagerClearReleasesReservation(t *testing.T) {
	_, approach, _, entry, exit := buildNXLayout(t)
	mgr := NewNXManager()
	train := &board.Train{ID: "loco-1"}

	if _, err := mgr.Press(entry, approach, train); err != nil {
		t.Fatalf("press entry: %v", err)
	}
	if _, err := mgr.Press(exit, nil, train); err != nil {
		t.Fatalf("press exit: %v", err)
	}

	mgr.Clear(exit)
	if approach.State() != board.BlockStateFree {
		t.Fatalf("expected approach block released to Free, got %s", approach.State())
	}
}
