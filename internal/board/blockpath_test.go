package board

import "testing"

func TestFindBlockPathsToBufferStop(t *testing.T) {
	b := NewBoard()
	blk := b.AddBlock("A")
	stop := b.AddBufferStop()

	if _, err := b.Connect(Endpoint{Node: blk.Node, Slot: int(BlockSideB)}, Endpoint{Node: stop, Slot: 0}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	paths, err := FindBlockPaths(b, blk, BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected exactly one path terminating at the buffer stop, got %d", len(paths))
	}
	if paths[0].ToBlock != nil {
		t.Fatalf("expected ToBlock nil for a buffer-stop-terminated path, got %v", paths[0].ToBlock)
	}
	if paths[0].ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("expected a non-zero uuid to be assigned to the discovered path")
	}
}

func TestFindBlockPathsForksAtTurnout(t *testing.T) {
	b := NewBoard()
	approach := b.AddBlock("approach")
	straight := b.AddBlock("straight")
	diverging := b.AddBlock("diverging")
	turnout := b.AddTurnout(TileIDRailTurnoutLeft45)

	connect := func(a, bEnd Endpoint) {
		if _, err := b.Connect(a, bEnd); err != nil {
			t.Fatalf("connect %+v <-> %+v: %v", a, bEnd, err)
		}
	}
	connect(Endpoint{Node: approach.Node, Slot: int(BlockSideB)}, Endpoint{Node: turnout.Node, Slot: 0})
	connect(Endpoint{Node: turnout.Node, Slot: 1}, Endpoint{Node: straight.Node, Slot: int(BlockSideA)})
	connect(Endpoint{Node: turnout.Node, Slot: 2}, Endpoint{Node: diverging.Node, Slot: int(BlockSideA)})

	paths, err := FindBlockPaths(b, approach, BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected one path per turnout position, got %d", len(paths))
	}

	var toStraight, toDiverging bool
	for _, p := range paths {
		if len(p.Turnouts) != 1 {
			t.Fatalf("expected each path to record exactly one turnout requirement, got %d", len(p.Turnouts))
		}
		switch p.ToBlock {
		case straight:
			toStraight = p.Turnouts[0].Position == TurnoutPositionStraight
		case diverging:
			toDiverging = p.Turnouts[0].Position == TurnoutPositionLeft
		}
	}
	if !toStraight || !toDiverging {
		t.Fatalf("expected a Straight path to %q and a Left path to %q, got %+v", "straight", "diverging", paths)
	}
}

func TestFindBlockPathsAllowsOneWayEnteredFromSlotZero(t *testing.T) {
	b := NewBoard()
	approach := b.AddBlock("approach")
	far := b.AddBlock("far")
	ow := b.AddOneWay()

	connect := func(a, bEnd Endpoint) {
		if _, err := b.Connect(a, bEnd); err != nil {
			t.Fatalf("connect %+v <-> %+v: %v", a, bEnd, err)
		}
	}
	connect(Endpoint{Node: approach.Node, Slot: int(BlockSideB)}, Endpoint{Node: ow, Slot: 0})
	connect(Endpoint{Node: ow, Slot: 1}, Endpoint{Node: far.Node, Slot: int(BlockSideA)})

	paths, err := FindBlockPaths(b, approach, BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected a path entering the one-way tile from its '0' side to be emitted, got %d", len(paths))
	}
	if paths[0].ToBlock != far {
		t.Fatalf("expected the path to reach %q, got %v", "far", paths[0].ToBlock)
	}
	if len(paths[0].OneWays) != 1 || paths[0].OneWays[0].FromSlot != 0 || paths[0].OneWays[0].ToSlot != 1 {
		t.Fatalf("expected the one-way traversal to be recorded as FromSlot=0 ToSlot=1, got %+v", paths[0].OneWays)
	}
}

func TestFindBlockPathsDropsOneWayEnteredAgainstTheArrow(t *testing.T) {
	b := NewBoard()
	approach := b.AddBlock("approach")
	far := b.AddBlock("far")
	ow := b.AddOneWay()

	connect := func(a, bEnd Endpoint) {
		if _, err := b.Connect(a, bEnd); err != nil {
			t.Fatalf("connect %+v <-> %+v: %v", a, bEnd, err)
		}
	}
	// approach connects to the one-way tile's slot 1 (the arrow's far
	// side), so traversal from approach enters against the arrow.
	connect(Endpoint{Node: approach.Node, Slot: int(BlockSideB)}, Endpoint{Node: ow, Slot: 1})
	connect(Endpoint{Node: ow, Slot: 0}, Endpoint{Node: far.Node, Slot: int(BlockSideA)})

	paths, err := FindBlockPaths(b, approach, BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected a path entering the one-way tile against its arrow to be dropped, got %d", len(paths))
	}
}

func TestFindBlockPathsNothingConnected(t *testing.T) {
	b := NewBoard()
	blk := b.AddBlock("isolated")

	paths, err := FindBlockPaths(b, blk, BlockSideB)
	if err != nil {
		t.Fatalf("FindBlockPaths: %v", err)
	}
	if paths != nil {
		t.Fatalf("expected no paths from an unconnected side, got %v", paths)
	}
}
