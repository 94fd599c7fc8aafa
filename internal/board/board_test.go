package board

import "testing"

func TestBoardSignalPathIsCached(t *testing.T) {
	b := NewBoard()
	sig := b.AddSignal(SignalKindTwoAspect)
	blk := b.AddBlock("ahead")
	if _, err := b.Connect(Endpoint{Node: sig.Node, Slot: 1}, Endpoint{Node: blk.Node, Slot: int(BlockSideA)}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	first := b.SignalPath(sig, 2)
	second := b.SignalPath(sig, 2)
	if first != second {
		t.Fatalf("expected repeated SignalPath calls for the same (signal, blocksAhead) to return the cached tree")
	}

	// A different blocksAhead is a different cache entry.
	third := b.SignalPath(sig, 3)
	if third == first {
		t.Fatalf("expected a different blocksAhead to build a distinct path")
	}
}

func TestBoardInvalidateSignalPathForcesRebuild(t *testing.T) {
	b := NewBoard()
	sig := b.AddSignal(SignalKindTwoAspect)

	first := b.SignalPath(sig, 1)
	b.InvalidateSignalPath(sig, 1)
	second := b.SignalPath(sig, 1)

	if first == second {
		t.Fatalf("expected InvalidateSignalPath to force a fresh tree on the next call")
	}
}
