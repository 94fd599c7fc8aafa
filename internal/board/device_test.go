package board

import "testing"

func TestTurnoutReserveRejectsSecondReservationEvenForSamePosition(t *testing.T) {
	turnout := NewTurnout(NodeID{})
	if err := turnout.Reserve(TurnoutPositionStraight); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := turnout.Reserve(TurnoutPositionStraight); err == nil {
		t.Fatalf("expected a second reservation for the same position to be rejected, not shared")
	}
	if err := turnout.Reserve(TurnoutPositionLeft); err == nil {
		t.Fatalf("expected reserving a conflicting position to fail while Straight is held")
	}

	turnout.Release(TurnoutPositionStraight)
	if turnout.Reserved() {
		t.Fatalf("expected turnout to be free once its sole reservation is released")
	}
	if err := turnout.Reserve(TurnoutPositionLeft); err != nil {
		t.Fatalf("expected reserving a new position once free to succeed, got %v", err)
	}
}

func TestTurnoutForceCommandBypassesReservation(t *testing.T) {
	turnout := NewTurnout(NodeID{})
	if err := turnout.ForceCommand(TurnoutPositionLeft); err != nil {
		t.Fatalf("force command on a free turnout: %v", err)
	}
	if turnout.Position() != TurnoutPositionLeft {
		t.Fatalf("expected position Left, got %s", turnout.Position())
	}
	if turnout.Reserved() {
		t.Fatalf("expected ForceCommand not to create a reservation")
	}
}

func TestTurnoutForceCommandRejectsWhileReservedDifferently(t *testing.T) {
	turnout := NewTurnout(NodeID{})
	if err := turnout.Reserve(TurnoutPositionStraight); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := turnout.ForceCommand(TurnoutPositionLeft); err == nil {
		t.Fatalf("expected ForceCommand to refuse to move a turnout held for a different position")
	}
	if err := turnout.ForceCommand(TurnoutPositionStraight); err != nil {
		t.Fatalf("expected ForceCommand matching the held position to succeed, got %v", err)
	}
}

func TestTurnoutBuildTopologyLeft(t *testing.T) {
	turnout := NewTurnout(NodeID{})
	turnout.BuildTopology(TileIDRailTurnoutLeft45)

	exits := turnout.EntryExits[0]
	if len(exits) != 2 {
		t.Fatalf("expected 2 exits from the trunk slot, got %d", len(exits))
	}
	var sawStraight, sawLeft bool
	for _, e := range exits {
		switch {
		case e.ToSlot == 1 && e.Position == TurnoutPositionStraight:
			sawStraight = true
		case e.ToSlot == 2 && e.Position == TurnoutPositionLeft:
			sawLeft = true
		}
	}
	if !sawStraight || !sawLeft {
		t.Fatalf("expected trunk slot to reach slot 1 via Straight and slot 2 via Left, got %+v", exits)
	}
}

func TestDirectionControlReserveRejectsSecondReservation(t *testing.T) {
	dc := NewDirectionControl(NodeID{})
	if err := dc.Reserve(DirectionControlStateAtoB); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := dc.Reserve(DirectionControlStateAtoB); err == nil {
		t.Fatalf("expected a second reservation for the same direction to be rejected, not shared")
	}
	if err := dc.Reserve(DirectionControlStateBtoA); err == nil {
		t.Fatalf("expected reserving a conflicting direction to fail while AtoB is held")
	}

	dc.Release(DirectionControlStateAtoB)
	if dc.Reserved() {
		t.Fatalf("expected direction control to be free once its sole reservation is released")
	}
	if err := dc.Reserve(DirectionControlStateBtoA); err != nil {
		t.Fatalf("expected reserving a new direction once free to succeed, got %v", err)
	}
}

func TestBridgeReservationIsPerPathBitmask(t *testing.T) {
	br := NewBridge(NodeID{})
	if err := br.Reserve(0); err != nil {
		t.Fatalf("reserve path 0: %v", err)
	}
	if err := br.Reserve(1); err != nil {
		t.Fatalf("reserve path 1: %v", err)
	}
	if br.ReservedPaths() != 0b11 {
		t.Fatalf("expected mask 0b11, got %b", br.ReservedPaths())
	}
	br.Release(0)
	if br.ReservedPaths() != 0b10 {
		t.Fatalf("expected mask 0b10 after releasing path 0, got %b", br.ReservedPaths())
	}
}
