// Package interlocking reserves BlockPaths across the devices they
// traverse, reserving device by device with rollback (there is no
// separate dry-run pass): a path is reserved only if every device it
// touches accepts the reservation, and a rejection by any device unwinds
// whatever was already reserved for that attempt.
package interlocking

import (
	"fmt"

	"github.com/trainmaster/server/internal/board"
)

// Reserve attempts to reserve every device path traverses for train,
// including path.FromBlock and path.ToBlock themselves. It is atomic:
// if any device rejects the reservation, every device reserved so far in
// this call is released before returning the error.
//
// This implements resolution (a) of the turnout double-reservation
// question the original left open: a second path that needs a turnout or
// direction control that is already reserved is rejected outright, even
// when it wants the same sub-state.
func Reserve(path *board.BlockPath, train *board.Train) error {
	var reservedTurnouts []board.TurnoutRequirement
	var reservedDCs []board.DirectionControlRequirement
	var reservedBridges []board.BridgeRequirement
	var reservedCrosses []board.CrossRequirement
	blockReserved := false

	rollback := func() {
		for _, r := range reservedTurnouts {
			r.Turnout.Release(r.Position)
		}
		for _, r := range reservedDCs {
			r.DirectionControl.Release(r.State)
		}
		for _, r := range reservedBridges {
			r.Bridge.Release(r.Path)
		}
		for _, r := range reservedCrosses {
			r.Cross.Release(r.Path)
		}
		if blockReserved {
			path.FromBlock.Release()
		}
	}

	if !path.FromBlock.Reserve(train) {
		return fmt.Errorf("interlocking: block %q already reserved by another train", path.FromBlock.Name)
	}
	blockReserved = true

	for _, r := range path.Turnouts {
		if err := r.Turnout.Reserve(r.Position); err != nil {
			rollback()
			return fmt.Errorf("interlocking: %w", err)
		}
		reservedTurnouts = append(reservedTurnouts, r)
	}
	for _, r := range path.DirectionControls {
		if err := r.DirectionControl.Reserve(r.State); err != nil {
			rollback()
			return fmt.Errorf("interlocking: %w", err)
		}
		reservedDCs = append(reservedDCs, r)
	}
	for _, r := range path.Bridges {
		if err := r.Bridge.Reserve(r.Path); err != nil {
			rollback()
			return fmt.Errorf("interlocking: %w", err)
		}
		reservedBridges = append(reservedBridges, r)
	}
	for _, r := range path.Crosses {
		if err := r.Cross.Reserve(r.Path); err != nil {
			rollback()
			return fmt.Errorf("interlocking: %w", err)
		}
		reservedCrosses = append(reservedCrosses, r)
	}

	if path.ToBlock != nil {
		if !path.ToBlock.Reserve(train) {
			rollback()
			return fmt.Errorf("interlocking: block %q already reserved by another train", path.ToBlock.Name)
		}
	}

	path.FromBlock.SetReservedPath(path)
	if path.ToBlock != nil {
		path.ToBlock.SetReservedPath(path)
	}
	for _, sig := range path.Signals {
		sig.SetReservedPath(path)
	}

	return nil
}

// Release gives up every device reservation path holds. There are no
// reservation counters: a turnout or direction control is freed only if
// it is reserved in the sub-state this path records, bridge and cross
// route bits are cleared, and FromBlock/ToBlock are released
// unconditionally, whichever path or train reserved them.
func Release(path *board.BlockPath) {
	path.FromBlock.Release()
	if path.ToBlock != nil {
		path.ToBlock.Release()
	}
	for _, r := range path.Turnouts {
		r.Turnout.Release(r.Position)
	}
	for _, r := range path.DirectionControls {
		r.DirectionControl.Release(r.State)
	}
	for _, r := range path.Bridges {
		r.Bridge.Release(r.Path)
	}
	for _, r := range path.Crosses {
		r.Cross.Release(r.Path)
	}
	for _, sig := range path.Signals {
		// Only clear a signal's reservation if it still points at this
		// exact path: a signal shared by an overlapping path that was
		// reserved more recently must not lose its own notification here.
		if sig.ReservedPath() == path {
			sig.SetReservedPath(nil)
		}
	}
}
