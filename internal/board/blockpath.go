package board

import (
	"fmt"

	"github.com/google/uuid"
)

// TurnoutRequirement is the turnout position a BlockPath needs to pass
// through one particular turnout.
type TurnoutRequirement struct {
	Turnout  *Turnout
	Position TurnoutPosition
}

// DirectionControlRequirement is the travel direction a BlockPath needs
// a direction-control tile to permit.
type DirectionControlRequirement struct {
	DirectionControl *DirectionControl
	State            DirectionControlState
}

// BridgeRequirement is the through-route index of a bridge a BlockPath
// passes over.
type BridgeRequirement struct {
	Bridge *Bridge
	Path   int
}

// CrossRequirement is the through-route index of a crossing a BlockPath
// passes through.
type CrossRequirement struct {
	Cross *Cross
	Path  int
}

// OneWayDirection records which slot-to-slot direction a OneWay tile
// permits.
type OneWayDirection struct {
	FromSlot int
	ToSlot   int
}

// BlockPath is one discovered, linear route between two blocks (or a
// block and a buffer stop), together with every device that must be
// reserved in a particular sub-state for a train to safely traverse it.
// BlockPaths are produced once at board-build time by FindBlockPaths and
// then repeatedly reserved/released at runtime by internal/interlocking.
type BlockPath struct {
	// ID uniquely identifies one discovered route, stable for the life
	// of the board, so the NX manager and interlocking log lines can
	// name a path without printing its full tile-by-tile contents.
	ID uuid.UUID

	FromBlock *Block
	FromSide  BlockSide
	ToBlock   *Block // nil if the path ends at a buffer stop
	ToSide    BlockSide

	Turnouts          []TurnoutRequirement
	DirectionControls []DirectionControlRequirement
	Bridges           []BridgeRequirement
	Crosses           []CrossRequirement
	Signals           []*Signal
	Decouplers        []*Decoupler
	OneWays           []OneWayDirection

	// NXButtonFrom/NXButtonTo are set by layout code (not by discovery)
	// when this path is also reachable by pressing an entry button at
	// FromBlock followed by an exit button at ToBlock.
	NXButtonFrom *NXButton
	NXButtonTo   *NXButton

	reservedByTrain *Train
}

const maxBlockPathHops = 4096

// FindBlockPaths performs a bounded depth-first search (a recursive walk,
// not a breadth-first queue, so results come back in depth-first order)
// for every BlockPath leaving `from` on `side`, forking once per legal turnout
// position at each turnout encountered, following the original
// BlockPath::find traversal-rule table: turnouts fork, one-way and
// direction-control tiles impose a travel-direction constraint, bridges
// and crosses record a through-route index, blocks and buffer stops
// terminate the search.
func FindBlockPaths(b *Board, from *Block, side BlockSide) ([]*BlockPath, error) {
	start := Endpoint{Node: from.Node, Slot: int(side)}
	next, ok := b.Graph.OtherEnd(start)
	if !ok {
		return nil, nil // nothing connected on this side
	}

	var results []*BlockPath
	seed := &BlockPath{FromBlock: from, FromSide: side}
	if err := walkBlockPath(b, seed, next, map[NodeID]TurnoutPosition{}, 0, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func cloneBlockPath(p *BlockPath) *BlockPath {
	cp := *p
	cp.Turnouts = append([]TurnoutRequirement(nil), p.Turnouts...)
	cp.DirectionControls = append([]DirectionControlRequirement(nil), p.DirectionControls...)
	cp.Bridges = append([]BridgeRequirement(nil), p.Bridges...)
	cp.Crosses = append([]CrossRequirement(nil), p.Crosses...)
	cp.Signals = append([]*Signal(nil), p.Signals...)
	cp.Decouplers = append([]*Decoupler(nil), p.Decouplers...)
	cp.OneWays = append([]OneWayDirection(nil), p.OneWays...)
	return &cp
}

func walkBlockPath(b *Board, p *BlockPath, at Endpoint, turnoutPositions map[NodeID]TurnoutPosition, hops int, results *[]*BlockPath) error {
	if hops > maxBlockPathHops {
		return fmt.Errorf("board: block path search exceeded %d hops, suspected loop near %s", maxBlockPathHops, at.Node)
	}

	if block, ok := b.Block(at.Node); ok {
		cp := cloneBlockPath(p)
		cp.ID = uuid.New()
		cp.ToBlock = block
		cp.ToSide = BlockSide(at.Slot)
		*results = append(*results, cp)
		return nil
	}

	if t, ok := b.Turnout(at.Node); ok {
		exits := t.EntryExits[at.Slot]
		for _, exit := range exits {
			if prior, ok := turnoutPositions[at.Node]; ok && prior != exit.Position {
				continue // this path already needs a different position of the same turnout
			}
			np := cloneBlockPath(p)
			np.Turnouts = append(np.Turnouts, TurnoutRequirement{Turnout: t, Position: exit.Position})
			tp := copyTurnoutPositions(turnoutPositions)
			tp[at.Node] = exit.Position
			nextEp, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: exit.ToSlot})
			if !ok {
				continue
			}
			if err := walkBlockPath(b, np, nextEp, tp, hops+1, results); err != nil {
				return err
			}
		}
		return nil
	}

	if dc, ok := b.DirectionControl(at.Node); ok {
		state := DirectionControlStateAtoB
		otherSlot := 1 - at.Slot
		if at.Slot == 1 {
			state = DirectionControlStateBtoA
		}
		np := cloneBlockPath(p)
		np.DirectionControls = append(np.DirectionControls, DirectionControlRequirement{DirectionControl: dc, State: state})
		nextEp, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: otherSlot})
		if !ok {
			return nil
		}
		return walkBlockPath(b, np, nextEp, turnoutPositions, hops+1, results)
	}

	if br, ok := b.Bridge(at.Node); ok {
		path, otherSlot, ok := bridgeOrCrossRoute(at.Slot)
		if !ok {
			return nil
		}
		np := cloneBlockPath(p)
		np.Bridges = append(np.Bridges, BridgeRequirement{Bridge: br, Path: path})
		nextEp, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: otherSlot})
		if !ok {
			return nil
		}
		return walkBlockPath(b, np, nextEp, turnoutPositions, hops+1, results)
	}

	if cr, ok := b.Cross(at.Node); ok {
		path, otherSlot, ok := bridgeOrCrossRoute(at.Slot)
		if !ok {
			return nil
		}
		np := cloneBlockPath(p)
		np.Crosses = append(np.Crosses, CrossRequirement{Cross: cr, Path: path})
		nextEp, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: otherSlot})
		if !ok {
			return nil
		}
		return walkBlockPath(b, np, nextEp, turnoutPositions, hops+1, results)
	}

	if d, ok := b.Decoupler(at.Node); ok {
		np := cloneBlockPath(p)
		np.Decouplers = append(np.Decouplers, d)
		nextEp, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: 1 - at.Slot})
		if !ok {
			return nil
		}
		return walkBlockPath(b, np, nextEp, turnoutPositions, hops+1, results)
	}

	if sig, ok := b.Signal(at.Node); ok {
		np := cloneBlockPath(p)
		np.Signals = append(np.Signals, sig)
		nextEp, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: 1 - at.Slot})
		if !ok {
			return nil
		}
		return walkBlockPath(b, np, nextEp, turnoutPositions, hops+1, results)
	}

	// Plain passthrough tile (straight, curve, link): a node with exactly
	// 2 slots just continues. A one-way tile is the same shape but only
	// lets a path through when entered via its '0' side; entering via
	// slot 1 runs against the arrow, so the path is dropped here rather
	// than emitted.
	if node, ok := b.Graph.Node(at.Node); ok && node.SlotCount() == 2 {
		if node.TileID() == TileIDRailOneWay && at.Slot != 0 {
			return nil
		}
		np := p
		if node.TileID() == TileIDRailOneWay {
			np = cloneBlockPath(p)
			np.OneWays = append(np.OneWays, OneWayDirection{FromSlot: at.Slot, ToSlot: 1 - at.Slot})
		}
		otherSlot := 1 - at.Slot
		nextEp, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: otherSlot})
		if !ok {
			return nil // buffer stop or open end
		}
		return walkBlockPath(b, np, nextEp, turnoutPositions, hops+1, results)
	}

	// 1-slot node with no registered device: buffer stop. The path ends
	// here with no ToBlock, rather than being discarded, so a route that
	// runs into a buffer stop is still reservable.
	if node, ok := b.Graph.Node(at.Node); ok && node.SlotCount() == 1 {
		cp := cloneBlockPath(p)
		cp.ID = uuid.New()
		cp.ToBlock = nil
		cp.ToSide = BlockSide(at.Slot)
		*results = append(*results, cp)
		return nil
	}

	return nil
}

// bridgeOrCrossRoute maps an entry slot of a 4-slot bridge/cross node to
// its through-route index and the slot on the opposite side of that
// route, per the layout fixed by Board.AddBridge/AddCross (route 0:
// slot0<->slot2, route 1: slot1<->slot3).
func bridgeOrCrossRoute(slot int) (path int, otherSlot int, ok bool) {
	switch slot {
	case 0:
		return 0, 2, true
	case 2:
		return 0, 0, true
	case 1:
		return 1, 3, true
	case 3:
		return 1, 1, true
	default:
		return 0, 0, false
	}
}

func copyTurnoutPositions(m map[NodeID]TurnoutPosition) map[NodeID]TurnoutPosition {
	cp := make(map[NodeID]TurnoutPosition, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
