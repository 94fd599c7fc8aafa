package board

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Board aggregates the Graph (Node/Link topology) with the devices
// attached to some of its nodes. BlockPath/SignalPath discovery and
// interlocking reservation both work against a Board rather than the
// bare Graph because they need to dispatch on tile kind: a turnout node
// forks the search, a block node terminates it, a signal node is
// recorded but passed through, and so on.
type Board struct {
	Graph *Graph

	blocks            map[NodeID]*Block
	signals           map[NodeID]*Signal
	turnouts          map[NodeID]*Turnout
	directionControls map[NodeID]*DirectionControl
	bridges           map[NodeID]*Bridge
	crosses           map[NodeID]*Cross
	decouplers        map[NodeID]*Decoupler
	nxButtons         map[NodeID]*NXButton

	signalPaths *lru.Cache[signalPathKey, *SignalPath]
}

type signalPathKey struct {
	signal      NodeID
	blocksAhead int
}

func NewBoard() *Board {
	cache, _ := lru.New[signalPathKey, *SignalPath](256)
	return &Board{
		Graph:             NewGraph(),
		blocks:            map[NodeID]*Block{},
		signals:           map[NodeID]*Signal{},
		turnouts:          map[NodeID]*Turnout{},
		directionControls: map[NodeID]*DirectionControl{},
		bridges:           map[NodeID]*Bridge{},
		crosses:           map[NodeID]*Cross{},
		decouplers:        map[NodeID]*Decoupler{},
		nxButtons:         map[NodeID]*NXButton{},
		signalPaths:       cache,
	}
}

// SignalPath returns the (possibly cached) SignalPath for sig bounded to
// blocksAhead blocks. Repeated calls for the same signal and depth reuse
// the same tree and its live subscriptions instead of rebuilding it and
// leaking duplicate Block/Signal subscriptions on every call; the cache
// is bounded since a layout with many signals should not grow it
// unboundedly as scripts or the interlocking layer query paths on
// demand. InvalidateSignalPath evicts an entry after a topology change.
func (b *Board) SignalPath(sig *Signal, blocksAhead int) *SignalPath {
	key := signalPathKey{signal: sig.Node, blocksAhead: blocksAhead}
	if sp, ok := b.signalPaths.Get(key); ok {
		return sp
	}
	sp := BuildSignalPath(b, sig, blocksAhead)
	b.signalPaths.Add(key, sp)
	return sp
}

// InvalidateSignalPath releases and evicts a signal's cached path,
// forcing the next SignalPath call to rebuild it. Layout code calls this
// after changing the topology around a signal (e.g. reconfiguring a
// turnout's EntryExits).
func (b *Board) InvalidateSignalPath(sig *Signal, blocksAhead int) {
	key := signalPathKey{signal: sig.Node, blocksAhead: blocksAhead}
	if sp, ok := b.signalPaths.Get(key); ok {
		sp.Release()
		b.signalPaths.Remove(key)
	}
}

// AddBlock allocates a 2-slot Node and registers a Block on it.
func (b *Board) AddBlock(name string) *Block {
	id := b.Graph.AddNode(TileIDRailBlock, 2)
	block := NewBlock(id, name)
	b.blocks[id] = block
	return block
}

// AddSignal allocates a 2-slot passthrough Node (a signal sits inline on
// a rail connection like a straight tile) and registers a Signal on it.
func (b *Board) AddSignal(kind SignalKind) *Signal {
	tile := TileIDRailSignal3Aspect
	if kind == SignalKindTwoAspect {
		tile = TileIDRailSignal2Aspect
	}
	id := b.Graph.AddNode(tile, 2)
	sig := NewSignal(id, kind)
	b.signals[id] = sig
	return sig
}

// AddTurnout allocates a Node with the slot count appropriate to kind
// and registers a Turnout with its topology built in.
func (b *Board) AddTurnout(kind TileID) *Turnout {
	slots := 3
	if kind == TileIDRailTurnout3Way || kind == TileIDRailTurnoutSingleSlip || kind == TileIDRailTurnoutDoubleSlip {
		slots = 4
	}
	id := b.Graph.AddNode(kind, slots)
	t := NewTurnout(id)
	t.BuildTopology(kind)
	b.turnouts[id] = t
	return t
}

// AddDirectionControl allocates a 2-slot Node and registers a
// DirectionControl on it.
func (b *Board) AddDirectionControl() *DirectionControl {
	id := b.Graph.AddNode(TileIDRailDirectionControl, 2)
	dc := NewDirectionControl(id)
	b.directionControls[id] = dc
	return dc
}

// AddBridge allocates a 4-slot Node (two independent through-routes) and
// registers a Bridge on it.
func (b *Board) AddBridge(kind TileID) *Bridge {
	id := b.Graph.AddNode(kind, 4)
	br := NewBridge(id)
	b.bridges[id] = br
	return br
}

// AddCross allocates a 4-slot Node and registers a Cross on it.
func (b *Board) AddCross(kind TileID) *Cross {
	id := b.Graph.AddNode(kind, 4)
	c := NewCross(id)
	b.crosses[id] = c
	return c
}

// AddOneWay allocates a 2-slot Node with no device state: the OneWay
// tile's behaviour (a path may only be planned through it entering via
// slot 0) is enforced directly by BlockPath discovery in walkBlockPath.
func (b *Board) AddOneWay() NodeID {
	return b.Graph.AddNode(TileIDRailOneWay, 2)
}

// AddLinkTile allocates a 2-slot passthrough Node, used to route a rail
// connection across a board-region boundary.
func (b *Board) AddLinkTile() NodeID {
	return b.Graph.AddNode(TileIDRailLink, 2)
}

// AddBufferStop allocates a 1-slot dead-end Node.
func (b *Board) AddBufferStop() NodeID {
	return b.Graph.AddNode(TileIDRailBufferStop, 1)
}

// AddDecoupler allocates a 2-slot Node and registers a Decoupler on it.
func (b *Board) AddDecoupler() *Decoupler {
	id := b.Graph.AddNode(TileIDRailDecoupler, 2)
	d := NewDecoupler(id)
	b.decouplers[id] = d
	return d
}

// AddNXButton allocates a 1-slot Node and registers an NXButton on it.
func (b *Board) AddNXButton() *NXButton {
	id := b.Graph.AddNode(TileIDRailNXButton, 1)
	n := NewNXButton(id)
	b.nxButtons[id] = n
	return n
}

// AddStraight allocates a passthrough 2-slot Node for plain track
// (straight or curved), carrying neither device state nor any routing
// restriction.
func (b *Board) AddStraight(kind TileID) NodeID {
	return b.Graph.AddNode(kind, 2)
}

func (b *Board) Block(id NodeID) (*Block, bool)                       { v, ok := b.blocks[id]; return v, ok }
func (b *Board) Signal(id NodeID) (*Signal, bool)                     { v, ok := b.signals[id]; return v, ok }
func (b *Board) Turnout(id NodeID) (*Turnout, bool)                   { v, ok := b.turnouts[id]; return v, ok }
func (b *Board) DirectionControl(id NodeID) (*DirectionControl, bool) { v, ok := b.directionControls[id]; return v, ok }
func (b *Board) Bridge(id NodeID) (*Bridge, bool)                     { v, ok := b.bridges[id]; return v, ok }
func (b *Board) Cross(id NodeID) (*Cross, bool)                       { v, ok := b.crosses[id]; return v, ok }
func (b *Board) Decoupler(id NodeID) (*Decoupler, bool)               { v, ok := b.decouplers[id]; return v, ok }
func (b *Board) NXButton(id NodeID) (*NXButton, bool)                 { v, ok := b.nxButtons[id]; return v, ok }

// Connect joins two Nodes' slots with a Link, delegating to the Graph.
func (b *Board) Connect(a, bEnd Endpoint) (LinkID, error) { return b.Graph.Connect(a, bEnd) }

// AllBlocks returns every Block on the board. Iteration order is
// unspecified.
func (b *Board) AllBlocks() []*Block {
	out := make([]*Block, 0, len(b.blocks))
	for _, v := range b.blocks {
		out = append(out, v)
	}
	return out
}
