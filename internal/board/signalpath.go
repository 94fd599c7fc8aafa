package board

// SignalPathNode is one node of the bounded-depth tree SignalPath builds
// ahead of a signal. It is a tagged union over the four kinds of item
// the original abstract signal path distinguishes: a block, a signal
// (where this signal's own path stops, deferring to the next signal's
// displayed aspect), a turnout (branches into one sub-tree per position)
// and a direction control (single follow-on, annotated with which
// direction this path travels through it).
type SignalPathNode struct {
	Block     *Block
	EnterSide BlockSide

	Signal *Signal

	Turnout     *Turnout
	turnoutNext map[TurnoutPosition]*SignalPathNode

	DirectionControl *DirectionControl
	OneWayState      DirectionControlState

	next *SignalPathNode
}

// IsBlock, IsSignal, IsTurnout, IsDirectionControl classify the node.
func (n *SignalPathNode) IsBlock() bool            { return n != nil && n.Block != nil }
func (n *SignalPathNode) IsSignal() bool           { return n != nil && n.Signal != nil }
func (n *SignalPathNode) IsTurnout() bool          { return n != nil && n.Turnout != nil }
func (n *SignalPathNode) IsDirectionControl() bool { return n != nil && n.DirectionControl != nil }

// Next returns the node that follows this one given the current state of
// the board (resolving a turnout's branch by its presently set
// position). Block/Signal nodes are leaves of their sub-tree in the
// sense that Next never looks past them automatically; callers that want
// to see past a block call Next again on the returned node.
func (n *SignalPathNode) Next() *SignalPathNode {
	if n == nil {
		return nil
	}
	if n.IsTurnout() {
		return n.turnoutNext[n.Turnout.Position()]
	}
	return n.next
}

// SignalPath is the evaluation tree built ahead of one Signal, bounded to
// `blocksAhead` blocks, kept live by subscribing to every Block/Signal it
// passes through so the owning aspect computer can be re-run whenever
// upstream state changes.
type SignalPath struct {
	Signal            *Signal
	BlocksAhead       int
	RequireReservation bool

	root         *SignalPathNode
	unsubscribes []func()
	onChange     []func()
}

// BuildSignalPath walks the board forward from sig (away from the
// direction a train approaches it) collecting up to blocksAhead blocks,
// forking at every turnout and stopping at the first further signal
// along any branch.
//
// While walking it also resolves RequireReservation: Auto derives to
// true the moment any turnout is seen ahead of the signal, false
// otherwise; Yes/No on the signal override that derivation outright.
func BuildSignalPath(b *Board, sig *Signal, blocksAhead int) *SignalPath {
	sp := &SignalPath{Signal: sig, BlocksAhead: blocksAhead}
	start, ok := b.Graph.OtherEnd(Endpoint{Node: sig.Node, Slot: 1})
	if !ok {
		sp.RequireReservation = sig.Requirement == ReservationRequired
		return sp
	}
	sawTurnout := false
	sp.root = sp.walk(b, start, blocksAhead, &sawTurnout)
	switch sig.Requirement {
	case ReservationRequired:
		sp.RequireReservation = true
	case ReservationNotRequired:
		sp.RequireReservation = false
	default:
		sp.RequireReservation = sawTurnout
	}
	return sp
}

// Release unsubscribes from every Block/Signal change this path was
// listening to. It must be called when the owning signal's path is
// rebuilt or the signal is removed from the board.
func (sp *SignalPath) Release() {
	for _, fn := range sp.unsubscribes {
		fn()
	}
	sp.unsubscribes = nil
}

func (sp *SignalPath) walk(b *Board, at Endpoint, blocksAhead int, sawTurnout *bool) *SignalPathNode {
	if block, ok := b.Block(at.Node); ok {
		node := &SignalPathNode{Block: block, EnterSide: BlockSide(at.Slot)}
		unsub := block.OnStateChanged(func(BlockState) { sp.changed() })
		sp.unsubscribes = append(sp.unsubscribes, unsub)
		if blocksAhead > 1 {
			if next, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: 1 - at.Slot}); ok {
				node.next = sp.walk(b, next, blocksAhead-1, sawTurnout)
			}
		}
		return node
	}

	if sig, ok := b.Signal(at.Node); ok {
		node := &SignalPathNode{Signal: sig}
		unsub := sig.OnAspectChanged(func(Aspect) { sp.changed() })
		sp.unsubscribes = append(sp.unsubscribes, unsub)
		return node
	}

	if t, ok := b.Turnout(at.Node); ok {
		*sawTurnout = true
		node := &SignalPathNode{Turnout: t, turnoutNext: map[TurnoutPosition]*SignalPathNode{}}
		for _, exit := range t.EntryExits[at.Slot] {
			if next, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: exit.ToSlot}); ok {
				node.turnoutNext[exit.Position] = sp.walk(b, next, blocksAhead, sawTurnout)
			}
		}
		return node
	}

	if dc, ok := b.DirectionControl(at.Node); ok {
		state := DirectionControlStateAtoB
		if at.Slot == 1 {
			state = DirectionControlStateBtoA
		}
		node := &SignalPathNode{DirectionControl: dc, OneWayState: state}
		if next, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: 1 - at.Slot}); ok {
			node.next = sp.walk(b, next, blocksAhead, sawTurnout)
		}
		return node
	}

	if br, ok := b.Bridge(at.Node); ok {
		_, otherSlot, ok := bridgeOrCrossRoute(at.Slot)
		if !ok {
			return nil
		}
		if next, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: otherSlot}); ok {
			return sp.walk(b, next, blocksAhead, sawTurnout)
		}
		_ = br
		return nil
	}

	if cr, ok := b.Cross(at.Node); ok {
		_, otherSlot, ok := bridgeOrCrossRoute(at.Slot)
		if !ok {
			return nil
		}
		if next, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: otherSlot}); ok {
			return sp.walk(b, next, blocksAhead, sawTurnout)
		}
		_ = cr
		return nil
	}

	if node, ok := b.Graph.Node(at.Node); ok && node.SlotCount() == 2 {
		if next, ok := b.Graph.OtherEnd(Endpoint{Node: at.Node, Slot: 1 - at.Slot}); ok {
			return sp.walk(b, next, blocksAhead, sawTurnout)
		}
		return nil
	}

	return nil
}

func (sp *SignalPath) changed() {
	// Re-evaluation is driven by the owning aspect computer (internal/signal),
	// whose Watch registers its evaluate callback through OnChange.
	for _, fn := range sp.onChange {
		fn()
	}
}

// OnChange registers a callback invoked whenever any block or signal
// reachable from this path changes state, so an aspect computer can
// re-evaluate without polling.
func (sp *SignalPath) OnChange(fn func()) {
	sp.onChange = append(sp.onChange, fn)
}

// NextBlock returns the first block node reached by resolving every
// turnout along the current path, or nil if the path ends (or the
// evaluation budget ran out) before reaching one.
func (sp *SignalPath) NextBlock() *SignalPathNode {
	n := sp.root
	for n != nil {
		if n.IsBlock() {
			return n
		}
		if n.IsSignal() {
			return nil
		}
		n = n.Next()
	}
	return nil
}

// NextBlockOrSignal is like NextBlock but also stops at (and returns) the
// first signal encountered, letting an aspect computer defer to that
// signal's own currently displayed aspect instead of reading further.
func (sp *SignalPath) NextBlockOrSignal() (*SignalPathNode, *SignalPathNode) {
	n := sp.root
	for n != nil {
		if n.IsBlock() {
			return n, nil
		}
		if n.IsSignal() {
			return nil, n
		}
		n = n.Next()
	}
	return nil, nil
}

// NextBlockNodes returns up to `count` consecutive block nodes ahead,
// resolving turnouts by their current position and stopping early at an
// intervening signal. Unlike BlockStates it returns the nodes themselves
// so a computer can inspect more than just occupancy, e.g. which
// BlockPath a block is reserved for.
func (sp *SignalPath) NextBlockNodes(count int) []*SignalPathNode {
	nodes, _ := sp.NextBlockNodesAndSignal(count)
	return nodes
}

// NextBlockNodesAndSignal is like NextBlockNodes but also returns the
// signal node the walk stopped at, if it stopped because it ran into one
// before collecting count blocks (nil if it ran out of path, hit count,
// or never reaches a signal).
func (sp *SignalPath) NextBlockNodesAndSignal(count int) ([]*SignalPathNode, *SignalPathNode) {
	var nodes []*SignalPathNode
	n := sp.root
	for n != nil && len(nodes) < count {
		if n.IsSignal() {
			return nodes, n
		}
		if n.IsBlock() {
			nodes = append(nodes, n)
		}
		n = n.Next()
	}
	return nodes, nil
}

// BlockStates returns the states of up to `count` consecutive blocks
// ahead, resolving turnouts by their current position. Missing blocks
// (path too short, or blocked by an intervening signal) are reported as
// BlockStateUnknown.
func (sp *SignalPath) BlockStates(count int) []BlockState {
	states := make([]BlockState, count)
	for i := range states {
		states[i] = BlockStateUnknown
	}
	n := sp.root
	i := 0
	for n != nil && i < count {
		if n.IsSignal() {
			break
		}
		if n.IsBlock() {
			states[i] = n.Block.State()
			i++
		}
		n = n.Next()
	}
	return states
}
