package board

// BlockState is the occupancy/reservation state of a Block, the unit of
// track a single train is allowed to occupy at a time.
type BlockState uint8

const (
	BlockStateUnknown BlockState = iota
	BlockStateFree
	BlockStateReserved
	BlockStateOccupied
	BlockStateReservedOccupied
)

func (s BlockState) String() string {
	switch s {
	case BlockStateFree:
		return "Free"
	case BlockStateReserved:
		return "Reserved"
	case BlockStateOccupied:
		return "Occupied"
	case BlockStateReservedOccupied:
		return "ReservedOccupied"
	default:
		return "Unknown"
	}
}

// BlockSide names the two ends of a Block along the rails it covers.
type BlockSide uint8

const (
	BlockSideA BlockSide = iota
	BlockSideB
)

func (s BlockSide) Opposite() BlockSide {
	if s == BlockSideA {
		return BlockSideB
	}
	return BlockSideA
}

// Block is a length of track that holds at most one train reservation at
// a time. It has one Node with two slots, one per side, and its occupancy is
// driven by InputMapItem sensors wired to it via internal/output.
type Block struct {
	Node         NodeID
	Name         string
	state        BlockState
	reservedBy   *Train
	reservedPath *BlockPath
	paths        []*BlockPath
	onChanged    map[int]func(BlockState)
	nextSubID    int
}

// OnStateChanged registers a callback fired whenever the block's state
// changes, used by SignalPath's block nodes to re-evaluate a signal's
// aspect without polling. The returned function removes the
// subscription.
func (b *Block) OnStateChanged(fn func(BlockState)) func() {
	if b.onChanged == nil {
		b.onChanged = map[int]func(BlockState){}
	}
	id := b.nextSubID
	b.nextSubID++
	b.onChanged[id] = fn
	return func() { delete(b.onChanged, id) }
}

func (b *Block) notify() {
	for _, fn := range b.onChanged {
		fn(b.state)
	}
}

func NewBlock(node NodeID, name string) *Block {
	return &Block{Node: node, Name: name, state: BlockStateFree}
}

func (b *Block) State() BlockState { return b.state }

// SetOccupied updates the occupancy bit of the block's state, preserving
// whether it is currently reserved.
func (b *Block) SetOccupied(occupied bool) {
	prev := b.state
	reserved := b.state == BlockStateReserved || b.state == BlockStateReservedOccupied
	switch {
	case reserved && occupied:
		b.state = BlockStateReservedOccupied
	case reserved && !occupied:
		b.state = BlockStateReserved
	case !reserved && occupied:
		b.state = BlockStateOccupied
	default:
		b.state = BlockStateFree
	}
	if b.state != prev {
		b.notify()
	}
}

// Reserve assigns train as the reserving train of the block. It fails if
// the block is already reserved by a different train.
func (b *Block) Reserve(train *Train) bool {
	if b.reservedBy != nil && b.reservedBy != train {
		return false
	}
	prev := b.state
	b.reservedBy = train
	occupied := b.state == BlockStateOccupied || b.state == BlockStateReservedOccupied
	if occupied {
		b.state = BlockStateReservedOccupied
	} else {
		b.state = BlockStateReserved
	}
	if b.state != prev {
		b.notify()
	}
	return true
}

// Release clears the block's reservation, keeping any occupied bit.
func (b *Block) Release() {
	prev := b.state
	b.reservedBy = nil
	b.reservedPath = nil
	if b.state == BlockStateReservedOccupied {
		b.state = BlockStateOccupied
	} else if b.state == BlockStateReserved {
		b.state = BlockStateFree
	}
	if b.state != prev {
		b.notify()
	}
}

func (b *Block) ReservedBy() *Train { return b.reservedBy }

// ReservedPath returns the BlockPath this block is currently reserved's
// source or destination end for, or nil if the block is free.
func (b *Block) ReservedPath() *BlockPath { return b.reservedPath }

// SetReservedPath records which BlockPath reserved this block, so a
// SignalPath evaluating a signal ahead of it can tell which onward route
// the reservation actually claims rather than just that the block is
// Reserved. interlocking.Reserve/Release call this alongside Reserve/
// Release.
func (b *Block) SetReservedPath(p *BlockPath) { b.reservedPath = p }

// AddPath registers a BlockPath as starting from this block. BlockPath
// discovery populates this list so the NX manager can later search
// "from.block.paths" for a path matching a pressed button pair.
func (b *Block) AddPath(p *BlockPath) { b.paths = append(b.paths, p) }

func (b *Block) Paths() []*BlockPath { return b.paths }

// Train is a minimal handle identifying whatever is occupying/reserving
// blocks; the kinematic simulator and hardware layers attach richer state
// (speed, consist, direction) to the same identity.
type Train struct {
	ID   string
	Name string
}
