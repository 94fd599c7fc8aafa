package board

import "fmt"

// NodeID is a stable, generation-checked reference to a Node held by a
// Graph arena. It replaces the weak_ptr<Node> handles of the original
// shared_ptr-based tile graph: a NodeID that outlives its Node (e.g. the
// tile was removed from the board) is detected via the generation
// mismatch instead of dereferencing freed memory.
type NodeID struct {
	index uint32
	gen   uint32
}

// LinkID is the Link analogue of NodeID.
type LinkID struct {
	index uint32
	gen   uint32
}

// IsZero reports whether the id was never assigned.
func (id NodeID) IsZero() bool { return id.gen == 0 }
func (id LinkID) IsZero() bool { return id.gen == 0 }

func (id NodeID) String() string { return fmt.Sprintf("Node#%d.%d", id.index, id.gen) }
func (id LinkID) String() string { return fmt.Sprintf("Link#%d.%d", id.index, id.gen) }

// Endpoint names one side of a Link: the Node it attaches to and which
// of that Node's fixed link slots it occupies.
type Endpoint struct {
	Node NodeID
	Slot int
}

// Node is one tile's connection point. Every rail tile contributes at
// least one Node; tiles with more than one rail face (turnouts, crosses,
// ...) still contribute a single Node whose slot count equals the number
// of rail faces, mirroring Node::getLinkCount() in the original map.
type Node struct {
	id     NodeID
	tileID TileID
	links  []LinkID // len == slot count; zero value means unconnected
}

func (n *Node) ID() NodeID     { return n.id }
func (n *Node) TileID() TileID { return n.tileID }
func (n *Node) SlotCount() int { return len(n.links) }

// GetLink returns the Link occupying the given slot, if connected.
func (n *Node) GetLink(slot int) (LinkID, bool) {
	if slot < 0 || slot >= len(n.links) {
		return LinkID{}, false
	}
	id := n.links[slot]
	return id, !id.IsZero()
}

// Link is a single bidirectional edge between two Node slots.
type Link struct {
	id LinkID
	a  Endpoint
	b  Endpoint
}

func (l *Link) ID() LinkID { return l.id }
func (l *Link) A() Endpoint { return l.a }
func (l *Link) B() Endpoint { return l.b }

// Other returns the endpoint on the far side of the link from `from`.
// ok is false if `from` does not match either endpoint of the link.
func (l *Link) Other(from Endpoint) (Endpoint, bool) {
	switch {
	case l.a.Node == from.Node && l.a.Slot == from.Slot:
		return l.b, true
	case l.b.Node == from.Node && l.b.Slot == from.Slot:
		return l.a, true
	default:
		return Endpoint{}, false
	}
}

type nodeEntry struct {
	gen   uint32
	alive bool
	node  Node
}

type linkEntry struct {
	gen   uint32
	alive bool
	link  Link
}

// Graph is the arena owning every Node and Link of a board. It is the Go
// replacement for the original shared_ptr<Node>/shared_ptr<Link> graph:
// nodes and links are stored by value in slices and referenced by
// generation-checked index, so removing a tile never leaves a dangling
// pointer reachable from another tile's slot.
type Graph struct {
	nodes     []nodeEntry
	links     []linkEntry
	freeNodes []uint32
	freeLinks []uint32
}

// NewGraph returns an empty board graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddNode allocates a Node with the given tile kind and slot count.
func (g *Graph) AddNode(tileID TileID, slots int) NodeID {
	n := Node{tileID: tileID, links: make([]LinkID, slots)}
	var idx uint32
	if l := len(g.freeNodes); l > 0 {
		idx = g.freeNodes[l-1]
		g.freeNodes = g.freeNodes[:l-1]
		g.nodes[idx].gen++
		g.nodes[idx].alive = true
	} else {
		idx = uint32(len(g.nodes))
		g.nodes = append(g.nodes, nodeEntry{gen: 1, alive: true})
	}
	id := NodeID{index: idx, gen: g.nodes[idx].gen}
	n.id = id
	g.nodes[idx].node = n
	return id
}

// RemoveNode disconnects and frees a Node. All Links still attached to it
// are disconnected first.
func (g *Graph) RemoveNode(id NodeID) {
	n, ok := g.node(id)
	if !ok {
		return
	}
	for slot, lid := range n.links {
		if !lid.IsZero() {
			g.Disconnect(lid)
			_ = slot
		}
	}
	g.nodes[id.index].alive = false
	g.nodes[id.index].node = Node{}
	g.freeNodes = append(g.freeNodes, id.index)
}

func (g *Graph) node(id NodeID) (*Node, bool) {
	if int(id.index) >= len(g.nodes) {
		return nil, false
	}
	e := &g.nodes[id.index]
	if !e.alive || e.gen != id.gen {
		return nil, false
	}
	return &e.node, true
}

// Node returns the live Node for id, or false if it has been removed.
func (g *Graph) Node(id NodeID) (*Node, bool) { return g.node(id) }

func (g *Graph) link(id LinkID) (*Link, bool) {
	if int(id.index) >= len(g.links) {
		return nil, false
	}
	e := &g.links[id.index]
	if !e.alive || e.gen != id.gen {
		return nil, false
	}
	return &e.link, true
}

// Link returns the live Link for id, or false if it has been removed.
func (g *Graph) Link(id LinkID) (*Link, bool) { return g.link(id) }

// Connect joins two node slots with a Link. Connecting twice with the
// same arguments is idempotent and returns the existing LinkID, mirroring
// Node::connect()'s no-op-on-rereconnect behaviour in the original map.
func (g *Graph) Connect(a Endpoint, b Endpoint) (LinkID, error) {
	na, ok := g.node(a.Node)
	if !ok {
		return LinkID{}, fmt.Errorf("board: connect: node %s not found", a.Node)
	}
	nb, ok := g.node(b.Node)
	if !ok {
		return LinkID{}, fmt.Errorf("board: connect: node %s not found", b.Node)
	}
	if a.Slot < 0 || a.Slot >= len(na.links) {
		return LinkID{}, fmt.Errorf("board: connect: slot %d out of range for %s", a.Slot, a.Node)
	}
	if b.Slot < 0 || b.Slot >= len(nb.links) {
		return LinkID{}, fmt.Errorf("board: connect: slot %d out of range for %s", b.Slot, b.Node)
	}
	if existing := na.links[a.Slot]; !existing.IsZero() {
		if l, ok := g.link(existing); ok {
			if (l.a == a && l.b == b) || (l.a == b && l.b == a) {
				return existing, nil
			}
		}
		return LinkID{}, fmt.Errorf("board: connect: slot %d of %s already connected", a.Slot, a.Node)
	}
	if existing := nb.links[b.Slot]; !existing.IsZero() {
		return LinkID{}, fmt.Errorf("board: connect: slot %d of %s already connected", b.Slot, b.Node)
	}

	l := Link{a: a, b: b}
	var idx uint32
	if ln := len(g.freeLinks); ln > 0 {
		idx = g.freeLinks[ln-1]
		g.freeLinks = g.freeLinks[:ln-1]
		g.links[idx].gen++
		g.links[idx].alive = true
	} else {
		idx = uint32(len(g.links))
		g.links = append(g.links, linkEntry{gen: 1, alive: true})
	}
	id := LinkID{index: idx, gen: g.links[idx].gen}
	l.id = id
	g.links[idx].link = l

	na.links[a.Slot] = id
	nb.links[b.Slot] = id
	return id, nil
}

// Disconnect removes a Link and clears the slots of both its endpoints.
// Disconnecting an already-removed or zero LinkID is a no-op, mirroring
// Link::disconnect()'s tolerance of repeated calls.
func (g *Graph) Disconnect(id LinkID) {
	l, ok := g.link(id)
	if !ok {
		return
	}
	if n, ok := g.node(l.a.Node); ok && l.a.Slot < len(n.links) {
		n.links[l.a.Slot] = LinkID{}
	}
	if n, ok := g.node(l.b.Node); ok && l.b.Slot < len(n.links) {
		n.links[l.b.Slot] = LinkID{}
	}
	g.links[id.index].alive = false
	g.links[id.index].link = Link{}
	g.freeLinks = append(g.freeLinks, id.index)
}

// GetLink returns the Link connected to the given node slot, if any.
func (g *Graph) GetLink(ep Endpoint) (LinkID, bool) {
	n, ok := g.node(ep.Node)
	if !ok {
		return LinkID{}, false
	}
	return n.GetLink(ep.Slot)
}

// OtherEnd follows the Link attached to `from` and returns the endpoint
// on its far side.
func (g *Graph) OtherEnd(from Endpoint) (Endpoint, bool) {
	lid, ok := g.GetLink(from)
	if !ok {
		return Endpoint{}, false
	}
	l, ok := g.link(lid)
	if !ok {
		return Endpoint{}, false
	}
	return l.Other(from)
}
