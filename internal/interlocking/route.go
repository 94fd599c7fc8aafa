package interlocking

import "github.com/trainmaster/server/internal/board"

// FindRoute is the train-path-finder supplement: given a starting block
// and side, it chains BlockPath discovery depth-first across intermediate
// blocks until it reaches `to`, passing through at most maxHops
// intermediate blocks (maxHops+1 block-to-block transitions), and returns
// the first route found, not necessarily the shortest. Every reached
// block is searched through: neither occupancy nor reservation of an
// intermediate block is consulted, and nothing is reserved. This is not needed for a single
// interlocking reservation (that only ever spans one BlockPath) but is
// useful for dispatcher-level "get this train from A to B" requests that
// may need to cross several interlocking areas.
func FindRoute(b *board.Board, from *board.Block, fromSide board.BlockSide, to *board.Block, maxHops int) ([]*board.BlockPath, error) {
	visited := map[*board.Block]bool{from: true}
	var search func(block *board.Block, side board.BlockSide, hops int) ([]*board.BlockPath, error)
	search = func(block *board.Block, side board.BlockSide, hops int) ([]*board.BlockPath, error) {
		if hops > maxHops {
			return nil, nil
		}
		paths, err := board.FindBlockPaths(b, block, side)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if p.ToBlock == nil {
				continue // dead end at a buffer stop
			}
			if p.ToBlock == to {
				return []*board.BlockPath{p}, nil
			}
			if visited[p.ToBlock] {
				continue
			}
			visited[p.ToBlock] = true
			rest, err := search(p.ToBlock, p.ToSide.Opposite(), hops+1)
			if err != nil {
				return nil, err
			}
			if rest != nil {
				return append([]*board.BlockPath{p}, rest...), nil
			}
		}
		return nil, nil
	}
	return search(from, fromSide, 0)
}
