package interlocking

import (
	"fmt"
	"sync"

	"github.com/trainmaster/server/internal/board"
)

// NXManager resolves pressed entry/exit ("Nx") button pairs into a
// BlockPath reservation. Pressing a single button arms it; pressing a
// second button that has a matching BlockPath to/from the first
// completes the pair and reserves that path. Pressing the same button
// twice, or a button with no matching path to the armed one, releases
// the armed button instead.
type NXManager struct {
	mu       sync.Mutex
	armed    *armedButton
	reserved map[*board.NXButton]*board.BlockPath

	// Guard, if set, starts an anti-regression watch on every device a
	// completed Nx reservation locks, and stops it again on Clear.
	Guard *RegressionGuard
}

type armedButton struct {
	button *board.NXButton
	block  *board.Block
}

func NewNXManager() *NXManager {
	return &NXManager{reserved: map[*board.NXButton]*board.BlockPath{}}
}

// Press handles a single button-press event from button, located beside
// block. It returns the BlockPath it reserved, or nil if this press only
// armed the button (waiting for its pair) or was rejected.
func (m *NXManager) Press(button *board.NXButton, block *board.Block, train *board.Train) (*board.BlockPath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.armed == nil {
		if !button.Press() {
			return nil, nil
		}
		m.armed = &armedButton{button: button, block: block}
		return nil, nil
	}

	if m.armed.button == button {
		button.Release()
		m.armed = nil
		return nil, nil
	}

	from := m.armed
	m.armed = nil

	var match *board.BlockPath
	for _, p := range from.block.Paths() {
		if p.NXButtonFrom == from.button && p.NXButtonTo == button {
			match = p
			break
		}
	}
	from.button.Release()
	if match == nil {
		button.Release()
		return nil, fmt.Errorf("interlocking: no route found from %s to %s", from.button.Node, button.Node)
	}

	if !button.Press() {
		return nil, fmt.Errorf("interlocking: exit button %s already pressed", button.Node)
	}

	if err := Reserve(match, train); err != nil {
		button.Release()
		return nil, err
	}
	m.reserved[button] = match
	m.Guard.Watch(match)
	return match, nil
}

// Clear releases the BlockPath that button's press reserved, if any, and
// returns both buttons of the pair to Idle.
func (m *NXManager) Clear(button *board.NXButton) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path, ok := m.reserved[button]
	if !ok {
		return
	}
	m.Guard.Unwatch(path)
	Release(path)
	delete(m.reserved, button)
	button.Release()
	if path.NXButtonFrom != nil {
		path.NXButtonFrom.Release()
	}
}
