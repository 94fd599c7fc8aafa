// Package web serves the layout's live state to browser clients over a
// websocket: one hub fans out block/signal/interface events to every
// connected client and replies to each new connection with a full
// snapshot so the UI never starts out blank.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/trainmaster/server/internal/board"
	"github.com/trainmaster/server/internal/hardware"
)

// messageEnvelope defines the WS protocol envelope.
type messageEnvelope struct {
	MessageType string      `json:"messageType"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   int64       `json:"timestamp"`
}

// BlockStateEvent reports one block's occupancy/reservation transition.
type BlockStateEvent struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// SignalAspectEvent reports one signal's displayed aspect changing.
type SignalAspectEvent struct {
	Name   string `json:"name"`
	Aspect uint16 `json:"aspect"`
}

// TurnoutPositionEvent reports one turnout's commanded/sensed position.
type TurnoutPositionEvent struct {
	Name     string `json:"name"`
	Position uint8  `json:"position"`
}

// InterfaceStateEvent reports one hardware interface's connection state.
type InterfaceStateEvent struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// snapshot is the state payload sent to a client right after it
// connects and periodically thereafter as a heartbeat. Hub.snapshot
// fills Blocks and Interfaces only; Signals is always empty.
type snapshot struct {
	Blocks     []BlockStateEvent     `json:"blocks"`
	Signals    []SignalAspectEvent   `json:"signals"`
	Interfaces []InterfaceStateEvent `json:"interfaces"`
}

// Hub manages websocket clients and fans out board/interlocking/interface
// events to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}

	board      *board.Board
	interfaces []*hardware.Interface
}

func NewHub(b *board.Board, interfaces []*hardware.Interface) *Hub {
	return &Hub{clients: map[*websocket.Conn]struct{}{}, board: b, interfaces: interfaces}
}

func (h *Hub) snapshot() snapshot {
	snap := snapshot{}
	if h.board != nil {
		for _, blk := range h.board.AllBlocks() {
			snap.Blocks = append(snap.Blocks, BlockStateEvent{Name: blk.Name, State: blk.State().String()})
		}
	}
	for _, iface := range h.interfaces {
		snap.Interfaces = append(snap.Interfaces, InterfaceStateEvent{ID: iface.ID, State: iface.State().String()})
	}
	return snap
}

// HandleWS upgrades and registers a client, replying immediately with a
// snapshot of current block and interface state.
func (h *Hub) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			http.Error(w, "websocket_accept_failed", http.StatusInternalServerError)
			return
		}
		h.mu.Lock()
		h.clients[c] = struct{}{}
		clientCount := len(h.clients)
		h.mu.Unlock()
		log.Printf("[WS] client connected (total=%d)", clientCount)

		go func() {
			defer func() { h.mu.Lock(); delete(h.clients, c); h.mu.Unlock(); c.Close(websocket.StatusNormalClosure, "") }()
			for { // discard inbound; clients are read-only observers
				if _, _, err := c.Read(context.Background()); err != nil {
					return
				}
			}
		}()

		env := messageEnvelope{MessageType: "SNAPSHOT", Data: h.snapshot(), Timestamp: time.Now().UnixMilli()}
		b, _ := json.Marshal(env)
		if err := c.Write(context.Background(), websocket.MessageText, b); err != nil {
			log.Printf("[WS] write SNAPSHOT failed: %v", err)
		}
	}
}

func (h *Hub) broadcast(messageType string, data interface{}) {
	env := messageEnvelope{MessageType: messageType, Data: data, Timestamp: time.Now().UnixMilli()}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		go func(conn *websocket.Conn, p []byte) { conn.Write(context.Background(), websocket.MessageText, p) }(c, payload)
	}
}

// WatchBlock subscribes to a block's state changes and fans out a
// BLOCK_STATE event to every connected client on each transition.
func (h *Hub) WatchBlock(blk *board.Block) func() {
	return blk.OnStateChanged(func(state board.BlockState) {
		h.broadcast("BLOCK_STATE", BlockStateEvent{Name: blk.Name, State: state.String()})
	})
}

// WatchSignal subscribes to a signal's aspect changes and fans out a
// SIGNAL_ASPECT event to every connected client on each change.
func (h *Hub) WatchSignal(name string, sig *board.Signal) func() {
	return sig.OnAspectChanged(func(a board.Aspect) {
		h.broadcast("SIGNAL_ASPECT", SignalAspectEvent{Name: name, Aspect: uint16(a)})
	})
}

// WatchInterface subscribes to a hardware interface's connection state
// and fans out an INTERFACE_STATE event on each transition.
func (h *Hub) WatchInterface(iface *hardware.Interface) func() {
	return iface.OnStateChanged(func(state hardware.State) {
		h.broadcast("INTERFACE_STATE", InterfaceStateEvent{ID: iface.ID, State: state.String()})
	})
}

// BroadcastTurnoutPosition emits a TURNOUT_POSITION event; turnout
// position is driven by feedback inputs rather than a subscribable
// board type, so callers report it directly instead of through a Watch*
// subscription.
func (h *Hub) BroadcastTurnoutPosition(name string, pos board.TurnoutPosition) {
	h.broadcast("TURNOUT_POSITION", TurnoutPositionEvent{Name: name, Position: uint8(pos)})
}

// HeartbeatLoop periodically emits a full snapshot even if no individual
// events have fired recently, so a client that misses an event (or that
// reconnects) stays in sync.
func (h *Hub) HeartbeatLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcast("SNAPSHOT", h.snapshot())
		}
	}
}
