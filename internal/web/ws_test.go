package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/trainmaster/server/internal/board"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(hub.HandleWS())
	wsURL := "ws" + srv.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn, func() {
		conn.Close(websocket.StatusNormalClosure, "")
		srv.Close()
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) messageEnvelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return env
}

func TestHubSendsSnapshotOnConnect(t *testing.T) {
	b := board.NewBoard()
	blk := b.AddBlock("approach")
	blk.SetOccupied(true)
	hub := NewHub(b, nil)

	conn, closeAll := dialHub(t, hub)
	defer closeAll()

	env := readEnvelope(t, conn)
	if env.MessageType != "SNAPSHOT" {
		t.Fatalf("expected the first message to be a SNAPSHOT, got %q", env.MessageType)
	}
}

func TestHubBroadcastsBlockStateToConnectedClients(t *testing.T) {
	b := board.NewBoard()
	blk := b.AddBlock("approach")
	hub := NewHub(b, nil)
	unsub := hub.WatchBlock(blk)
	defer unsub()

	conn, closeAll := dialHub(t, hub)
	defer closeAll()
	readEnvelope(t, conn) // initial SNAPSHOT

	blk.SetOccupied(true)

	env := readEnvelope(t, conn)
	if env.MessageType != "BLOCK_STATE" {
		t.Fatalf("expected a BLOCK_STATE broadcast, got %q", env.MessageType)
	}
}

func TestHubHandlesMultipleClientsIndependently(t *testing.T) {
	b := board.NewBoard()
	blk := b.AddBlock("approach")
	hub := NewHub(b, nil)
	unsub := hub.WatchBlock(blk)
	defer unsub()

	conn1, close1 := dialHub(t, hub)
	defer close1()
	conn2, close2 := dialHub(t, hub)
	defer close2()
	readEnvelope(t, conn1)
	readEnvelope(t, conn2)

	blk.SetOccupied(true)

	e1 := readEnvelope(t, conn1)
	e2 := readEnvelope(t, conn2)
	if e1.MessageType != "BLOCK_STATE" || e2.MessageType != "BLOCK_STATE" {
		t.Fatalf("expected both clients to receive the BLOCK_STATE broadcast, got %q and %q", e1.MessageType, e2.MessageType)
	}
}
