package realtime

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialPair upgrades one connection through a throwaway server and
// returns both ends.
func dialPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("no upgraded connection")
	}
	return server, client
}

func readEvent(t *testing.T, conn *websocket.Conn) AnalysisEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event AnalysisEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return event
}

func TestHub_BroadcastReachesEverySubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	serverA, clientA := dialPair(t)
	serverB, clientB := dialPair(t)
	hub.Register(serverA)
	hub.Register(serverB)

	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", hub.ClientCount())
	}

	hub.Broadcast(AnalysisEvent{Type: EventRealtimeAnalysis, Result: FileResult{FilePath: "/srv/a.js"}})

	for _, conn := range []*websocket.Conn{clientA, clientB} {
		event := readEvent(t, conn)
		if event.Type != EventRealtimeAnalysis || event.Result.FilePath != "/srv/a.js" {
			t.Fatalf("unexpected event %#v", event)
		}
	}
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	server, _ := dialPair(t)
	client := hub.Register(server)

	hub.Unregister(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.ClientCount())
	}
	// A broadcast after eviction must not panic on the closed channel.
	hub.Broadcast(AnalysisEvent{Type: EventRealtimeAnalysis})
}

func TestHub_SendTargetsOneClient(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	serverA, clientA := dialPair(t)
	serverB, clientB := dialPair(t)
	hub.Register(serverA)
	target := hub.Register(serverB)

	target.Send(Ack{Type: AckWatchStarted, Path: "/srv/app"})

	_ = clientB.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack Ack
	if err := clientB.ReadJSON(&ack); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ack.Type != AckWatchStarted || ack.Path != "/srv/app" {
		t.Fatalf("unexpected ack %#v", ack)
	}

	_ = clientA.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var stray Ack
	if err := clientA.ReadJSON(&stray); err == nil {
		t.Fatalf("unaddressed client received %#v", stray)
	}
}

func TestHub_WriteFailureReleasesConnection(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	server, client := dialPair(t)
	hub.Register(server)
	_ = client.Close()

	// Broadcasting into the dead peer eventually fails the write and
	// evicts the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber with a dead peer was never evicted")
		}
		hub.Broadcast(AnalysisEvent{Type: EventRealtimeAnalysis})
		time.Sleep(5 * time.Millisecond)
	}

	// The writer goroutine owns the connection and must close it on the
	// error path as well as the drain path.
	buf := make([]byte, 1)
	for time.Now().Before(deadline) {
		_ = server.UnderlyingConn().SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		if _, err := server.UnderlyingConn().Read(buf); errors.Is(err, net.ErrClosed) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server side of an evicted subscriber stayed open")
}

func TestHub_CloseEvictsAndRejects(t *testing.T) {
	hub := NewHub()

	server, _ := dialPair(t)
	hub.Register(server)

	hub.Close()
	hub.Close()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected no subscribers after close, got %d", hub.ClientCount())
	}

	lateServer, _ := dialPair(t)
	if client := hub.Register(lateServer); client != nil {
		t.Fatal("expected registration rejected after close")
	}
}
