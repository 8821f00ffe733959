package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// fakeObserverConn records decoded hub messages.
type fakeObserverConn struct {
	mu       sync.Mutex
	closed   bool
	messages []WSMessage
	writeErr error
}

func (c *fakeObserverConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeObserverConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeObserverConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeObserverConn) received() []WSMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WSMessage(nil), c.messages...)
}

func TestWSHub(t *testing.T) {
	t.Run("reconnect closes the previous connection", func(t *testing.T) {
		hub := NewWSHub()
		first := &fakeObserverConn{}
		second := &fakeObserverConn{}

		hub.Register("user-1", first)
		hub.Register("user-1", second)

		if !first.isClosed() {
			t.Error("Expected the replaced connection to be closed")
		}
		if second.isClosed() {
			t.Error("Expected the new connection to stay open")
		}
		if !hub.IsOnline("user-1") {
			t.Error("Expected user online after reconnect")
		}
	})

	t.Run("stale teardown does not evict a reconnected observer", func(t *testing.T) {
		hub := NewWSHub()
		first := &fakeObserverConn{}
		second := &fakeObserverConn{}

		hub.Register("user-1", first)
		hub.Register("user-1", second)

		// the first connection's handler unwinds after being replaced
		if hub.Unregister("user-1", first) {
			t.Error("Expected stale unregister to report not removed")
		}
		if !hub.IsOnline("user-1") {
			t.Error("Expected the reconnected observer to stay registered")
		}
		if second.isClosed() {
			t.Error("Expected the live connection to stay open")
		}

		hub.SendRefresh("user-1")
		msgs := second.received()
		if len(msgs) != 1 || msgs[0].Type != refreshPushType {
			t.Fatalf("Expected one refresh on the live connection, got %+v", msgs)
		}
	})

	t.Run("unregister removes the live connection", func(t *testing.T) {
		hub := NewWSHub()
		conn := &fakeObserverConn{}

		hub.Register("user-1", conn)
		if !hub.Unregister("user-1", conn) {
			t.Error("Expected unregister to report removed")
		}
		if hub.IsOnline("user-1") {
			t.Error("Expected user offline after unregister")
		}
		if !conn.isClosed() {
			t.Error("Expected the connection to be closed")
		}
	})

	t.Run("write failure evicts the connection", func(t *testing.T) {
		hub := NewWSHub()
		conn := &fakeObserverConn{writeErr: errors.New("broken pipe")}

		hub.Register("user-1", conn)
		if err := hub.SendToUser("user-1", WSMessage{Type: refreshPushType}); err == nil {
			t.Fatal("Expected send to fail")
		}
		if hub.IsOnline("user-1") {
			t.Error("Expected user offline after a failed write")
		}
	})

	t.Run("partner status carries the online flag", func(t *testing.T) {
		hub := NewWSHub()
		conn := &fakeObserverConn{}
		hub.Register("user-1", conn)

		hub.NotifyPartnerStatus("user-1", true)
		hub.NotifyPartnerStatus("user-1", false)

		msgs := conn.received()
		if len(msgs) != 2 {
			t.Fatalf("Expected two messages, got %+v", msgs)
		}
		if msgs[0].Type != "partner_status" || msgs[0].Online == nil || !*msgs[0].Online {
			t.Errorf("Expected online status, got %+v", msgs[0])
		}
		if msgs[1].Online == nil || *msgs[1].Online {
			t.Errorf("Expected offline status, got %+v", msgs[1])
		}
	})
}
