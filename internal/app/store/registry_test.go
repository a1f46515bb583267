package store

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// stubConn is a minimal Conn recording kicks.
type stubConn struct {
	mu         sync.Mutex
	kickReason string
}

func (c *stubConn) Enqueue([]byte) error { return nil }

func (c *stubConn) Kick(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kickReason = reason
}

func (c *stubConn) kicked() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kickReason
}

func TestRegistry_BindConnection_LastWins(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	first := &stubConn{}
	second := &stubConn{}

	r.BindConnection("client-1", first)
	r.BindConnection("client-1", second)

	if got, _ := r.ConnectionOf("client-1"); got != Conn(second) {
		t.Error("ConnectionOf() did not return the newest connection")
	}
	if first.kicked() == "" {
		t.Error("replaced connection was not kicked")
	}
	if second.kicked() != "" {
		t.Errorf("new connection was kicked: %q", second.kicked())
	}
}

func TestRegistry_BindConnection_SameConnNoKick(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	conn := &stubConn{}
	r.BindConnection("client-1", conn)
	r.BindConnection("client-1", conn)

	if conn.kicked() != "" {
		t.Errorf("rebinding the same connection kicked it: %q", conn.kicked())
	}
}

func TestRegistry_Drop_StaleConnIgnored(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	old := &stubConn{}
	replacement := &stubConn{}

	r.BindConnection("client-1", old)
	r.BindConnection("client-1", replacement)

	// The replaced connection's late cleanup must not evict its successor.
	if r.Drop("client-1", old) {
		t.Error("Drop() removed the binding for a stale connection")
	}
	if _, ok := r.ConnectionOf("client-1"); !ok {
		t.Fatal("successor connection was evicted")
	}

	if !r.Drop("client-1", replacement) {
		t.Error("Drop() refused the currently bound connection")
	}
	if _, ok := r.ConnectionOf("client-1"); ok {
		t.Error("connection still bound after drop")
	}
}

func TestRegistry_Drop_ForgetsUser(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	conn := &stubConn{}
	r.BindConnection("client-1", conn)
	r.BindUser("client-1", "user-1")

	if got, ok := r.UserIDByClient("client-1"); !ok || got != "user-1" {
		t.Fatalf("UserIDByClient() = (%q, %v), want (user-1, true)", got, ok)
	}

	r.Drop("client-1", nil)

	if _, ok := r.UserIDByClient("client-1"); ok {
		t.Error("user binding survived the drop")
	}
}
