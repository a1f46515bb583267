package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
)

// recordingDispatcher collects dispatched envelopes.
type recordingDispatcher struct {
	mu   sync.Mutex
	envs []protocol.Envelope
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ store.Conn, env protocol.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.envs = append(d.envs, env)
}

func (d *recordingDispatcher) dispatched() []protocol.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.Envelope(nil), d.envs...)
}

// dialTestClient upgrades a loopback connection and returns the wired
// Client, the caller side of the socket, and the dispatcher.
func dialTestClient(t *testing.T) (*Client, *websocket.Conn, *recordingDispatcher, *store.MemoryStore) {
	t.Helper()

	dispatcher := &recordingDispatcher{}
	st := store.NewMemoryStore()
	upgrader := websocket.Upgrader{}

	clientCh := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, dispatcher, st)
		clientCh <- client
		go client.WritePump()
		go client.ReadPump(context.Background())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	select {
	case client := <-clientCh:
		return client, peer, dispatcher, st
	case <-time.After(time.Second):
		t.Fatal("server never built a client")
		return nil, nil, nil, nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for " + what)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestClient_DispatchesInboundEnvelopes(t *testing.T) {
	_, peer, dispatcher, _ := dialTestClient(t)

	frame := `{"senderId":"c1","messageId":"m1","type":"QUERY_CARS","payload":{}}`
	if err := peer.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, "dispatch", func() bool { return len(dispatcher.dispatched()) == 1 })

	env := dispatcher.dispatched()[0]
	if env.SenderID != "c1" || env.Type != protocol.TypeQueryCars {
		t.Errorf("dispatched envelope = %+v, want sender c1 QUERY_CARS", env)
	}
}

func TestClient_MalformedFrameKeepsConnection(t *testing.T) {
	_, peer, dispatcher, _ := dialTestClient(t)

	if err := peer.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write malformed: %v", err)
	}

	// A valid envelope after the malformed one still gets through, so the
	// connection survived.
	frame := `{"senderId":"c1","messageId":"m2","type":"END_RENTAL"}`
	if err := peer.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write valid: %v", err)
	}

	waitFor(t, "dispatch", func() bool {
		envs := dispatcher.dispatched()
		return len(envs) == 1 && envs[0].MessageID == "m2"
	})
}

func TestClient_EnqueueDelivers(t *testing.T) {
	client, peer, _, _ := dialTestClient(t)

	env, err := protocol.New(protocol.TypeNotify, protocol.NotifyPayload{Message: "hello"}, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	data, err := protocol.Encode(env)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := client.Enqueue(data); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}

	got, err := protocol.Decode(frame)
	if err != nil {
		t.Fatalf("decode delivered frame: %v", err)
	}
	if got.Type != protocol.TypeNotify {
		t.Errorf("delivered type = %q, want NOTIFY", got.Type)
	}
}

func TestClient_EnqueueAfterCloseFails(t *testing.T) {
	client, _, _, _ := dialTestClient(t)

	client.closeSend()

	if err := client.Enqueue([]byte("{}")); err != ErrConnClosed {
		t.Errorf("Enqueue() after close error = %v, want ErrConnClosed", err)
	}
}

func TestClient_DisconnectDropsBinding(t *testing.T) {
	client, peer, dispatcher, st := dialTestClient(t)

	// One envelope makes ReadPump remember the sender id for cleanup.
	frame := `{"senderId":"c1","messageId":"m1","type":"QUERY_CARS"}`
	if err := peer.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "sender observed", func() bool { return len(dispatcher.dispatched()) == 1 })

	st.BindConnection("c1", client)
	peer.Close()

	waitFor(t, "binding dropped", func() bool {
		_, ok := st.ConnectionOf("c1")
		return !ok
	})
}

func TestClient_Kick(t *testing.T) {
	client, peer, _, _ := dialTestClient(t)

	client.Kick("Session replaced by new connection.")

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := peer.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("peer read error = %v, want CloseError", err)
	}
	if closeErr.Code != WsCloseCodeSessionKicked {
		t.Errorf("close code = %d, want %d", closeErr.Code, WsCloseCodeSessionKicked)
	}

	if err := client.Enqueue([]byte("{}")); err != ErrConnClosed {
		t.Errorf("Enqueue() after kick error = %v, want ErrConnClosed", err)
	}
}
