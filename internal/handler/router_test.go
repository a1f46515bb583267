package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"carshare/internal/app/broker"
	"carshare/internal/app/events"
	"carshare/internal/app/orchestrator"
	"carshare/internal/app/store"
	"carshare/internal/configs"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	orch := orchestrator.New(st, broker.New(0), events.NopPublisher{})

	router := Router(&AppDeps{
		Orchestrator: orch,
		Store:        st,
		Config: &configs.AppConfig{
			Environment: "development",
			Port:        8080,
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func TestHealth(t *testing.T) {
	srv, st := newTestServer(t)

	if err := store.SeedFleet(context.Background(), st, 3); err != nil {
		t.Fatalf("SeedFleet() error = %v", err)
	}

	res, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var body struct {
		Code int `json:"code"`
		Data struct {
			Status string `json:"status"`
			Users  int    `json:"users"`
			Cars   int    `json:"cars"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body.Code != 0 {
		t.Errorf("code = %d, want 0", body.Code)
	}
	if body.Data.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Data.Status)
	}
	if body.Data.Cars != 3 {
		t.Errorf("cars = %d, want 3", body.Data.Cars)
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (status %v)", err, res)
	}
	defer conn.Close()

	// The session is live: an envelope round-trips through the dispatcher.
	frame := `{"senderId":"c1","messageId":"m1","type":"QUERY_CARS","payload":{}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(reply), "QUERY_CARS_RESULT") {
		t.Errorf("reply = %s, want a QUERY_CARS_RESULT envelope", reply)
	}
}
