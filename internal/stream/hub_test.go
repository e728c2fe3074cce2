package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription registers asynchronously with the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish("trade", map[string]any{"token_id": "tok-1", "side": "buy"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != "trade" {
		t.Fatalf("event type = %q, want trade", event.Type)
	}
	data, ok := event.Data.(map[string]any)
	if !ok || data["token_id"] != "tok-1" {
		t.Fatalf("event data = %+v", event.Data)
	}
	if event.TS == 0 {
		t.Fatal("event timestamp missing")
	}
}

func TestPublishOnNilHubIsSafe(t *testing.T) {
	var hub *Hub
	hub.Publish("trade", nil)
}
