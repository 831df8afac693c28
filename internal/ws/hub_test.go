package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/crypto-alerts/internal/model"
	"github.com/yourorg/crypto-alerts/internal/subscription"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, *subscription.Registry, *websocket.Conn) {
	t.Helper()

	registry := subscription.NewRegistry()
	hub := NewHub(registry, zap.NewNop())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.HandleConnection(w, r); err != nil {
			t.Errorf("HandleConnection failed: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return hub, registry, conn
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHub_JoinThenReceiveUpdate(t *testing.T) {
	hub, registry, conn := startHub(t)

	if err := conn.WriteJSON(map[string]string{"action": "join", "symbol": "btc"}); err != nil {
		t.Fatalf("failed to send join: %v", err)
	}

	var connID string
	waitUntil(t, func() bool {
		members := registry.MembersOf("BTC")
		if len(members) == 1 {
			connID = members[0]
			return true
		}
		return false
	}, "join was not registered")

	update := model.PriceUpdate{
		Symbol: "BTC",
		Price:  decimal.RequireFromString("50000.5"),
	}
	if err := hub.SendUpdate(connID, update); err != nil {
		t.Fatalf("SendUpdate failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read update: %v", err)
	}

	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if envelope.Type != "price_update" {
		t.Errorf("message type = %q, want price_update", envelope.Type)
	}

	var got model.PriceUpdate
	if err := json.Unmarshal(envelope.Data, &got); err != nil {
		t.Fatalf("failed to decode update: %v", err)
	}
	if got.Symbol != "BTC" {
		t.Errorf("Symbol = %q, want BTC", got.Symbol)
	}
	if !got.Price.Equal(update.Price) {
		t.Errorf("Price = %s, want %s", got.Price, update.Price)
	}
}

func TestHub_LeaveStopsMembership(t *testing.T) {
	_, registry, conn := startHub(t)

	if err := conn.WriteJSON(map[string]string{"action": "join", "symbol": "ETH"}); err != nil {
		t.Fatalf("failed to send join: %v", err)
	}
	waitUntil(t, func() bool {
		return len(registry.MembersOf("ETH")) == 1
	}, "join was not registered")

	if err := conn.WriteJSON(map[string]string{"action": "leave", "symbol": "ETH"}); err != nil {
		t.Fatalf("failed to send leave: %v", err)
	}
	waitUntil(t, func() bool {
		return len(registry.MembersOf("ETH")) == 0
	}, "leave was not registered")
}

func TestHub_DisconnectDropsSubscriptions(t *testing.T) {
	hub, registry, conn := startHub(t)

	if err := conn.WriteJSON(map[string]string{"action": "join", "symbol": "BTC"}); err != nil {
		t.Fatalf("failed to send join: %v", err)
	}
	waitUntil(t, func() bool {
		return len(registry.MembersOf("BTC")) == 1
	}, "join was not registered")

	conn.Close()

	waitUntil(t, func() bool {
		return hub.ConnectionCount() == 0
	}, "connection was not dropped")
	waitUntil(t, func() bool {
		return len(registry.MembersOf("BTC")) == 0
	}, "subscriptions were not cleaned up on disconnect")
}

func TestHub_SendUpdateToUnknownConnection(t *testing.T) {
	registry := subscription.NewRegistry()
	hub := NewHub(registry, zap.NewNop())

	err := hub.SendUpdate("no-such-conn", model.PriceUpdate{Symbol: "BTC"})
	if err != ErrUnknownConnection {
		t.Errorf("err = %v, want ErrUnknownConnection", err)
	}
}

func TestHub_UnknownActionIsIgnored(t *testing.T) {
	_, registry, conn := startHub(t)

	if err := conn.WriteJSON(map[string]string{"action": "subscribe", "symbol": "BTC"}); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"action": "join", "symbol": "DOT"}); err != nil {
		t.Fatalf("failed to send join: %v", err)
	}

	waitUntil(t, func() bool {
		return len(registry.MembersOf("DOT")) == 1
	}, "join after unknown action was not processed")

	if members := registry.MembersOf("BTC"); len(members) != 0 {
		t.Errorf("unknown action created a membership: %v", members)
	}
}
