package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/auth"
	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

type staticValidator struct{}

func (staticValidator) ValidateToken(token string) ([]auth.Permission, error) {
	if token != "good-token" {
		return nil, errors.New("invalid token")
	}
	return []auth.Permission{auth.PermOperator}, nil
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(zaptest.NewLogger(t), staticValidator{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		<-hub.done
		ts.Close()
	})

	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func authenticate(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	if err := conn.WriteJSON(map[string]string{"type": "auth", "token": "good-token"}); err != nil {
		t.Fatalf("write auth: %v", err)
	}
	msg := readMessage(t, conn)
	if msg["type"] != string(MessageTypeAuthSuccess) {
		t.Fatalf("type = %v, want %s", msg["type"], MessageTypeAuthSuccess)
	}
}

func TestClientReceivesStatisticsAfterAuth(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	authenticate(t, conn)

	device := types.DeviceInfo{ID: uuid.New(), Name: "Boardroom"}
	hub.StatisticsCollected(context.Background(), device, &types.ExtendedStatistics{
		Statistics: types.Statistics{"Device#model": "AM-3200"},
	})

	msg := readMessage(t, conn)
	if msg["type"] != string(MessageTypeStatistics) {
		t.Fatalf("type = %v, want %s", msg["type"], MessageTypeStatistics)
	}
	if msg["device_id"] != device.ID.String() {
		t.Fatalf("device_id = %v, want %s", msg["device_id"], device.ID)
	}
	data := msg["data"].(map[string]interface{})
	stats := data["statistics"].(map[string]interface{})["statistics"].(map[string]interface{})
	if stats["Device#model"] != "AM-3200" {
		t.Fatalf("statistics = %v", stats)
	}
}

func TestClientRejectedWithoutAuth(t *testing.T) {
	hub, url := startHub(t)

	for name, first := range map[string]map[string]string{
		"wrong type": {"type": "subscribe"},
		"no token":   {"type": "auth"},
		"bad token":  {"type": "auth", "token": "nope"},
	} {
		t.Run(name, func(t *testing.T) {
			conn := dial(t, url)
			if err := conn.WriteJSON(first); err != nil {
				t.Fatalf("write: %v", err)
			}

			msg := readMessage(t, conn)
			if msg["type"] != string(MessageTypeAuthFailed) {
				t.Fatalf("type = %v, want %s", msg["type"], MessageTypeAuthFailed)
			}

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := conn.ReadMessage(); err == nil {
				t.Fatalf("connection should be closed after failed auth")
			}
		})
	}

	if n := hub.GetClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
}

func TestSubscriptionFiltersDevices(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	authenticate(t, conn)

	wanted := types.DeviceInfo{ID: uuid.New(), Name: "Lobby"}
	other := types.DeviceInfo{ID: uuid.New(), Name: "Boardroom"}

	if err := conn.WriteJSON(map[string]interface{}{"type": "subscribe", "device_ids": []string{wanted.ID.String()}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if msg := readMessage(t, conn); msg["type"] != string(MessageTypeSubscribed) {
		t.Fatalf("type = %v, want %s", msg["type"], MessageTypeSubscribed)
	}

	hub.PollFailed(context.Background(), other, errors.New("unreachable"))
	hub.ControlApplied(context.Background(), wanted, []types.ControllableProperty{{Property: "Device#reboot"}}, nil)

	msg := readMessage(t, conn)
	if msg["type"] != string(MessageTypeControlResult) || msg["device_id"] != wanted.ID.String() {
		t.Fatalf("unexpected message: %v", msg)
	}
	if success := msg["data"].(map[string]interface{})["success"]; success != true {
		t.Fatalf("success = %v, want true", success)
	}
}

func TestHubCountsAuthenticatedClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	authenticate(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want 1", hub.GetClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()
	for hub.GetClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client not unregistered after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
