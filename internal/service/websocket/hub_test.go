package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kiosk/internal/logger"
	"kiosk/internal/service/notify"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*HubService, string) {
	t.Helper()

	hub := NewHubService(logger.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *HubService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, hub.GetClientCount())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestHub_PublishReachesViewers(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, hub, 2)

	hub.Publish(notify.Notification{Channel: notify.ChannelToast, Level: notify.LevelSuccess, Message: "Checked in: Alice (Morning)"})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}

		var env struct {
			Type    string              `json:"type"`
			Payload notify.Notification `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if env.Type != EventToast || env.Payload.Message != "Checked in: Alice (Morning)" {
			t.Errorf("Unexpected envelope: %+v", env)
		}
	}
}

func TestHub_SendDoesNotBlockWithoutRun(t *testing.T) {
	hub := NewHubService(logger.NewDiscard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Send(EventOverlay, map[string]int{"i": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked with no running hub")
	}
}
