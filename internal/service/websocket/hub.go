package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"kiosk/internal/logger"
	"kiosk/internal/service/notify"

	"github.com/gorilla/websocket"
)

// Event types pushed to kiosk viewers.
const (
	EventToast      = "toast"
	EventOverlay    = "overlay"
	EventPrediction = "prediction"
	EventSession    = "session"
)

const writeWait = 5 * time.Second

// Envelope is the JSON frame sent to viewers.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// HubService fans kiosk events out to every connected viewer.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub; call Run to start delivering.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run delivers messages until ctx is done, then closes every viewer.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// Register adds a viewer. After Run has returned the connection is closed.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Send queues an event for every viewer. When viewers fall behind the event
// is dropped instead of blocking the caller.
func (h *HubService) Send(eventType string, payload interface{}) {
	data, err := json.Marshal(Envelope{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to encode %s event: %v", eventType, err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warning("Viewer queue full - dropping %s event", eventType)
	}
}

// Publish implements notify.Publisher.
func (h *HubService) Publish(n notify.Notification) {
	h.Send(EventToast, n)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
