package hub

import (
	"encoding/json"
	"log"
	"sync"
)

const (
	ViewQueue  = "queue"
	ViewCalled = "called"
)

type Client struct {
	ID   string
	Send chan []byte
	View string
}

// Hub fans view payloads out to connected realtime clients. Clients pick a
// view with a subscribe message; a slow client drops payloads rather than
// blocking the broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action string `json:"action"`
	View   string `json:"view"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateView(client *Client, view string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.View = view
}

func (h *Hub) Broadcast(payload []byte, view string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.View != view {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	if msg.Action == "subscribe" && msg.View != ViewQueue && msg.View != ViewCalled {
		return SubscribeMessage{}, false
	}
	return msg, true
}
