package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"legal-review-client/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "review_state"

// Frame is what bridge clients receive.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

// Hub fans state frames out to every connected bridge client and, when
// Redis is configured, to the bridge clients of other instances.
type Hub struct {
	// Registered clients by connection id.
	clients map[uuid.UUID]*Client

	mu     sync.RWMutex
	closed bool

	// Redis connection for cross-instance fan-out
	rdb *redis.Client

	instanceID string
	logger     logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run relays frames from other instances until ctx is done, then closes
// every client. Register fails once Run has returned.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	for id, c := range h.clients {
		close(c.Send)
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// Register adds the client. initial, if set, is queued as its first frame
// before any broadcast can reach it.
func (h *Hub) Register(client *Client, initial []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if initial != nil {
		select {
		case client.Send <- initial:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping initial frame", map[string]interface{}{"client_id": client.ID})
		}
	}
	h.clients[client.ID] = client
	h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.ID})
	return true
}

// Unregister is safe to call more than once and after Run has returned.
func (h *Hub) Unregister(client *Client) {
	h.drop(client)
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.ID})
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a typed frame to all local clients and publishes it for
// other instances.
func (h *Hub) Broadcast(frameType string, data interface{}) {
	msg, err := encodeFrame(frameType, data)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode frame", map[string]interface{}{"type": frameType, "error": err.Error()})
		return
	}

	h.deliver(msg)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.instanceID, Message: msg})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func encodeFrame(frameType string, data interface{}) ([]byte, error) {
	return json.Marshal(Frame{Type: frameType, Data: data})
}

// deliver never blocks; slow clients are disconnected.
func (h *Hub) deliver(msg []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, disconnecting", map[string]interface{}{"client_id": client.ID})
		h.drop(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.Message)
		}
	}
}
