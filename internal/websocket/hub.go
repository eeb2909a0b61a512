package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"ai-workflowgen-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "session_events"

// StatusUpdate is what watchers receive when a session changes.
type StatusUpdate struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	Event     string    `json:"event"` // status_advanced | turn_completed | session_deleted
}

// Hub fans session status updates out to websocket watchers. Watchers
// subscribe per session id, and Redis pub/sub carries updates across
// instances so a watcher can be connected anywhere.
type Hub struct {
	// Registered watchers map: SessionID -> List of Clients (multi-tab)
	clients map[uuid.UUID][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// Identifies this instance on the shared channel so it can skip its own
	// published messages; Notify already delivered those locally.
	instanceID string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Watcher registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session has no more watchers", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify pushes a status update to every watcher of the session, locally and
// through Redis for watchers connected to other instances.
func (h *Hub) Notify(update StatusUpdate) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "session_update",
		"data": update,
	})

	h.deliverLocal(update.SessionID, data)

	if h.rdb != nil {
		payload := map[string]interface{}{
			"session_id": update.SessionID.String(),
			"origin":     h.instanceID,
			"message":    json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), clusterChannel, jsonPayload)
	}
}

func (h *Hub) deliverLocal(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients, found := h.clients[sessionID]
	h.mu.RUnlock()

	if !found {
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Watcher Send buffer full, dropping connection", map[string]interface{}{"session_id": sessionID})
			close(client.Send)
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to one shared channel; each message names the
	// session it targets, and instances deliver only to sessions they hold
	// watchers for locally.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		h.handleClusterMessage([]byte(msg.Payload))
	}
}

func (h *Hub) handleClusterMessage(raw []byte) {
	var payload struct {
		SessionID string          `json:"session_id"`
		Origin    string          `json:"origin"`
		Message   json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Printf("Redis msg parse error: %v", err)
		return
	}

	// This instance's own message already reached its local watchers.
	if payload.Origin == h.instanceID {
		return
	}

	sid, err := uuid.Parse(payload.SessionID)
	if err != nil {
		return
	}

	h.deliverLocal(sid, payload.Message)
}
