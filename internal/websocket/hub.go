package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"content-pipeline-be/internal/model"
	"content-pipeline-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const redisChannel = "pipeline_events"

// Hub fans pipeline progress events out to connected websocket clients.
// When Redis is configured it also relays events across instances.
type Hub struct {
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out (nil when disabled)
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Hub", "Pipeline watcher connected", map[string]interface{}{"watchers": h.watcherCount()})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Pipeline watcher disconnected", map[string]interface{}{"watchers": h.watcherCount()})
		}
	}
}

// Broadcast sends a pipeline event to every connected client and, when Redis
// is available, publishes it for the other instances.
func (h *Hub) Broadcast(event model.PipelineEvent) {
	data, err := json.Marshal(map[string]interface{}{
		"type": "pipeline_event",
		"data": event,
	})
	if err != nil {
		return
	}

	h.send(data)

	if h.rdb != nil {
		if err := h.rdb.Publish(context.Background(), redisChannel, data).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// send pushes raw bytes to local clients only.
func (h *Hub) send(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow consumer; drop it
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) subscribeToRedis() {
	sub := h.rdb.Subscribe(context.Background(), redisChannel)
	for msg := range sub.Channel() {
		// Events from other instances go to local clients only, else
		// they would ping-pong back into Redis.
		h.send([]byte(msg.Payload))
	}
}

func (h *Hub) watcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
