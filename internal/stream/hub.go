package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans safety events out to websocket subscribers of a monitoring
// session. With redis configured, events also cross process boundaries so a
// contact watching from another node sees the same stream. Delivery is
// at-least-once: the hub's own publish loops back through the relay, so an
// event may reach a local subscriber twice.
type Hub struct {
	redis  *redis.Client
	log    *slog.Logger
	pubsub *redis.PubSub

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		redis:   redisClient,
		log:     log.With("component", "stream"),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(context.Background(), "safety:*:events")
		go h.relay()
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// Broadcast delivers the payload to local subscribers and publishes it for
// other nodes. Slow subscribers lose messages rather than blocking the
// monitor.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), eventChannel(sessionID), payload).Err()
		if err != nil {
			h.log.Error("redis publish", "session_id", sessionID, "error", err)
		}
	}
}

// deliver sends under the read lock. Unregister closes Send while holding the
// write lock, so a send can never race a close.
func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) relay() {
	for msg := range h.pubsub.Channel() {
		h.deliver(sessionIDFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

// Close stops the redis relay. Local subscribers keep their connections.
func (h *Hub) Close() error {
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}

func eventChannel(sessionID string) string {
	return "safety:" + sessionID + ":events"
}

func sessionIDFromChannel(ch string) string {
	// safety:{session}:events
	const prefix = "safety:"
	const suffix = ":events"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
