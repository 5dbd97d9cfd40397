package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatspark/internal/domain"
	"chatspark/internal/metrics"
	"chatspark/internal/presence"
)

// client is one live connection. Writes are serialized per connection
// because gorilla/websocket allows only one concurrent writer.
type client struct {
	userID  int64
	conn    *websocket.Conn
	writeMu sync.Mutex
	evicted bool
}

func (c *client) send(payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(payload)
}

// Hub manages live connections keyed by user id. A user holds at most one
// authoritative connection: registering a new one evicts the old.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*client
	rooms   map[int64]map[int64]*client

	online presence.Store
	log    zerolog.Logger
}

func NewHub(online presence.Store, log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]*client),
		rooms:   make(map[int64]map[int64]*client),
		online:  online,
		log:     log.With().Str("component", "ws-hub").Logger(),
	}
}

// Register makes conn the authoritative connection for userID. Any previous
// connection is marked evicted and closed; its teardown must not emit an
// offline signal since the user never left.
func (h *Hub) Register(ctx context.Context, userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	old := h.clients[userID]
	if old != nil {
		old.evicted = true
	}
	c := &client{userID: userID, conn: conn}
	h.clients[userID] = c
	h.mu.Unlock()

	if old != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "reconnected elsewhere")
		_ = old.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		old.conn.Close()
		metrics.ConnectionsEvicted.Inc()
		h.log.Info().Int64("user_id", userID).Msg("evicted stale connection")
	}

	if err := h.online.Add(ctx, userID); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("presence add failed")
	}
	metrics.ConnectionsActive.Inc()

	h.broadcastExcept(userID, map[string]any{
		"type":   "user_online",
		"userId": userID,
	})
}

// Unregister tears down the connection for userID, but only if conn is
// still the authoritative one. An evicted connection's teardown is a no-op
// for presence: its replacement already owns the user's online state.
func (h *Hub) Unregister(ctx context.Context, userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[userID]
	if !ok || c.conn != conn {
		h.mu.Unlock()
		metrics.ConnectionsActive.Dec()
		return
	}
	delete(h.clients, userID)
	for _, room := range h.rooms {
		delete(room, userID)
	}
	h.mu.Unlock()

	metrics.ConnectionsActive.Dec()

	if err := h.online.Remove(ctx, userID); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("presence remove failed")
	}

	h.broadcastExcept(userID, map[string]any{
		"type":   "user_offline",
		"userId": userID,
	})
}

// JoinRoom subscribes the user's connection to a conversation-scoped channel.
func (h *Hub) JoinRoom(conversationID, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[userID]
	if !ok {
		return
	}
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[int64]*client)
	}
	h.rooms[conversationID][userID] = c
}

// SendToUser sends a payload to the user's personal channel. It is a no-op
// when the user has no live connection.
func (h *Hub) SendToUser(userID int64, payload any) {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.send(payload); err != nil {
		h.log.Debug().Err(err).Int64("user_id", userID).Msg("send failed")
	}
}

// BroadcastToRoom sends a payload to every member of a conversation room
// except the given user.
func (h *Hub) BroadcastToRoom(conversationID, exceptUserID int64, payload any) {
	h.mu.RLock()
	room := h.rooms[conversationID]
	targets := make([]*client, 0, len(room))
	for uid, c := range room {
		if uid != exceptUserID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(payload); err != nil {
			h.log.Debug().Err(err).Int64("user_id", c.userID).Msg("room send failed")
		}
	}
}

func (h *Hub) broadcastExcept(exceptUserID int64, payload any) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for uid, c := range h.clients {
		if uid != exceptUserID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(payload); err != nil {
			h.log.Debug().Err(err).Int64("user_id", c.userID).Msg("broadcast send failed")
		}
	}
}

// IsConnected reports whether the user holds a live connection in this hub.
func (h *Hub) IsConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// DeliverMessage pushes a consumer-created message to its recipient's
// personal channel. No-op when the recipient is offline.
func (h *Hub) DeliverMessage(msg *domain.Message) {
	h.SendToUser(msg.ReceiverID, map[string]any{
		"type":           "message_received",
		"message":        msg,
		"conversationId": msg.ConversationID,
	})
}
