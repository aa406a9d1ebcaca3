package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender delivers one encoded frame to a connection.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

type Client struct {
	Role        Role
	UserID      string
	ConnectedAt time.Time

	sender Sender
}

// Hub tracks open connections per role and fans messages out between them.
// Delivery is best effort: a failed send is logged and skipped.
type Hub struct {
	Logger zerolog.Logger
	Now    func() time.Time
	NewID  func() string

	mu    sync.RWMutex
	conns map[Role]map[*Client]struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{Logger: logger}
}

func (h *Hub) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *Hub) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *Hub) timestamp() string {
	return h.now().Format(time.RFC3339Nano)
}

func (h *Hub) system(kind, content string) Message {
	return Message{
		"message_id": h.newID(),
		"sender":     senderSystem,
		"content":    content,
		"timestamp":  h.timestamp(),
		"type":       kind,
	}
}

// Register adds the connection to its role set and greets it.
func (h *Hub) Register(ctx context.Context, role Role, userID string, s Sender) *Client {
	c := &Client{Role: role, UserID: userID, ConnectedAt: h.now(), sender: s}
	h.mu.Lock()
	if h.conns == nil {
		h.conns = map[Role]map[*Client]struct{}{}
	}
	if h.conns[role] == nil {
		h.conns[role] = map[*Client]struct{}{}
	}
	h.conns[role][c] = struct{}{}
	h.mu.Unlock()

	h.Logger.Info().Str("role", string(role)).Str("user_id", userID).Msg("relay connection opened")
	h.send(ctx, c, h.system(TypeSystem, fmt.Sprintf("Welcome! You are connected as %s.", role)))
	return c
}

// Unregister removes the connection and tells the agents it left.
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	_, ok := h.conns[c.Role][c]
	delete(h.conns[c.Role], c)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.Logger.Info().Str("role", string(c.Role)).Str("user_id", c.UserID).Msg("relay connection closed")
	h.Broadcast(ctx, RoleAgent, h.system(TypeSystem, fmt.Sprintf("%s %s has disconnected", c.Role, c.UserID)))
}

// HandleInbound stamps a client frame, routes it by type and confirms it to the
// sender. Frames that are not a JSON object only produce an error reply.
func (h *Hub) HandleInbound(ctx context.Context, c *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg == nil {
		h.send(ctx, c, h.system(TypeError, "Invalid message format"))
		return
	}

	id := h.newID()
	msg["message_id"] = id
	msg["timestamp"] = h.timestamp()
	msg["sender_role"] = string(c.Role)
	msg["sender_id"] = c.UserID

	if target, ok := route(c.Role, msg); ok {
		h.Broadcast(ctx, target, msg)
	}

	confirm := h.system(TypeConfirmation, "Message delivered")
	confirm["original_message_id"] = id
	h.send(ctx, c, confirm)
}

// Broadcast sends msg to every connection currently in role.
func (h *Hub) Broadcast(ctx context.Context, role Role, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.Logger.Error().Err(err).Msg("encode relay message")
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.conns[role]))
	for c := range h.conns[role] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.write(ctx, c, data)
	}
}

// Count returns the number of open connections for role.
func (h *Hub) Count(role Role) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[role])
}

func (h *Hub) send(ctx context.Context, c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.Logger.Error().Err(err).Msg("encode relay message")
		return
	}
	h.write(ctx, c, data)
}

func (h *Hub) write(ctx context.Context, c *Client, data []byte) {
	if err := c.sender.Send(ctx, data); err != nil {
		h.Logger.Warn().Err(err).Str("role", string(c.Role)).Str("user_id", c.UserID).Msg("relay send failed")
	}
}
