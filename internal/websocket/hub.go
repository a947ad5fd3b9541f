package livews

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserUpdated    = "user_updated"
	EventNewMessage     = "new_message"
)

// Event is the wire form of a session notification.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

type delivery struct {
	event    Event
	terminal bool
}

// Hub owns the subscription registry for live sessions and delivers
// published events to every current subscriber of a session. A single
// run loop consumes one event channel, so subscribers of a session all
// observe events in publish order.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	events     chan delivery
	log        *zap.Logger
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	userID    string
	send      chan []byte
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan delivery, 64),
		log:        log,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID, userID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.sessionID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.sessionID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.sessionID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.sessionID)
			}
		case d := <-h.events:
			h.deliver(d.event)
			if d.terminal {
				h.dropSession(d.event.SessionID)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish enqueues an event for every current subscriber of the session.
// Delivery is best-effort: a subscriber that cannot keep up is dropped
// rather than blocking the publish.
func (h *Hub) Publish(sessionID, eventType string, data any) {
	h.events <- delivery{event: newEvent(sessionID, eventType, data)}
}

// CloseSession delivers a final event to the session's subscribers and
// then removes them all; used when a session reaches its terminal state.
func (h *Hub) CloseSession(sessionID, eventType string, data any) {
	h.events <- delivery{event: newEvent(sessionID, eventType, data), terminal: true}
}

func newEvent(sessionID, eventType string, data any) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func (h *Hub) deliver(event Event) {
	set, ok := h.clients[event.SessionID]
	if !ok {
		return
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	for client := range set {
		select {
		case client.send <- encoded:
		default:
			h.log.Warn("subscriber send buffer full, dropping",
				zap.String("session_id", client.sessionID),
				zap.String("user_id", client.userID))
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, event.SessionID)
	}
}

func (h *Hub) dropSession(sessionID string) {
	set, ok := h.clients[sessionID]
	if !ok {
		return
	}
	delete(h.clients, sessionID)
	for client := range set {
		close(client.send)
	}
}

type sender interface {
	SendMessage(ctx context.Context, actorID int64, sessionID string, body string) (*models.Message, error)
}

// ReadPump consumes inbound frames until the connection drops. The only
// accepted frame is a chat message, which is routed through the
// coordinator so the roster and mute checks apply before broadcast.
func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	actorID, err := strconv.ParseInt(c.userID, 10, 64)
	if err != nil {
		writeError(c, "invalid user")
		return
	}

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type string `json:"type"`
			Body string `json:"body"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != "message" {
			writeError(c, "unsupported message type")
			continue
		}

		if _, err := service.SendMessage(context.Background(), actorID, c.sessionID, incoming.Body); err != nil {
			writeError(c, "failed to send message")
			continue
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func writeError(client *Client, message string) {
	payload, err := json.Marshal(Event{
		Type:      "error",
		SessionID: client.sessionID,
		Data:      map[string]string{"error": message},
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		client.hub.Unregister(client)
	}
}
