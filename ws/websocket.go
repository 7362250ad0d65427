package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"chat-sessions/errors"
	"chat-sessions/models"
	"chat-sessions/pubsub"
	"chat-sessions/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	writeWait  = 30 * time.Second
	pongWait   = 300 * time.Second
	pingPeriod = 240 * time.Second
	sendBuffer = 256
)

// Hub tracks live connections and who is online. Fan-out itself goes
// through the bus, one subscription per joined session.
type Hub struct {
	bus     pubsub.Bus
	chatSvc *services.ChatService
	log     *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	online  map[int]int // userID -> open connections
}

type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity models.Identity

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*pubsub.Subscription
}

type inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

func NewHub(bus pubsub.Bus, chatSvc *services.ChatService, log *slog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		chatSvc: chatSvc,
		log:     log,
		clients: make(map[*Client]struct{}),
		online:  make(map[int]int),
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	h.online[c.identity.UserID]++
	h.log.Info("Client connected", "conn", c.id, "user_id", c.identity.UserID, "username", c.identity.Username,
		"connections", h.online[c.identity.UserID])
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.online[c.identity.UserID]--
	if h.online[c.identity.UserID] <= 0 {
		delete(h.online, c.identity.UserID)
	}
	h.log.Info("Client disconnected", "conn", c.id, "user_id", c.identity.UserID)
}

// IsOnline reports whether userID has at least one open connection.
func (h *Hub) IsOnline(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[userID] > 0
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := lo.Keys(h.clients)
	h.mu.RUnlock()

	for _, c := range clients {
		c.shutdown()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS: allow all for demo
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and serves the push channel for identity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		id:       uuid.NewString(),
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		identity: identity,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[string]*pubsub.Subscription),
	}
	h.addClient(client)

	go client.writePump()
	go client.readPump()
}

// shutdown drops every subscription and stops both pumps. Safe to call more
// than once.
func (c *Client) shutdown() {
	c.cancel()

	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*pubsub.Subscription)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}

	c.hub.removeClient(c)
	_ = c.conn.Close()
}

func (c *Client) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Client read error", "conn", c.id, "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.sendEvent(models.Event{Type: models.EventError, Error: "Invalid JSON", Message: "Bad frame format"})
			continue
		}

		switch in.Type {
		case "ping":
			c.sendEvent(models.Event{Type: models.EventPong})
		case "pong":
		case "join":
			c.join(in.SessionID)
		case models.EventMessage:
			c.post(in)
		default:
			c.sendEvent(models.Event{Type: models.EventError, Error: "Unknown type", Message: in.Type})
		}
	}
}

// join subscribes the connection to a session it takes part in and tells
// the other subscribers that this user is online.
func (c *Client) join(sessionID string) {
	if _, err := c.hub.chatSvc.Session(c.ctx, sessionID, c.identity); err != nil {
		c.sendError(sessionID, err)
		return
	}

	c.mu.Lock()
	_, already := c.subs[sessionID]
	if !already && c.ctx.Err() == nil {
		sub := c.hub.bus.Subscribe(sessionID)
		c.subs[sessionID] = sub
		go c.forward(sub)
	}
	c.mu.Unlock()

	c.sendEvent(models.Event{Type: models.EventJoined, SessionID: sessionID})
	if already {
		return
	}

	payload, err := json.Marshal(models.Event{
		Type:      models.EventOnline,
		SessionID: sessionID,
		UserID:    c.identity.UserID,
		Username:  c.identity.Username,
		Origin:    c.id,
	})
	if err == nil {
		c.hub.bus.Publish(sessionID, payload)
	}
}

func (c *Client) post(in inbound) {
	var at time.Time
	if in.Timestamp > 0 {
		at = time.UnixMilli(in.Timestamp)
	}
	if _, err := c.hub.chatSvc.PostMessageFrom(c.ctx, c.id, in.SessionID, c.identity, in.Body, at); err != nil {
		c.sendError(in.SessionID, err)
	}
}

// forward relays bus events to the socket, skipping the ones this
// connection caused.
func (c *Client) forward(sub *pubsub.Subscription) {
	for payload := range sub.C() {
		var event models.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.hub.log.Warn("Dropping malformed bus event", "topic", sub.Topic, "error", err)
			continue
		}
		if event.Origin == c.id {
			continue
		}
		event.Origin = ""
		c.sendEvent(event)
	}
}

func (c *Client) sendError(sessionID string, err error) {
	c.sendEvent(models.Event{Type: models.EventError, SessionID: sessionID, Error: errorTitle(err), Message: err.Error()})
}

func errorTitle(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return "Not found"
	case stderrors.Is(err, errors.ErrForbidden):
		return "Forbidden"
	case stderrors.Is(err, errors.ErrInvalidOperation):
		return "Invalid operation"
	case stderrors.Is(err, errors.ErrUnavailable), stderrors.Is(err, errors.ErrConflict):
		return "Unavailable"
	default:
		return "Internal error"
	}
}

// sendEvent never blocks: a client that stopped reading loses events.
func (c *Client) sendEvent(event models.Event) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case <-c.ctx.Done():
	case c.send <- b:
	default:
		c.hub.log.Warn("Client send buffer full, dropping event", "conn", c.id, "type", event.Type)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.hub.log.Debug("Client next writer error", "conn", c.id, "error", err)
				return
			}
			if _, err := w.Write(msg); err != nil {
				c.hub.log.Debug("Client write error", "conn", c.id, "error", err)
				return
			}
			if err := w.Close(); err != nil {
				c.hub.log.Debug("Client writer close error", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte(strconv.Itoa(c.identity.UserID))); err != nil {
				c.hub.log.Debug("Client ping error", "conn", c.id, "error", err)
				return
			}
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
