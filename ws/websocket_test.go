package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-sessions/config"
	"chat-sessions/models"
	"chat-sessions/pubsub"
	"chat-sessions/repository"
	"chat-sessions/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type harness struct {
	hub     *Hub
	chatSvc *services.ChatService
	srv     *httptest.Server
	users   map[string]models.Identity
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{MaxMessageLength: 100, StoreTimeout: time.Second}
	log := slog.New(slog.DiscardHandler)

	users := repository.NewInMemoryUserRepo()
	messages := repository.NewInMemoryMessageRepo()
	sessions := repository.NewInMemorySessionRepo(messages)
	bus := pubsub.NewMemoryBus(16)

	chatSvc := services.NewChatService(users, sessions, messages, bus, log, cfg)
	hub := NewHub(bus, chatSvc, log)
	chatSvc.SetPresence(hub)

	h := &harness{hub: hub, chatSvc: chatSvc, users: make(map[string]models.Identity)}
	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := users.Create(ctx, name, "hash")
		require.NoError(t, err)
		h.users[name] = models.Identity{UserID: u.ID, Username: u.Username}
	}

	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, h.users[r.URL.Query().Get("user")])
	}))
	t.Cleanup(func() {
		hub.Close()
		h.srv.Close()
		_ = bus.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func next(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHub_LiveDelivery(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	sid, err := h.chatSvc.StartSession(ctx, h.users["alice"], "bob")
	req.NoError(err)

	alice := h.dial(t, "alice")
	bob := h.dial(t, "bob")

	send(t, alice, map[string]any{"type": "join", "session_id": sid})
	req.Equal(models.Event{Type: models.EventJoined, SessionID: sid}, next(t, alice))

	send(t, bob, map[string]any{"type": "join", "session_id": sid})
	req.Equal(models.Event{Type: models.EventJoined, SessionID: sid}, next(t, bob))

	t.Run("should announce the newcomer to the other side", func(t *testing.T) {
		online := next(t, alice)
		req.Equal(models.EventOnline, online.Type)
		req.Equal(h.users["bob"].UserID, online.UserID)
		req.Equal("bob", online.Username)
		req.Empty(online.Origin)
	})

	t.Run("should relay a socket message to the peer only", func(t *testing.T) {
		send(t, alice, map[string]any{"type": "message", "session_id": sid, "body": "hi bob", "timestamp": 1700000000000})

		got := next(t, bob)
		req.Equal(models.EventMessage, got.Type)
		req.Equal(int64(2), got.SequenceNo)
		req.Equal("hi bob", got.Body)
		req.Equal(h.users["alice"].UserID, got.SenderID)
		req.Equal(int64(1700000000000), got.Timestamp)

		// A message posted outside any connection reaches both; alice's
		// next frame being sequence 3 shows she never got her own echo.
		_, err := h.chatSvc.PostMessage(ctx, sid, h.users["bob"], "from http", time.Time{})
		req.NoError(err)
		req.Equal(int64(3), next(t, alice).SequenceNo)
		req.Equal(int64(3), next(t, bob).SequenceNo)
	})

	t.Run("should answer ping with pong", func(t *testing.T) {
		send(t, bob, map[string]any{"type": "ping"})
		req.Equal(models.EventPong, next(t, bob).Type)
	})
}

func TestHub_Rejections(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	sid, err := h.chatSvc.StartSession(context.Background(), h.users["alice"], "bob")
	req.NoError(err)

	carol := h.dial(t, "carol")

	t.Run("should refuse to join someone else's session", func(t *testing.T) {
		send(t, carol, map[string]any{"type": "join", "session_id": sid})
		got := next(t, carol)
		req.Equal(models.EventError, got.Type)
		req.Equal("Forbidden", got.Error)
	})

	t.Run("should refuse to post into someone else's session", func(t *testing.T) {
		send(t, carol, map[string]any{"type": "message", "session_id": sid, "body": "let me in"})
		got := next(t, carol)
		req.Equal(models.EventError, got.Type)
		req.Equal("Forbidden", got.Error)
	})

	t.Run("should report an unknown frame type and keep the connection", func(t *testing.T) {
		send(t, carol, map[string]any{"type": "dance"})
		req.Equal(models.EventError, next(t, carol).Type)

		send(t, carol, map[string]any{"type": "ping"})
		req.Equal(models.EventPong, next(t, carol).Type)
	})
}

func TestHub_Presence(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.users["alice"]

	req.False(h.hub.IsOnline(alice.UserID))

	conn := h.dial(t, "alice")
	req.Eventually(func() bool { return h.hub.IsOnline(alice.UserID) }, 2*time.Second, 10*time.Millisecond)

	sid, err := h.chatSvc.StartSession(context.Background(), h.users["bob"], "alice")
	req.NoError(err)
	entries, err := services.CollectInbox(h.chatSvc.GetInbox(context.Background(), h.users["bob"], sid))
	req.NoError(err)
	req.Len(entries, 1)
	req.True(entries[0].Online)

	req.NoError(conn.Close())
	req.Eventually(func() bool { return !h.hub.IsOnline(alice.UserID) }, 2*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return h.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
