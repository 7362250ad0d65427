package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-sessions/config"
	"chat-sessions/errors"
	"chat-sessions/pubsub"
	"chat-sessions/repository"
	"chat-sessions/services"
	"chat-sessions/ws"

	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:        "secret",
		JWTExpiry:        1,
		MaxMessageLength: 50,
		StoreTimeout:     time.Second,
	}
	log := slog.New(slog.DiscardHandler)

	users := repository.NewInMemoryUserRepo()
	messages := repository.NewInMemoryMessageRepo()
	sessions := repository.NewInMemorySessionRepo(messages)
	bus := pubsub.NewMemoryBus(16)

	authSvc := services.NewAuthService(users, log, cfg)
	chatSvc := services.NewChatService(users, sessions, messages, bus, log, cfg)
	hub := ws.NewHub(bus, chatSvc, log)
	chatSvc.SetPresence(hub)

	router := NewRouter(log, authSvc,
		NewAuthHandler(authSvc),
		NewChatHandler(hub, chatSvc, authSvc, log),
		NewMessageHandler(chatSvc))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		_ = bus.Close()
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func register(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	status, env := call(t, srv, http.MethodPost, "/api/register", "", map[string]string{"username": username, "password": "secret123"})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestRouter_ChatFlow(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	t.Run("should start a session once per pair", func(t *testing.T) {
		status, env := call(t, srv, http.MethodPost, "/api/chats", alice, map[string]string{"username": "bob"})
		req.Equal(http.StatusOK, status)
		var first map[string]string
		req.NoError(json.Unmarshal(env.Data, &first))

		status, env = call(t, srv, http.MethodPost, "/api/chats", bob, map[string]string{"username": "alice"})
		req.Equal(http.StatusOK, status)
		var second map[string]string
		req.NoError(json.Unmarshal(env.Data, &second))
		req.Equal(first["session_id"], second["session_id"])
	})

	_, env := call(t, srv, http.MethodPost, "/api/chats", alice, map[string]string{"username": "bob"})
	var started map[string]string
	req.NoError(json.Unmarshal(env.Data, &started))
	sid := started["session_id"]
	messagesPath := fmt.Sprintf("/api/chats/%s/messages", sid)

	t.Run("should post and list messages in order", func(t *testing.T) {
		status, env := call(t, srv, http.MethodPost, messagesPath, bob, map[string]any{"body": "hello", "timestamp": 1700000000000})
		req.Equal(http.StatusCreated, status)
		var id struct {
			SessionID  string `json:"session_id"`
			SequenceNo int64  `json:"sequence_no"`
		}
		req.NoError(json.Unmarshal(env.Data, &id))
		req.Equal(sid, id.SessionID)
		req.Equal(int64(2), id.SequenceNo)

		status, env = call(t, srv, http.MethodGet, messagesPath, alice, nil)
		req.Equal(http.StatusOK, status)
		var history []struct {
			SequenceNo int64     `json:"sequence_no"`
			Body       string    `json:"body"`
			Timestamp  time.Time `json:"timestamp"`
		}
		req.NoError(json.Unmarshal(env.Data, &history))
		req.Len(history, 2)
		req.Equal("New Chat Request", history[0].Body)
		req.Equal("hello", history[1].Body)
		req.Equal(int64(1700000000000), history[1].Timestamp.UnixMilli())
	})

	t.Run("should list the inbox with the active flag", func(t *testing.T) {
		status, env := call(t, srv, http.MethodGet, "/api/chats?rid="+sid, alice, nil)
		req.Equal(http.StatusOK, status)
		var inbox []struct {
			SessionID     string `json:"session_id"`
			Username      string `json:"username"`
			Active        bool   `json:"active"`
			LatestMessage string `json:"latest_message"`
		}
		req.NoError(json.Unmarshal(env.Data, &inbox))
		req.Len(inbox, 1)
		req.Equal(sid, inbox[0].SessionID)
		req.Equal("bob", inbox[0].Username)
		req.True(inbox[0].Active)
		req.Equal("hello", inbox[0].LatestMessage)
	})
}

func TestRouter_ErrorMapping(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	alice := register(t, srv, "alice")
	register(t, srv, "bob")
	carol := register(t, srv, "carol")

	_, env := call(t, srv, http.MethodPost, "/api/chats", alice, map[string]string{"username": "bob"})
	var started map[string]string
	req.NoError(json.Unmarshal(env.Data, &started))
	messagesPath := fmt.Sprintf("/api/chats/%s/messages", started["session_id"])

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"should reject a missing token", http.MethodGet, "/api/chats", "", nil, http.StatusUnauthorized},
		{"should reject a bad token", http.MethodGet, "/api/chats", "garbage", nil, http.StatusUnauthorized},
		{"should forbid a non participant", http.MethodGet, messagesPath, carol, nil, http.StatusForbidden},
		{"should report an unknown session", http.MethodGet, "/api/chats/ZZZZZZZZZZ/messages", alice, nil, http.StatusNotFound},
		{"should reject a malformed session id", http.MethodGet, "/api/chats/nope/messages", alice, nil, http.StatusBadRequest},
		{"should report an unknown user", http.MethodPost, "/api/chats", alice, map[string]string{"username": "dave"}, http.StatusNotFound},
		{"should refuse a self chat", http.MethodPost, "/api/chats", alice, map[string]string{"username": "alice"}, http.StatusBadRequest},
		{"should refuse an empty body", http.MethodPost, messagesPath, alice, map[string]string{"body": ""}, http.StatusBadRequest},
		{"should refuse a duplicate username", http.MethodPost, "/api/register", "", map[string]string{"username": "alice", "password": "secret123"}, http.StatusConflict},
		{"should refuse a wrong password", http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "wrong-one"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := call(t, srv, tc.method, tc.path, tc.token, tc.body)
			require.Equal(t, tc.status, status, env.Message)
			require.False(t, env.Success)
			require.NotEmpty(t, env.Error)
		})
	}
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)
	status, env := call(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)
}

func TestStatusFor(t *testing.T) {
	req := require.New(t)
	cases := map[error]int{
		errors.ErrNotFound:           http.StatusNotFound,
		errors.ErrForbidden:          http.StatusForbidden,
		errors.ErrInvalidOperation:   http.StatusBadRequest,
		errors.ErrConflict:           http.StatusConflict,
		errors.ErrUnavailable:        http.StatusServiceUnavailable,
		errors.ErrInvalidCredentials: http.StatusUnauthorized,
		errors.ErrUserAlreadyExists:  http.StatusConflict,
		fmt.Errorf("boom"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		status, _ := StatusFor(fmt.Errorf("wrapped: %w", err))
		req.Equal(want, status, err.Error())
	}
}
