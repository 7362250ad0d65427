package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-sessions/services"
	"chat-sessions/ws"
)

type ChatHandler struct {
	hub     *ws.Hub
	chatSvc *services.ChatService
	authSvc *services.AuthService
	log     *slog.Logger
}

func NewChatHandler(h *ws.Hub, c *services.ChatService, a *services.AuthService, log *slog.Logger) *ChatHandler {
	return &ChatHandler{hub: h, chatSvc: c, authSvc: a, log: log}
}

// Inbox lists the caller's sessions. ?rid= marks the open one.
func (h *ChatHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	entries, err := services.CollectInbox(h.chatSvc.GetInbox(r.Context(), identity, r.URL.Query().Get("rid")))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithSuccess(w, entries)
}

// Start opens (or returns) the session with another user.
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}

	sessionID, err := h.chatSvc.StartSession(r.Context(), identity, req.Username)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithSuccess(w, map[string]string{"session_id": sessionID})
}

// WS upgrades to the push channel. Browsers cannot set headers on a
// websocket handshake, so the token comes in the query string.
func (h *ChatHandler) WS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.log.Debug("WebSocket connection rejected: missing token", "remote", r.RemoteAddr)
		respondWithError(w, "Missing parameter", "token query parameter is required", http.StatusBadRequest)
		return
	}

	identity, err := h.authSvc.ParseToken(token)
	if err != nil {
		h.log.Debug("WebSocket connection rejected: invalid token", "remote", r.RemoteAddr, "error", err)
		respondWithError(w, "Unauthorized", "Invalid token", http.StatusUnauthorized)
		return
	}

	h.hub.ServeWS(w, r, identity)
}
