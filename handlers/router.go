package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"chat-sessions/services"
)

// NewRouter registers every route and wraps them in the shared middleware.
func NewRouter(log *slog.Logger, authSvc *services.AuthService, authH *AuthHandler, chatH *ChatHandler, msgH *MessageHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		respondWithSuccess(w, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
	})

	mux.HandleFunc("POST /api/register", authH.Register)
	mux.HandleFunc("POST /api/login", authH.Login)
	mux.HandleFunc("GET /api/chats", WithAuth(authSvc, chatH.Inbox))
	mux.HandleFunc("POST /api/chats", WithAuth(authSvc, chatH.Start))
	mux.HandleFunc("GET /api/chats/{id}/messages", WithAuth(authSvc, msgH.ListMessages))
	mux.HandleFunc("POST /api/chats/{id}/messages", WithAuth(authSvc, msgH.PostMessage))
	mux.HandleFunc("GET /ws", chatH.WS) // ?token=<token>

	return withCORS(loggingMiddleware(log, recoverMiddleware(log, mux)))
}
