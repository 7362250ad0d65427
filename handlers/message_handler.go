package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"chat-sessions/services"

	"github.com/go-playground/validator/v10"
)

type MessageHandler struct {
	svc      *services.ChatService
	validate *validator.Validate
}

func NewMessageHandler(s *services.ChatService) *MessageHandler {
	return &MessageHandler{svc: s, validate: validator.New()}
}

// ListMessages returns the whole transcript of a session.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	msgs, err := h.svc.GetHistory(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithSuccess(w, msgs)
}

type postMessageRequest struct {
	Body      string `json:"body" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"` // unix millis, optional
}

func (h *MessageHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", "Bad request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, "Invalid message", err.Error(), http.StatusBadRequest)
		return
	}

	var at time.Time
	if req.Timestamp > 0 {
		at = time.UnixMilli(req.Timestamp)
	}

	id, err := h.svc.PostMessage(r.Context(), r.PathValue("id"), identity, req.Body, at)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithStatus(w, http.StatusCreated, id)
}
