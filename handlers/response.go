package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"chat-sessions/errors"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func respondWithError(w http.ResponseWriter, error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func respondWithSuccess(w http.ResponseWriter, data any) {
	respondWithStatus(w, http.StatusOK, data)
}

func respondWithStatus(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
	})
}

// StatusFor maps the error taxonomy onto HTTP.
func StatusFor(err error) (int, string) {
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case stderrors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case stderrors.Is(err, errors.ErrInvalidOperation):
		return http.StatusBadRequest, "Invalid operation"
	case stderrors.Is(err, errors.ErrUserAlreadyExists), stderrors.Is(err, errors.ErrConflict):
		return http.StatusConflict, "Conflict"
	case stderrors.Is(err, errors.ErrInvalidCredentials), stderrors.Is(err, errors.ErrInvalidToken):
		return http.StatusUnauthorized, "Unauthorized"
	case stderrors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable, "Unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func respondWithServiceError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	respondWithError(w, title, err.Error(), status)
}
