package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"chat-sessions/errors"
	"chat-sessions/models"
)

type InMemoryMessageRepo struct {
	mu  sync.RWMutex
	byS map[string][]models.Message // session -> messages, ascending sequence
}

func NewInMemoryMessageRepo() *InMemoryMessageRepo {
	return &InMemoryMessageRepo{
		byS: make(map[string][]models.Message),
	}
}

// Append never reports a conflict: the write lock covers both the read of
// the current maximum and the insert.
func (r *InMemoryMessageRepo) Append(_ context.Context, msg models.Message) (models.Message, error) {
	if msg.SessionID == "" {
		return models.Message{}, fmt.Errorf("%w: message without session", errors.ErrInvalidOperation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.byS[msg.SessionID]
	msg.SequenceNo = int64(len(msgs)) + 1
	r.byS[msg.SessionID] = append(msgs, msg)
	return msg, nil
}

func (r *InMemoryMessageRepo) ListBySession(_ context.Context, sessionID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.byS[sessionID]
	if len(msgs) == 0 {
		return []models.Message{}, nil
	}
	return slices.Clone(msgs), nil
}

func (r *InMemoryMessageRepo) Latest(_ context.Context, sessionID string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.byS[sessionID]
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: session %s has no messages", errors.ErrNotFound, sessionID)
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}
