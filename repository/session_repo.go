package repository

import (
	"context"
	"fmt"
	"sync"

	"chat-sessions/errors"
	"chat-sessions/models"
)

type InMemorySessionRepo struct {
	mu     sync.RWMutex
	data   map[string]*models.ChatSession
	byPair map[[2]int]string
	order  []string

	messages *InMemoryMessageRepo
}

// NewInMemorySessionRepo writes first messages into messages, so both repos
// must be used together.
func NewInMemorySessionRepo(messages *InMemoryMessageRepo) *InMemorySessionRepo {
	return &InMemorySessionRepo{
		data:     make(map[string]*models.ChatSession),
		byPair:   make(map[[2]int]string),
		messages: messages,
	}
}

func (r *InMemorySessionRepo) Create(ctx context.Context, session models.ChatSession, first models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[session.ID]; ok {
		return fmt.Errorf("%w: session id %s taken", errors.ErrConflict, session.ID)
	}
	lo, hi := session.Pair()
	if _, ok := r.byPair[[2]int{lo, hi}]; ok {
		return fmt.Errorf("%w: session for %d/%d exists", errors.ErrConflict, lo, hi)
	}

	first.SessionID = session.ID
	if _, err := r.messages.Append(ctx, first); err != nil {
		return err
	}

	s := session
	r.data[s.ID] = &s
	r.byPair[[2]int{lo, hi}] = s.ID
	r.order = append(r.order, s.ID)
	return nil
}

func (r *InMemorySessionRepo) FindByID(_ context.Context, id string) (*models.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", errors.ErrNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (r *InMemorySessionRepo) FindByPair(_ context.Context, a, b int) (*models.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lo, hi := models.OrderedPair(a, b)
	id, ok := r.byPair[[2]int{lo, hi}]
	if !ok {
		return nil, fmt.Errorf("%w: no session for %d/%d", errors.ErrNotFound, lo, hi)
	}
	cp := *r.data[id]
	return &cp, nil
}

func (r *InMemorySessionRepo) ListByUser(_ context.Context, userID int) ([]models.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []models.ChatSession
	for _, id := range r.order {
		s := r.data[id]
		if s.HasParticipant(userID) {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}
