package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chat-sessions/errors"
	"chat-sessions/models"
)

type InMemoryUserRepo struct {
	mu   sync.RWMutex
	seq  int
	byID map[int]*models.User
	byU  map[string]*models.User
}

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		byID: make(map[int]*models.User),
		byU:  make(map[string]*models.User),
	}
}

func (r *InMemoryUserRepo) Create(_ context.Context, username, hashedPwd string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byU[username]; ok {
		return nil, errors.ErrUserAlreadyExists
	}
	r.seq++
	u := &models.User{
		ID:        r.seq,
		Username:  username,
		Password:  hashedPwd,
		CreatedAt: time.Now().UTC(),
	}
	r.byID[u.ID] = u
	r.byU[u.Username] = u
	return u, nil
}

func (r *InMemoryUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byU[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", errors.ErrNotFound, username)
	}
	cp := *u
	return &cp, nil
}

func (r *InMemoryUserRepo) FindByID(_ context.Context, id int) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", errors.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}
