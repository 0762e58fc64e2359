package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory, keyed by id and by
// case-folded email.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byLogin map[string]*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*User), byLogin: make(map[string]*User)}
}

func (r *MemoryRepository) Create(_ context.Context, user *User) (*User, error) {
	login := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byLogin[login]; ok {
		return nil, common.ErrAlreadyExists
	}
	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	r.byID[u.ID] = &u
	r.byLogin[login] = &u

	out := u
	return &out, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byLogin[strings.ToLower(email)]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *u
	return &out, nil
}
