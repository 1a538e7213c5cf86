// Package memory provides a thread-safe in-memory implementation of
// storage.AccountRepository. Suitable for tests, demos, and single-process
// use cases.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mfinch/gatehouse/storage"
)

// Repository is a thread-safe in-memory account store.
type Repository struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*storage.Account
	byEmail    map[string]uuid.UUID
	byUsername map[string]uuid.UUID
}

var _ storage.AccountRepository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{
		byID:       make(map[uuid.UUID]*storage.Account),
		byEmail:    make(map[string]uuid.UUID),
		byUsername: make(map[string]uuid.UUID),
	}
}

func (r *Repository) CreateAccount(_ context.Context, acct *storage.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[acct.Email]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := r.byUsername[acct.Username]; ok {
		return storage.ErrDuplicate
	}
	cp := acct.Clone()
	r.byID[cp.ID] = cp
	r.byEmail[cp.Email] = cp.ID
	r.byUsername[cp.Username] = cp.ID
	return nil
}

func (r *Repository) AccountByID(_ context.Context, id uuid.UUID) (*storage.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return acct.Clone(), nil
}

func (r *Repository) AccountByEmail(_ context.Context, email string) (*storage.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *Repository) AccountExists(_ context.Context, email, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.byEmail[email]; ok {
		return true, nil
	}
	_, ok := r.byUsername[username]
	return ok, nil
}

// Ping always succeeds; the store has no external dependency.
func (r *Repository) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (r *Repository) Close() error { return nil }
