// Package storage defines the persistence boundary for account records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no account matches the lookup key.
var ErrNotFound = errors.New("account not found")

// ErrDuplicate is returned when a create collides with an existing email or
// username. Backends map their native unique-violation signal to this
// sentinel; it never identifies which column collided.
var ErrDuplicate = errors.New("account already exists")

// Account is the stored account record. PasswordHash is an argon2id PHC
// string; it is persisted by the backends but must never cross the API
// boundary (handlers serialize their own response types).
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can't mutate a backend's copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// AccountRepository is implemented by the memory, bbolt, and postgres
// backends. Email and username arguments are expected in canonical
// (normalized) form; backends compare them byte-for-byte.
type AccountRepository interface {
	// CreateAccount persists a new account. It returns ErrDuplicate if the
	// email or username is already taken, including when a concurrent create
	// wins the race between an existence check and the insert.
	CreateAccount(ctx context.Context, acct *Account) error

	// AccountByID returns the account with the given ID or ErrNotFound.
	AccountByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// AccountByEmail returns the account with the given email or ErrNotFound.
	AccountByEmail(ctx context.Context, email string) (*Account, error)

	// AccountExists reports whether any account holds the email or the
	// username.
	AccountExists(ctx context.Context, email, username string) (bool, error)
}
