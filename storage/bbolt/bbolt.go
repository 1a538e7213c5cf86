// Package bbolt provides a BBolt-backed account store for single-node
// deployments that want durability without running PostgreSQL.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/mfinch/gatehouse/storage"
)

var (
	accountsBucket    = []byte("accounts")
	emailIndexBucket  = []byte("email_idx")
	usernameIdxBucket = []byte("username_idx")
)

// Store implements storage.AccountRepository backed by a BBolt database.
// Accounts are stored as JSON keyed by account ID, with email and username
// index buckets maintained in the same write transaction.
type Store struct {
	db *bbolt.DB
}

var _ storage.AccountRepository = (*Store)(nil)

// NewRepository returns a Store backed by the given BBolt database.
func NewRepository(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{accountsBucket, emailIndexBucket, usernameIdxBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns
// a new Store.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateAccount(_ context.Context, acct *storage.Account) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(emailIndexBucket)
		usernames := tx.Bucket(usernameIdxBucket)
		if emails.Get([]byte(acct.Email)) != nil {
			return storage.ErrDuplicate
		}
		if usernames.Get([]byte(acct.Username)) != nil {
			return storage.ErrDuplicate
		}
		data, err := json.Marshal(acct)
		if err != nil {
			return fmt.Errorf("encoding account: %w", err)
		}
		if err := tx.Bucket(accountsBucket).Put(acct.ID[:], data); err != nil {
			return err
		}
		if err := emails.Put([]byte(acct.Email), acct.ID[:]); err != nil {
			return err
		}
		return usernames.Put([]byte(acct.Username), acct.ID[:])
	})
}

func (s *Store) AccountByID(_ context.Context, id uuid.UUID) (*storage.Account, error) {
	var acct *storage.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(accountsBucket).Get(id[:])
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &acct)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (*storage.Account, error) {
	var acct *storage.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(emailIndexBucket).Get([]byte(email))
		if idx == nil {
			return storage.ErrNotFound
		}
		data := tx.Bucket(accountsBucket).Get(idx)
		if data == nil {
			return fmt.Errorf("email index points at missing account: %w", storage.ErrNotFound)
		}
		return json.Unmarshal(data, &acct)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) AccountExists(_ context.Context, email, username string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(emailIndexBucket).Get([]byte(email)) != nil ||
			tx.Bucket(usernameIdxBucket).Get([]byte(username)) != nil
		return nil
	})
	return exists, err
}

// Ping verifies the database file is still readable.
func (s *Store) Ping(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}
