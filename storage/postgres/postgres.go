// Package postgres implements storage.AccountRepository backed by PostgreSQL.
//
// Uniqueness of email and username is enforced by unique indexes; the
// SQLSTATE 23505 raised when a concurrent insert wins the race is mapped to
// storage.ErrDuplicate so callers see the same error as a pre-checked
// collision.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfinch/gatehouse/storage"
)

const uniqueViolation = "23505"

// Store implements storage.AccountRepository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.AccountRepository = (*Store)(nil)

// NewRepository returns a Store backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string and
// returns a new Store. Pool sizing is controlled via the DSN
// (pool_max_conns). The schema must already exist; see RunMigrations.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return NewRepository(pool), nil
}

// Pool returns the underlying connection pool, for health reporting.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, acct *storage.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, username, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		acct.ID, acct.Email, acct.Username, acct.PasswordHash, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*storage.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, created_at, updated_at
		 FROM accounts WHERE id = $1`, id))
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*storage.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, created_at, updated_at
		 FROM accounts WHERE email = $1`, email))
}

func (s *Store) AccountExists(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 OR username = $2)`,
		email, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking account existence: %w", err)
	}
	return exists, nil
}

// Ping verifies the database connection for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) scanAccount(row pgx.Row) (*storage.Account, error) {
	var acct storage.Account
	err := row.Scan(&acct.ID, &acct.Email, &acct.Username, &acct.PasswordHash, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	return &acct, nil
}
