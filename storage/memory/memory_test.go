package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfinch/gatehouse/storage"
)

func newAccount(email, username string) *storage.Account {
	now := time.Now().UTC()
	return &storage.Account{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	acct := newAccount("ada@example.com", "ada")

	t.Run("CreateAndGet", func(t *testing.T) {
		if err := repo.CreateAccount(ctx, acct); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}

		got, err := repo.AccountByID(ctx, acct.ID)
		if err != nil {
			t.Fatalf("AccountByID failed: %v", err)
		}
		if got.Email != acct.Email || got.Username != acct.Username || got.PasswordHash != acct.PasswordHash {
			t.Errorf("AccountByID returned wrong account: %+v", got)
		}

		byEmail, err := repo.AccountByEmail(ctx, "ada@example.com")
		if err != nil {
			t.Fatalf("AccountByEmail failed: %v", err)
		}
		if byEmail.ID != acct.ID {
			t.Errorf("AccountByEmail returned wrong account: %+v", byEmail)
		}

		// Test isolation (cloning)
		got.Username = "mallory"
		got2, _ := repo.AccountByID(ctx, acct.ID)
		if got2.Username == "mallory" {
			t.Error("Memory repository should return clones of accounts")
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		err := repo.CreateAccount(ctx, newAccount("ada@example.com", "other"))
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		err := repo.CreateAccount(ctx, newAccount("other@example.com", "ada"))
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.AccountByID(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.AccountByEmail(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		for _, tc := range []struct {
			email, username string
			want            bool
		}{
			{"ada@example.com", "nobody", true},
			{"nobody@example.com", "ada", true},
			{"nobody@example.com", "nobody", false},
		} {
			got, err := repo.AccountExists(ctx, tc.email, tc.username)
			if err != nil {
				t.Fatalf("AccountExists failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("AccountExists(%q, %q) = %v, want %v", tc.email, tc.username, got, tc.want)
			}
		}
	})
}

func TestMemoryRepositoryConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateAccount(ctx, newAccount("race@example.com", "racer"))
		}(i)
	}
	wg.Wait()

	var created, dups int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, storage.ErrDuplicate):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 || dups != n-1 {
		t.Errorf("expected exactly one winner, got %d created / %d duplicates", created, dups)
	}
}
