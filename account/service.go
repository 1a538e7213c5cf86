package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfinch/gatehouse/internal/util"
	"github.com/mfinch/gatehouse/storage"
	"github.com/mfinch/gatehouse/token"
)

// Service wires account storage, password hashing, and token issuance.
type Service struct {
	repo     storage.AccountRepository
	issuer   *token.Issuer
	tokenTTL time.Duration
	hash     util.Argon2idParams
}

// Option configures a Service.
type Option func(*Service)

// WithHashParams overrides the argon2id cost parameters. Tests use this to
// keep hashing cheap; stored hashes remain verifiable either way because the
// PHC string carries its own parameters.
func WithHashParams(params util.Argon2idParams) Option {
	return func(s *Service) { s.hash = params }
}

// NewService creates a credential service. tokenTTL is the lifetime of
// issued tokens; configuration validation guarantees it is positive in real
// deployments.
func NewService(repo storage.AccountRepository, issuer *token.Issuer, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		issuer:   issuer,
		tokenTTL: tokenTTL,
		hash:     util.DefaultArgon2idParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the input, claims the email and username, and returns
// the new account with a freshly issued token. Collisions surface as
// ErrDuplicate whether they are caught by the pre-check or by the storage
// unique constraint during a concurrent registration.
func (s *Service) Register(ctx context.Context, email, username, password string) (*storage.Account, string, error) {
	email = util.NormalizeEmail(email)
	username = util.NormalizeUsername(username)

	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if err := validateUsername(username); err != nil {
		return nil, "", err
	}
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	exists, err := s.repo.AccountExists(ctx, email, username)
	if err != nil {
		return nil, "", fmt.Errorf("checking account existence: %w", err)
	}
	if exists {
		return nil, "", ErrDuplicate
	}

	hash, err := util.HashArgon2id(password, s.hash)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	acct := &storage.Account{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", ErrDuplicate
		}
		return nil, "", fmt.Errorf("creating account: %w", err)
	}

	tok, err := s.issuer.Issue(acct.ID.String(), acct.Email, acct.Username, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}
	return acct, tok, nil
}

// dummyHash is compared against when login hits an unknown email, so that
// path burns the same argon2 work as a real password check.
var dummyHash = sync.OnceValue(func() string {
	h, err := util.HashArgon2id("gatehouse.dummy.password", util.DefaultArgon2idParams())
	if err != nil {
		return ""
	}
	return h
})

// Login authenticates by email and password and returns the account with a
// freshly issued token. Unknown email and wrong password are deliberately
// collapsed into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*storage.Account, string, error) {
	email = util.NormalizeEmail(email)

	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if password == "" {
		return nil, "", validationErrorf("password", "password must not be empty")
	}

	acct, err := s.repo.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_, _ = util.CompareArgon2id(password, dummyHash())
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("looking up account: %w", err)
	}

	ok, err := util.CompareArgon2id(password, acct.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	tok, err := s.issuer.Issue(acct.ID.String(), acct.Email, acct.Username, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}
	return acct, tok, nil
}

// CurrentUser verifies the token and re-fetches the account it refers to.
// The account is loaded fresh rather than trusted from the claims, so a
// deleted account invalidates its outstanding tokens immediately; that case
// reports token.ErrInvalidToken like any other dead session.
func (s *Service) CurrentUser(ctx context.Context, tokenString string) (*storage.Account, error) {
	claims, err := s.issuer.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", token.ErrInvalidToken)
	}

	acct, err := s.repo.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", token.ErrInvalidToken)
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	return acct, nil
}
