// Package token mints and verifies the bearer tokens that carry an
// authenticated session. Tokens are HS256-signed JWTs; the signing secret is
// sealed in a memguard Enclave and only materialized for the duration of a
// sign or verify call.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every verification failure: malformed
// input, bad signature, unexpected algorithm, missing subject, or expiry.
// Callers must not be able to distinguish the cases.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload carried by every issued token. Subject holds the
// account ID.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a single HMAC secret.
type Issuer struct {
	secret *memguard.Enclave
}

// NewIssuer seals the signing secret in an enclave. The provided slice is
// wiped by memguard as a side effect; callers must not reuse it.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret must not be empty")
	}
	return &Issuer{secret: memguard.NewEnclave(secret)}, nil
}

// Issue mints a token for the account with iat=now and exp=now+ttl. A zero
// or negative ttl yields an already-expired token; Verify will reject it.
// TTL sanity belongs to configuration validation, not here.
func (i *Issuer) Issue(accountID, email, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	buf, err := i.secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing secret: %w", err)
	}
	defer buf.Destroy()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and validates signature, structure, and expiry.
// The returned error always matches ErrInvalidToken via errors.Is; the
// wrapped detail is for logs only and never reaches a client.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	buf, err := i.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("opening signing secret: %w", err)
	}
	defer buf.Destroy()

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return buf.Bytes(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
