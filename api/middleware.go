package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/mfinch/gatehouse/storage"
)

type contextKey int

const accountKey contextKey = iota

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// RequireAuth verifies the bearer token and resolves the account it refers
// to, storing it on the request context. The account is re-fetched on every
// request rather than trusted from the claims, so a deleted account loses
// access the moment it disappears from storage.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			a.authlog.logFailure(AuthTokenRejected, r, "missing bearer token")
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
			return
		}

		acct, err := a.svc.CurrentUser(r.Context(), tok)
		if err != nil {
			a.authlog.logFailure(AuthTokenRejected, r, err.Error())
			a.mapError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountFromContext(ctx context.Context) *storage.Account {
	acct, _ := ctx.Value(accountKey).(*storage.Account)
	return acct
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
