package api

import (
	"log/slog"
	"net/http"
)

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	// Rate-limit before the request body is even read; registration ends in
	// an argon2 derivation and is the most expensive route we have.
	clientIP := a.extractClientIP(r)
	if allowed, retryAfter := a.limiter.allow(clientIP); !allowed {
		a.authlog.logFailure(AuthRateLimited, r, "register rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[RegisterRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	acct, tok, err := a.svc.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		a.authlog.logFailure(AuthRegisterFailure, r, err.Error())
		a.mapError(w, r, err)
		return
	}

	a.authlog.logEvent(AuthRegister, r, acct.ID.String())
	writeJSON(w, http.StatusCreated, AuthResponse{User: userFromAccount(acct), Token: tok})
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := a.extractClientIP(r)
	if allowed, retryAfter := a.limiter.allow(clientIP); !allowed {
		a.authlog.logFailure(AuthRateLimited, r, "login rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	acct, tok, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// The reason stays server-side; the response body never
		// distinguishes unknown email from wrong password.
		a.authlog.logFailure(AuthLoginFailure, r, err.Error())
		a.mapError(w, r, err)
		return
	}

	a.authlog.logEvent(AuthLogin, r, acct.ID.String())
	writeJSON(w, http.StatusOK, AuthResponse{User: userFromAccount(acct), Token: tok})
}

// Me handles GET /auth/me. RequireAuth has already resolved the account.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: userFromAccount(acct)})
}
