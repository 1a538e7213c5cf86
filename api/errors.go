package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mfinch/gatehouse/account"
	"github.com/mfinch/gatehouse/token"
)

// Error codes carried in ErrorResponse.Code.
const (
	codeValidation   = "validation_error"
	codeUnauthorized = "unauthorized"
	codeConflict     = "conflict"
	codeRateLimited  = "rate_limited"
	codeInternal     = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError sends the error envelope and returns the generated error ID so
// callers can tie log lines to the response.
func writeError(w http.ResponseWriter, status int, code, msg string) string {
	id := uuid.NewString()
	writeJSON(w, status, ErrorResponse{ErrorID: id, Code: code, Error: msg})
	return id
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
}

// mapError translates domain errors into the HTTP error envelope. The 401
// cases always answer with the sentinel's message, never the wrapped detail.
// Anything unrecognized is internal: opaque to the client, logged in full
// under the response's error ID.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *account.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, codeValidation, verr.Message)
	case errors.Is(err, account.ErrDuplicate):
		writeError(w, http.StatusBadRequest, codeConflict, account.ErrDuplicate.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, account.ErrInvalidCredentials.Error())
	case errors.Is(err, token.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, token.ErrInvalidToken.Error())
	default:
		id := writeError(w, http.StatusInternalServerError, codeInternal, "an internal server error occurred")
		a.log.LogAttrs(r.Context(), slog.LevelError, "internal error",
			slog.String("error_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
