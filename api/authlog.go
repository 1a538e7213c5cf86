package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuthEvent identifies the type of security-relevant action being logged.
type AuthEvent string

const (
	AuthRegister        AuthEvent = "register"
	AuthRegisterFailure AuthEvent = "register_failure"
	AuthLogin           AuthEvent = "login_success"
	AuthLoginFailure    AuthEvent = "login_failure"
	AuthRateLimited     AuthEvent = "auth_rate_limited"
	AuthTokenRejected   AuthEvent = "token_rejected"
)

// authLogger wraps slog.Logger for structured auth event logging.
type authLogger struct {
	logger *slog.Logger
}

func newAuthLogger(logger *slog.Logger) *authLogger {
	return &authLogger{logger: logger.With("component", "auth")}
}

// log writes a structured auth event entry. Attributes must never include
// passwords or raw tokens; account IDs are safe.
func (al *authLogger) log(event AuthEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "auth", baseAttrs...)
}

// logEvent is a convenience for events with an account ID.
func (al *authLogger) logEvent(event AuthEvent, r *http.Request, accountID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("account_id", accountID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed authentication attempt.
func (al *authLogger) logFailure(event AuthEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
