package api

import (
	"time"

	"github.com/mfinch/gatehouse/storage"
)

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public representation of an account. The password hash never
// appears here.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse is returned from POST /auth/register and POST /auth/login.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// UserResponse is returned from GET /auth/me.
type UserResponse struct {
	User User `json:"user"`
}

// HealthCheck reports the status of one subsystem.
type HealthCheck struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

// ErrorResponse is returned for all error cases. ErrorID also appears in the
// corresponding server log line so responses can be correlated with logs.
type ErrorResponse struct {
	ErrorID string `json:"error_id"`
	Code    string `json:"error_code"`
	Error   string `json:"error"`
}

func userFromAccount(acct *storage.Account) User {
	return User{
		ID:        acct.ID.String(),
		Email:     acct.Email,
		Username:  acct.Username,
		CreatedAt: acct.CreatedAt,
	}
}
