package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any 401 from the server and is what the
	// session guards return when the session resolved anonymous.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthenticated is returned by RequireAnonymous when a session is
	// already established.
	ErrAuthenticated = errors.New("already authenticated")
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match any 401 API error.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}
