// Package client is the Go SDK for a gatehouse server. It bundles a REST
// client, pluggable token persistence, and a session controller that tracks
// authentication state across process restarts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	apiPrefix = "/api/v1"
	userAgent = "gatehouse-client/1.0"

	// Error envelopes are small; anything past this is not ours.
	maxErrorBody = 1 << 16
)

// User is the account identity returned by the server.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the result of a successful register or login call.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User User `json:"user"`
}

// Client talks to a gatehouse server. It reads bearer tokens from its
// TokenStore but never writes to it; persistence decisions belong to the
// SessionController (or whoever owns the store).
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenStore
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to tune timeouts
// or inject a test transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenStore sets the store tokens are read from. Defaults to an
// in-memory store.
func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a client for the server at baseURL. The URL names the server
// root; the versioned API prefix is applied internally.
func New(baseURL string, opts ...Option) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     NewMemoryTokenStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the client's token store.
func (c *Client) Tokens() TokenStore { return c.tokens }

// OnUnauthorized registers fn to run whenever any call receives a 401,
// regardless of endpoint. It fires once per response, before the error is
// returned to the caller. Set it before sharing the client across
// goroutines.
func (c *Client) OnUnauthorized(fn func()) { c.onUnauthorized = fn }

// Register creates an account and returns the new session.
func (c *Client) Register(ctx context.Context, email, username, password string) (*Session, error) {
	var sess Session
	err := c.do(ctx, http.MethodPost, "/auth/register", "", registerRequest{
		Email:    email,
		Username: username,
		Password: password,
	}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Login authenticates with an email and password and returns the session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{
		Email:    email,
		Password: password,
	}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Me resolves the identity behind the token currently in the store.
func (c *Client) Me(ctx context.Context) (*User, error) {
	tok, _ := c.tokens.Load()
	return c.MeWithToken(ctx, tok)
}

// MeWithToken resolves the identity behind an explicit token. The session
// controller uses this form so it knows exactly which token a check used.
func (c *Client) MeWithToken(ctx context.Context, token string) (*User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Ping checks server liveness via the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errorFromResponse turns a non-2xx response into an *APIError and fires the
// unauthorized hook on any 401, whatever endpoint produced it.
func (c *Client) errorFromResponse(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Code    string `json:"error_code"`
		Message string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
	}

	if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	return apiErr
}
