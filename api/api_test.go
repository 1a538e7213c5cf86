package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfinch/gatehouse/account"
	"github.com/mfinch/gatehouse/api"
	"github.com/mfinch/gatehouse/internal/util"
	"github.com/mfinch/gatehouse/storage/memory"
	"github.com/mfinch/gatehouse/token"
)

// fastHash keeps the argon2 work factor low so the flow tests stay quick.
var fastHash = util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func setupServer(t *testing.T, opts ...api.Option) *httptest.Server {
	t.Helper()
	repo := memory.NewRepository()
	iss, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	svc := account.NewService(repo, iss, time.Hour, account.WithHashParams(fastHash))

	opts = append([]api.Option{api.WithAuthRateLimit(0, 0)}, opts...)
	a := api.New(svc, repo, opts...)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	return httptest.NewServer(r)
}

func doJSON(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) api.ErrorResponse {
	t.Helper()
	var envelope api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotEmpty(t, envelope.ErrorID)
	return envelope
}

func registerAccount(t *testing.T, baseURL, email, username, password string) api.AuthResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/v1/auth/register", "", api.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var reg api.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	require.NotEmpty(t, reg.Token)
	require.NotEmpty(t, reg.User.ID)
	return reg
}

func TestRegisterLoginMe(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	reg := registerAccount(t, srv.URL, "ada@example.com", "ada", "correct horse battery")
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.Equal(t, "ada", reg.User.Username)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login api.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.Equal(t, reg.User.ID, login.User.ID)
	require.NotEmpty(t, login.Token)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", login.Token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me api.UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, reg.User.ID, me.User.ID)
	assert.Equal(t, "ada", me.User.Username)
}

func TestRegisterDuplicate(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	registerAccount(t, srv.URL, "grace@example.com", "grace", "strong password")

	tests := []struct {
		name string
		req  api.RegisterRequest
	}{
		{"email taken", api.RegisterRequest{Email: "grace@example.com", Username: "other", Password: "strong password"}},
		{"email taken case folded", api.RegisterRequest{Email: "GRACE@Example.COM", Username: "other2", Password: "strong password"}},
		{"username taken", api.RegisterRequest{Email: "other@example.com", Username: "grace", Password: "strong password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", tt.req)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			envelope := decodeError(t, resp)
			assert.Equal(t, "conflict", envelope.Code)
			// The message never says which field collided.
			assert.NotContains(t, envelope.Error, "email already")
			assert.NotContains(t, envelope.Error, "username already")
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	tests := []struct {
		name string
		req  api.RegisterRequest
	}{
		{"bad email", api.RegisterRequest{Email: "not-an-email", Username: "valid", Password: "long enough"}},
		{"short username", api.RegisterRequest{Email: "a@example.com", Username: "ab", Password: "long enough"}},
		{"short password", api.RegisterRequest{Email: "a@example.com", Username: "valid", Password: "short"}},
		{"empty body", api.RegisterRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", tt.req)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			envelope := decodeError(t, resp)
			assert.Equal(t, "validation_error", envelope.Code)
		})
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	registerAccount(t, srv.URL, "real@example.com", "realuser", "the real password")

	respWrongPassword := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.LoginRequest{
		Email:    "real@example.com",
		Password: "not the password",
	})
	defer respWrongPassword.Body.Close()
	respNoSuchUser := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever here",
	})
	defer respNoSuchUser.Body.Close()

	require.Equal(t, http.StatusUnauthorized, respWrongPassword.StatusCode)
	require.Equal(t, http.StatusUnauthorized, respNoSuchUser.StatusCode)

	a := decodeError(t, respWrongPassword)
	b := decodeError(t, respNoSuchUser)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Error, b.Error)
	assert.Equal(t, "unauthorized", a.Code)
}

func TestMeRequiresValidToken(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	reg := registerAccount(t, srv.URL, "eve@example.com", "eve", "password123")

	t.Run("valid token accepted", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", reg.Token, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing header", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		envelope := decodeError(t, resp)
		assert.Equal(t, "unauthorized", envelope.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "not.a.jwt", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("corrupted token", func(t *testing.T) {
		// Flip one character in the signed payload. The signature check
		// must reject it even though the shape is still a JWT.
		corrupted := []byte(reg.Token)
		mid := len(corrupted) / 2
		if corrupted[mid] == 'x' {
			corrupted[mid] = 'y'
		} else {
			corrupted[mid] = 'x'
		}
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", string(corrupted), nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		envelope := decodeError(t, resp)
		assert.Equal(t, "unauthorized", envelope.Code)
		// The detail of why verification failed stays server-side.
		assert.Equal(t, token.ErrInvalidToken.Error(), envelope.Error)
	})
}

func TestRequestBodyLimits(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	t.Run("oversized body", func(t *testing.T) {
		huge := api.RegisterRequest{
			Email:    "big@example.com",
			Username: "biguser",
			Password: strings.Repeat("a", 2<<20),
		}
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", huge)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("trailing garbage", func(t *testing.T) {
		body := `{"email":"a@example.com","username":"valid","password":"long enough"}{"x":1}`
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/v1/auth/register", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Checks["database"].Status)
}

func TestAuthRateLimit(t *testing.T) {
	srv := setupServer(t, api.WithAuthRateLimit(1, 2))
	defer srv.Close()

	login := api.LoginRequest{Email: "rl@example.com", Password: "some password"}

	// Burst of 2 is admitted; both fail auth, which still consumes budget.
	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", login)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", login)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	envelope := decodeError(t, resp)
	assert.Equal(t, "rate_limited", envelope.Code)
}

func TestOpenAPISpecServed(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/openapi.yaml", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "yaml")
}
