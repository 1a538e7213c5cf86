// Package api exposes the REST surface: registration, login, current-user
// lookup, and health, mounted under /api/v1.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/mfinch/gatehouse/account"
	"github.com/mfinch/gatehouse/storage"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	svc            *account.Service
	repo           storage.AccountRepository
	limiter        *ipRateLimiter
	authlog        *authLogger
	log            *slog.Logger
	trustedProxies []netip.Prefix
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for request handling and auth
// events. If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.log = logger
		a.authlog = newAuthLogger(logger)
	}
}

// WithAuthRateLimit overrides the per-IP limit on the register and login
// routes. perMinute <= 0 disables limiting entirely (tests use this).
func WithAuthRateLimit(perMinute, burst int) Option {
	return func(a *API) {
		a.limiter = newIPRateLimiter(perMinute, burst)
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarded-for headers are
// honored when resolving client IPs. Empty means proxy headers are ignored.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// New creates a new API instance around the credential service. The
// repository is the same one backing the service; the API only uses it for
// health reporting.
func New(svc *account.Service, repo storage.AccountRepository, opts ...Option) *API {
	a := &API{
		svc:     svc,
		repo:    repo,
		limiter: newIPRateLimiter(defaultAuthRatePerMinute, defaultAuthBurst),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
		a.authlog = newAuthLogger(a.log)
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/health", a.Health)

	r.Post("/auth/register", a.Register)
	r.Post("/auth/login", a.Login)
	r.With(a.RequireAuth).Get("/auth/me", a.Me)

	return r
}
