package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/account"
	"github.com/mfinch/gatehouse/api"
	"github.com/mfinch/gatehouse/config"
	"github.com/mfinch/gatehouse/storage"
	bboltstorage "github.com/mfinch/gatehouse/storage/bbolt"
	memorystorage "github.com/mfinch/gatehouse/storage/memory"
	postgresstorage "github.com/mfinch/gatehouse/storage/postgres"
	"github.com/mfinch/gatehouse/token"
	"github.com/mfinch/gatehouse/web"
)

var configPath string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the credential service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.ResolveSecrets(ctx); err != nil {
			return fmt.Errorf("failed to resolve secrets: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger := newLogger(cfg.Log)
		if cfg.UsesDevSecret() {
			logger.Warn("using the built-in development token secret; set token.secret before deploying")
		}

		issuer, err := token.NewIssuer([]byte(cfg.Token.Secret))
		if err != nil {
			return fmt.Errorf("failed to initialize token issuer: %w", err)
		}

		repo, cleanup, err := openRepository(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		svc := account.NewService(repo, issuer, cfg.Token.TTL())

		trusted, err := parseTrustedProxies(cfg.Server.TrustedProxies)
		if err != nil {
			return fmt.Errorf("invalid server.trusted_proxies: %w", err)
		}

		a := api.New(svc, repo,
			api.WithLogger(logger),
			api.WithAuthRateLimit(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst),
			api.WithTrustedProxies(trusted),
		)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(api.RequestLogger(logger))
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		r.Mount("/api/v1", a.Router())

		webHandler, err := web.Handler()
		if err != nil {
			return err
		}
		r.Handle("/*", webHandler)

		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		server := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != ""
		if useTLS {
			server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		logger.Info("server started",
			slog.String("addr", addr),
			slog.String("environment", cfg.Server.Environment),
			slog.String("storage", cfg.Storage.Backend),
			slog.Bool("tls", useTLS),
		)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", slog.String("signal", sig.String()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// openRepository opens the configured storage backend and returns the
// repository plus a cleanup function. The postgres backend has pending
// migrations applied first, so a fresh database is usable without a
// separate migrate run.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.AccountRepository, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		if err := postgresstorage.RunMigrations(ctx, cfg.Storage.DSN); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		repo, err := postgresstorage.NewRepositoryFromDSN(ctx, dsnWithPoolSize(cfg.Storage.DSN, cfg.Storage.PoolSize))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case "bbolt":
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.Storage.Path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bbolt storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case "memory":
		logger.Warn("using in-memory storage; accounts are lost on restart")
		return memorystorage.NewRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// dsnWithPoolSize appends pool_max_conns to the DSN unless the operator
// already set one. Both URL and keyword/value DSN forms are handled.
func dsnWithPoolSize(dsn string, size int) string {
	if size <= 0 || strings.Contains(dsn, "pool_max_conns") {
		return dsn
	}
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "pool_max_conns=" + strconv.Itoa(size)
	}
	return dsn + " pool_max_conns=" + strconv.Itoa(size)
}

// parseTrustedProxies converts the configured CIDR strings to prefixes.
// Bare addresses are accepted as single-host prefixes.
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", entry, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
