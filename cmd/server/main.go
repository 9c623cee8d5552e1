package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alextreichler/mayajewelry/internal/auth"
	"github.com/alextreichler/mayajewelry/internal/config"
	"github.com/alextreichler/mayajewelry/internal/handlers"
	"github.com/alextreichler/mayajewelry/internal/store"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Configure slog as early as possible so config warnings are visible.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg))

	ctx := context.Background()

	// 2. Init Storage (runs migrations for the SQL backend)
	st, err := store.Open(ctx, store.Options{
		Backend:       cfg.Storage,
		Driver:        cfg.DBDriver,
		DSN:           cfg.DatabaseURL,
		UploadDir:     cfg.UploadDir,
		MaxImageWidth: cfg.UploadMaxWidth,
	})
	if err != nil {
		slog.Error("Failed to initialize store", "backend", cfg.Storage, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("Storage ready", "backend", cfg.Storage, "driver", cfg.DBDriver, "uploads", cfg.UploadDir)

	verifier, err := auth.NewVerifier(cfg.PasswordScheme)
	if err != nil {
		slog.Error("Invalid password scheme", "error", err)
		os.Exit(1)
	}
	if err := auth.SeedAdmin(ctx, st, verifier, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		slog.Error("Failed to seed admin user", "error", err)
		os.Exit(1)
	}

	// 3. Session Setup
	sessionStore, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "backend", cfg.SessionBackend, "error", err)
		os.Exit(1)
	}
	defer closeSessions()

	// 4. Setup Handlers
	rateLimiter := handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	defer rateLimiter.Stop()

	srv := &handlers.Server{
		Store:          st,
		Auth:           auth.NewAuthenticator(st, verifier, sessionStore),
		UploadDir:      cfg.UploadDir,
		StaticDir:      cfg.StaticDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Limiter:        rateLimiter,
	}
	if cfg.CSRFEnabled {
		srv.CSRF = csrf.Protect(
			cfg.CSRFKey,
			csrf.Secure(cfg.CookieSecure),
			csrf.Path("/"),
			csrf.TrustedOrigins(cfg.TrustedOrigins()),
			csrf.ErrorHandler(handlers.CSRFFailureHandler()),
		)
	}

	// 5. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Create a channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Block until a signal is received or the listener dies
	select {
	case <-stop:
	case err := <-serveErr:
		slog.Error("Server failed to listen and serve", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully.")
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newSessionStore builds the configured server-side session store and
// returns a func releasing it.
func newSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	opts := auth.DefaultSessionOptions(cfg.CookieSecure, cfg.CookieDomain)

	switch cfg.SessionBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rs := auth.NewRedisSessionStore(client, opts, cfg.SessionKey)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			rs.Close()
			return nil, nil, err
		}
		slog.Info("Using redis session store", "addr", cfg.RedisAddr)
		return rs, func() { rs.Close() }, nil
	default:
		ms := auth.NewMemorySessionStore(opts, 24*time.Hour, cfg.SessionKey)
		return ms, func() { ms.Close() }, nil
	}
}
