package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/alextreichler/mayajewelry/internal/auth"
	"github.com/alextreichler/mayajewelry/internal/store"
	"github.com/gorilla/csrf"
)

// Server bundles everything the routes need.
type Server struct {
	Store          store.Storage
	Auth           *auth.Authenticator
	UploadDir      string
	StaticDir      string
	MaxUploadBytes int64
	// Limiter guards the public POST endpoints; nil disables rate limiting.
	Limiter *RateLimiter
	// CSRF wraps the mux when set and exposes GET /api/csrf.
	CSRF func(http.Handler) http.Handler
}

// Handler builds the mux and wraps it with the middleware chain:
// Recover -> Logging -> Security Headers -> CSRF -> Mux.
func (s *Server) Handler() http.Handler {
	orderHandler := &OrderHandler{Store: s.Store, MaxUploadBytes: s.MaxUploadBytes}
	adminHandler := &AdminHandler{Store: s.Store, Auth: s.Auth}

	limit := func(h http.HandlerFunc) http.HandlerFunc {
		if s.Limiter == nil {
			return h
		}
		return s.Limiter.Middleware(h)
	}
	guard := s.Auth.RequireAuth

	mux := http.NewServeMux()

	mux.Handle("GET /uploads/", UploadsHandler(s.UploadDir))

	// Public Routes
	mux.HandleFunc("POST /api/orders", limit(orderHandler.SubmitOrder))
	mux.HandleFunc("POST /api/login", limit(adminHandler.Login))
	mux.HandleFunc("POST /api/logout", adminHandler.Logout)
	mux.HandleFunc("GET /api/user", adminHandler.CurrentUser)

	// Protected Routes
	mux.HandleFunc("GET /api/orders", guard(adminHandler.ListOrders))
	mux.HandleFunc("GET /api/orders/stats", guard(adminHandler.OrderStats))
	mux.HandleFunc("GET /api/orders/{id}", guard(adminHandler.GetOrder))
	mux.HandleFunc("DELETE /api/orders/{id}", guard(adminHandler.DeleteOrder))

	if s.CSRF != nil {
		mux.HandleFunc("GET /api/csrf", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"token": csrf.Token(r)})
		})
	}

	mux.HandleFunc("GET /healthz", s.health)
	mux.Handle("GET /metrics", MetricsHandler())

	if home := NewHomeHandler(s.StaticDir); home != nil {
		mux.HandleFunc("/", home.Index)
	}

	var handler http.Handler = mux
	if s.CSRF != nil {
		handler = s.CSRF(handler)
	}
	return RecoverMiddleware(LoggingMiddleware(SecurityHeadersMiddleware(handler)))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "Storage unreachable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
