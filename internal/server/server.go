package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/plodoki/pakd/internal/handler"
	"github.com/plodoki/pakd/internal/server/middleware"
	"github.com/plodoki/pakd/internal/service"
	"github.com/plodoki/pakd/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	SessionTTL      time.Duration
	// CreateRateLimit is the number of key creations allowed per user per
	// minute before requests are rejected with 429.
	CreateRateLimit int
	// LoginRateLimit is the number of login attempts allowed per client IP
	// per minute.
	LoginRateLimit int
	Version        string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		SessionTTL:      24 * time.Hour,
		CreateRateLimit: 3,
		LoginRateLimit:  10,
		Version:         "dev",
	}
}

// Server is the top-level HTTP server for pakd. It owns the Chi router, the
// key store, and the key management services.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	keys       *service.KeyManager
	issuer     *service.Issuer
	verifier   *service.Verifier
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, keys *service.KeyManager, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		keys:     keys,
		issuer:   service.NewIssuer(keys, st),
		verifier: service.NewVerifier(keys, st),
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- Published key set and API docs (no auth required) ---
	r.Get("/.well-known/jwks.json", handler.NewJWKSHandler(s.keys, s.logger).ServeKeySet)
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.Version).ServeSpec)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		authHandler := handler.NewAuthHandler(s.store, s.issuer, s.cfg.SessionTTL, s.logger)

		// Login is unauthenticated but throttled per IP; logout is stateless.
		r.With(middleware.RateLimitByIP(s.cfg.LoginRateLimit)).
			Post("/auth/session", authHandler.Login)
		r.Delete("/auth/session", authHandler.Logout)

		// Personal API key management requires an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.verifier))

			keyHandler := handler.NewAPIKeyHandler(s.store, s.issuer, s.logger)

			r.Get("/api-keys", keyHandler.List)
			r.With(middleware.RateLimitPerUser(s.cfg.CreateRateLimit)).
				Post("/api-keys", keyHandler.Create)
			r.Delete("/api-keys/{id}", keyHandler.Revoke)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the key store is
// reachable and the signing key is loadable, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded","checks":{"store":"error"}}`))
		return
	}
	if _, _, err := s.keys.PublicKey(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded","checks":{"signing_key":"error"}}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
