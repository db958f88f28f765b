// internal/httpserver/server.go
//
// HTTP server wiring for the Busdle backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/metrics".
//   - Busdle endpoints (anonymous cookie): mounted under /busdle.
//   - Ride log + statistics: public reads, admin-only writes.
//   - Admin login (single password → JWT cookie) and template management.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Each browser is identified by an anonymous cookie; its game state lives
//     in a game.Machine persisted through the configured StateStore.

package httpserver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/busdle/internal/daily"
	"github.com/robalobadob/busdle/internal/game"
	"github.com/robalobadob/busdle/internal/rides"
)

// Config carries the settings the server needs from the environment.
type Config struct {
	ClientOrigin      string // CORS origin; defaults to http://localhost:5173
	JWTSecret         string
	JWTExpiresDays    int
	CookieName        string
	AdminPasswordHash []byte // bcrypt; empty disables admin login
	Production        bool   // Secure + SameSite=None cookies
}

// Server bundles router, stores and per-client game sessions.
type Server struct {
	r        *chi.Mux
	cfg      Config
	rides    *rides.Store
	daily    *daily.Store
	states   game.StateStore
	fallback []string
	sessions *sessions
	metrics  *metrics
	now      func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
// fallback is the bus bank used when neither the template nor the admin
// supplies one.
func New(cfg Config, db *sql.DB, states game.StateStore, fallback []string) *Server {
	if cfg.ClientOrigin == "" {
		cfg.ClientOrigin = "http://localhost:5173"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "busdle_token"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev_secret_change_me"
	}
	if cfg.JWTExpiresDays <= 0 {
		cfg.JWTExpiresDays = 14
	}

	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		rides:    rides.NewStore(db),
		daily:    daily.NewStore(db),
		states:   states,
		fallback: fallback,
		sessions: newSessions(states),
		metrics:  newMetrics(),
		now:      time.Now,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"busdle","endpoints":["/health","/busdle","/rides","/stats","/auth/*","/admin/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Handle("/metrics", s.metrics.handler())

	s.mountBusdle()
	s.mountRides()
	s.mountAuthRoutes()
	s.mountAdmin()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// today returns the server's current date key.
func (s *Server) today() string { return daily.DateKey(s.now()) }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
