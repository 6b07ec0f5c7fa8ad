package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yatesdr/ablink/config"
)

// server is tagctl's HTTP surface: read-only status/read endpoints open to
// anyone that can reach the listener, plus a pair of admin-guarded
// mutating routes for an operator to nudge a wedged gateway.
type server struct {
	cfg      *config.PoolConfig
	admin    *adminCreds
	sessions *sessionStore

	router chi.Router
	http   *http.Server
	mu     sync.Mutex
}

func newServer(cfg *config.PoolConfig, admin *adminCreds, sessionSecret []byte) *server {
	s := &server{
		cfg:      cfg,
		admin:    admin,
		sessions: newSessionStore(sessionSecret),
	}
	s.setupRoutes()
	return s
}

func (s *server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/plcs", s.handlePLCs)
	r.Get("/plcs/{gateway}/tags/{name}", s.handleTagRead)

	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Post("/plcs/{gateway}/reconnect", s.requireAdmin(s.handleForceReconnect))
	r.Post("/plcs/{gateway}/tags/{name}/clear-cache", s.requireAdmin(s.handleClearCache))

	s.router = r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.mu.Lock()
			s.http = nil
			s.mu.Unlock()
		}
	}()
	return nil
}

func (s *server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.http = nil
	return err
}
