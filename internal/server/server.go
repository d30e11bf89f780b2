// Package server exposes the lookup service over HTTP: the search and
// autocomplete API, the embedded UI, health, metrics, and the hardening
// middleware around all of it.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/curtislbyrd/D3tectConvert/internal/audit"
	"github.com/curtislbyrd/D3tectConvert/internal/config"
	"github.com/curtislbyrd/D3tectConvert/internal/metrics"
	"github.com/curtislbyrd/D3tectConvert/internal/query"
	"github.com/curtislbyrd/D3tectConvert/internal/store"
)

// Server wires the query service, store, and observability into an HTTP
// handler. The config pointer is swapped atomically on reload; the store
// itself is immutable for the process lifetime.
type Server struct {
	cfg           atomic.Pointer[config.Config]
	st            *store.Store
	svc           *query.Service
	log           *audit.Logger
	metrics       *metrics.Metrics
	limiter       *ClientLimiter
	sentryEnabled bool
}

// New creates a server. The caller owns logger and metrics lifetimes.
func New(cfg *config.Config, st *store.Store, svc *query.Service, log *audit.Logger, m *metrics.Metrics, sentryEnabled bool) *Server {
	s := &Server{
		st:            st,
		svc:           svc,
		log:           log,
		metrics:       m,
		limiter:       NewClientLimiter(cfg.Limits.RatePerMinute, cfg.Limits.RateBurst),
		sentryEnabled: sentryEnabled,
	}
	s.cfg.Store(cfg)
	return s
}

// ApplyConfig swaps in a reloaded config and updates the runtime tunables
// derived from it: the rate limiter and the free-text result cap.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	s.limiter.SetLimit(cfg.Limits.RatePerMinute, cfg.Limits.RateBurst)
	s.svc.SetMaxMatches(cfg.Limits.SearchResults)
}

// Handler builds the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/static/app.js", s.handleAppJS)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/api/attacks", s.handleAttacks)
	mux.HandleFunc("/debug", s.handleDebug)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", s.metrics.PrometheusHandler())
	mux.Handle("/stats", s.metrics.StatsHandler())

	var h http.Handler = mux
	h = s.withRateLimit(h)
	h = s.withSecurityHeaders(h)
	h = s.withRecovery(h)
	h = withRequestID(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Load()
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Stop the limiter's cleanup goroutine on every exit path, including a
	// listen failure.
	defer s.limiter.Close()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.LogStartup(cfg.Listen, cfg.Dataset.Path)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.LogShutdown("signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
