// Package server exposes the read-side HTTP API: last-known balances,
// subscription outlooks, cycle summaries, a manual refresh trigger and
// the Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itswl/balance-alert/pkg/monitor"
)

// Server serves the monitoring API.
type Server struct {
	orchestrator *monitor.Orchestrator
	mux          *http.ServeMux
	logger       *slog.Logger
	baseCtx      context.Context
}

// NewServer creates an API server around the orchestrator. ctx is the
// process lifetime context; refresh cycles accepted over HTTP run
// under it, not under the request context. The metrics registry backs
// the /metrics scrape endpoint.
func NewServer(ctx context.Context, o *monitor.Orchestrator, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Server{
		orchestrator: o,
		mux:          http.NewServeMux(),
		logger:       logger,
		baseCtx:      ctx,
	}
	s.routes(reg)
	return s
}

func (s *Server) routes(reg *prometheus.Registry) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/balances", s.handleBalances)
	s.mux.HandleFunc("GET /api/v1/subscriptions", s.handleSubscriptions)
	s.mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	s.mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	if reg != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBalances(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.State().Results())
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.State().Subscriptions())
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, ok := s.orchestrator.State().Summary()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no cycle has run yet"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRefresh starts a manual cycle. 202 when accepted, 409 while a
// cycle is in flight, 429 inside the cooldown window.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	err := s.orchestrator.TriggerAsync(s.baseCtx, monitor.TriggerManual)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
	case errors.Is(err, monitor.ErrCycleInFlight):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, monitor.ErrCooldown):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("manual refresh", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
