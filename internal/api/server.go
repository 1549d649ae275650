// Package api exposes the optional ops HTTP surface for a running batch.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adsight/adstxt-crawler/internal/crawler"
)

// ProgressSource yields the current batch snapshot.
type ProgressSource interface {
	Progress() crawler.ProgressSnapshot
}

// Server wires the health, metrics and progress handlers.
type Server struct {
	router   chi.Router
	source   ProgressSource
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewServer constructs a Server over the given progress source and registry.
func NewServer(source ProgressSource, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		source:   source,
		registry: registry,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/progress", s.progress)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	if s.source == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no batch attached"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.source.Progress())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}
