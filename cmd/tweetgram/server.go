package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tweetgram/internal/metrics"
	"tweetgram/internal/models"
	"tweetgram/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes health and statistics over HTTP for operators and probes.
// It never mutates core state.
type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	relay    *service.RelayService
	poller   *service.InboundPoller
	store    service.DedupStore
	registry *metrics.Registry
	server   *http.Server
}

// NewServer creates the stats server
func NewServer(relay *service.RelayService, poller *service.InboundPoller, store service.DedupStore, registry *metrics.Registry, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		relay:    relay,
		poller:   poller,
		store:    store,
		registry: registry,
	}

	s.router.Use(s.requestIDMiddleware)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	stats := s.router.PathPrefix("/stats").Subrouter()
	stats.HandleFunc("/registry", s.handleRegistryStats()).Methods(http.MethodGet)
	stats.HandleFunc("/poller", s.handlePollerStats()).Methods(http.MethodGet)
	stats.HandleFunc("/dedup", s.handleDedupStats()).Methods(http.MethodGet)
}

// Start runs the server until it fails or is shut down
func (s *Server) Start(cfg models.ServerConfig) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.WithField("port", cfg.Port).Info("Starting stats server")
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Debug("Handling request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, map[string]interface{}{
			"status":         "ok",
			"poller_running": s.poller.IsRunning(),
		})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.registry.Snapshot())
	}
}

func (s *Server) handleRegistryStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.relay.RegistryStats())
	}
}

func (s *Server) handlePollerStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.poller.Status(r.Context()))
	}
}

func (s *Server) handleDedupStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.store.Stats(r.Context()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
