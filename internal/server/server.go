// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/internal/config"
	"github.com/smartdevs17/contract-observer/internal/registry"
	"github.com/smartdevs17/contract-observer/internal/storage"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// Server exposes the operational HTTP surface: health, readiness,
// Prometheus metrics and a small status summary. It carries no product
// API.
type Server struct {
	config     *config.ServerConfig
	appConfig  *config.AppConfig
	storage    storage.Storage
	manager    *registry.Manager
	httpServer *http.Server
	logger     *logrus.Entry
	startTime  time.Time
}

// NewServer creates the ops server
func NewServer(cfg *config.Config, store storage.Storage, manager *registry.Manager) *Server {
	s := &Server{
		config:    &cfg.Server,
		appConfig: &cfg.App,
		storage:   store,
		manager:   manager,
		logger:    utils.ComponentLogger("server"),
		startTime: time.Now(),
	}

	router := mux.NewRouter()
	if s.config.EnableHealth {
		router.HandleFunc("/health", s.handleHealth).Methods("GET")
		router.HandleFunc("/ready", s.handleReady).Methods("GET")
	}
	if s.config.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}
	router.HandleFunc("/status", s.handleStatus).Methods("GET")

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s
}

// Start begins serving in the background
func (s *Server) Start() {
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("Ops server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Ops server failed")
		}
	}()
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.storage.Ping(); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"version":   s.appConfig.Version,
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.manager.ListMonitored(r.Context(), "")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "failed to list contracts"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"environment":      s.appConfig.Environment,
		"active_contracts": len(contracts),
		"running_watches":  s.manager.WatchCount(),
		"uptime":           time.Since(s.startTime).String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
