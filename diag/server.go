// Package diag serves the operator diagnostics surface: stats and health
// JSON endpoints, per-widget buffer inspection, the manual buffer-clear
// action, a websocket pushing live stats, and the prometheus scrape
// endpoint.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
	"github.com/skeeeon/nats-dashboard-sub001/health"
	"github.com/skeeeon/nats-dashboard-sub001/metric"
	"github.com/skeeeon/nats-dashboard-sub001/mux"
)

const (
	defaultBufferLimit = 100
	maxBufferLimit     = 1000
)

// Server exposes the diagnostics API over HTTP.
type Server struct {
	addr    string
	core    *mux.Multiplexer
	monitor *health.Monitor

	logger  *slog.Logger
	metrics *metric.MetricsRegistry

	httpServer *http.Server
	running    atomic.Bool
}

// ServerOption configures a diagnostics server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "diag")
		}
	}
}

// WithMetrics enables the /metrics scrape endpoint.
func WithMetrics(registry *metric.MetricsRegistry) ServerOption {
	return func(s *Server) {
		s.metrics = registry
	}
}

// WithHealthMonitor adds per-component sub-statuses to /api/health.
func WithHealthMonitor(monitor *health.Monitor) ServerOption {
	return func(s *Server) {
		s.monitor = monitor
	}
}

// NewServer creates a diagnostics server for the given multiplexer.
func NewServer(addr string, core *mux.Multiplexer, opts ...ServerOption) (*Server, error) {
	if core == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("multiplexer is required"), "Server", "NewServer", "validate dependencies")
	}

	s := &Server{
		addr:   addr,
		core:   core,
		logger: slog.Default().With("component", "diag"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the route table; exposed for tests.
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("GET /api/stats", s.handleStats)
	router.HandleFunc("GET /api/health", s.handleHealth)
	router.HandleFunc("GET /api/buffers/{widgetID}", s.handleBuffer)
	router.HandleFunc("POST /api/buffers/clear", s.handleClear)
	router.HandleFunc("GET /ws", s.handleWS)
	if s.metrics != nil {
		router.Handle("GET /metrics", s.metrics.Handler())
	}
	return router
}

// Start begins serving. The listener failure surfaces through the returned
// channel read by the caller's run group.
func (s *Server) Start(_ context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "check state")
	}

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("diagnostics server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("diagnostics server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(timeout time.Duration) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown")
	}
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.core.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.core.Health()
	if s.monitor != nil {
		subs := make([]health.Status, 0, s.monitor.Count()+1)
		for _, sub := range s.monitor.GetAll() {
			subs = append(subs, sub)
		}
		subs = append(subs, status)
		status = health.Aggregate("dashboard", subs)
	}

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	widgetID := r.PathValue("widgetID")

	limit := defaultBufferLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := parseLimit(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit = n
	}

	snap, err := s.core.GetBuffer(widgetID)
	if err != nil {
		if errors.Is(err, errors.ErrBufferNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("no buffer for widget %q", widgetID))
			return
		}
		s.writeError(w, http.StatusInternalServerError, "buffer lookup failed")
		return
	}

	if len(snap.Items) > limit {
		snap.Items = snap.Items[len(snap.Items)-limit:]
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	cleared := s.core.ClearAllBuffers()
	s.logger.Info("buffers cleared via diagnostics API", "count", cleared)
	s.writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func parseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > maxBufferLimit {
		n = maxBufferLimit
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]any{
		"error":  message,
		"status": statusCode,
	})
}
