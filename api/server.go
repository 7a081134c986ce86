package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/models"
	"options-flow-tracker/store"
)

// StateService is the part of the state store the HTTP surface needs
type StateService interface {
	Current() *store.ReadModel
	Subscribe() (<-chan *store.ReadModel, func())
	ToggleAutoTrade() error
	PlaceSimulatedTrade(symbol string, side models.TradeSide) error
	Refresh() error
}

// Server handles HTTP API requests
type Server struct {
	state  StateService
	events http.Handler // SSE fan-out of read models
	log    *logrus.Entry
}

// NewServer creates a new API server instance
func NewServer(state StateService, events http.Handler, logger *logrus.Logger) *Server {
	return &Server{
		state:  state,
		events: events,
		log:    logger.WithField("component", "api"),
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Register routes
	if s.events != nil {
		mux.Handle("GET /api/events", s.events) // SSE Endpoint
	}
	mux.HandleFunc("GET /api/dashboard/stream", s.handleDashboardSSE)
	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("GET /api/signals/{symbol}", s.handleGetSignal)
	mux.HandleFunc("POST /api/auto-trade/toggle", s.handleToggleAutoTrade)
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Add middleware
	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start serves on the given port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	serverAddr := fmt.Sprintf("0.0.0.0:%d", port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("HTTP shutdown did not complete cleanly")
		}
	}()

	s.log.Infof("🚀 API Server starting on %s", serverAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	})
}

// Handlers are distributed across multiple files:
// - handlers.go: state, commands and health
// - dashboard_sse.go: per-client dashboard stream
