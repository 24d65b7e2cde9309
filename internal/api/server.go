package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	handler "github.com/newthinker/alphalab/internal/api/handler/api"
	"github.com/newthinker/alphalab/internal/api/job"
	"github.com/newthinker/alphalab/internal/api/middleware"
	"github.com/newthinker/alphalab/internal/api/response"
	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/metrics"
)

// Server represents the HTTP server for alphalab
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	jobs       *job.Store
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	JobTTL      time.Duration
	MaxJobs     int
	MetricsPath string
}

// Dependencies are the collaborators the routes serve.
type Dependencies struct {
	App     *app.App
	Metrics *metrics.Registry // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.App == nil {
		return nil, fmt.Errorf("api server requires an app")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
	}
	s.setupRoutes(cfg, deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.wrap(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	var gauge handler.ActiveGauge
	if deps.Metrics != nil {
		gauge = deps.Metrics
	}
	var store handler.ResultStore
	if results := deps.App.Results(); results != nil {
		store = results
	}

	evaluate := handler.NewEvaluateHandler(deps.App)
	backtests := handler.NewBacktestHandler(s.jobs, deps.App, gauge, s.logger.Named("jobs"))
	operators := handler.NewOperatorsHandler(deps.App.Operators())
	results := handler.NewResultsHandler(store)

	s.mux.HandleFunc("GET /api/health", s.handleHealth(deps.App))
	s.mux.HandleFunc("GET /api/operators", operators.List)
	s.mux.HandleFunc("POST /api/evaluate", evaluate.Evaluate)
	s.mux.HandleFunc("POST /api/backtest", backtests.Create)
	s.mux.HandleFunc("GET /api/backtest/{id}", backtests.GetStatus)
	s.mux.HandleFunc("GET /api/results", results.List)
	s.mux.HandleFunc("GET /api/results/{id}", results.Get)
	s.mux.HandleFunc("GET /api/results/{id}/chart", results.Chart)

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, deps.Metrics.Handler())
	}
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// wrap puts the routes behind the logging, metrics and auth middleware.
func (s *Server) wrap(cfg Config, deps Dependencies) http.Handler {
	var h http.Handler = middleware.APIKeyAuth(cfg.APIKey, "/api/health", cfg.MetricsPath)(s.mux)
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	return metrics.LoggingMiddleware(s.logger.Named("http"))(h)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Janitor expires finished jobs every interval until ctx is done.
func (s *Server) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.jobs.Expire(); n > 0 {
				s.logger.Debug("expired jobs", zap.Int("count", n))
			}
		}
	}
}

func (s *Server) handleHealth(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok"}
		if table, err := a.Table(); err == nil {
			status["instruments"] = table.NumInstruments()
			status["dates"] = table.NumDates()
		} else {
			status["status"] = "no_data"
		}
		response.JSON(w, http.StatusOK, status)
	}
}
