// Package httpserver assembles the chi router and runs the API server.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/PratikKhaire/100x-n8n/internal/api/handlers"
	"github.com/PratikKhaire/100x-n8n/internal/api/middleware"
	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/internal/nodes"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/health"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

// Dependencies are the collaborators the routes are built on. Metrics and
// Health may be nil.
type Dependencies struct {
	Workflows *workflows.Service
	Catalog   *nodes.Catalog
	Health    *health.Checker
	Metrics   *metrics.Metrics
	Logger    logger.Logger
	Version   string
}

// Server is the API HTTP server
type Server struct {
	server  *http.Server
	limiter *middleware.RateLimiter
	logger  logger.Logger
}

// New builds the router and wraps it in an http.Server
func New(cfg *config.APIConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	router, limiter := NewRouter(cfg, deps)
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		limiter: limiter,
		logger:  deps.Logger,
	}
}

// NewRouter builds the API routes. The returned limiter is nil when rate
// limiting is disabled; otherwise the caller must Stop it.
func NewRouter(cfg *config.APIConfig, deps Dependencies) (http.Handler, *middleware.RateLimiter) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewMonitoring(nil, deps.Logger, deps.Metrics).Handler)
	r.Use(chimw.Recoverer)

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: cfg.CORSAllowedMethods,
			AllowedHeaders: cfg.CORSAllowedHeaders,
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         300,
		}))
	}
	if cfg.EnableGzip {
		r.Use(chimw.Compress(5, "application/json"))
	}

	var limiter *middleware.RateLimiter
	if cfg.EnableRateLimit {
		limiter = middleware.NewRateLimiter(&middleware.RateLimitConfig{
			Requests:  cfg.RateLimitRequests,
			Window:    cfg.RateLimitWindow,
			SkipPaths: []string{"/", "/health", "/version", "/metrics"},
		}, deps.Logger)
		r.Use(limiter.Middleware)
	}

	system := handlers.NewSystemHandler(deps.Catalog, deps.Version)
	wfs := handlers.NewWorkflowHandler(deps.Workflows, deps.Logger, cfg.MaxRequestSize)
	execs := handlers.NewExecutionHandler(deps.Workflows)

	r.Get("/", system.Root)
	r.Get("/version", system.Version)
	if deps.Health != nil {
		r.Method(http.MethodGet, "/health", deps.Health.Handler())
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Post("/workflow/execute", wfs.ExecuteInline)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}

		r.Get("/nodes", system.ListNodeTypes)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", wfs.ListWorkflows)
			r.Post("/", wfs.CreateWorkflow)
			r.Get("/{id}", wfs.GetWorkflow)
			r.Delete("/{id}", wfs.DeleteWorkflow)
			r.Post("/{id}/execute", wfs.ExecuteWorkflow)
			r.Get("/{id}/executions", execs.ListExecutions)
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", execs.ListExecutions)
			r.Get("/{id}", execs.GetExecution)
		})
	})

	return r, limiter
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.stopLimiter()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.stopLimiter()
	return err
}

func (s *Server) stopLimiter() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
