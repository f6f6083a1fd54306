// Package health aggregates dependency checks into a single report served
// over HTTP by every binary.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one check
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the aggregated health of a process
type Report struct {
	Status    Status                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

// Checker runs registered checks concurrently. A failing critical check makes
// the report unhealthy; a failing optional one only degrades it.
type Checker struct {
	service string
	version string
	timeout time.Duration
	logger  logger.Logger

	mu     sync.RWMutex
	checks []check
}

// NewChecker creates a checker. timeout bounds each Check call.
func NewChecker(service, version string, timeout time.Duration, log logger.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{service: service, version: version, timeout: timeout, logger: log}
}

// Register adds a check. Registering the same name twice replaces it.
func (c *Checker) Register(name string, critical bool, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i] = check{name: name, critical: critical, fn: fn}
			return
		}
	}
	c.checks = append(c.checks, check{name: name, critical: critical, fn: fn})
	sort.Slice(c.checks, func(i, j int) bool { return c.checks[i].name < c.checks[j].name })
}

// Check runs all checks and aggregates them
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	checks := append([]check(nil), c.checks...)
	c.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, chk := range checks {
		wg.Add(1)
		go func(i int, chk check) {
			defer wg.Done()
			results[i] = run(ctx, chk)
		}(i, chk)
	}
	wg.Wait()

	report := Report{
		Status:    StatusHealthy,
		Service:   c.service,
		Version:   c.version,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(results)),
	}
	for _, res := range results {
		report.Checks[res.Name] = res
		switch {
		case res.Status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case res.Status == StatusDegraded && report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}

	if report.Status != StatusHealthy {
		c.logger.Warn("Health check failed", "status", report.Status)
	}
	return report
}

func run(ctx context.Context, chk check) CheckResult {
	start := time.Now()
	res := CheckResult{Name: chk.name, Status: StatusHealthy}
	if err := chk.fn(ctx); err != nil {
		res.Error = err.Error()
		res.Status = StatusDegraded
		if chk.critical {
			res.Status = StatusUnhealthy
		}
	}
	res.Duration = time.Since(start)
	return res
}

// Handler serves the report; unhealthy maps to 503
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if err := jsonx.NewEncoder(w).Encode(report); err != nil {
			c.logger.Error("Failed to encode health report", "error", err)
		}
	})
}

// Serve runs a probe server exposing /health and extra handlers (for
// example /metrics) on addr until ctx is cancelled.
func (c *Checker) Serve(ctx context.Context, addr string, extra map[string]http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/health", c.Handler())
	for pattern, h := range extra {
		mux.Handle(pattern, h)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	c.logger.Info("Starting health server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
