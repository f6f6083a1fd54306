package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/PratikKhaire/100x-n8n/internal/api/response"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Requests allowed per Window for a single client.
	Requests        int
	Window          time.Duration
	Burst           int
	CleanupInterval time.Duration
	KeyFunc         func(*http.Request) string
	SkipPaths       []string
}

// DefaultRateLimitConfig returns default rate limiting configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Requests:        600,
		Window:          time.Minute,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		KeyFunc:         clientIP,
		SkipPaths:       []string{"/", "/health", "/version", "/metrics"},
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	config *RateLimitConfig
	limit  rate.Limit
	logger logger.Logger

	mutex   sync.Mutex
	clients map[string]*client
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a limiter and starts its idle-client cleanup loop.
// Call Stop to end the loop.
func NewRateLimiter(config *RateLimitConfig, log logger.Logger) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config == nil {
		config = defaults
	}
	if config.Requests <= 0 {
		config.Requests = defaults.Requests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Burst <= 0 {
		config.Burst = max(1, min(config.Requests, defaults.Burst))
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.KeyFunc == nil {
		config.KeyFunc = clientIP
	}
	if log == nil {
		log = logger.NewNop()
	}

	rl := &RateLimiter{
		config:  config,
		limit:   rate.Limit(float64(config.Requests) / config.Window.Seconds()),
		logger:  log,
		clients: make(map[string]*client),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		limiter := rl.limiterFor(key)
		reservation := limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			rl.logger.Warn("Rate limit exceeded", "client", key, "path", r.URL.Path, "method", r.Method)

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			response.Fail(w, r, errors.ErrTooManyRequests, nil)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(limiter.Tokens()))))
		next.ServeHTTP(w, r)
	})
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.config.Burst)}
		rl.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

func (rl *RateLimiter) skip(path string) bool {
	for _, p := range rl.config.SkipPaths {
		if p == path {
			return true
		}
	}
	return false
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now.Add(-rl.config.CleanupInterval))
		}
	}
}

func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	for key, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// clientIP keys clients by remote address. RealIP runs earlier in the chain,
// so proxies are already accounted for.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
