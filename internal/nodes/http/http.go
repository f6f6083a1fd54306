package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/engine"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// NodeType is the type tag this executor is registered under.
const NodeType = "httpRequest"

// Config holds client limits for outbound requests
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	UserAgent    string
}

// DefaultConfig returns the default client limits
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxRedirects: 10,
		MaxBodyBytes: 10 << 20,
		UserAgent:    "flowrun/1.0",
	}
}

// Executor performs the HTTP call described by a node's data:
// method (default GET), url, and body as a JSON-encoded string.
type Executor struct {
	logger     logger.Logger
	config     Config
	httpClient *http.Client
}

// requestConfig is the parsed node payload
type requestConfig struct {
	Method string
	URL    string
	Body   interface{}
}

// New creates a new HTTP executor
func New(log logger.Logger, config Config) *Executor {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = defaults.MaxRedirects
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	maxRedirects := config.MaxRedirects
	return &Executor{
		logger: log,
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Execute performs the HTTP request. The decoded response body becomes the
// node's output; bodies that are not JSON are returned as a string. Every
// failure is reported as an external call failure carrying the cause.
func (e *Executor) Execute(ctx context.Context, node *workflows.Node, _ interface{}) (interface{}, error) {
	startTime := time.Now()

	config, err := parseConfig(node)
	if err != nil {
		return nil, engine.ExternalCallFailure(err)
	}

	e.logger.Info("Executing HTTP request",
		"node_id", node.ID,
		"method", config.Method,
		"url", config.URL,
	)

	req, err := e.createRequest(ctx, config)
	if err != nil {
		return nil, engine.ExternalCallFailure(err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Error("HTTP request failed", "node_id", node.ID, "url", config.URL, "error", err)
		return nil, engine.ExternalCallFailure(err)
	}
	defer resp.Body.Close()

	data, err := e.processResponse(resp)
	if err != nil {
		e.logger.Error("HTTP response rejected", "node_id", node.ID, "status", resp.StatusCode, "error", err)
		return nil, engine.ExternalCallFailure(err)
	}

	e.logger.Info("HTTP request completed",
		"node_id", node.ID,
		"status", resp.StatusCode,
		"duration", time.Since(startTime),
	)
	return data, nil
}

// parseConfig reads method, url and body from the node data. An absent or
// blank body is the empty object; a string body must be valid JSON. Bodies
// already decoded into structured values (YAML definitions) are sent as is.
func parseConfig(node *workflows.Node) (*requestConfig, error) {
	config := &requestConfig{
		Method: strings.ToUpper(node.StringParam("method", http.MethodGet)),
		URL:    strings.TrimSpace(node.StringParam("url", "")),
		Body:   map[string]interface{}{},
	}

	if config.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	switch raw := node.Data["body"].(type) {
	case nil:
	case string:
		if strings.TrimSpace(raw) != "" {
			var body interface{}
			if err := jsonx.Unmarshal([]byte(raw), &body); err != nil {
				return nil, fmt.Errorf("body is not valid JSON: %w", err)
			}
			config.Body = body
		}
	default:
		config.Body = raw
	}

	return config, nil
}

// createRequest builds the request. GET and HEAD carry no body.
func (e *Executor) createRequest(ctx context.Context, config *requestConfig) (*http.Request, error) {
	var bodyReader io.Reader
	if config.Method != http.MethodGet && config.Method != http.MethodHead {
		payload, err := jsonx.Marshal(config.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, config.Method, config.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", e.config.UserAgent)
	return req, nil
}

// processResponse reads and decodes the response body
func (e *Executor) processResponse(resp *http.Response) (interface{}, error) {
	limited := io.LimitReader(resp.Body, e.config.MaxBodyBytes+1)
	bodyBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(bodyBytes)) > e.config.MaxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", e.config.MaxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 256))
	}

	if !jsonx.Valid(bodyBytes) {
		return string(bodyBytes), nil
	}
	var data interface{}
	if err := jsonx.Unmarshal(bodyBytes, &data); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
