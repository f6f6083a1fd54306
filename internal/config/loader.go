package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
	"github.com/PratikKhaire/100x-n8n/pkg/tracing"
)

// Validate validates the configuration
func (c *Config) Validate() error {
	errs := errors.NewErrorList()

	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.Host == "" {
			errs.Add(errors.ValidationError(errors.CodeMissingField, "database host is required"))
		}
		if c.Database.Database == "" {
			errs.Add(errors.ValidationError(errors.CodeMissingField, "database name is required"))
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs.Add(errors.ValidationError(errors.CodeMissingField, "sqlite path is required"))
		}
	default:
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "database driver must be postgres, mysql or sqlite"))
	}

	switch c.Database.Backend {
	case "gorm":
		if c.Database.Driver == "mysql" {
			errs.Add(errors.ValidationError(errors.CodeInvalidInput, "mysql requires the sqlx database backend"))
		}
	case "sqlx":
		if c.Database.Driver == "sqlite" {
			errs.Add(errors.ValidationError(errors.CodeInvalidInput, "sqlite requires the gorm database backend"))
		}
	default:
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "database backend must be gorm or sqlx"))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "API port must be between 1 and 65535"))
	}
	if c.API.ReadTimeout < 0 || c.API.WriteTimeout < 0 {
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "API timeouts cannot be negative"))
	}

	switch c.Engine.UnknownNodePolicy {
	case "passthrough", "strict":
	default:
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "engine unknown node policy must be passthrough or strict"))
	}
	if c.Engine.MaxSteps < 1 {
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "engine max steps must be positive"))
	}
	if c.Engine.RunTimeout <= 0 {
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "engine run timeout must be positive"))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs.Add(errors.ValidationError(errors.CodeMissingField, "at least one Kafka broker is required"))
		}
		if strings.TrimSpace(c.Kafka.JobsTopic) == "" || strings.TrimSpace(c.Kafka.EventsTopic) == "" {
			errs.Add(errors.ValidationError(errors.CodeMissingField, "Kafka jobs and events topics are required"))
		}
	}

	if c.Worker.Concurrency < 1 {
		errs.Add(errors.ValidationError(errors.CodeInvalidInput, "worker concurrency must be positive"))
	}

	if c.Storage.Provider == "s3" && c.Storage.S3Config.Bucket == "" {
		errs.Add(errors.ValidationError(errors.CodeMissingField, "S3 bucket is required when using S3 storage"))
	}

	return errs.ErrorOrNil()
}

// GetDSN returns the driver-specific connection string
func (c *Config) GetDSN() string {
	db := c.Database
	switch db.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			db.Username, db.Password, db.Host, db.Port, db.Database)
	case "sqlite":
		return db.SQLitePath
	default:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.Username, db.Password),
			Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
			Path:     db.Database,
			RawQuery: "sslmode=" + db.SSLMode,
		}
		return u.String()
	}
}

// IsProduction reports whether the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoggerConfig converts the log settings for pkg/logger
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.Output = c.Log.Output
	cfg.AddSource = c.Log.AddSource
	if c.Debug {
		cfg.Level = "debug"
	}
	return cfg
}

// MetricsConfig converts the metrics settings for pkg/metrics
func (c *Config) MetricsConfig() *metrics.Config {
	return &metrics.Config{
		Enabled:     c.Metrics.Enabled,
		Path:        c.Metrics.Path,
		Namespace:   c.Metrics.Namespace,
		Subsystem:   c.Metrics.Subsystem,
		ServiceName: c.Metrics.ServiceName,
	}
}

// TracingConfig converts the tracing settings for pkg/tracing
func (c *Config) TracingConfig(service, version string) *tracing.Config {
	return &tracing.Config{
		Enabled:      c.Tracing.Enabled,
		ServiceName:  service,
		Environment:  c.Environment,
		Version:      version,
		ExporterType: c.Tracing.Exporter,
		OTLPEndpoint: c.Tracing.OTLPEndpoint,
		OTLPInsecure: c.Tracing.OTLPInsecure,
		SampleRatio:  c.Tracing.SampleRatio,
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// bare integers are seconds
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// EnvironmentLoader merges KEY=value files into the process environment
type EnvironmentLoader struct {
	logger logger.Logger
}

// NewEnvironmentLoader creates a new environment loader
func NewEnvironmentLoader(log logger.Logger) *EnvironmentLoader {
	return &EnvironmentLoader{logger: log}
}

// LoadEnvFile loads variables from filename. Variables already present in the
// environment win. A missing file is not an error.
func (el *EnvironmentLoader) LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open environment file %s: %w", filename, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			el.logger.Warn("Invalid line in environment file", "file", filename, "line", lineNum)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				el.logger.Warn("Failed to set environment variable", "key", key, "error", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read environment file %s: %w", filename, err)
	}

	el.logger.Debug("Loaded environment file", "file", filename)
	return nil
}

// LoadEnvironmentWithDefaults loads .env.local then .env
func (el *EnvironmentLoader) LoadEnvironmentWithDefaults() error {
	for _, filename := range []string{".env.local", ".env"} {
		if err := el.LoadEnvFile(filename); err != nil {
			return err
		}
	}
	return nil
}
