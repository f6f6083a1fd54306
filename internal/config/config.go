// Package config loads application configuration from the environment
package config

import (
	"time"

	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// Config holds the complete application configuration
type Config struct {
	Environment string           `json:"environment" yaml:"environment"`
	Debug       bool             `json:"debug" yaml:"debug"`
	Log         *LogConfig       `json:"log" yaml:"log"`
	API         *APIConfig       `json:"api" yaml:"api"`
	Database    *DatabaseConfig  `json:"database" yaml:"database"`
	Kafka       *KafkaConfig     `json:"kafka" yaml:"kafka"`
	Engine      *EngineConfig    `json:"engine" yaml:"engine"`
	Scheduler   *SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Worker      *WorkerConfig    `json:"worker" yaml:"worker"`
	Storage     *StorageConfig   `json:"storage" yaml:"storage"`
	Metrics     *MetricsConfig   `json:"metrics" yaml:"metrics"`
	Tracing     *TracingConfig   `json:"tracing" yaml:"tracing"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `json:"level" yaml:"level"`
	Format    string `json:"format" yaml:"format"`
	Output    string `json:"output" yaml:"output"`
	AddSource bool   `json:"add_source" yaml:"add_source"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Host               string        `json:"host" yaml:"host"`
	Port               int           `json:"port" yaml:"port"`
	ReadTimeout        time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout        time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout     time.Duration `json:"request_timeout" yaml:"request_timeout"`
	MaxRequestSize     int64         `json:"max_request_size" yaml:"max_request_size"`
	EnableCORS         bool          `json:"enable_cors" yaml:"enable_cors"`
	CORSAllowedOrigins []string      `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	CORSAllowedMethods []string      `json:"cors_allowed_methods" yaml:"cors_allowed_methods"`
	CORSAllowedHeaders []string      `json:"cors_allowed_headers" yaml:"cors_allowed_headers"`
	EnableRateLimit    bool          `json:"enable_rate_limit" yaml:"enable_rate_limit"`
	RateLimitRequests  int           `json:"rate_limit_requests" yaml:"rate_limit_requests"`
	RateLimitWindow    time.Duration `json:"rate_limit_window" yaml:"rate_limit_window"`
	EnableGzip         bool          `json:"enable_gzip" yaml:"enable_gzip"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is one of postgres, mysql or sqlite.
	Driver string `json:"driver" yaml:"driver"`
	// Backend selects the repository implementation: gorm or sqlx.
	Backend            string        `json:"backend" yaml:"backend"`
	Host               string        `json:"host" yaml:"host"`
	Port               int           `json:"port" yaml:"port"`
	Database           string        `json:"database" yaml:"database"`
	Username           string        `json:"username" yaml:"username"`
	Password           string        `json:"-" yaml:"-"`
	SSLMode            string        `json:"ssl_mode" yaml:"ssl_mode"`
	SQLitePath         string        `json:"sqlite_path" yaml:"sqlite_path"`
	MaxOpenConnections int           `json:"max_open_connections" yaml:"max_open_connections"`
	MaxIdleConnections int           `json:"max_idle_connections" yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `json:"connection_lifetime" yaml:"connection_lifetime"`
	ConnectionTimeout  time.Duration `json:"connection_timeout" yaml:"connection_timeout"`
	EnableMigrations   bool          `json:"enable_migrations" yaml:"enable_migrations"`
	EnableQueryLogging bool          `json:"enable_query_logging" yaml:"enable_query_logging"`
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" yaml:"slow_query_threshold"`
	RetryAttempts      int           `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay         time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled                bool          `json:"enabled" yaml:"enabled"`
	Brokers                []string      `json:"brokers" yaml:"brokers"`
	JobsTopic              string        `json:"jobs_topic" yaml:"jobs_topic"`
	EventsTopic            string        `json:"events_topic" yaml:"events_topic"`
	GroupID                string        `json:"group_id" yaml:"group_id"`
	ProducerRetryMax       int           `json:"producer_retry_max" yaml:"producer_retry_max"`
	ProducerFlushFrequency time.Duration `json:"producer_flush_frequency" yaml:"producer_flush_frequency"`
	ConsumerFetchMin       int           `json:"consumer_fetch_min" yaml:"consumer_fetch_min"`
	ConsumerFetchMax       int           `json:"consumer_fetch_max" yaml:"consumer_fetch_max"`
	ConsumerMaxWaitTime    time.Duration `json:"consumer_max_wait_time" yaml:"consumer_max_wait_time"`
}

// EngineConfig holds workflow engine settings
type EngineConfig struct {
	// UnknownNodePolicy is "passthrough" or "strict".
	UnknownNodePolicy string        `json:"unknown_node_policy" yaml:"unknown_node_policy"`
	MaxSteps          int           `json:"max_steps" yaml:"max_steps"`
	RunTimeout        time.Duration `json:"run_timeout" yaml:"run_timeout"`
	HTTPTimeout       time.Duration `json:"http_timeout" yaml:"http_timeout"`
	HTTPMaxRedirects  int           `json:"http_max_redirects" yaml:"http_max_redirects"`
	HTTPMaxBodyBytes  int64         `json:"http_max_body_bytes" yaml:"http_max_body_bytes"`
}

// SchedulerConfig holds cron scheduler settings
type SchedulerConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`
	Location        string        `json:"location" yaml:"location"`
	HealthPort      int           `json:"health_port" yaml:"health_port"`
}

// WorkerConfig holds queue worker settings
type WorkerConfig struct {
	Concurrency     int           `json:"concurrency" yaml:"concurrency"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	HealthPort      int           `json:"health_port" yaml:"health_port"`
}

// StorageConfig holds execution archive settings
type StorageConfig struct {
	// Provider is "none" or "s3".
	Provider string    `json:"provider" yaml:"provider"`
	S3Config *S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 connection settings
type S3Config struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	Region          string `json:"region" yaml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	AccessKeyID     string `json:"-" yaml:"-"`
	SecretAccessKey string `json:"-" yaml:"-"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
	PathStyle       bool   `json:"path_style" yaml:"path_style"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Path        string `json:"path" yaml:"path"`
	Namespace   string `json:"namespace" yaml:"namespace"`
	Subsystem   string `json:"subsystem" yaml:"subsystem"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Exporter     string  `json:"exporter" yaml:"exporter"`
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool    `json:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

// Load loads the configuration from environment variables, after merging
// any .env files found in the working directory.
func Load() (*Config, error) {
	log := logger.New("config")

	envLoader := NewEnvironmentLoader(log)
	if err := envLoader.LoadEnvironmentWithDefaults(); err != nil {
		log.Warn("Failed to load environment files", "error", err)
	}

	config := &Config{
		Environment: getEnvString("ENVIRONMENT", "development"),
		Debug:       getEnvBool("DEBUG", false),
		Log:         loadLogConfig(),
		API:         loadAPIConfig(),
		Database:    loadDatabaseConfig(),
		Kafka:       loadKafkaConfig(),
		Engine:      loadEngineConfig(),
		Scheduler:   loadSchedulerConfig(),
		Worker:      loadWorkerConfig(),
		Storage:     loadStorageConfig(),
		Metrics:     loadMetricsConfig(),
		Tracing:     loadTracingConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadLogConfig() *LogConfig {
	return &LogConfig{
		Level:     getEnvString("LOG_LEVEL", "info"),
		Format:    getEnvString("LOG_FORMAT", "json"),
		Output:    getEnvString("LOG_OUTPUT", "stdout"),
		AddSource: getEnvBool("LOG_ADD_SOURCE", false),
	}
}

func loadAPIConfig() *APIConfig {
	return &APIConfig{
		Host:               getEnvString("API_HOST", "0.0.0.0"),
		Port:               getEnvInt("API_PORT", 3003),
		ReadTimeout:        getEnvDuration("API_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:       getEnvDuration("API_WRITE_TIMEOUT", 6*time.Minute),
		IdleTimeout:        getEnvDuration("API_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getEnvDuration("API_REQUEST_TIMEOUT", 6*time.Minute),
		MaxRequestSize:     getEnvInt64("API_MAX_REQUEST_SIZE", 10*1024*1024),
		EnableCORS:         getEnvBool("API_ENABLE_CORS", true),
		CORSAllowedOrigins: getEnvStringSlice("API_CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods: getEnvStringSlice("API_CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders: getEnvStringSlice("API_CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type", "X-Request-ID"}),
		EnableRateLimit:    getEnvBool("API_ENABLE_RATE_LIMIT", true),
		RateLimitRequests:  getEnvInt("API_RATE_LIMIT_REQUESTS", 600),
		RateLimitWindow:    getEnvDuration("API_RATE_LIMIT_WINDOW", time.Minute),
		EnableGzip:         getEnvBool("API_ENABLE_GZIP", true),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver:             getEnvString("DB_DRIVER", "postgres"),
		Backend:            getEnvString("DB_BACKEND", "gorm"),
		Host:               getEnvString("DB_HOST", "localhost"),
		Port:               getEnvInt("DB_PORT", 5432),
		Database:           getEnvString("DB_NAME", "flowrun"),
		Username:           getEnvString("DB_USER", "postgres"),
		Password:           getEnvString("DB_PASSWORD", ""),
		SSLMode:            getEnvString("DB_SSL_MODE", "disable"),
		SQLitePath:         getEnvString("DB_SQLITE_PATH", "flowrun.db"),
		MaxOpenConnections: getEnvInt("DB_MAX_OPEN_CONNECTIONS", 25),
		MaxIdleConnections: getEnvInt("DB_MAX_IDLE_CONNECTIONS", 5),
		ConnectionLifetime: getEnvDuration("DB_CONNECTION_LIFETIME", 5*time.Minute),
		ConnectionTimeout:  getEnvDuration("DB_CONNECTION_TIMEOUT", 10*time.Second),
		EnableMigrations:   getEnvBool("DB_ENABLE_MIGRATIONS", true),
		EnableQueryLogging: getEnvBool("DB_ENABLE_QUERY_LOGGING", false),
		SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 2*time.Second),
		RetryAttempts:      getEnvInt("DB_RETRY_ATTEMPTS", 3),
		RetryDelay:         getEnvDuration("DB_RETRY_DELAY", time.Second),
	}
}

func loadKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Enabled:                getEnvBool("KAFKA_ENABLED", false),
		Brokers:                getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		JobsTopic:              getEnvString("KAFKA_JOBS_TOPIC", "workflow-jobs"),
		EventsTopic:            getEnvString("KAFKA_EVENTS_TOPIC", "execution-events"),
		GroupID:                getEnvString("KAFKA_GROUP_ID", "flowrun-workers"),
		ProducerRetryMax:       getEnvInt("KAFKA_PRODUCER_RETRY_MAX", 3),
		ProducerFlushFrequency: getEnvDuration("KAFKA_PRODUCER_FLUSH_FREQUENCY", 500*time.Millisecond),
		ConsumerFetchMin:       getEnvInt("KAFKA_CONSUMER_FETCH_MIN", 1),
		ConsumerFetchMax:       getEnvInt("KAFKA_CONSUMER_FETCH_MAX", 10*1024*1024),
		ConsumerMaxWaitTime:    getEnvDuration("KAFKA_CONSUMER_MAX_WAIT_TIME", 250*time.Millisecond),
	}
}

func loadEngineConfig() *EngineConfig {
	return &EngineConfig{
		UnknownNodePolicy: getEnvString("ENGINE_UNKNOWN_NODE_POLICY", "passthrough"),
		MaxSteps:          getEnvInt("ENGINE_MAX_STEPS", 1000),
		RunTimeout:        getEnvDuration("ENGINE_RUN_TIMEOUT", 5*time.Minute),
		HTTPTimeout:       getEnvDuration("ENGINE_HTTP_TIMEOUT", 30*time.Second),
		HTTPMaxRedirects:  getEnvInt("ENGINE_HTTP_MAX_REDIRECTS", 10),
		HTTPMaxBodyBytes:  getEnvInt64("ENGINE_HTTP_MAX_BODY_BYTES", 10*1024*1024),
	}
}

func loadSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Enabled:         getEnvBool("SCHEDULER_ENABLED", true),
		RefreshInterval: getEnvDuration("SCHEDULER_REFRESH_INTERVAL", time.Minute),
		Location:        getEnvString("SCHEDULER_LOCATION", "UTC"),
		HealthPort:      getEnvInt("SCHEDULER_HEALTH_PORT", 8082),
	}
}

func loadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Concurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
		ShutdownTimeout: getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnvInt("WORKER_HEALTH_PORT", 8081),
	}
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Provider: getEnvString("STORAGE_PROVIDER", "none"),
		S3Config: &S3Config{
			Endpoint:        getEnvString("S3_ENDPOINT", ""),
			Region:          getEnvString("S3_REGION", "us-east-1"),
			Bucket:          getEnvString("S3_BUCKET", ""),
			Prefix:          getEnvString("S3_PREFIX", "executions"),
			AccessKeyID:     getEnvString("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnvString("S3_SECRET_ACCESS_KEY", ""),
			UseSSL:          getEnvBool("S3_USE_SSL", true),
			PathStyle:       getEnvBool("S3_PATH_STYLE", false),
		},
	}
}

func loadMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:     getEnvBool("METRICS_ENABLED", true),
		Path:        getEnvString("METRICS_PATH", "/metrics"),
		Namespace:   getEnvString("METRICS_NAMESPACE", "flowrun"),
		Subsystem:   getEnvString("METRICS_SUBSYSTEM", ""),
		ServiceName: getEnvString("METRICS_SERVICE_NAME", "api"),
	}
}

func loadTracingConfig() *TracingConfig {
	return &TracingConfig{
		Enabled:      getEnvBool("TRACING_ENABLED", false),
		Exporter:     getEnvString("TRACING_EXPORTER", "stdout"),
		OTLPEndpoint: getEnvString("TRACING_OTLP_ENDPOINT", "localhost:4318"),
		OTLPInsecure: getEnvBool("TRACING_OTLP_INSECURE", true),
		SampleRatio:  getEnvFloat("TRACING_SAMPLE_RATIO", 1.0),
	}
}
