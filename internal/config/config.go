package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	OTEL     OTELConfig
	Workflow WorkflowConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	IdempotencyTTL time.Duration
}

// BackendConfig holds the Buy&Sale REST API configuration
type BackendConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshSkew time.Duration // Refresh access tokens expiring sooner than this
	CatalogTTL  time.Duration
	AssignedTTL time.Duration // Cache lifetime of a listing's active forfaits
	UserAgent   string
	Sandbox     bool // Serve payments from the in-memory sandbox instead of the backend
	SettleAfter int  // Sandbox: status reads before a payment settles
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	PathPrefix     string // "/otlp" for Grafana Cloud, empty for a plain collector
	Insecure       bool
	InstanceID     string
	Token          string
}

// WorkflowConfig holds boost workflow timings
type WorkflowConfig struct {
	TransitionDelay time.Duration // Gap between closing one step and presenting the next
	PollInterval    time.Duration
	PollMaxAttempts int
	InitiateTimeout time.Duration
	SessionIdleTTL  time.Duration
	SweepInterval   time.Duration
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Namespace string
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 10*time.Minute),
		},
		Backend: BackendConfig{
			BaseURL:     getEnv("BACKEND_BASE_URL", ""),
			Timeout:     getEnvAsDuration("BACKEND_TIMEOUT", 30*time.Second),
			RefreshSkew: getEnvAsDuration("BACKEND_REFRESH_SKEW", 30*time.Second),
			CatalogTTL:  getEnvAsDuration("FORFAIT_CATALOG_TTL", 10*time.Minute),
			AssignedTTL: getEnvAsDuration("FORFAIT_ASSIGNMENT_TTL", 30*time.Second),
			UserAgent:   getEnv("BACKEND_USER_AGENT", "buyandsale-boost-gateway"),
			Sandbox:     getEnvAsBool("BACKEND_SANDBOX_PAYMENTS", false),
			SettleAfter: int(getEnvAsInt64("SANDBOX_SETTLE_AFTER", 2)),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "buyandsale_boost"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       int(getEnvAsInt64("REDIS_DB", 0)),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "boost-gateway"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			PathPrefix:     getEnv("OTEL_EXPORTER_OTLP_PATH_PREFIX", "/otlp"),
			Insecure:       getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
		},
		Workflow: WorkflowConfig{
			TransitionDelay: getEnvAsDuration("WORKFLOW_TRANSITION_DELAY", 300*time.Millisecond),
			PollInterval:    getEnvAsDuration("PAYMENT_POLL_INTERVAL", 5*time.Second),
			PollMaxAttempts: int(getEnvAsInt64("PAYMENT_POLL_MAX_ATTEMPTS", 36)),
			InitiateTimeout: getEnvAsDuration("PAYMENT_INITIATE_TIMEOUT", 45*time.Second),
			SessionIdleTTL:  getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval:   getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "boost"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if c.Workflow.PollInterval <= 0 {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL must be positive")
	}
	if c.Workflow.PollMaxAttempts <= 0 {
		return fmt.Errorf("PAYMENT_POLL_MAX_ATTEMPTS must be positive")
	}
	if c.Workflow.TransitionDelay < 0 {
		return fmt.Errorf("WORKFLOW_TRANSITION_DELAY must not be negative")
	}
	if c.OTEL.Enabled && c.OTEL.Endpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("5s", "1m30s")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
