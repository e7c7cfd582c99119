package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Source        SourceConfig
	Parser        ParserConfig
	Scheduler     SchedulerConfig
	Storage       StorageConfig
	Notify        NotifyConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

type AuthConfig struct {
	JWTSecret  string
	AdminEmail string
	TokenTTL   time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

// SourceConfig controls where bulletins are discovered and how they are fetched.
type SourceConfig struct {
	ListingURL     string
	URLTemplate    string
	MaxDaysBack    int
	Strategy       string
	UserAgent      string
	Timeout        time.Duration
	Retries        int
	RequestsPerSec int
	MaxBodyBytes   int64
}

type ParserConfig struct {
	MarketCatalog  string
	CategoryWindow int
	CategoryMaxLen int
}

type SchedulerConfig struct {
	Enabled       bool
	IngestSpec    string
	IngestTimeout time.Duration
}

type StorageConfig struct {
	ArchivePath string
	IndexPath   string
}

type NotifyConfig struct {
	ResendAPIKey string
	FromEmail    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Discovery strategies.
const (
	StrategyProbe   = "probe"
	StrategyListing = "listing"
	StrategyAuto    = "auto"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
			AllowedOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "pricemon"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 10),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", "changeme"),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
			TokenTTL:   getEnvAsDuration("JWT_TOKEN_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Source: SourceConfig{
			ListingURL:     getEnv("SOURCE_LISTING_URL", "https://www.da.gov.ph/price-monitoring/"),
			URLTemplate:    getEnv("SOURCE_URL_TEMPLATE", "https://www.da.gov.ph/wp-content/uploads/{YYYY}/{MM}/Price-Monitoring-{Month}-{DD}-{YYYY}.pdf"),
			MaxDaysBack:    getEnvAsInt("SOURCE_MAX_DAYS_BACK", 7),
			Strategy:       getEnv("SOURCE_STRATEGY", StrategyAuto),
			UserAgent:      getEnv("SOURCE_USER_AGENT", "da-price-monitor/1.0"),
			Timeout:        getEnvAsDuration("SOURCE_TIMEOUT", 30*time.Second),
			Retries:        getEnvAsInt("SOURCE_RETRIES", 2),
			RequestsPerSec: getEnvAsInt("SOURCE_REQUESTS_PER_SECOND", 4),
			MaxBodyBytes:   int64(getEnvAsInt("SOURCE_MAX_BODY_MB", 25)) << 20,
		},
		Parser: ParserConfig{
			MarketCatalog:  getEnv("MARKET_CATALOG", ""),
			CategoryWindow: getEnvAsInt("CATEGORY_WINDOW", 4),
			CategoryMaxLen: getEnvAsInt("CATEGORY_MAX_LEN", 60),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getEnvAsBool("SCHEDULER_ENABLED", true),
			IngestSpec:    getEnv("INGEST_SCHEDULE", "@every 168h"),
			IngestTimeout: getEnvAsDuration("INGEST_TIMEOUT", 10*time.Minute),
		},
		Storage: StorageConfig{
			ArchivePath: getEnv("ARCHIVE_PATH", "./data/bulletins"),
			IndexPath:   getEnv("SEARCH_INDEX_PATH", ""),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("RESEND_FROM_EMAIL", "Price Monitor <alerts@pricemon.local>"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	case c.Server.RateLimitPerSecond <= 0:
		return errors.New("SERVER_RATE_LIMIT_PER_SECOND must be positive")
	case c.Auth.JWTSecret == "":
		return errors.New("JWT_SECRET is required")
	case c.Source.MaxDaysBack <= 0:
		return errors.New("SOURCE_MAX_DAYS_BACK must be positive")
	case c.Source.Retries < 0:
		return errors.New("SOURCE_RETRIES must not be negative")
	case c.Source.Timeout <= 0:
		return errors.New("SOURCE_TIMEOUT must be positive")
	case !strings.Contains(c.Source.URLTemplate, "{DD}"):
		return errors.New("SOURCE_URL_TEMPLATE must contain {DD}")
	case c.Parser.CategoryWindow <= 0:
		return errors.New("CATEGORY_WINDOW must be positive")
	case c.Parser.CategoryMaxLen <= 0:
		return errors.New("CATEGORY_MAX_LEN must be positive")
	case c.Scheduler.IngestSpec == "":
		return errors.New("INGEST_SCHEDULE is required")
	}

	switch c.Source.Strategy {
	case StrategyProbe, StrategyListing, StrategyAuto:
	default:
		return fmt.Errorf("SOURCE_STRATEGY must be one of probe, listing, auto, got %q", c.Source.Strategy)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.MaxConns,
	)
}

// Addr returns the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
