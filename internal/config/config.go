package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Language model provider configuration
	LLM LLMConfig

	// Article generation and search configuration
	Encyclopedia EncyclopediaConfig

	// Search result cache configuration
	Cache CacheConfig

	// Edge rate limiting
	RateLimit RateLimitConfig

	// Privileged endpoint configuration
	Auth AuthConfig

	// Background maintenance configuration
	Maintenance MaintenanceConfig

	// Catalogue import configuration
	Import ImportConfig

	// Logging configuration
	Log LogConfig

	// Tracing configuration
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	PublicBaseURL   string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// LLMConfig holds content provider settings
type LLMConfig struct {
	Provider        string // "openai" or "gemini"
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	Timeout         time.Duration
}

// EncyclopediaConfig holds materialization and search settings
type EncyclopediaConfig struct {
	DailyArticleLimit   int
	LockTTL             time.Duration
	SearchPrefilter     string // "trigram" or "substring"
	SimilarityThreshold float64
}

// CacheConfig holds Redis cache settings
type CacheConfig struct {
	RedisURL       string
	SearchCacheTTL time.Duration
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AuthConfig holds the secret used to verify staff tokens
type AuthConfig struct {
	AdminJWTSecret string
}

// MaintenanceConfig holds background worker settings
type MaintenanceConfig struct {
	Interval           time.Duration
	SummaryBatchSize   int
	SummaryConcurrency int
}

// ImportConfig holds catalogue restore settings
type ImportConfig struct {
	BatchSize   int
	MaxFileSize int64
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// TelemetryConfig holds tracing settings
type TelemetryConfig struct {
	Enabled     bool
	Exporter    string // "stdout" or "otlp"
	SampleRatio float64
}

// Load reads configuration from environment variables. A .env file in the
// working directory, when present, seeds variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 6*time.Minute),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "encyclopedai"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			APIKey:          getEnv("LLM_API_KEY", os.Getenv("GEMINI_API_KEY")),
			BaseURL:         getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:           getEnv("LLM_MODEL", "gemini-2.5-flash"),
			MaxOutputTokens: getIntEnv("LLM_MAX_OUTPUT_TOKENS", 16000),
			Temperature:     getFloatEnv("LLM_TEMPERATURE", 1),
			Timeout:         getDurationEnv("LLM_TIMEOUT", 3*time.Minute),
		},
		Encyclopedia: EncyclopediaConfig{
			DailyArticleLimit:   getIntEnv("DAILY_ARTICLE_LIMIT", 100),
			LockTTL:             getDurationEnv("LOCK_TTL", 5*time.Minute),
			SearchPrefilter:     strings.ToLower(getEnv("SEARCH_PREFILTER", "trigram")),
			SimilarityThreshold: getFloatEnv("SEARCH_SIMILARITY_THRESHOLD", 0.3),
		},
		Cache: CacheConfig{
			RedisURL:       getEnv("REDIS_URL", ""),
			SearchCacheTTL: getDurationEnv("SEARCH_CACHE_TTL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getFloatEnv("RATE_LIMIT_RPS", 2),
			Burst:             getIntEnv("RATE_LIMIT_BURST", 10),
		},
		Auth: AuthConfig{
			AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		Maintenance: MaintenanceConfig{
			Interval:           getDurationEnv("MAINTENANCE_INTERVAL", time.Minute),
			SummaryBatchSize:   getIntEnv("SUMMARY_BACKFILL_BATCH", 10),
			SummaryConcurrency: getIntEnv("SUMMARY_BACKFILL_CONCURRENCY", 2),
		},
		Import: ImportConfig{
			BatchSize:   getIntEnv("IMPORT_BATCH_SIZE", 500),
			MaxFileSize: int64(getIntEnv("IMPORT_MAX_FILE_SIZE", 256*1024*1024)),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getBoolEnv("OTEL_ENABLED", false),
			Exporter:    strings.ToLower(getEnv("OTEL_EXPORTER", "stdout")),
			SampleRatio: getFloatEnv("OTEL_SAMPLER_RATIO", 0.1),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "gemini" {
		return fmt.Errorf("LLM_PROVIDER must be one of: openai, gemini")
	}
	if c.Encyclopedia.DailyArticleLimit < 0 {
		return fmt.Errorf("DAILY_ARTICLE_LIMIT must not be negative")
	}
	if c.Encyclopedia.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.Encyclopedia.SearchPrefilter != "trigram" && c.Encyclopedia.SearchPrefilter != "substring" {
		return fmt.Errorf("SEARCH_PREFILTER must be one of: trigram, substring")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
