package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// RecommenderConfig points at the external recommendation-generation
// service. Backfill triggers are fire-and-forget POSTs to this endpoint.
type RecommenderConfig struct {
	URL     string
	Timeout time.Duration
}

type Config struct {
	Repositories RepositoriesConfig
	Recommender  RecommenderConfig
	ServerPort   string
	// PprofPort and MetricsPort are side listeners, never exposed on the
	// public port.
	PprofPort   string
	MetricsPort string
	// ShutdownTimeout bounds the drain of in-flight requests on SIGTERM.
	ShutdownTimeout time.Duration
	// Production suppresses error detail in API responses.
	Production bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "swipedeck"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
		},
		Recommender: RecommenderConfig{
			URL:     getEnvOrDefault("RECOMMENDER_URL", "http://localhost:9105/refresh"),
			Timeout: getDurationOrDefault("RECOMMENDER_TIMEOUT", 10*time.Second),
		},
		ServerPort:      getEnvOrDefault("SERVER_PORT", "8090"),
		PprofPort:       getEnvOrDefault("PPROF_PORT", "6060"),
		MetricsPort:     getEnvOrDefault("METRICS_PORT", "9092"),
		ShutdownTimeout: getDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		Production:      getBoolOrDefault("PRODUCTION", false),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
