package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence
	DatabasePath string

	// Dynamic configuration file (optional)
	DynamicConfigPath string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Logging
	LogLevel string

	// Feature flags
	EnableCORS     bool
	EnableMetrics  bool
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:     getEnv("SERVER_ADDRESS", ":8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		DatabasePath:      getEnv("DATABASE_PATH", "data/collabgraph.db"),
		DynamicConfigPath: getEnv("DYNAMIC_CONFIG_PATH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTIssuer:         getEnv("JWT_ISSUER", "collabgraph-backend"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		EnableCORS:        getEnvBool("ENABLE_CORS", true),
		EnableMetrics:     getEnvBool("ENABLE_METRICS", true),
		AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.AllowedOrigins == "*" {
			return fmt.Errorf("ALLOWED_ORIGINS must be restricted in production")
		}
	}
	return nil
}

// IsDevelopment reports whether the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
