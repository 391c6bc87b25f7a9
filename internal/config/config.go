// Package config loads console configuration: process-level settings from
// the environment and project-level settings from funcdeck.yaml.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration.
type Config struct {
	// Server
	Port int
	Env  string

	// Deployment the console invokes functions against
	DeploymentURL      string
	DeploymentAdminKey string

	// Persistence; empty means the in-memory store
	DatabaseURL string
}

// Load reads configuration from the environment, after loading a .env
// file when one exists.
func Load() (*Config, error) {
	// .env is optional; a missing file is the normal case
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvInt("PORT", 6790),
		Env:                getEnv("ENV", "development"),
		DeploymentURL:      getEnv("DEPLOYMENT_URL", "http://localhost:3210"),
		DeploymentAdminKey: getEnv("DEPLOYMENT_ADMIN_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DeploymentURL == "" {
		return fmt.Errorf("DEPLOYMENT_URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
