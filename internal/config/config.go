// Package config provides service host configuration loaded from .env files
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// DefaultEnvFiles are loaded by LoadConfig when no files are given.
var DefaultEnvFiles = []string{".env"}

// Config holds creek host configuration.
type Config struct {
	// Service descriptor file (empty = search the default paths).
	DescriptorFile string `envconfig:"CREEK_SERVICE_DESCRIPTOR"`

	// COMMS: options passed to the NATS extension when CREEK_NATS_URL is set.
	NATSURL  string `envconfig:"CREEK_NATS_URL"`
	NATSName string `envconfig:"CREEK_NATS_NAME"`

	// Database: options passed to the Postgres extension when DATABASE_URL is set.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	DBMaxConns    int32  `envconfig:"CREEK_DB_MAX_CONNS" default:"0"`
	EnsureSchemas bool   `envconfig:"CREEK_DB_ENSURE_SCHEMAS" default:"false"`

	// HTTP health endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	ShutdownTimeout    time.Duration `envconfig:"CREEK_SHUTDOWN_TIMEOUT" default:"10s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads .env files, then configuration from environment variables.
// Variables already set in the environment win over .env values, and missing
// files are skipped.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("%s - failed to load %s: %w", logPrefix, f, err)
		}
		slog.Debug(fmt.Sprintf("%s - Loaded environment from %s", logPrefix, f))
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForRun checks required config when hosting a service.
func (c *Config) ValidateForRun() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%s - HTTP_PORT must be between 1 and 65535, got %d", logPrefix, c.HTTPPort)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - CREEK_SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	return c.validateDB()
}

// ValidateForValidate checks config used when validating a descriptor.
func (c *Config) ValidateForValidate() error {
	return c.validateDB()
}

func (c *Config) validateDB() error {
	if c.DBMaxConns < 0 {
		return fmt.Errorf("%s - CREEK_DB_MAX_CONNS must not be negative", logPrefix)
	}
	if c.EnsureSchemas && c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required with CREEK_DB_ENSURE_SCHEMAS", logPrefix)
	}
	return nil
}
