// Package config loads and validates beacon configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64

	// Situation storage. At most one of these is used; Postgres wins when
	// both are set and neither means an in-memory store.
	DatabaseURL string
	SQLitePath  string

	// Registry settings.
	RegistryPath  string // YAML registry file; empty means built-in defaults.
	RegistryWatch bool
	DefaultRole   string

	// Measurement settings.
	DuckDBPath          string // empty disables the DuckDB provider.
	MeasurementFixtures string // YAML fixtures for the static provider.
	MeasurementTimeout  time.Duration
	EvaluationWorkers   int
	AssignmentTimeout   time.Duration

	// Lifecycle settings.
	SituationCooldown time.Duration

	// Auth settings.
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration
	APIClients        string // comma-separated client_id:role:argon2hash entries.

	// Rate limiting, per client.
	RateLimitRPS   float64
	RateLimitBurst int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel string
}

// Load reads configuration from environment variables with defaults. Every
// malformed value is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		Port:                envInt("BEACON_PORT", 8080, &errs),
		ReadTimeout:         envDuration("BEACON_READ_TIMEOUT", 30*time.Second, &errs),
		WriteTimeout:        envDuration("BEACON_WRITE_TIMEOUT", 30*time.Second, &errs),
		MaxRequestBodyBytes: int64(envInt("BEACON_MAX_REQUEST_BODY_BYTES", 1*1024*1024, &errs)),
		DatabaseURL:         envStr("BEACON_DATABASE_URL", ""),
		SQLitePath:          envStr("BEACON_SQLITE_PATH", ""),
		RegistryPath:        envStr("BEACON_REGISTRY_PATH", ""),
		RegistryWatch:       envBool("BEACON_REGISTRY_WATCH", false, &errs),
		DefaultRole:         envStr("BEACON_DEFAULT_ROLE", "CFO"),
		DuckDBPath:          envStr("BEACON_DUCKDB_PATH", ""),
		MeasurementFixtures: envStr("BEACON_MEASUREMENT_FIXTURES", ""),
		MeasurementTimeout:  envDuration("BEACON_MEASUREMENT_TIMEOUT", 10*time.Second, &errs),
		EvaluationWorkers:   envInt("BEACON_EVALUATION_WORKERS", 4, &errs),
		AssignmentTimeout:   envDuration("BEACON_ASSIGNMENT_TIMEOUT", 2*time.Second, &errs),
		SituationCooldown:   envDuration("BEACON_SITUATION_COOLDOWN", 24*time.Hour, &errs),
		JWTPrivateKeyPath:   envStr("BEACON_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:    envStr("BEACON_JWT_PUBLIC_KEY", ""),
		JWTExpiration:       envDuration("BEACON_JWT_EXPIRATION", 24*time.Hour, &errs),
		APIClients:          envStr("BEACON_API_CLIENTS", ""),
		RateLimitRPS:        envFloat("BEACON_RATE_LIMIT_RPS", 10, &errs),
		RateLimitBurst:      envInt("BEACON_RATE_LIMIT_BURST", 20, &errs),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false, &errs),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "beacon"),
		LogLevel:            envStr("BEACON_LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and combinations.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("BEACON_PORT must be between 1 and 65535"))
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_MAX_REQUEST_BODY_BYTES must be positive"))
	}
	if c.EvaluationWorkers <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_EVALUATION_WORKERS must be positive"))
	}
	if c.MeasurementTimeout <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_MEASUREMENT_TIMEOUT must be positive"))
	}
	if c.SituationCooldown <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_SITUATION_COOLDOWN must be positive"))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, fmt.Errorf("BEACON_RATE_LIMIT_RPS and BEACON_RATE_LIMIT_BURST must not be negative"))
	}
	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		errs = append(errs, fmt.Errorf("BEACON_JWT_PRIVATE_KEY and BEACON_JWT_PUBLIC_KEY must be set together"))
	}
	if c.RegistryWatch && c.RegistryPath == "" {
		errs = append(errs, fmt.Errorf("BEACON_REGISTRY_WATCH requires BEACON_REGISTRY_PATH"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("BEACON_LOG_LEVEL=%q must be debug, info, warn or error", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// StorageBackend names the situation store the configuration selects.
func (c Config) StorageBackend() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.SQLitePath != "":
		return "sqlite"
	default:
		return "memory"
	}
}

func envStr(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s=%q is not a valid integer", key, v))
		return defaultVal
	}
	return n
}

func envFloat(key string, defaultVal float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s=%q is not a valid number", key, v))
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s=%q is not a valid boolean", key, v))
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s=%q is not a valid duration", key, v))
		return defaultVal
	}
	return d
}
