// Package config loads the service configuration: defaults, configs/*.yaml, .env and
// APP_ environment variables, layered with koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults used when neither a config file nor the environment sets a value.
const (
	DefaultServerPort = 8080
	// DefaultMaxRequestSize leaves room for a handful of base64 images on the AI endpoint.
	DefaultMaxRequestSize = 10 << 20

	DefaultClientRetryMaxAttempts     = 3
	DefaultClientRetryMultiplier      = 2.0
	DefaultClientRetryJitterFactor    = 0.25
	DefaultClientCircuitMaxFailures   = 5
	DefaultClientCircuitHalfOpenLimit = 3

	DefaultTransportMaxIdleConns        = 100
	DefaultTransportMaxIdleConnsPerHost = 10

	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28

	DefaultDBMaxOpenConns = 20
	DefaultDBMaxIdleConns = 5

	DefaultAnalyticsMonths    = 6
	DefaultAnalyticsMaxMonths = 24

	DefaultAIMaxOutputTokens = 4096
)

// envPrefix is the prefix of configuration environment variables.
// Nesting uses a double underscore: APP_DATABASE__MAX_OPEN_CONNS → database.max_open_conns.
const envPrefix = "APP_"

// dotenvPath is loaded into the process environment, if present, before env vars are read.
const dotenvPath = ".env"

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"      validate:"required"`
	Client    ClientConfig    `koanf:"client"    validate:"required"`
	Database  DatabaseConfig  `koanf:"database"  validate:"required"`
	AI        AIConfig        `koanf:"ai"        validate:"required"`
	Analytics AnalyticsConfig `koanf:"analytics" validate:"required"`
	Features  map[string]bool `koanf:"features"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig selects how the caller identity is established.
//
// In "header" mode an upstream gateway has already verified the caller and forwards
// the user ID in SubjectHeader. In "jwt" mode the service verifies an HS256 bearer token itself.
type AuthConfig struct {
	Mode          string    `koanf:"mode"           validate:"required,oneof=header jwt"`
	SubjectHeader string    `koanf:"subject_header" validate:"required_if=Mode header"`
	EmailHeader   string    `koanf:"email_header"`
	JWT           JWTConfig `koanf:"jwt"`
}

// JWTConfig contains bearer token verification settings.
type JWTConfig struct {
	Secret      string        `koanf:"secret"`
	Issuer      string        `koanf:"issuer"`
	Audience    string        `koanf:"audience"`
	UserIDClaim string        `koanf:"user_id_claim" validate:"required"`
	Leeway      time.Duration `koanf:"leeway"        validate:"min=0"`
}

// ClientConfig contains HTTP client defaults for downstream services.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// DatabaseConfig configures the relational Entity Store.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"            validate:"required,oneof=postgres sqlite"`
	DSN             string        `koanf:"dsn"               validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	SlowThreshold   time.Duration `koanf:"slow_threshold"`
	LogLevel        string        `koanf:"log_level"         validate:"required,oneof=silent error warn info"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// AIConfig configures the generative AI provider.
type AIConfig struct {
	Provider        string               `koanf:"provider"          validate:"required,oneof=gemini"`
	BaseURL         string               `koanf:"base_url"          validate:"required,url"`
	Model           string               `koanf:"model"             validate:"required"`
	APIKey          string               `koanf:"api_key"`
	Timeout         time.Duration        `koanf:"timeout"           validate:"required,min=1s"`
	MaxOutputTokens int                  `koanf:"max_output_tokens" validate:"min=1"`
	Temperature     float64              `koanf:"temperature"       validate:"min=0,max=2"`
	CircuitBreaker  CircuitBreakerConfig `koanf:"circuit_breaker"   validate:"required"`
}

// AnalyticsConfig bounds the analytics read endpoints.
type AnalyticsConfig struct {
	DefaultMonths int `koanf:"default_months" validate:"required,min=1,ltefield=MaxMonths"`
	MaxMonths     int `koanf:"max_months"     validate:"required,min=1,max=120"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "quote-service",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "45s",
		"server.max_request_size": DefaultMaxRequestSize,
		"server.cors_origins":     []string{},

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/quote-service.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "quote-service",
		"telemetry.sampling_rate": 1.0,

		"auth.mode":              "header",
		"auth.subject_header":    "X-User-ID",
		"auth.email_header":      "X-User-Email",
		"auth.jwt.secret":        "",
		"auth.jwt.issuer":        "",
		"auth.jwt.audience":      "",
		"auth.jwt.user_id_claim": "userId",
		"auth.jwt.leeway":        "30s",

		"client.timeout":                           "30s",
		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "100ms",
		"client.retry.max_interval":                "5s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"database.driver":            "sqlite",
		"database.dsn":               "file:quote-service.db?_foreign_keys=on",
		"database.max_open_conns":    DefaultDBMaxOpenConns,
		"database.max_idle_conns":    DefaultDBMaxIdleConns,
		"database.conn_max_lifetime": "30m",
		"database.slow_threshold":    "200ms",
		"database.log_level":         "warn",
		"database.auto_migrate":      true,

		"ai.provider":                        "gemini",
		"ai.base_url":                        "https://generativelanguage.googleapis.com",
		"ai.model":                           "gemini-1.5-flash",
		"ai.api_key":                         "",
		"ai.timeout":                         "40s",
		"ai.max_output_tokens":               DefaultAIMaxOutputTokens,
		"ai.temperature":                     0.4,
		"ai.circuit_breaker.max_failures":    DefaultClientCircuitMaxFailures,
		"ai.circuit_breaker.timeout":         "30s",
		"ai.circuit_breaker.half_open_limit": 1,

		"analytics.default_months": DefaultAnalyticsMonths,
		"analytics.max_months":     DefaultAnalyticsMaxMonths,

		"features.ai_assist": true,
	}
}

// Load layers, lowest first: defaults, configs/base.yaml, configs/<profile>.yaml,
// then APP_ variables from the environment or an optional .env file. Validate separately.
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	files := []string{"configs/base.yaml"}
	if profile != "" {
		files = append(files, "configs/"+profile+".yaml")
	}

	for _, path := range files {
		if err := loadFileIfExists(k, path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := loadDotenv(dotenvPath); err != nil {
		return nil, fmt.Errorf("loading %s: %w", dotenvPath, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// FeatureEnabled reports the configured value of a feature flag, or defaultValue if unset.
func (c *Config) FeatureEnabled(flag string, defaultValue bool) bool {
	v, ok := c.Features[flag]
	if !ok {
		return defaultValue
	}

	return v
}

// envKey maps APP_DATABASE__MAX_OPEN_CONNS to database.max_open_conns.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// loadDotenv exports variables from path without overriding ones already set.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return godotenv.Load(path)
}

// loadFileIfExists treats a missing file as empty.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
