// Package server provides configuration helpers that define runtime defaults,
// validation, and transport limits for the chat rooms service.
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPort            = ":8080"
	defaultOrigin          = "http://localhost:8080"
	defaultMaxMessageSize  = 64 * 1024
	defaultSendBufferSize  = 256
	defaultLogLevel        = "INFO"
	defaultShutdownTimeout = 30 * time.Second
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	SendBufferSize  int
	LogLevel        string
	ShutdownTimeout time.Duration
}

// envConfig is the environment view of Config. ALLOWED_ORIGINS is a comma
// separated list.
type envConfig struct {
	Port            string        `env:"SERVER_PORT,default=:8080" validate:"required"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=65536" validate:"gt=0"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s" validate:"gt=0"`
}

var (
	configMu     sync.RWMutex
	activeConfig Config
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port:            defaultPort,
		AllowedOrigins:  []string{defaultOrigin},
		MaxMessageSize:  defaultMaxMessageSize,
		SendBufferSize:  defaultSendBufferSize,
		LogLevel:        defaultLogLevel,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// withDefaults fills unset or invalid fields with their defaults and
// normalizes the origin list.
func withDefaults(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	return cfg
}

func sanitizeConfig(cfg Config) Config {
	cfg = withDefaults(cfg)

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

// CurrentConfig returns a copy of the configuration in effect.
func CurrentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables take their default value; set but invalid ones are an error.
func NewConfigFromEnv() (*Config, error) {
	var raw envConfig
	if _, err := env.UnmarshalFromEnviron(&raw); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := validator.New().Struct(raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Config{
		Port:            raw.Port,
		AllowedOrigins:  parseOrigins(raw.AllowedOrigins),
		MaxMessageSize:  raw.MaxMessageSize,
		SendBufferSize:  raw.SendBufferSize,
		LogLevel:        strings.ToUpper(raw.LogLevel),
		ShutdownTimeout: raw.ShutdownTimeout,
	}, nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
