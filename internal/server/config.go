// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	LogLevel        string
	BadgerPath      string
	JWTSecret       string
	JWTIssuer       string
	StoreTimeout    time.Duration
	HistoryLimit    int
	PersistQueue    int
	TimestampLayout string
	PruneInterval   time.Duration
	ShutdownTimeout time.Duration
}

// environment mirrors Config with the variable names it is loaded from.
type environment struct {
	Port                    string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize          int           `env:"MAX_MESSAGE_SIZE,default=4096"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	LogLevel                string        `env:"LOG_LEVEL,default=INFO"`
	BadgerPath              string        `env:"BADGER_PATH"`
	JWTSecret               string        `env:"JWT_SECRET,required=true"`
	JWTIssuer               string        `env:"JWT_ISSUER"`
	StoreTimeout            time.Duration `env:"STORE_TIMEOUT,default=3s"`
	HistoryLimit            int           `env:"HISTORY_LIMIT,default=50"`
	PersistQueue            int           `env:"PERSIST_QUEUE_SIZE,default=1024"`
	TimestampLayout         string        `env:"TIMESTAMP_LAYOUT"`
	PruneInterval           time.Duration `env:"PROFILE_PRUNE_INTERVAL,default=10m"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		LogLevel:        "INFO",
		StoreTimeout:    chat.DefaultStoreTimeout,
		HistoryLimit:    chat.DefaultHistoryLimit,
		PersistQueue:    1024,
		TimestampLayout: chat.DefaultTimestampLayout,
		PruneInterval:   10 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// sanitize replaces missing or out-of-range values with defaults.
func sanitize(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.PersistQueue <= 0 {
		cfg.PersistQueue = def.PersistQueue
	}
	if cfg.TimestampLayout == "" {
		cfg.TimestampLayout = def.TimestampLayout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables fall back to their defaults; JWT_SECRET is mandatory.
func NewConfigFromEnv() (*Config, error) {
	var e environment
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	cfg := sanitize(Config{
		Port:           e.Port,
		AllowedOrigins: parseOrigins(e.AllowedOrigins),
		MaxMessageSize: int64(e.MaxMessageSize),
		RateLimit: RateLimitConfig{
			Burst:          e.RateLimitBurst,
			RefillInterval: e.RateLimitRefillInterval,
		},
		LogLevel:        e.LogLevel,
		BadgerPath:      e.BadgerPath,
		JWTSecret:       e.JWTSecret,
		JWTIssuer:       e.JWTIssuer,
		StoreTimeout:    e.StoreTimeout,
		HistoryLimit:    e.HistoryLimit,
		PersistQueue:    e.PersistQueue,
		TimestampLayout: e.TimestampLayout,
		PruneInterval:   e.PruneInterval,
		ShutdownTimeout: e.ShutdownTimeout,
	})
	return &cfg, nil
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
