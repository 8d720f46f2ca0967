// Package config loads runtime settings from the environment and an optional
// .env file, and applies defaults to anything missing or invalid.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultPort            = "3000"
	defaultMaxMessageSize  = 64 << 10
	defaultBurst           = 5
	defaultRefillInterval  = time.Second
	defaultPublicDir       = "public"
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

// RateLimitConfig defines the parameters for per-connection event rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	PublicDir       string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"http://localhost:" + defaultPort},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		PublicDir:       defaultPublicDir,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        defaultLogLevel,
	}
}

// Load reads the given .env files (".env" when none are named) into the
// process environment without overriding variables that are already set,
// then builds a Config from the environment. Missing .env files are not an
// error.
func Load(logger *slog.Logger, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading env file: %w", err)
		}
		logger.Debug("No .env file found, relying on process environment")
	}

	def := Default()
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", def.Port)
	v.SetDefault("ALLOWED_ORIGINS", strings.Join(def.AllowedOrigins, ","))
	v.SetDefault("MAX_MESSAGE_SIZE", def.MaxMessageSize)
	v.SetDefault("RATE_LIMIT_BURST", def.RateLimit.Burst)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", def.RateLimit.RefillInterval.String())
	v.SetDefault("PUBLIC_DIR", def.PublicDir)
	v.SetDefault("SHUTDOWN_TIMEOUT", def.ShutdownTimeout.String())
	v.SetDefault("LOG_LEVEL", def.LogLevel)

	cfg := Config{
		Port:            v.GetString("PORT"),
		AllowedOrigins:  parseOrigins(v.GetString("ALLOWED_ORIGINS")),
		MaxMessageSize:  v.GetInt64("MAX_MESSAGE_SIZE"),
		PublicDir:       v.GetString("PUBLIC_DIR"),
		ShutdownTimeout: parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), def.ShutdownTimeout),
		LogLevel:        v.GetString("LOG_LEVEL"),
		RateLimit: RateLimitConfig{
			Burst:          v.GetInt("RATE_LIMIT_BURST"),
			RefillInterval: parseDuration(v.GetString("RATE_LIMIT_REFILL_INTERVAL"), def.RateLimit.RefillInterval),
		},
	}
	return Sanitize(cfg), nil
}

// Sanitize replaces unusable values with defaults.
func Sanitize(cfg Config) Config {
	def := Default()

	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.Port == "" || cfg.Port == ":" {
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
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Addr returns the listen address for the configured port. Both "3000" and
// ":3000" forms are accepted, as is a full "host:port".
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDuration accepts Go duration strings ("500ms", "2s") and bare integers
// meaning seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
