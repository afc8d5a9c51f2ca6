// Package config loads scheduler configuration from environment variables
// and (optionally) a viper-backed config file, following the EnvConfig /
// Validator / ConfigLoader pattern the rest of this codebase's lineage uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig reads typed values from the environment with an optional key prefix.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates a loader that reads PREFIX_KEY when prefix is non-empty.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix == "" {
		return key
	}
	return ec.prefix + "_" + key
}

// GetString returns the environment value for key, or defaultValue if unset.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetInt returns the environment value for key parsed as an int, or defaultValue.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetDuration returns the environment value for key parsed as a duration, or defaultValue.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetBool returns the environment value for key parsed as a bool, or defaultValue.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// PublisherConfig holds the connection-pool and timeout policy for the
// Publisher adapter (spec.md §5, "Connection pooling").
type PublisherConfig struct {
	PoolSize       int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DispatcherConfig holds retry budget and pre-fire delay policy (spec.md §4.5).
type DispatcherConfig struct {
	MaxRetries    int
	PreFireDelay  time.Duration
	OverdueOffset time.Duration // how far into the future to re-register an overdue post
}

// MonitorConfig holds the three periodic-job intervals (spec.md §4.7).
type MonitorConfig struct {
	ReconcileInterval time.Duration
	ReminderInterval  time.Duration
	// ReminderResendWindow is the minimum gap between two reminders sent
	// to the same operator (spec.md §4.7.2: "now - last_sent >= 24h").
	// Kept independent of ReminderInterval, which only controls how often
	// the sweep itself runs — conflating the two would mean an operator
	// could only ever be reminded as often as the sweep cadence allows.
	ReminderResendWindow time.Duration
	CleanupHour          int // local hour of day, 0-23
}

// Config is the complete scheduler process configuration.
type Config struct {
	Timezone    string
	UploadsDir  string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogFormat   string // "console" or "json"

	Publisher  PublisherConfig
	Dispatcher DispatcherConfig
	Monitor    MonitorConfig
}

// Load reads Config from the environment, applying the spec's documented
// defaults for every field the operator doesn't override.
func Load() (Config, error) {
	env := NewEnvConfig("SCHEDULER")

	cfg := Config{
		Timezone:    env.GetString("TIMEZONE", "Europe/Kiev"),
		UploadsDir:  env.GetString("UPLOADS_DIR", "./uploads"),
		DatabaseURL: env.GetString("DATABASE_URL", "postgres://localhost:5432/scheduler?sslmode=disable"),
		RedisURL:    env.GetString("REDIS_URL", "redis://localhost:6379/0"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "console"),

		Publisher: PublisherConfig{
			PoolSize:       env.GetInt("PUBLISHER_POOL_SIZE", 50),
			ConnectTimeout: env.GetDuration("PUBLISHER_CONNECT_TIMEOUT", 60*time.Second),
			ReadTimeout:    env.GetDuration("PUBLISHER_READ_TIMEOUT", 600*time.Second),
			WriteTimeout:   env.GetDuration("PUBLISHER_WRITE_TIMEOUT", 600*time.Second),
		},
		Dispatcher: DispatcherConfig{
			MaxRetries:    env.GetInt("DISPATCHER_MAX_RETRIES", 3),
			PreFireDelay:  env.GetDuration("DISPATCHER_PRE_FIRE_DELAY", 1*time.Second),
			OverdueOffset: env.GetDuration("DISPATCHER_OVERDUE_OFFSET", 10*time.Second),
		},
		Monitor: MonitorConfig{
			ReconcileInterval:    env.GetDuration("MONITOR_RECONCILE_INTERVAL", 5*time.Minute),
			ReminderInterval:     env.GetDuration("MONITOR_REMINDER_INTERVAL", 1*time.Hour),
			ReminderResendWindow: env.GetDuration("MONITOR_REMINDER_RESEND_WINDOW", 24*time.Hour),
			CleanupHour:          env.GetInt("MONITOR_CLEANUP_HOUR", 3),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []string
	if c.Timezone == "" {
		errs = append(errs, "Timezone is required")
	}
	if c.Dispatcher.MaxRetries < 0 {
		errs = append(errs, "Dispatcher.MaxRetries must be non-negative")
	}
	if c.Monitor.CleanupHour < 0 || c.Monitor.CleanupHour > 23 {
		errs = append(errs, "Monitor.CleanupHour must be between 0 and 23")
	}
	if c.Publisher.PoolSize <= 0 {
		errs = append(errs, "Publisher.PoolSize must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
