package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Backend selection
	DataBackend string

	// AMQP (optional; empty URL disables the bridge)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Engine tuning
	ProgressCacheTTL  time.Duration
	AnalyticsCacheTTL time.Duration
	AlertDebounce     time.Duration
	CacheCleanup      time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgeter.db"),
		DataBackend:  getEnv("DATA_BACKEND", "memory"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgeter"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		ProgressCacheTTL:  getEnvDuration("PROGRESS_CACHE_TTL", 5*time.Minute),
		AnalyticsCacheTTL: getEnvDuration("ANALYTICS_CACHE_TTL", 2*time.Minute),
		AlertDebounce:     getEnvDuration("ALERT_DEBOUNCE", 500*time.Millisecond),
		CacheCleanup:      getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be memory or sqlite", c.DataBackend))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s'", c.AMQPURL))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange cannot be empty when AMQP is enabled")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue cannot be empty when AMQP is enabled")
		}
	}

	if c.ProgressCacheTTL <= 0 {
		problems = append(problems, "progress cache TTL must be positive")
	}
	if c.AnalyticsCacheTTL <= 0 {
		problems = append(problems, "analytics cache TTL must be positive")
	}
	if c.AlertDebounce <= 0 {
		problems = append(problems, "alert debounce must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
