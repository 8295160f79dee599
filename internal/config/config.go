package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"budget/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP; an empty URL disables sync publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncInterval time.Duration

	// Savings goal defaults; a zero TrackingStart means 1 Jan of the deadline year
	GoalTarget        float64
	GoalDeadline      core.Date
	GoalTrackingStart core.Date

	// Dashboard
	TopCategories int
	CacheTTL      time.Duration

	// HTTP
	RateLimitPerMinute int

	LogLevel  string
	LogFormat string

	// Set by Load when a value could not be parsed, reported by Validate.
	parseErrors []string
}

// fileConfig is the optional TOML overlay named by BUDGET_CONFIG_FILE.
type fileConfig struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`
	Goal struct {
		Target        float64 `toml:"target"`
		Deadline      string  `toml:"deadline"`
		TrackingStart string  `toml:"tracking_start"`
	} `toml:"goal"`
	Dashboard struct {
		TopCategories int `toml:"top_categories"`
	} `toml:"dashboard"`
}

var validBackends = []string{"memory", "sqlite"}

// Load reads the environment. When BUDGET_CONFIG_FILE is set, the TOML file is
// applied first and environment variables override it.
func Load() *Config {
	def := core.DefaultDefaults()
	cfg := &Config{
		Port:          "8081",
		GoalTarget:    def.GoalTarget,
		GoalDeadline:  def.GoalDeadline,
		TopCategories: 5,
	}

	if path := os.Getenv("BUDGET_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			cfg.parseErrors = append(cfg.parseErrors, err.Error())
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataBackend = getEnv("DATA_BACKEND", "sqlite")
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", "./data/budget.db")

	cfg.AMQPURL = getEnv("AMQP_URL", "")
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", "budget")
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", "sync_state")

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", "")
	cfg.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", "")

	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 5*time.Minute)

	cfg.GoalTarget = getEnvFloat("GOAL_TARGET", cfg.GoalTarget)
	cfg.GoalDeadline = cfg.getEnvDate("GOAL_DEADLINE", cfg.GoalDeadline)
	cfg.GoalTrackingStart = cfg.getEnvDate("GOAL_TRACKING_START", cfg.GoalTrackingStart)

	cfg.TopCategories = getEnvInt("TOP_CATEGORIES", cfg.TopCategories)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "text")

	return cfg
}

// LoadFile applies a TOML overlay. Keys absent from the file keep their value.
func (c *Config) LoadFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if fc.Server.Port != "" {
		c.Port = fc.Server.Port
	}
	if fc.Goal.Target != 0 {
		c.GoalTarget = fc.Goal.Target
	}
	if fc.Goal.Deadline != "" {
		d, err := core.ParseDate(fc.Goal.Deadline)
		if err != nil {
			return fmt.Errorf("config file %s: goal.deadline: %w", path, err)
		}
		c.GoalDeadline = d
	}
	if fc.Goal.TrackingStart != "" {
		d, err := core.ParseDate(fc.Goal.TrackingStart)
		if err != nil {
			return fmt.Errorf("config file %s: goal.tracking_start: %w", path, err)
		}
		c.GoalTrackingStart = d
	}
	if fc.Dashboard.TopCategories != 0 {
		c.TopCategories = fc.Dashboard.TopCategories
	}
	return nil
}

// Defaults returns the goal defaults applied to missing or imported state.
func (c *Config) Defaults() core.Defaults {
	return core.Defaults{
		GoalTarget:    c.GoalTarget,
		GoalDeadline:  c.GoalDeadline,
		TrackingStart: c.GoalTrackingStart,
	}
}

// SyncEnabled reports whether mutations should be published over AMQP.
func (c *Config) SyncEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := slices.Clone(c.parseErrors)

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.GoalTarget <= 0 {
		errors = append(errors, fmt.Sprintf("invalid goal target %v: must be positive", c.GoalTarget))
	}
	if c.GoalDeadline.IsZero() {
		errors = append(errors, "goal deadline cannot be empty")
	}

	if c.TopCategories < 1 || c.TopCategories > 19 {
		errors = append(errors, fmt.Sprintf("invalid top categories %d: must be between 1 and 19", c.TopCategories))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvDate keeps the default on a malformed value and records the problem
// for Validate.
func (c *Config) getEnvDate(key string, defaultValue core.Date) core.Date {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := core.ParseDate(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("invalid %s '%s': must be YYYY-MM-DD", key, value))
		return defaultValue
	}
	return d
}
