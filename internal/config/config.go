package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"ecoads/internal/core"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	SecureCookies      bool

	// Workbook
	LayoutFile  string
	MaxUploadMB int

	// Analysis defaults for new sessions
	DefaultRate float64
	FinalPolicy string
	Palette     string

	// Sessions
	SessionBackend string
	SQLiteDSN      string
	SessionTTL     time.Duration

	// Caches
	ParseCacheSize  int
	ParseCacheTTL   time.Duration
	CleanupSchedule string

	// AMQP; an empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Audit consumer
	AuditDBPath string

	// Google Sheets (optional remote source)
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		SecureCookies:      getEnvBool("COOKIE_SECURE", false),

		LayoutFile:  getEnv("LAYOUT_FILE", ""),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 20),

		DefaultRate: getEnvFloat("DEFAULT_RATE", 8),
		FinalPolicy: getEnv("FINAL_POLICY", core.PolicyGap),
		Palette:     getEnv("PALETTE", core.BenefitGreen.Name),

		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		SQLiteDSN:      getEnv("SQLITE_DSN", "file:ecoads?mode=memory&cache=shared"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 12*time.Hour),

		ParseCacheSize:  getEnvInt("PARSE_CACHE_SIZE", 32),
		ParseCacheTTL:   getEnvDuration("PARSE_CACHE_TTL", 30*time.Minute),
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "@every 5m"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ecoads"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "workbook_events"),

		AuditDBPath: getEnv("AUDIT_DB_PATH", "./data/ecoads-audit.db"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// GoogleEnabled reports whether any Google credential is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.LayoutFile != "" {
		if _, err := os.Stat(c.LayoutFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("layout file does not exist: %s", c.LayoutFile))
		}
	}

	if c.MaxUploadMB < 1 || c.MaxUploadMB > 200 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %dMB: must be between 1 and 200", c.MaxUploadMB))
	}

	// Validate analysis defaults
	if c.DefaultRate < 0 || c.DefaultRate > 20 {
		errors = append(errors, fmt.Sprintf("invalid default rate %g: must be between 0 and 20", c.DefaultRate))
	}
	if _, err := core.ParseFinalPolicy(c.FinalPolicy); err != nil {
		errors = append(errors, fmt.Sprintf("invalid final policy '%s': must be 'gap' or 'implied'", c.FinalPolicy))
	}
	if _, err := core.ParsePalette(c.Palette); err != nil {
		errors = append(errors, fmt.Sprintf("invalid palette '%s': must be 'benefit-green' or 'cost-green'", c.Palette))
	}

	// Validate session backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.SessionBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.SessionBackend == "sqlite" {
		if c.SQLiteDSN == "" {
			errors = append(errors, "SQLite DSN cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDSN); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	// Validate caches
	if c.ParseCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid parse cache size %d: must be at least 1", c.ParseCacheSize))
	} else if c.ParseCacheSize > 1024 {
		errors = append(errors, fmt.Sprintf("invalid parse cache size %d: must be at most 1024", c.ParseCacheSize))
	}
	if c.ParseCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid parse cache TTL %v: must be at least 1 second", c.ParseCacheTTL))
	}
	if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid cleanup schedule '%s': %v", c.CleanupSchedule, err))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
	}

	// Validate AMQP exchange and queue names if AMQP is configured
	if c.AMQPURL != "" {
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Check if the service account file exists (if specified)
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateAudit checks the settings the audit consumer needs on top of Validate.
func (c *Config) ValidateAudit() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the audit consumer")
	}
	if c.AuditDBPath == "" {
		errors = append(errors, "audit database path cannot be empty")
	} else if msg := ensureDir(c.AuditDBPath); msg != "" {
		errors = append(errors, msg)
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ensureDir creates the directory of a file-backed database path. URI DSNs
// are left to the driver.
func ensureDir(path string) string {
	if strings.HasPrefix(path, "file:") {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)
		}
	}
	return ""
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
