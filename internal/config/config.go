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
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	applog "apthere/internal/log"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	// Storage
	DataBackend      string
	SQLiteDBPath     string
	DatabaseURL      string
	DatabaseMaxConns int

	// Upstream transaction feed
	PublicDataBaseURL    string
	PublicDataServiceKey string
	PublicDataRows       int

	// Lookups
	AreaCodeBaseURL string
	AreaCodeAPIKey  string
	KakaoBaseURL    string
	KakaoAPIKey     string
	PlacesCacheTTL  time.Duration
	PlacesCacheSize int

	// Backfill
	BackfillMaxConcurrency int
	BackfillFailFast       bool
	BackfillLock           string
	RedisURL               string
	BucketLockTTL          time.Duration
	WarmRegions            []string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging and time
	LogLevel  string
	LogFormat string
	Timezone  string
}

var (
	validBackends   = []string{"sqlite", "postgres", "memory"}
	validLocks      = []string{"local", "redis", "none"}
	validLogFormats = []string{"text", "json", "tint"}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
)

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		DataBackend:      getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath:     getEnv("SQLITE_DB_PATH", "./data/apthere.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: getEnvInt("DATABASE_MAX_CONNS", 10),

		PublicDataBaseURL:    getEnv("PUBLIC_DATA_BASE_URL", "http://apis.data.go.kr"),
		PublicDataServiceKey: getEnv("PUBLIC_DATA_SERVICE_KEY", ""),
		PublicDataRows:       getEnvInt("PUBLIC_DATA_ROWS", 999),

		AreaCodeBaseURL: getEnv("AREA_CODE_BASE_URL", ""),
		AreaCodeAPIKey:  getEnv("AREA_CODE_API_KEY", ""),
		KakaoBaseURL:    getEnv("KAKAO_BASE_URL", "https://dapi.kakao.com"),
		KakaoAPIKey:     getEnv("KAKAO_API_KEY", ""),
		PlacesCacheTTL:  getEnvDuration("PLACES_CACHE_TTL", 10*time.Minute),
		PlacesCacheSize: getEnvInt("PLACES_CACHE_SIZE", 500),

		BackfillMaxConcurrency: getEnvInt("BACKFILL_MAX_CONCURRENCY", 24),
		BackfillFailFast:       getEnvBool("BACKFILL_FAIL_FAST", true),
		BackfillLock:           getEnv("BACKFILL_LOCK", "local"),
		RedisURL:               getEnv("REDIS_URL", ""),
		BucketLockTTL:          getEnvDuration("BUCKET_LOCK_TTL", 2*time.Minute),
		WarmRegions:            getEnvList("WARM_REGIONS", nil),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "apthere"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "backfill_requests"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Summary"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		Timezone:  getEnv("TIMEZONE", "Asia/Seoul"),
	}

	return cfg
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
		if c.DatabaseMaxConns < 1 {
			errors = append(errors, fmt.Sprintf("invalid database max conns %d: must be at least 1", c.DatabaseMaxConns))
		}
	}

	if c.PublicDataServiceKey == "" {
		errors = append(errors, "PUBLIC_DATA_SERVICE_KEY is required")
	}
	if c.PublicDataRows < 1 || c.PublicDataRows > 1000 {
		errors = append(errors, fmt.Sprintf("invalid public data rows %d: must be between 1 and 1000", c.PublicDataRows))
	}
	for name, raw := range map[string]string{
		"PUBLIC_DATA_BASE_URL": c.PublicDataBaseURL,
		"AREA_CODE_BASE_URL":   c.AreaCodeBaseURL,
		"KAKAO_BASE_URL":       c.KakaoBaseURL,
	} {
		if raw == "" {
			errors = append(errors, fmt.Sprintf("%s is required", name))
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", name, raw))
		}
	}

	if c.BackfillMaxConcurrency < 1 || c.BackfillMaxConcurrency > 100 {
		errors = append(errors, fmt.Sprintf("invalid backfill max concurrency %d: must be between 1 and 100", c.BackfillMaxConcurrency))
	}
	if !slices.Contains(validLocks, c.BackfillLock) {
		errors = append(errors, fmt.Sprintf("invalid backfill lock '%s': must be one of %v", c.BackfillLock, validLocks))
	}
	if c.BackfillLock == "redis" && c.RedisURL == "" {
		errors = append(errors, "REDIS_URL is required when BACKFILL_LOCK is redis")
	}
	if c.BucketLockTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid bucket lock TTL %v: must be at least 1 second", c.BucketLockTTL))
	}
	for _, region := range c.WarmRegions {
		if len(region) != 5 || strings.Trim(region, "0123456789") != "" {
			errors = append(errors, fmt.Sprintf("invalid warm region '%s': must be 5 digits", region))
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

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}
	if c.PlacesCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid places cache size %d: must be at least 1", c.PlacesCacheSize))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateExport checks the settings the spreadsheet export needs on top of Validate.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for export")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for export")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for export")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("export configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoggerConfig maps the logging settings onto the log package.
func (c *Config) LoggerConfig(component string) applog.Config {
	cfg := applog.DefaultConfig()
	cfg.Level, _ = applog.ParseLevel(c.LogLevel)
	cfg.Format = c.LogFormat
	cfg.Component = component
	return cfg
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

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
