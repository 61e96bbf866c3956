package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string        `validate:"required"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	StationsFile string `validate:"required"`
	Timezone     string `validate:"required"`

	PrimaryAPIURL    string `validate:"required,url"`
	SecondaryEnabled bool
	SecondaryAPIURL  string `validate:"required_if=SecondaryEnabled true"`

	RefDBDriver       string `validate:"oneof=sqlite postgres"`
	RefDBDSN          string
	ScheduleCacheSize int           `validate:"gt=0"`
	ScheduleCacheTTL  time.Duration `validate:"gt=0"`

	QueryTimeout       time.Duration `validate:"gt=0"`
	UpstreamTimeout    time.Duration `validate:"gt=0"`
	UpstreamMaxRetries int           `validate:"gte=0,lte=10"`
	UpstreamRateLimit  float64       `validate:"gt=0"`
	UpstreamRateBurst  int           `validate:"gt=0"`

	RedisEnabled   bool
	RedisAddr      string `validate:"required_if=RedisEnabled true"`
	RedisPassword  string
	RedisDB        int           `validate:"gte=0"`
	ResultCacheTTL time.Duration `validate:"gt=0"`

	RateLimitPerSecond float64 `validate:"gt=0"`
	RateLimitBurst     int     `validate:"gt=0"`
	RateLimitWhitelist []string
}

// ReferenceEnabled reports whether schedule correction is configured.
func (c *Config) ReferenceEnabled() bool {
	return c.RefDBDSN != ""
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		StationsFile: getEnv("STATIONS_FILE", "stations.json"),
		Timezone:     getEnv("TIMEZONE", "Asia/Seoul"),

		PrimaryAPIURL:    os.Getenv("PRIMARY_API_URL"),
		SecondaryEnabled: getBoolEnv("SECONDARY_ENABLED", true),
		SecondaryAPIURL:  os.Getenv("SECONDARY_API_URL"),

		RefDBDriver:       getEnv("REFDB_DRIVER", "sqlite"),
		RefDBDSN:          os.Getenv("REFDB_DSN"),
		ScheduleCacheSize: getIntEnv("SCHEDULE_CACHE_SIZE", 4096),
		ScheduleCacheTTL:  getDurationEnv("SCHEDULE_CACHE_TTL", 6*time.Hour),

		QueryTimeout:       getDurationEnv("QUERY_TIMEOUT", 15*time.Second),
		UpstreamTimeout:    getDurationEnv("UPSTREAM_TIMEOUT", 5*time.Second),
		UpstreamMaxRetries: getIntEnv("UPSTREAM_MAX_RETRIES", 2),
		UpstreamRateLimit:  getFloatEnv("UPSTREAM_RATE_LIMIT", 10),
		UpstreamRateBurst:  getIntEnv("UPSTREAM_RATE_BURST", 5),

		RedisEnabled:   getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		ResultCacheTTL: getDurationEnv("RESULT_CACHE_TTL", 10*time.Second),

		RateLimitPerSecond: getFloatEnv("RATE_LIMIT_PER_SECOND", 2),
		RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 20),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
