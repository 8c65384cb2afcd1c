// Package config centralises configuration parsing for the signup service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values for the signup service.
type Config struct {
	HTTPAddress        string
	LogLevel           string
	LogFormat          string
	SeedFile           string // Optional YAML catalogue replacing the built-in seed.
	EnforceCapacity    bool   // Reject signups once max_participants is reached.
	CORSAllowedOrigin  string
	ShutdownTimeout    time.Duration
	KafkaBrokers       []string // Empty disables event publishing.
	KafkaTopic         string
	EventBufferSize    int
	EventBatchSize     int
	EventFlushInterval time.Duration
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
// A .env file in the working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		SeedFile:           getEnv("SEED_FILE", ""),
		EnforceCapacity:    getBoolEnv("ENFORCE_CAPACITY", false),
		CORSAllowedOrigin:  getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:5173"),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 15*time.Second),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "activity_signups"),
		EventBufferSize:    getIntEnv("EVENT_BUFFER_SIZE", 256),
		EventBatchSize:     getIntEnv("EVENT_BATCH_SIZE", 25),
		EventFlushInterval: getDurationEnv("EVENT_FLUSH_INTERVAL", 2*time.Second),
	}
}

// EventsEnabled reports whether any Kafka broker is configured.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
