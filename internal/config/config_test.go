package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"HTTP_ADDRESS", "LOG_LEVEL", "LOG_FORMAT", "SEED_FILE", "ENFORCE_CAPACITY",
		"CORS_ALLOWED_ORIGIN", "SHUTDOWN_TIMEOUT", "KAFKA_BROKERS", "KAFKA_TOPIC",
		"EVENT_BUFFER_SIZE", "EVENT_BATCH_SIZE", "EVENT_FLUSH_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	require.Equal(t, ":8000", cfg.HTTPAddress)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Empty(t, cfg.SeedFile)
	require.False(t, cfg.EnforceCapacity)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.EventsEnabled())
	require.Equal(t, "activity_signups", cfg.KafkaTopic)
	require.Equal(t, "http://localhost:5173", cfg.CORSAllowedOrigin)
	require.Equal(t, 256, cfg.EventBufferSize)
	require.Equal(t, 25, cfg.EventBatchSize)
	require.Equal(t, 2*time.Second, cfg.EventFlushInterval)
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_ADDRESS", ":9000")
	t.Setenv("ENFORCE_CAPACITY", "true")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("EVENT_BATCH_SIZE", "5")
	t.Setenv("EVENT_FLUSH_INTERVAL", "250ms")
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")

	cfg := Load()

	require.Equal(t, ":9000", cfg.HTTPAddress)
	require.True(t, cfg.EnforceCapacity)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.EventsEnabled())
	require.Equal(t, 5, cfg.EventBatchSize)
	require.Equal(t, 250*time.Millisecond, cfg.EventFlushInterval)
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SEED_FILE=/etc/signup/activities.yaml\nLOG_LEVEL=debug\n"), 0o600))
	t.Chdir(dir)
	// t.Setenv restores the original value; unsetting lets the .env entry apply.
	t.Setenv("SEED_FILE", "")
	require.NoError(t, os.Unsetenv("SEED_FILE"))
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()

	require.Equal(t, "/etc/signup/activities.yaml", cfg.SeedFile)
	require.Equal(t, "warn", cfg.LogLevel)
}
