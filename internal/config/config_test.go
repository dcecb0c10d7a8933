package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDRESS", "ROSTER_SEED_PATH", "KAFKA_BROKERS", "ENROLLMENT_TOPIC", "OUTBOX_FLUSH_INTERVAL", "OUTBOX_BATCH_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, ":8000", cfg.HTTPAddress)
	require.Empty(t, cfg.SeedPath)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.PublishingEnabled())
	require.Equal(t, "enrollment_events", cfg.EnrollmentTopic)
	require.Equal(t, time.Second, cfg.OutboxFlushInterval)
	require.Equal(t, 50, cfg.OutboxBatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9000")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")
	t.Setenv("OUTBOX_FLUSH_INTERVAL", "250ms")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "9")
	t.Setenv("OUTBOX_QUEUE_CAPACITY", "not-a-number")

	cfg := Load()
	require.Equal(t, ":9000", cfg.HTTPAddress)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.PublishingEnabled())
	require.Equal(t, 250*time.Millisecond, cfg.OutboxFlushInterval)
	require.Equal(t, 9, cfg.OutboxMaxAttempts)
	require.Equal(t, 1000, cfg.OutboxQueueCapacity)
}
