package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://notify@localhost/notify")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8085", cfg.HTTPPort)
	assert.Equal(t, "notification-service", cfg.GroupID)
	assert.Empty(t, cfg.Topics)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, "mailpit", cfg.SMTP.Host)
	assert.Equal(t, "SalonBook", cfg.Salon.SalonName)
}

func TestLoadOverridesAndErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://notify@localhost/notify")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("NOTIFY_SALON_INBOX", "desk@studio.example")
	t.Setenv("NOTIFY_EMAIL_MAX_ATTEMPTS", "6")
	t.Setenv("NOTIFY_KAFKA_TOPICS", "salon.order.paid.v1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "desk@studio.example", cfg.Salon.SalonInbox)
	assert.Equal(t, 6, cfg.Retry.MaxAttempts)
	assert.Equal(t, []string{"salon.order.paid.v1"}, cfg.Topics)

	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("NOTIFY_EMAIL_INITIAL_DELAY", "soon")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTIFY_DATABASE_URL is required")
	assert.Contains(t, err.Error(), "KAFKA_BROKERS is required")
	assert.Contains(t, err.Error(), "NOTIFY_EMAIL_INITIAL_DELAY")
}
