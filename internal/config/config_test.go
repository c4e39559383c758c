package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	keys := []string{
		"ENV", "LOG_LEVEL", "DB_DSN", "TELEGRAM_TOKEN", "HTTP_ADDR", "JWT_SECRET",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SLOT_CACHE_TTL",
		"RABBITMQ_URL", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "PAYOUT_CURRENCY",
		"REMINDER_POLL_INTERVAL", "SETTLEMENT_RETRY_INTERVAL",
	}
	for _, k := range keys {
		t.Setenv(k, env[k])
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DB_DSN":     "postgres://localhost/lessons",
		"JWT_SECRET": "secret",
	})

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "usd", cfg.PayoutCurrency)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, time.Minute, cfg.SlotCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.ReminderPollInterval)
	assert.Equal(t, 10*time.Minute, cfg.SettlementRetryInterval)
	assert.Equal(t, "postgres://localhost/lessons", cfg.GetDBDSN())
}

func TestFromEnv_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"ENV":                    "production",
		"LOG_LEVEL":              "warn",
		"DB_DSN":                 "postgres://db/lessons",
		"JWT_SECRET":             "secret",
		"REDIS_ADDR":             "localhost:6379",
		"REDIS_DB":               "2",
		"SLOT_CACHE_TTL":         "90s",
		"REMINDER_POLL_INTERVAL": "5s",
		"PAYOUT_CURRENCY":        "eur",
	})

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.SlotCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.ReminderPollInterval)
	assert.Equal(t, "eur", cfg.PayoutCurrency)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing dsn", map[string]string{"JWT_SECRET": "s"}, "DB_DSN is required"},
		{"missing jwt secret", map[string]string{"DB_DSN": "x"}, "JWT_SECRET is required"},
		{"bad redis db", map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "REDIS_DB": "two"}, "REDIS_DB"},
		{"bad duration", map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "SLOT_CACHE_TTL": "soon"}, "SLOT_CACHE_TTL"},
		{"negative duration", map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "SETTLEMENT_RETRY_INTERVAL": "-1m"}, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
