package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "STORE_BACKEND", "LOCKDOWN_UNLOCK_AT", "LOCKDOWN_NEXT_LEVEL", "START_LEVEL", "TICK_RATE"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.True(t, cfg.LockdownUnlockAt.IsZero())
	assert.Equal(t, time.Second/30, cfg.TickRate)
	assert.Equal(t, "level_01", cfg.StartLevel)
	assert.Equal(t, "level_03", cfg.LockdownNextLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOCKDOWN_UNLOCK_AT", "2025-09-01T00:00:00Z")
	t.Setenv("TICK_RATE", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), cfg.LockdownUnlockAt.UTC())
	assert.Equal(t, time.Second/60, cfg.TickRate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"STORE_BACKEND":      "postgres",
		"LOCKDOWN_UNLOCK_AT": "tomorrow",
		"TICK_RATE":          "-1",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", "")
			t.Setenv("LOCKDOWN_UNLOCK_AT", "")
			t.Setenv("TICK_RATE", "")
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
