package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL     string
	StoreBackend string
	SQLitePath   string

	DataDir     string
	LangDefault string

	// LockdownUnlockAt opens the follow-up level of a lockdown save. Zero
	// keeps lockdowns closed.
	LockdownUnlockAt  time.Time
	LockdownNextLevel string
	StartLevel        string
	TickRate          time.Duration
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/saves.db"),
		DataDir:      getEnv("DATA_DIR", "./data/content"),
		LangDefault:  getEnv("LANG_DEFAULT", "zh-CN"),

		LockdownNextLevel: getEnv("LOCKDOWN_NEXT_LEVEL", "level_03"),
		StartLevel:        getEnv("START_LEVEL", "level_01"),
	}

	switch cfg.StoreBackend {
	case BackendRedis, BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	if v := os.Getenv("LOCKDOWN_UNLOCK_AT"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCKDOWN_UNLOCK_AT: %w", err)
		}
		cfg.LockdownUnlockAt = at
	}

	rate, err := strconv.Atoi(getEnv("TICK_RATE", "30"))
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("invalid TICK_RATE %q", os.Getenv("TICK_RATE"))
	}
	cfg.TickRate = time.Second / time.Duration(rate)

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
