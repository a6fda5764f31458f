package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AshramC/YXZX-ARG/internal/config"
	"github.com/AshramC/YXZX-ARG/pkg/storage"
)

// Open connects the backend named by cfg.StoreBackend
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.KV, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		kv := NewRedisKV(cfg.RedisURL, logger)
		if err := kv.WaitForConnection(ctx); err != nil {
			return nil, err
		}
		return kv, nil
	case config.BackendSQLite:
		return NewSQLiteKV(cfg.SQLitePath, logger)
	case config.BackendMemory:
		logger.Warn("Using in-memory store, saves are lost on restart")
		return storage.NewMockKV(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
