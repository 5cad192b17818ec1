package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/saves"
)

const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options select and configure a backend.
type Options struct {
	Backend    string
	RedisURL   string
	SQLitePath string

	// ConnectRetries bounds how long Open waits for Redis at startup.
	ConnectRetries int
	RetryDelay     time.Duration
}

// Open creates the store named by opts.Backend and checks it is reachable.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (saves.Store, error) {
	switch opts.Backend {
	case BackendRedis:
		rs, err := NewRedisStore(opts.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		retries := max(opts.ConnectRetries, 1)
		delay := opts.RetryDelay
		if delay <= 0 {
			delay = 2 * time.Second
		}
		if err := rs.WaitForConnection(ctx, retries, delay); err != nil {
			_ = rs.Close()
			return nil, err
		}
		return rs, nil
	case BackendSQLite:
		return OpenSQLite(opts.SQLitePath, logger)
	case BackendMemory, "":
		logger.Warn("Using in-memory save store; saves are lost on exit")
		return saves.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
