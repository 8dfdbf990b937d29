// Package cache provides a small byte-oriented key/value cache with TTLs.
//
// Redis backs it when configured so cached provider responses are shared
// across instances; otherwise an in-process ristretto cache is used.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache stores opaque values under string keys. A miss is (nil, false, nil);
// a non-nil error means the backend itself failed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Options selects and configures the backend.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxCostBytes  int64
}

// New returns a Redis cache when opts.RedisAddr is set and reachable.
// An unreachable Redis is logged and replaced by the in-memory cache so the
// API keeps serving; the cache is an optimisation, never a dependency.
func New(ctx context.Context, opts Options, logger *slog.Logger) Cache {
	if opts.RedisAddr != "" {
		c, err := NewRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err == nil {
			logger.Info("cache: using redis", slog.String("addr", opts.RedisAddr))
			return c
		}
		logger.Warn("cache: redis unavailable, falling back to memory",
			slog.String("addr", opts.RedisAddr),
			slog.String("error", err.Error()),
		)
	}

	c, err := NewMemory(opts.MaxCostBytes)
	if err != nil {
		// only reachable with an invalid ristretto config
		logger.Error("cache: memory cache disabled", slog.String("error", err.Error()))
		return Nop{}
	}
	return c
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Close() error                                             { return nil }
