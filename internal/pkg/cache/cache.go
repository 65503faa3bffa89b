package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a small string key/value store with expirations.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent. It reports whether it did.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key string, value string) error
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New connects to Redis when an address is configured and falls back to an
// in-process store otherwise or when Redis cannot be reached.
func New(ctx context.Context, logger *slog.Logger, cfg Config) Cache {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Addr == "" {
		logger.InfoContext(ctx, "redis not configured, using in-memory cache")
		return NewMemory()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WarnContext(ctx, "redis unavailable, falling back to in-memory cache; dispatch leases are not shared across instances",
			"addr", cfg.Addr, "error", err)
		_ = client.Close()
		return NewMemory()
	}

	logger.InfoContext(ctx, "using redis cache", "addr", cfg.Addr)
	return NewRedis(client, cfg.Prefix)
}

func wrap(op string, err error) error {
	return fmt.Errorf("cache %s: %w", op, err)
}
