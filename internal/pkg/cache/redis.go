package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const compareAndDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Redis is a Cache shared by every instance pointing at the same server.
type Redis struct {
	client *redis.Client
	prefix string
	cad    *redis.Script
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "payroll:"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		cad:    redis.NewScript(compareAndDeleteScript),
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", wrap("get", err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return wrap("set", err)
	}
	return nil
}

func (r *Redis) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, value, ttl).Result()
	if err != nil {
		return false, wrap("setnx", err)
	}
	return ok, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return wrap("delete", err)
	}
	return nil
}

func (r *Redis) CompareAndDelete(ctx context.Context, key string, value string) error {
	if err := r.cad.Run(ctx, r.client, []string{r.prefix + key}, value).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return wrap("compare and delete", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
