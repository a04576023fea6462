package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atendai/atendai/errors"
	"github.com/atendai/atendai/internal/mylog"
)

type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid redis url")
	}

	return &Redis{client: redis.NewClient(opt)}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get %q", key)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set %q", key)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete %q", key)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewStore selects the store implementation at startup. An unreachable or
// unconfigured Redis silently degrades to the in-memory store, logged once.
func NewStore(ctx context.Context, redisURL string, logger *mylog.Logger) Store {
	if redisURL == "" {
		logger.Info("no redis url configured, using in-memory cache")
		return NewMemory()
	}

	r, err := NewRedis(redisURL)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err = r.Ping(pingCtx)
	}
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory cache", "error", err)
		return NewMemory()
	}

	return r
}
