// Package cache provides the key-value layer used for thread affinity,
// webhook deduplication and billing lookup caching. Two implementations
// exist: a Redis-backed store and an in-memory fallback, both behind the
// same interface so call sites never special-case availability.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/atendai/atendai/errors"
)

const (
	// TTLs by concern. Thread affinity lives longest, dedup shortest.
	ThreadTTL = time.Hour
	DedupTTL  = 5 * time.Minute
	ClientTTL = 30 * time.Minute
	LookupTTL = 10 * time.Minute
)

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

func GetJSON[T any](ctx context.Context, s Store, key string) (*T, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, errors.Wrapf(err, "failed to unmarshal cached value for %q", key)
	}
	return &v, true, nil
}

func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal value for %q", key)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// GetOrSetJSON is the cache-aside helper: a hit returns the cached value,
// a miss runs fn and stores its result. Cache errors are returned to the
// caller only when fn itself was never reached.
func GetOrSetJSON[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func(ctx context.Context) (*T, error)) (*T, error) {
	if v, ok, err := GetJSON[T](ctx, s, key); err == nil && ok {
		return v, nil
	}

	v, err := fn(ctx)
	if err != nil || v == nil {
		return v, err
	}

	// Best effort: a failed write must not fail the lookup.
	_ = SetJSON(ctx, s, key, v, ttl)
	return v, nil
}
