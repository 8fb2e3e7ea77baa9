package statestore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "loyalty:"

// redisCmdable is the narrow command surface the store needs, so tests can
// substitute a fake without a server.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Store = (*Redis)(nil)

// Redis implements Store on a Redis server. Keys are namespaced under a
// fixed prefix; values never expire, deletion is explicit.
type Redis struct {
	rdb redisCmdable
	raw *redis.Client
}

// NewRedis connects to the given address and verifies connectivity.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	raw := redis.NewClient(&redis.Options{Addr: addr})
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &Redis{rdb: raw, raw: raw}, nil
}

// Ping reports server reachability, for readiness checks.
func (r *Redis) Ping(ctx context.Context) error {
	if r.raw == nil {
		return nil
	}
	return r.raw.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get key %q", key)
	}
	return value, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "put key %q", key)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrapf(err, "delete key %q", key)
	}
	return nil
}
