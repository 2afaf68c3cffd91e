package kv

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "pacer:set:"

// Redis keeps each set in a redis SET under a key prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedis connects to the redis:// url and checks the connection.
func DialRedis(ctx context.Context, url string, opts ...RedisOption) (*Redis, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", o.Addr, err)
	}
	return NewRedis(client, opts...), nil
}

func (r *Redis) key(set string) string { return r.prefix + set }

// Add implements Store.
func (r *Redis) Add(ctx context.Context, set, member string) (bool, error) {
	if set == "" || member == "" {
		return false, ErrEmptyKey
	}
	n, err := r.client.SAdd(ctx, r.key(set), member).Result()
	if err != nil {
		return false, fmt.Errorf("sadd %s: %w", set, err)
	}
	return n > 0, nil
}

// Remove implements Store.
func (r *Redis) Remove(ctx context.Context, set, member string) error {
	if err := r.client.SRem(ctx, r.key(set), member).Err(); err != nil {
		return fmt.Errorf("srem %s: %w", set, err)
	}
	return nil
}

// Members implements Store.
func (r *Redis) Members(ctx context.Context, set string) ([]string, error) {
	out, err := r.client.SMembers(ctx, r.key(set)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", set, err)
	}
	slices.Sort(out)
	return out, nil
}

// Contains implements Store.
func (r *Redis) Contains(ctx context.Context, set, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key(set), member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", set, err)
	}
	return ok, nil
}

// Close implements Store.
func (r *Redis) Close() error { return r.client.Close() }
