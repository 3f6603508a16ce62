// Package redisprov is a feature provider over Redis: feature bodies as
// GeoJSON blobs, spatial lookup through an H3 cell index.
package redisprov

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

// Store wraps the Redis operations the provider needs.
type Store struct {
	rdb *redis.Client
}

func NewStore(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	for _, f := range opts {
		f(ro)
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", provider.ErrConnection, err)
	}
	return &Store{rdb: rdb}, nil
}

// MGet returns found keys mapped to their values; missing keys are absent.
func (s *Store) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis MGET %d keys: %v", provider.ErrQuery, len(keys), err)
	}
	out := make(map[string][]byte, len(vals))
	for i, v := range vals {
		switch t := v.(type) {
		case nil:
		case string:
			out[keys[i]] = []byte(t)
		case []byte:
			out[keys[i]] = t
		default:
			out[keys[i]] = fmt.Append(nil, t)
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte) error {
	if err := s.rdb.Set(ctx, key, val, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis SET %q: %v", provider.ErrQuery, key, err)
	}
	return nil
}

func (s *Store) SAdd(ctx context.Context, key string, members []string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.rdb.SAdd(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: redis SADD %q: %v", provider.ErrQuery, key, err)
	}
	return nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis SMEMBERS %q: %v", provider.ErrQuery, key, err)
	}
	return members, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
