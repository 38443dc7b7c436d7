package server

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore holds fixed-window request counters. Keys expire at the end of
// their window.
type CounterStore interface {
	// Get returns the current value of each key, zero for missing keys.
	Get(ctx context.Context, keys ...string) ([]int, error)
	// Incr adds one to key, setting it to expire at expireAt, and returns the
	// new value.
	Incr(ctx context.Context, key string, expireAt time.Time) (int, error)
	Close() error
}

const sweepThreshold = 4096

type memoryCounter struct {
	n       int
	expires time.Time
}

// MemoryStore is a process-local CounterStore.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]memoryCounter
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]memoryCounter),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, keys ...string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]int, len(keys))
	for i, key := range keys {
		if c, ok := m.counters[key]; ok && now.Before(c.expires) {
			out[i] = c.n
		}
	}
	return out, nil
}

func (m *MemoryStore) Incr(_ context.Context, key string, expireAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.counters) >= sweepThreshold {
		for k, c := range m.counters {
			if !now.Before(c.expires) {
				delete(m.counters, k)
			}
		}
	}

	c, ok := m.counters[key]
	if !ok || !now.Before(c.expires) {
		c = memoryCounter{}
	}
	c.n++
	c.expires = expireAt
	m.counters[key] = c
	return c.n, nil
}

func (m *MemoryStore) Close() error { return nil }

// RedisStore shares counters between service instances through Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, keys ...string) ([]int, error) {
	out := make([]int, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return nil, fmt.Errorf("redis counter %s: %w", keys[i], err)
		}
		out[i] = n
	}
	return out, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, expireAt time.Time) (int, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, expireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var (
	_ CounterStore = (*MemoryStore)(nil)
	_ CounterStore = (*RedisStore)(nil)
)
