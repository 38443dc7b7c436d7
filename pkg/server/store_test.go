package server

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Expiry(t *testing.T) {
	now := fixedNow
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	n, err := s.Incr(ctx, "k", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.Incr(ctx, "k", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Get(ctx, "k", "missing")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, got)

	now = now.Add(time.Minute)
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)

	n, err = s.Incr(ctx, "k", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "expired counter should restart")
}

func TestMemoryStore_SweepsExpired(t *testing.T) {
	now := fixedNow
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < sweepThreshold; i++ {
		_, err := s.Incr(ctx, fmt.Sprintf("old-%d", i), now.Add(time.Second))
		require.NoError(t, err)
	}
	now = now.Add(time.Hour)
	_, err := s.Incr(ctx, "fresh", now.Add(time.Hour))
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.counters, 1)
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse Redis URL")
}

func TestRedisStore_Live(t *testing.T) {
	url := os.Getenv("CHATWIDGET_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CHATWIDGET_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	key := "chatwidget:test:" + newRequestID()
	n, err := s.Incr(ctx, key, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, key, key+":missing")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, got)
}
