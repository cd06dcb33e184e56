package redis

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"mobooking/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestGuardAcquireRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	g := NewGuard(client, time.Minute, logger.NewWriterLogger(io.Discard))
	ctx := context.Background()

	// Test 1: first submission wins
	ok, err := g.Acquire(ctx, "form-123", "booking-a")
	require.NoError(t, err)
	assert.True(t, ok)

	// Test 2: resubmission is rejected
	ok, err = g.Acquire(ctx, "form-123", "booking-b")
	require.NoError(t, err)
	assert.False(t, ok)

	// Test 3: a non-holder cannot release
	require.NoError(t, g.Release(ctx, "form-123", "booking-b"))
	ok, err = g.Acquire(ctx, "form-123", "booking-c")
	require.NoError(t, err)
	assert.False(t, ok)

	// Test 4: the holder releases and the key is free again
	require.NoError(t, g.Release(ctx, "form-123", "booking-a"))
	ok, err = g.Acquire(ctx, "form-123", "booking-d")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	g := NewGuard(client, 30*time.Second, logger.NewWriterLogger(io.Discard))
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "form-ttl", "booking-a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	ok, err = g.Acquire(ctx, "form-ttl", "booking-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardConcurrentSubmissions(t *testing.T) {
	client, _ := setupTestRedis(t)
	g := NewGuard(client, time.Minute, logger.NewWriterLogger(io.Discard))

	const numGoroutines = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := g.Acquire(context.Background(), "form-race", fmt.Sprintf("booking-%d", i))
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one submission should hold the key")
}

func TestNewGuardDefaultTTL(t *testing.T) {
	g := NewGuard(nil, 0, nil)
	assert.Equal(t, defaultGuardTTL, g.TTL)
}
