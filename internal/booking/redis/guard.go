package redis

import (
	"context"
	"fmt"
	"time"

	"mobooking/internal/logger"

	"github.com/go-redis/redis/v8"
)

const defaultGuardTTL = 30 * time.Second

// Guard rejects a booking form submitted again while the first submission with the
// same idempotency key is still in flight or recently done.
type Guard struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewGuard(client *redis.Client, ttl time.Duration, l *logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &Guard{Client: client, TTL: ttl, Logger: l}
}

func submitKey(key string) string {
	return fmt.Sprintf("booking_submit:%s", key)
}

// Acquire claims key for holder. It returns false when another submission holds it.
func (g *Guard) Acquire(ctx context.Context, key, holder string) (bool, error) {
	ok, err := g.Client.SetNX(ctx, submitKey(key), holder, g.TTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		g.Logger.LogSecurity("DUPLICATE_SUBMIT", fmt.Sprintf("submission %s already in progress", key))
	}
	return ok, nil
}

// Release frees key, but only if holder still owns it.
func (g *Guard) Release(ctx context.Context, key, holder string) error {
	k := submitKey(key)
	val, err := g.Client.Get(ctx, k).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == holder {
		return g.Client.Del(ctx, k).Err()
	}
	return nil
}
