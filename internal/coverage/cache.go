package coverage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultCacheTTL = 10 * time.Minute

// setIfCurrent stores a verdict only while the owner's generation is still the one the
// verdict was read under, so a lookup racing an area change cannot cache a stale answer.
var setIfCurrent = redis.NewScript(`
if (redis.call("GET", KEYS[1]) or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisCache keeps one key per owner, generation and ZIP, each with its own TTL.
// Invalidate bumps the owner's generation, which orphans every older entry at once.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{Client: client, TTL: ttl}
}

func generationKey(ownerID string) string {
	return fmt.Sprintf("coverage_gen:%s", ownerID)
}

func entryKey(ownerID string, gen int64, zip string) string {
	return fmt.Sprintf("coverage:%s:%d:%s", ownerID, gen, zip)
}

// Generation returns the owner's current generation; 0 before the first invalidation.
func (c *RedisCache) Generation(ctx context.Context, ownerID string) (int64, error) {
	gen, err := c.Client.Get(ctx, generationKey(ownerID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) Get(ctx context.Context, ownerID string, gen int64, zip string) (bool, bool, error) {
	val, err := c.Client.Get(ctx, entryKey(ownerID, gen, zip)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (c *RedisCache) Set(ctx context.Context, ownerID string, gen int64, zip string, covered bool) error {
	val := "0"
	if covered {
		val = "1"
	}
	keys := []string{generationKey(ownerID), entryKey(ownerID, gen, zip)}
	return setIfCurrent.Run(ctx, c.Client, keys, strconv.FormatInt(gen, 10), val, c.TTL.Milliseconds()).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.Client.Incr(ctx, generationKey(ownerID)).Err()
}
