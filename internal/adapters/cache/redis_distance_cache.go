package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

const redisKeyPrefix = "distance:"

// RedisDistanceCache stores one hash per origin; fields are destination keys
// and values are JSON encoded results.
type RedisDistanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDistanceCache uses ttl as the expiry of each origin hash; 0 keeps entries forever.
func NewRedisDistanceCache(rdb *redis.Client, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{rdb: rdb, ttl: ttl}
}

func (c *RedisDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.redis.GetMany")(&err)

	if origin == "" {
		return nil, errors.New("get redis distance cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	vals, err := c.rdb.HMGet(ctx, redisKeyPrefix+origin, uniq...).Result()
	if err != nil {
		return nil, fmt.Errorf("get redis distance cache: hmget: %w", err)
	}

	out := make(map[string]ports.DistanceResult, len(uniq))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var r ports.DistanceResult
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, fmt.Errorf("get redis distance cache: decode %q: %w", uniq[i], err)
		}
		out[uniq[i]] = r
	}
	return out, nil
}

func (c *RedisDistanceCache) PutMany(
	ctx context.Context,
	origin string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.redis.PutMany")(&err)

	if origin == "" {
		return errors.New("put redis distance cache: origin must not be empty")
	}

	fields := make(map[string]any, len(results))
	for dest, r := range results {
		if dest == "" || r.Degraded {
			continue
		}
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("put redis distance cache: encode %q: %w", dest, err)
		}
		fields[dest] = b
	}
	if len(fields) == 0 {
		return nil
	}

	key := redisKeyPrefix + origin
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put redis distance cache: exec: %w", err)
	}
	return nil
}
