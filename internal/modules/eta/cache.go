package eta

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pickup/internal/geo"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"
)

// Precision 7 cells are roughly 150m across.
const cachePrecision = 7

// RedisCache keys routing results by the geohash cells of both endpoints.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func cacheKey(origin, destination geo.Point) string {
	return fmt.Sprintf("eta:%s:%s",
		geohash.EncodeWithPrecision(origin.Lat, origin.Lng, cachePrecision),
		geohash.EncodeWithPrecision(destination.Lat, destination.Lng, cachePrecision))
}

func (c *RedisCache) Get(ctx context.Context, origin, destination geo.Point) (time.Duration, bool, error) {
	v, err := c.rdb.Get(ctx, cacheKey(origin, destination)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("eta cache value %q: %w", v, err)
	}
	return time.Duration(secs) * time.Second, true, nil
}

func (c *RedisCache) Set(ctx context.Context, origin, destination geo.Point, d time.Duration) error {
	secs := int64(d.Round(time.Second) / time.Second)
	return c.rdb.Set(ctx, cacheKey(origin, destination), secs, c.ttl).Err()
}
