package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores analysis results by request key.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Set(ctx context.Context, key string, res *Result, ttl time.Duration) error
}

// RedisCache keeps results as JSON strings.
type RedisCache struct {
	rc     *redis.Client
	prefix string
}

func NewRedisCache(rc *redis.Client) *RedisCache {
	return &RedisCache{rc: rc, prefix: "cuenca:analysis:"}
}

// OpenRedis returns nil when addr is empty so callers can run without a cache.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	raw, err := c.rc.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	res, err := decodeResult(raw)
	if err != nil {
		// not JSON at all; treat as a miss
		return nil, false, nil
	}
	return res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, res *Result, ttl time.Duration) error {
	b, err := res.Payload()
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := c.rc.Set(ctx, c.prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// cacheKey hashes the request. Coordinates are rounded to 6 decimals so
// float noise from the map widget does not defeat the cache.
func cacheKey(req Request) string {
	h := sha256.New()
	for _, c := range req.Coordinates {
		fmt.Fprintf(h, "%.6f,%.6f;", c[0], c[1])
	}
	fmt.Fprintf(h, "|%s|%s|%t", req.DateStart, req.DateEnd, req.IncludeDashboard)
	return hex.EncodeToString(h.Sum(nil))
}
