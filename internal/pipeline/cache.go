package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/model"
	"github.com/kartoza/solvency/internal/store"
)

// Cache stores positive-class probabilities by prediction key
type Cache interface {
	Get(ctx context.Context, key string) (float64, bool)
	Set(ctx context.Context, key string, prob float64) error
}

const cacheKeyPrefix = "solvency:"

// CacheKey identifies a prediction by artifact fingerprint, selector and record
func CacheKey(fingerprint string, sel store.Selector, r model.ClientRecord) string {
	return fmt.Sprintf("%s%s:%s:%d:%d:%g:%g:%g:%g", cacheKeyPrefix, fingerprint, sel,
		r.Age, r.Marital, r.Expenses, r.Income, r.Amount, r.Price)
}

func validProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// NewCache builds the backend named by cfg.Backend. It returns nil for "none".
func NewCache(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case config.CacheNone, "":
		return nil, nil
	case config.CacheLRU:
		c, err := NewLRUCache(cfg.Size)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.CacheRedis:
		return NewRedisCache(cfg.RedisAddr, cfg.TTL), nil
	default:
		return nil, errors.Newf("unknown cache backend %q", cfg.Backend)
	}
}

// LRUCache is an in-process cache bounded by entry count
type LRUCache struct {
	entries *lru.Cache[string, float64]
}

// NewLRUCache creates a cache holding up to size entries
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, float64](size)
	if err != nil {
		return nil, errors.Wrapf(err, "create lru cache of size %d", size)
	}
	return &LRUCache{entries: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (float64, bool) {
	return c.entries.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, prob float64) error {
	c.entries.Add(key, prob)
	return nil
}

// Len returns the number of cached entries
func (c *LRUCache) Len() int {
	return c.entries.Len()
}

// RedisCache shares predictions between processes
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects lazily to addr. A zero ttl keeps entries forever.
func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
	return &RedisCache{client: rdb, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (float64, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	prob, err := strconv.ParseFloat(val, 64)
	if err != nil || !validProbability(prob) {
		return 0, false
	}
	return prob, true
}

func (r *RedisCache) Set(ctx context.Context, key string, prob float64) error {
	return r.client.Set(ctx, key, strconv.FormatFloat(prob, 'g', -1, 64), r.ttl).Err()
}

// Close releases the connection pool
func (r *RedisCache) Close() error {
	return r.client.Close()
}
