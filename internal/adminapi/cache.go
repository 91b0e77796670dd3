package adminapi

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const responseCacheKeyPrefix = "timebank-admin:response:"

// ResponseCache stores raw upstream list responses for a short time.
// Implementations must be safe for concurrent use.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// responseCacheKey scopes entries to the caller's token so admins never share responses.
// The token itself is hashed so it never lands in the cache.
func responseCacheKey(token string, path string) string {
	sum := sha256.Sum256([]byte(token))
	return responseCacheKeyPrefix + base64.RawURLEncoding.EncodeToString(sum[:]) + ":" + path
}

// RedisCache is a ResponseCache backed by redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("adminapi.cache.empty_redis_addr")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("adminapi.cache.redis_ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (cache *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := cache.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (cache *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return cache.client.Set(ctx, key, value, ttl).Err()
}

func (cache *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return cache.client.Del(ctx, keys...).Err()
}

// Close releases the redis connection pool.
func (cache *RedisCache) Close() error {
	return cache.client.Close()
}

type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process ResponseCache used when no redis address is configured.
type MemoryCache struct {
	mutex   sync.Mutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry), now: time.Now}
}

func (cache *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	entry, ok := cache.entries[key]
	if !ok {
		return nil, false, nil
	}
	if cache.now().After(entry.expiresAt) {
		delete(cache.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (cache *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.purgeExpiredLocked()
	stored := make([]byte, len(value))
	copy(stored, value)
	cache.entries[key] = memoryCacheEntry{value: stored, expiresAt: cache.now().Add(ttl)}
	return nil
}

func (cache *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	for _, key := range keys {
		delete(cache.entries, key)
	}
	return nil
}

func (cache *MemoryCache) purgeExpiredLocked() {
	now := cache.now()
	for key, entry := range cache.entries {
		if now.After(entry.expiresAt) {
			delete(cache.entries, key)
		}
	}
}
