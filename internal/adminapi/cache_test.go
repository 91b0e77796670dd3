package adminapi

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestResponseCacheKeyHidesToken(t *testing.T) {
	t.Parallel()

	key := responseCacheKey("secret-token", "/api/admin/jobs")
	if strings.Contains(key, "secret-token") {
		t.Fatalf("cache key leaks token: %s", key)
	}
	if !strings.HasPrefix(key, responseCacheKeyPrefix) || !strings.HasSuffix(key, ":/api/admin/jobs") {
		t.Fatalf("unexpected key shape: %s", key)
	}
	if key == responseCacheKey("other-token", "/api/admin/jobs") {
		t.Fatalf("keys for different tokens must differ")
	}
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return current }
	ctx := context.Background()

	if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, hit, err := cache.Get(ctx, "k")
	if err != nil || !hit || string(value) != "v" {
		t.Fatalf("expected hit, got %q %v %v", value, hit, err)
	}

	current = current.Add(2 * time.Minute)
	if _, hit, _ := cache.Get(ctx, "k"); hit {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache()
	ctx := context.Background()
	_ = cache.Set(ctx, "a", []byte("1"), time.Minute)
	_ = cache.Set(ctx, "b", []byte("2"), time.Minute)

	if err := cache.Delete(ctx, "a", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, hit, _ := cache.Get(ctx, "a"); hit {
		t.Fatalf("expected a to be deleted")
	}
	if _, hit, _ := cache.Get(ctx, "b"); !hit {
		t.Fatalf("expected b to survive")
	}
}

func TestNewRedisCacheRejectsEmptyAddress(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisCache(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
