package cache

import (
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/openblog/backend/internal/logger"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	log := logger.New(io.Discard, logger.LevelError, "test")
	return mr, NewWithClient(client, log)
}

func TestSetAndGet(t *testing.T) {
	_, c := newTestCache(t)

	c.Set(t.Context(), "blogs:public:recent", `[{"slug":"hello"}]`, time.Minute)

	val, ok := c.Get(t.Context(), "blogs:public:recent")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if val != `[{"slug":"hello"}]` {
		t.Errorf("value = %q", val)
	}
}

func TestGetMiss(t *testing.T) {
	_, c := newTestCache(t)

	if _, ok := c.Get(t.Context(), "absent"); ok {
		t.Fatal("expected cache miss")
	}
}

func TestTTLExpiry(t *testing.T) {
	mr, c := newTestCache(t)

	c.Set(t.Context(), "short-lived", "value", 30*time.Second)
	mr.FastForward(31 * time.Second)

	if _, ok := c.Get(t.Context(), "short-lived"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestInvalidate(t *testing.T) {
	_, c := newTestCache(t)

	c.Set(t.Context(), "a", "1", time.Minute)
	c.Set(t.Context(), "b", "2", time.Minute)
	c.Invalidate(t.Context(), "a", "b")

	if _, ok := c.Get(t.Context(), "a"); ok {
		t.Error("key a survived invalidation")
	}
	if _, ok := c.Get(t.Context(), "b"); ok {
		t.Error("key b survived invalidation")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	c.Set(t.Context(), "k", "v", time.Minute)
	c.Invalidate(t.Context(), "k")
	if _, ok := c.Get(t.Context(), "k"); ok {
		t.Fatal("nil cache reported a hit")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Ping(t.Context()) == nil {
		t.Fatal("nil cache ping must fail")
	}
}
