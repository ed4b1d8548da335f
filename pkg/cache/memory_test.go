package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	Market string  `json:"market"`
	Score  float64 `json:"score"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	in := []point{{"KRW-BTC", 0.9}, {"KRW-ETH", 0.5}}
	if err := c.Set(ctx, "recs", in, time.Minute); err != nil {
		t.Fatal(err)
	}
	var out []point
	if err := c.Get(ctx, "recs", &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[1] != in[1] {
		t.Fatalf("unexpected %+v", out)
	}

	var s string
	_ = c.Set(ctx, "plain", "hello", 0)
	if err := c.Get(ctx, "plain", &s); err != nil || s != "hello" {
		t.Fatalf("string get = %q, %v", s, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", 1, time.Second)
	now = now.Add(2 * time.Second)
	var v int
	if err := c.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Fatalf("expired key should not exist")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(func() time.Time { return now }))
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, time.Hour)
	now = now.Add(time.Second)
	_ = c.Set(ctx, "b", 2, time.Hour)
	now = now.Add(time.Second)
	var v int
	_ = c.Get(ctx, "a", &v)
	now = now.Add(time.Second)
	_ = c.Set(ctx, "c", 3, time.Hour)

	if ok, _ := c.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := c.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("a and c should remain")
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	now := time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))
	defer c.Close()
	ctx := context.Background()

	if ok, _ := c.TryLock(ctx, "tick", time.Minute); !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := c.TryLock(ctx, "tick", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := c.TryLock(ctx, "tick", time.Minute); !ok {
		t.Fatalf("lock should be free after ttl")
	}
	_ = c.Unlock(ctx, "tick")
	if ok, _ := c.TryLock(ctx, "tick", time.Minute); !ok {
		t.Fatalf("lock should be free after unlock")
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("market", "recs", 5); got != "market:recs:5" {
		t.Fatalf("got %q", got)
	}
}
