package kb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeLookup struct {
	calls int
	res   Resource
	err   error
}

func (f *fakeLookup) Resolve(ctx context.Context, resourceID string) (Resource, error) {
	f.calls++
	if f.err != nil {
		return Resource{}, f.err
	}
	return f.res, nil
}

func setupTestCache(t *testing.T, next Lookup, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := NewRedisCache("redis://"+s.Addr(), next, ttl)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	return cache, s
}

func TestResolveCachesResult(t *testing.T) {
	next := &fakeLookup{res: Resource{ID: "res-1", Title: "Laffer (1974)", Status: StatusVerified}}
	cache, s := setupTestCache(t, next, time.Minute)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()

	first, err := cache.Resolve(ctx, "res-1")
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if first.Title != "Laffer (1974)" {
		t.Errorf("expected title from KB, got %q", first.Title)
	}

	second, err := cache.Resolve(ctx, "res-1")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if second != first {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
	if next.calls != 1 {
		t.Errorf("expected 1 KB call, got %d", next.calls)
	}
}

func TestResolveExpiry(t *testing.T) {
	next := &fakeLookup{res: Resource{ID: "res-2", Status: StatusVerified}}
	cache, s := setupTestCache(t, next, time.Minute)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if _, err := cache.Resolve(ctx, "res-2"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := cache.Resolve(ctx, "res-2"); err != nil {
		t.Fatalf("Resolve after expiry failed: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("expected 2 KB calls after TTL expiry, got %d", next.calls)
	}
}

func TestResolvePropagatesLookupError(t *testing.T) {
	next := &fakeLookup{err: errors.New("kb down")}
	cache, s := setupTestCache(t, next, time.Minute)
	defer cache.Close()
	defer s.Close()

	if _, err := cache.Resolve(context.Background(), "res-3"); err == nil {
		t.Fatal("expected error when KB lookup fails")
	}
}

func TestInvalidate(t *testing.T) {
	next := &fakeLookup{res: Resource{ID: "res-4", Status: StatusRetracted}}
	cache, s := setupTestCache(t, next, time.Minute)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if _, err := cache.Resolve(ctx, "res-4"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := cache.Invalidate(ctx, "res-4"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := cache.Resolve(ctx, "res-4"); err != nil {
		t.Fatalf("Resolve after invalidate failed: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("expected 2 KB calls after invalidation, got %d", next.calls)
	}
}

func TestNewRedisCacheWithClientDefaultTTL(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	cache := NewRedisCacheWithClient(client, &fakeLookup{}, 0)
	defer cache.Close()

	if cache.ttl <= 0 {
		t.Errorf("expected positive default TTL, got %v", cache.ttl)
	}
}
