package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newRedisTestStore(t *testing.T, ttl time.Duration) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedis(Config{
		TTL: ttl,
		Redis: &RedisConfig{
			Addr: mr.Addr(),
		},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t, time.Minute)

	if err := s.Store(ctx, Session{Token: "redis-tok", Username: "erin"}); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	got, err := s.Get(ctx, "redis-tok")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Username != "erin" {
		t.Fatalf("unexpected session: %+v", got)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0] != "redis-tok" {
		t.Fatalf("unexpected list: %v", list)
	}

	if err := s.Remove(ctx, "redis-tok"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := s.Get(ctx, "redis-tok"); err == nil {
		t.Fatal("expected missing after removal")
	}
}

func TestRedisStoreMissingToken(t *testing.T) {
	s := newRedisTestStore(t, time.Minute)
	if _, err := s.Get(context.Background(), "unknown"); err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	if _, err := NewRedis(Config{Redis: &RedisConfig{}}); err == nil {
		t.Fatal("expected error for missing address")
	}
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatal("expected error for missing redis config")
	}
}
