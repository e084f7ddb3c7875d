package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"storyteller-server-go/internal/platform/storage"
)

func newTestSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&storage.SessionRecord{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLiteDB(t)

	s, err := NewSQLite(db, Config{TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}

	session := Session{Token: "sqlite-tok", Username: "carol"}
	if err := s.Store(ctx, session); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	got, err := s.Get(ctx, "sqlite-tok")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Username != "carol" {
		t.Fatalf("unexpected session: %+v", got)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0] != "sqlite-tok" {
		t.Fatalf("unexpected list: %v", list)
	}

	if err := s.Remove(ctx, "sqlite-tok"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := s.Get(ctx, "sqlite-tok"); err == nil {
		t.Fatal("expected missing after removal")
	}
}

func TestSQLiteStoreCleanup(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLiteDB(t)

	s, err := NewSQLite(db, Config{TTL: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}

	if err := s.Store(ctx, Session{Token: "stale", Username: "dave"}); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := s.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}

	var count int64
	if err := db.Model(&storage.SessionRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows after cleanup, got %d", count)
	}
}

func TestSQLiteStoreReplacesToken(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLiteDB(t)

	s, err := NewSQLite(db, Config{TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}

	if err := s.Store(ctx, Session{Token: "dup", Username: "first"}); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if err := s.Store(ctx, Session{Token: "dup", Username: "second"}); err != nil {
		t.Fatalf("re-Store error: %v", err)
	}

	got, err := s.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Username != "second" {
		t.Fatalf("expected replacement, got %+v", got)
	}
}
