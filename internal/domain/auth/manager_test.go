package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"storyteller-server-go/internal/domain/auth/store"
	"storyteller-server-go/internal/platform/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dsn := fmt.Sprintf("file:auth-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&storage.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	sessions := store.NewMemory(store.Config{TTL: time.Minute})
	mgr, err := NewManager(Options{
		DB:         db,
		Sessions:   sessions,
		Token:      NewAuthToken("test-secret"),
		SessionTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestSignUpAndLogin(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	ok, err := mgr.SignUp(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("SignUp error: %v", err)
	}
	if !ok {
		t.Fatal("expected signup to succeed")
	}

	// Taken username fails softly.
	ok, err = mgr.SignUp(ctx, "alice", "other")
	if err != nil {
		t.Fatalf("second SignUp error: %v", err)
	}
	if ok {
		t.Fatal("expected signup to be rejected for taken username")
	}

	token, ok, err := mgr.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if !ok || token == "" {
		t.Fatal("expected login to succeed with a token")
	}

	username, ok := mgr.Authenticate(ctx, token)
	if !ok || username != "alice" {
		t.Fatalf("expected authenticated alice, got %q ok=%v", username, ok)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	token, ok, err := mgr.Login(ctx, "nobody", "pw")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if ok || token != "" {
		t.Fatal("expected soft rejection for unknown user")
	}

	// No session may exist after a rejected login.
	if _, ok := mgr.Authenticate(ctx, token); ok {
		t.Fatal("expected no authentication from empty token")
	}
}

func TestLoginBadPassword(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	if _, err := mgr.SignUp(ctx, "bob", "correct"); err != nil {
		t.Fatalf("SignUp error: %v", err)
	}
	_, ok, err := mgr.Login(ctx, "bob", "wrong")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if ok {
		t.Fatal("expected rejection for bad password")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	if _, err := mgr.SignUp(ctx, "carol", "pw"); err != nil {
		t.Fatalf("SignUp error: %v", err)
	}
	token, ok, err := mgr.Login(ctx, "carol", "pw")
	if err != nil || !ok {
		t.Fatalf("Login failed: ok=%v err=%v", ok, err)
	}

	if err := mgr.Logout(ctx, token); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	// The JWT is still signature-valid but the session is gone.
	if _, ok := mgr.Authenticate(ctx, token); ok {
		t.Fatal("expected token to be revoked after logout")
	}
}

func TestSignUpValidation(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.SignUp(context.Background(), "", "pw"); err == nil {
		t.Fatal("expected validation error for empty username")
	}
}
