package store

import (
	"context"
	"time"
)

// Session is one authenticated login, addressed by its token.
type Session struct {
	Token     string     `json:"token"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Store defines the behaviour required by the auth manager. Logout removes
// the session, so the store is the revocation source of truth even though
// tokens are self-describing JWTs.
type Store interface {
	Store(ctx context.Context, session Session) error
	Get(ctx context.Context, token string) (Session, error)
	Remove(ctx context.Context, token string) error
	List(ctx context.Context) ([]string, error)
	CleanupExpired(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	TTL    time.Duration
	Redis  *RedisConfig
	SQLite *SQLiteConfig
	Memory *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// SQLiteConfig provides the database dependency.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
