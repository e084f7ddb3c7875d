package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storyteller-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a SQLite-backed session store on the shared database.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{
		db:  db,
		ttl: cfg.TTL,
	}, nil
}

func (s *sqliteStore) Store(ctx context.Context, session Session) error {
	if session.Token == "" {
		return fmt.Errorf("session token required")
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.ExpiresAt == nil && s.ttl > 0 {
		exp := session.CreatedAt.Add(s.ttl)
		session.ExpiresAt = &exp
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token = ?", session.Token).Delete(&storage.SessionRecord{}).Error; err != nil {
			return err
		}
		record := &storage.SessionRecord{
			Token:     session.Token,
			Username:  session.Username,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		}
		return tx.Create(record).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, token string) (Session, error) {
	var record storage.SessionRecord
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, fmt.Errorf("session not found")
		}
		return Session{}, err
	}
	if record.ExpiresAt != nil && time.Now().After(*record.ExpiresAt) {
		return Session{}, fmt.Errorf("session expired")
	}
	return Session{
		Token:     record.Token,
		Username:  record.Username,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *sqliteStore) Remove(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&storage.SessionRecord{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var records []storage.SessionRecord
	if err := s.db.WithContext(ctx).Select("token", "expires_at").Find(&records).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	tokens := make([]string, 0, len(records))
	for _, r := range records {
		if r.ExpiresAt == nil || now.Before(*r.ExpiresAt) {
			tokens = append(tokens, r.Token)
		}
	}
	return tokens, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&storage.SessionRecord{}).
		Error
}

func (s *sqliteStore) Close(_ context.Context) error {
	// The database handle is shared; the owner closes it.
	return nil
}
