package library

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	platformerrors "storyteller-server-go/internal/platform/errors"
	"storyteller-server-go/internal/platform/storage"
)

// ErrNotFound reports a missing cache entry.
var ErrNotFound = errors.New("audio cache entry not found")

// ErrDuplicateEntry reports that an entry for the same source URL already
// exists. Callers recover by re-reading the winner's row.
var ErrDuplicateEntry = errors.New("audio cache entry already exists")

// Store is the URL-keyed audio cache backed by the shared database.
type Store struct {
	db *gorm.DB
}

// NewStore wraps the database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindByURL returns the entry for url, or ErrNotFound.
func (s *Store) FindByURL(ctx context.Context, url string) (*storage.AudioCacheEntry, error) {
	var entry storage.AudioCacheEntry
	err := s.db.WithContext(ctx).Where("source_url = ?", url).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "library.find",
			"failed to query cache", err)
	}
	return &entry, nil
}

// FindByOwnerAndURL returns the entry for (owner, url), or ErrNotFound.
func (s *Store) FindByOwnerAndURL(ctx context.Context, owner, url string) (*storage.AudioCacheEntry, error) {
	var entry storage.AudioCacheEntry
	err := s.db.WithContext(ctx).Where("owner = ? AND source_url = ?", owner, url).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "library.find",
			"failed to query cache", err)
	}
	return &entry, nil
}

// Create inserts a new entry. The unique index on source_url is the backstop
// for concurrent misses: the losing writer gets ErrDuplicateEntry.
func (s *Store) Create(ctx context.Context, entry *storage.AudioCacheEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if _, findErr := s.FindByURL(ctx, entry.SourceURL); findErr == nil {
			return ErrDuplicateEntry
		}
		return platformerrors.Wrap(platformerrors.KindStorage, "library.create",
			"failed to persist cache entry", err)
	}
	return nil
}

// AttachEmbedding persists the vector for the entry unless one is already
// stored; attaching twice is a no-op.
func (s *Store) AttachEmbedding(ctx context.Context, entry *storage.AudioCacheEntry, vector []float32) error {
	data, err := sonic.Marshal(vector)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "library.attach_embedding",
			"failed to serialize vector", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current storage.AudioCacheEntry
		if err := tx.Where("id = ?", entry.ID).First(&current).Error; err != nil {
			return err
		}
		if len(current.Embedding) > 0 {
			entry.Embedding = current.Embedding
			return nil
		}
		if err := tx.Model(&storage.AudioCacheEntry{}).Where("id = ?", entry.ID).
			Update("embedding", datatypes.JSON(data)).Error; err != nil {
			return err
		}
		entry.Embedding = datatypes.JSON(data)
		return nil
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "library.attach_embedding",
			"failed to persist vector", err)
	}
	return nil
}

// Embedding deserializes the stored vector, or nil when absent.
func Embedding(entry *storage.AudioCacheEntry) ([]float32, error) {
	if entry == nil || len(entry.Embedding) == 0 {
		return nil, nil
	}
	var vec []float32
	if err := sonic.Unmarshal(entry.Embedding, &vec); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "library.embedding",
			"failed to deserialize vector", err)
	}
	return vec, nil
}

// ListForOwner returns the owner's entries in insertion order.
func (s *Store) ListForOwner(ctx context.Context, owner string) ([]storage.AudioCacheEntry, error) {
	var entries []storage.AudioCacheEntry
	err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("id ASC").Find(&entries).Error
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "library.list",
			"failed to list cache entries", err)
	}
	return entries, nil
}
