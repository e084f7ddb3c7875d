package storage

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storyteller-server-go/internal/platform/config"
	platformerrors "storyteller-server-go/internal/platform/errors"
)

// Open initializes the SQLite database and migrates the schema.
func Open(cfg config.StorageConfig) (*gorm.DB, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "storage.open",
			"failed to create data directory", err)
	}

	file := cfg.DatabaseFile
	if file == "" {
		file = "storyteller.db"
	}
	dbPath := filepath.Join(dataDir, file)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "storage.open",
			"failed to open database", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema for all persisted models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &AudioCacheEntry{}, &SessionRecord{}); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage.migrate",
			"failed to migrate database", err)
	}
	return nil
}

// EnsureAudioDir creates the artifact directory served under /static.
func EnsureAudioDir(cfg config.StorageConfig) (string, error) {
	dir := cfg.AudioDir
	if dir == "" {
		dir = filepath.Join(cfg.DataDir, "audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", platformerrors.Wrap(platformerrors.KindStorage, "storage.audio_dir",
			"failed to create audio directory", err)
	}
	return dir, nil
}
