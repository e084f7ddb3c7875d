package storage

import (
	"time"

	"gorm.io/datatypes"
)

// User is a registered account.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null"                               json:"-"`
	CreatedAt    time.Time `                                              json:"created_at"`
}

// AudioCacheEntry maps a source URL to its synthesized audio artifact.
// The cache is global: at most one row exists per source_url. Owner records
// the user whose resolution created the row and scopes library listing.
type AudioCacheEntry struct {
	ID         uint           `gorm:"primaryKey"`
	Owner      string         `gorm:"index;not null"                          json:"owner"`
	SourceURL  string         `gorm:"type:varchar(2048);uniqueIndex;not null" json:"source_url"`
	Title      string         `gorm:"type:varchar(512)"                       json:"title"`
	ArtifactID string         `gorm:"type:varchar(64);uniqueIndex;not null"   json:"artifact_id"`
	Embedding  datatypes.JSON `                                               json:"embedding,omitempty"`
	CreatedAt  time.Time      `                                               json:"created_at"`
}

// SessionRecord backs the SQLite session store.
type SessionRecord struct {
	ID        uint       `gorm:"primaryKey"`
	Token     string     `gorm:"type:varchar(512);uniqueIndex;not null" json:"token"`
	Username  string     `gorm:"index;not null"                         json:"username"`
	CreatedAt time.Time  `                                              json:"created_at"`
	ExpiresAt *time.Time `                                              json:"expires_at,omitempty"`
}
