package store

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common fields for all database models.
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StoreConfig configures the store layer.
type StoreConfig struct {
	// Mode: "standalone" (default, SQLite file) or "managed" (Postgres).
	Mode string

	// PostgresDSN is the Postgres connection string used in managed mode.
	PostgresDSN string

	// SQLitePath is the database file used in standalone mode.
	SQLitePath string

	// CacheSize is the number of profiles kept in the in-process cache. 0 disables caching.
	CacheSize int

	// CacheTTL bounds how stale a cached profile may be.
	CacheTTL time.Duration

	// RedisURL enables a shared second-level profile cache when set.
	RedisURL string
}
