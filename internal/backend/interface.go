package backend

import (
	"context"
	"time"

	"apthere/internal/bucketlock"
	"apthere/internal/storage"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// BackendResult is a ready storage backend with the bucket locker matching it.
type BackendResult struct {
	Store   storage.Store
	Locker  bucketlock.Locker
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// PostgreSQL specific
	DatabaseURL      string
	DatabaseMaxConns int32

	// Bucket locking
	Lock     LockType
	RedisURL string
	LockTTL  time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// LockType selects how concurrent refreshes of one bucket are excluded.
type LockType string

const (
	LocalLock LockType = "local" // one process
	RedisLock LockType = "redis" // every instance sharing the Redis server
	NoLock    LockType = "none"
)

func (lt LockType) IsValid() bool {
	switch lt {
	case LocalLock, RedisLock, NoLock:
		return true
	default:
		return false
	}
}
