package storage

import (
	"context"
	"time"

	"apthere/internal/core"
)

// Ports implemented by every persistence backend.
type (
	// RecordStore holds normalized transaction records partitioned by bucket.
	RecordStore interface {
		// ReplaceBucket atomically discards every record of the bucket and
		// inserts records in their place. An empty slice clears the bucket.
		ReplaceBucket(ctx context.Context, key core.BucketKey, records []core.TransactionRecord) error

		// ReadWindow returns the records of the given months for one region.
		// A non-empty dong restricts the result to that legal sub-district.
		ReadWindow(ctx context.Context, regionCode5 string, months []string, dong string) ([]core.TransactionRecord, error)
	}

	// FetchLogStore persists the last successful fetch per bucket.
	FetchLogStore interface {
		GetFetchLogs(ctx context.Context, regionCode5 string, months []string) ([]core.FetchLog, error)
		UpsertFetchLog(ctx context.Context, key core.BucketKey, fetchedAt time.Time) error
	}

	// Store is a full backend.
	Store interface {
		RecordStore
		FetchLogStore
		Ping(ctx context.Context) error
		Close() error
	}
)
