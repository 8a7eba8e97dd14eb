package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"apthere/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the default Store backed by a single SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ Store = (*SQLiteRepository)(nil)

// DSN returns the connection string used for dbPath. WAL plus a busy timeout
// lets readers proceed while a bucket is being replaced.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection turns lock contention into queueing.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceBucket implements RecordStore.
func (r *SQLiteRepository) ReplaceBucket(ctx context.Context, key core.BucketKey, records []core.TransactionRecord) error {
	prepared, err := PrepareBucket(key, records)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	removed, err := q.DeleteBucketRecords(ctx, key.RegionCode5, key.YearMonth, KindStrings(key.Source))
	if err != nil {
		return fmt.Errorf("delete bucket records: %w", err)
	}
	for i, rec := range prepared {
		if err := q.InsertDealRecord(ctx, rec); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bucket replace: %w", err)
	}

	slog.InfoContext(ctx, "Bucket replaced in SQLite",
		"bucket", key.String(),
		"removed", removed,
		"inserted", len(prepared))
	return nil
}

// ReadWindow implements RecordStore.
func (r *SQLiteRepository) ReadWindow(ctx context.Context, regionCode5 string, months []string, dong string) ([]core.TransactionRecord, error) {
	records, err := r.queries.ListWindowRecords(ctx, regionCode5, months, dong)
	if err != nil {
		return nil, fmt.Errorf("list window records: %w", err)
	}
	return records, nil
}

// GetFetchLogs implements FetchLogStore.
func (r *SQLiteRepository) GetFetchLogs(ctx context.Context, regionCode5 string, months []string) ([]core.FetchLog, error) {
	logs, err := r.queries.ListFetchLogs(ctx, regionCode5, months)
	if err != nil {
		return nil, fmt.Errorf("list fetch logs: %w", err)
	}
	return logs, nil
}

// UpsertFetchLog implements FetchLogStore.
func (r *SQLiteRepository) UpsertFetchLog(ctx context.Context, key core.BucketKey, fetchedAt time.Time) error {
	if err := r.queries.UpsertFetchLog(ctx, key, fetchedAt); err != nil {
		return fmt.Errorf("upsert fetch log: %w", err)
	}
	return nil
}
