package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"apthere/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func amount(n int64) *int64 { return &n }

func TestReplaceBucketDiscardsPreviousSet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	key := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceTrade}

	first := []core.TransactionRecord{
		{Kind: core.Trade, AptName: "래미안", Dong: "역삼동", DealAmount: amount(100000), DealDate: "2025-03-01"},
		{Kind: core.Trade, AptName: "래미안", Dong: "역삼동", DealAmount: amount(110000), DealDate: "2025-03-02"},
	}
	if err := repo.ReplaceBucket(ctx, key, first); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	second := []core.TransactionRecord{
		{Kind: core.Trade, AptName: "자이", Dong: "개포동", DealAmount: amount(200000), DealDate: "2025-03-10"},
	}
	if err := repo.ReplaceBucket(ctx, key, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := repo.ReadWindow(ctx, "11680", []string{"202503"}, "")
	if err != nil {
		t.Fatalf("ReadWindow: %v", err)
	}
	if len(got) != 1 || got[0].AptName != "자이" {
		t.Fatalf("expected only the second set, got %+v", got)
	}
	if got[0].RegionCode5 != "11680" || got[0].YearMonth != "202503" {
		t.Fatalf("bucket coordinates not stamped: %+v", got[0])
	}
	if got[0].DealAmount == nil || *got[0].DealAmount != 200000 {
		t.Fatalf("deal amount = %v", got[0].DealAmount)
	}
	if got[0].Deposit != nil || got[0].MonthlyRent != nil {
		t.Fatalf("absent amounts should read back as nil")
	}
}

func TestReplaceBucketLeavesOtherSourceAlone(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	trade := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceTrade}
	rent := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceRent}

	if err := repo.ReplaceBucket(ctx, trade, []core.TransactionRecord{{Kind: core.Trade, AptName: "A"}}); err != nil {
		t.Fatalf("replace trade: %v", err)
	}
	rents := []core.TransactionRecord{
		{Kind: core.Jeonse, AptName: "A", Deposit: amount(50000)},
		{Kind: core.Wolse, AptName: "A", Deposit: amount(1000), MonthlyRent: amount(80)},
	}
	if err := repo.ReplaceBucket(ctx, rent, rents); err != nil {
		t.Fatalf("replace rent: %v", err)
	}
	// Clearing the rent bucket must not touch trades.
	if err := repo.ReplaceBucket(ctx, rent, nil); err != nil {
		t.Fatalf("clear rent: %v", err)
	}

	got, err := repo.ReadWindow(ctx, "11680", []string{"202503"}, "")
	if err != nil {
		t.Fatalf("ReadWindow: %v", err)
	}
	if len(got) != 1 || got[0].Kind != core.Trade {
		t.Fatalf("expected the trade record to survive, got %+v", got)
	}
}

func TestReplaceBucketRejectsForeignKind(t *testing.T) {
	repo := newTestRepo(t)
	key := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceTrade}
	err := repo.ReplaceBucket(context.Background(), key, []core.TransactionRecord{{Kind: core.Jeonse}})
	if err == nil {
		t.Fatalf("expected rejection of a rent record in a trade bucket")
	}
}

func TestReadWindowFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seed := map[string][]core.TransactionRecord{
		"202502": {{Kind: core.Trade, AptName: "A", Dong: "역삼동"}, {Kind: core.Trade, AptName: "B", Dong: "개포동"}},
		"202503": {{Kind: core.Trade, AptName: "C", Dong: "역삼동"}},
		"202401": {{Kind: core.Trade, AptName: "D", Dong: "역삼동"}},
	}
	for ym, recs := range seed {
		key := core.BucketKey{RegionCode5: "11680", YearMonth: ym, Source: core.SourceTrade}
		if err := repo.ReplaceBucket(ctx, key, recs); err != nil {
			t.Fatalf("replace %s: %v", ym, err)
		}
	}
	other := core.BucketKey{RegionCode5: "11110", YearMonth: "202503", Source: core.SourceTrade}
	if err := repo.ReplaceBucket(ctx, other, []core.TransactionRecord{{Kind: core.Trade, AptName: "E", Dong: "역삼동"}}); err != nil {
		t.Fatalf("replace other region: %v", err)
	}

	cases := []struct {
		name string
		dong string
		want int
	}{
		{"all dongs", "", 3},
		{"one dong", "역삼동", 2},
		{"unknown dong", "삼성동", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.ReadWindow(ctx, "11680", []string{"202502", "202503"}, tc.dong)
			if err != nil {
				t.Fatalf("ReadWindow: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("got %d records, want %d: %+v", len(got), tc.want, got)
			}
		})
	}

	if got, err := repo.ReadWindow(ctx, "11680", nil, ""); err != nil || len(got) != 0 {
		t.Fatalf("empty month list should read nothing, got %v %v", got, err)
	}
}

func TestUpsertFetchLog(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	key := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceRent}

	first := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	second := first.Add(26 * time.Hour)
	if err := repo.UpsertFetchLog(ctx, key, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.UpsertFetchLog(ctx, key, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	logs, err := repo.GetFetchLogs(ctx, "11680", []string{"202503", "202504"})
	if err != nil {
		t.Fatalf("GetFetchLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one log per bucket, got %d", len(logs))
	}
	if logs[0].Key != key {
		t.Fatalf("key = %+v", logs[0].Key)
	}
	if !logs[0].LastFetchedAt.Equal(second) {
		t.Fatalf("last fetched = %v, want %v", logs[0].LastFetchedAt, second)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
