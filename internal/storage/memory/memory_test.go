package memory

import (
	"context"
	"testing"
	"time"

	"apthere/internal/core"
)

func TestMemoryStoreReplaceAndRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	trade := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceTrade}
	rent := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceRent}

	if err := s.ReplaceBucket(ctx, trade, []core.TransactionRecord{{Kind: core.Trade, AptName: "A", Dong: "역삼동"}}); err != nil {
		t.Fatalf("replace trade: %v", err)
	}
	if err := s.ReplaceBucket(ctx, rent, []core.TransactionRecord{{Kind: core.Jeonse, AptName: "A", Dong: "개포동"}}); err != nil {
		t.Fatalf("replace rent: %v", err)
	}
	if err := s.ReplaceBucket(ctx, trade, []core.TransactionRecord{{Kind: core.Trade, AptName: "B", Dong: "역삼동"}}); err != nil {
		t.Fatalf("replace trade again: %v", err)
	}

	all, _ := s.ReadWindow(ctx, "11680", []string{"202503"}, "")
	if len(all) != 2 || all[0].AptName != "B" || all[1].Kind != core.Jeonse {
		t.Fatalf("unexpected window: %+v", all)
	}
	filtered, _ := s.ReadWindow(ctx, "11680", []string{"202503"}, "개포동")
	if len(filtered) != 1 {
		t.Fatalf("dong filter failed: %+v", filtered)
	}
	if none, _ := s.ReadWindow(ctx, "11680", []string{"202502"}, ""); len(none) != 0 {
		t.Fatalf("month filter failed: %+v", none)
	}
	if s.Replaces() != 3 {
		t.Fatalf("replaces = %d", s.Replaces())
	}
}

func TestMemoryStoreRejectsMismatchedKind(t *testing.T) {
	s := New()
	key := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceRent}
	if err := s.ReplaceBucket(context.Background(), key, []core.TransactionRecord{{Kind: core.Trade}}); err == nil {
		t.Fatalf("expected error")
	}
	if s.Replaces() != 0 {
		t.Fatalf("failed replace must not count")
	}
}

func TestMemoryStoreFetchLogs(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceTrade}
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = s.UpsertFetchLog(ctx, key, at)
	_ = s.UpsertFetchLog(ctx, key, at.Add(time.Hour))

	logs, _ := s.GetFetchLogs(ctx, "11680", []string{"202503"})
	if len(logs) != 1 || !logs[0].LastFetchedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("unexpected logs: %+v", logs)
	}
	if err := s.UpsertFetchLog(ctx, core.BucketKey{RegionCode5: "1", YearMonth: "202503", Source: core.SourceTrade}, at); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
