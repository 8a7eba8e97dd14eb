package core

import (
	"errors"
	"testing"
	"time"
)

func TestWindow(t *testing.T) {
	cases := []struct {
		anchor time.Time
		first  string
		last   string
	}{
		{time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC), "202404", "202503"},
		{time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), "202501", "202512"},
		{time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC), "202302", "202401"},
		{time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), "202304", "202403"},
	}
	for i, tc := range cases {
		got := Window(tc.anchor)
		if len(got) != WindowSize {
			t.Fatalf("case %d: expected %d months, got %d", i, WindowSize, len(got))
		}
		if got[0] != tc.first || got[len(got)-1] != tc.last {
			t.Fatalf("case %d: got %s..%s, want %s..%s", i, got[0], got[len(got)-1], tc.first, tc.last)
		}
		seen := map[string]bool{}
		for j, ym := range got {
			if seen[ym] {
				t.Fatalf("case %d: duplicate month %s", i, ym)
			}
			seen[ym] = true
			if j > 0 && got[j-1] >= ym {
				t.Fatalf("case %d: months not ascending: %v", i, got)
			}
		}
	}
}

func TestWindowDeterministic(t *testing.T) {
	anchor := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	a, b := Window(anchor), Window(anchor)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("window differs at %d: %s vs %s", i, a[i], b[i])
		}
	}
	if WindowN(anchor, 0) != nil {
		t.Fatalf("expected nil window for n=0")
	}
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		ym      string
		fetched time.Time
		found   bool
		want    bool
	}{
		{"never fetched", "202501", time.Time{}, false, true},
		{"closed month logged long ago", "202501", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true, false},
		{"current month fetched today", "202503", time.Date(2025, 3, 15, 0, 30, 0, 0, time.UTC), true, false},
		{"current month fetched yesterday", "202503", time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC), true, true},
		{"current month never fetched", "202503", time.Time{}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsRefresh(tc.ym, tc.fetched, tc.found, now); got != tc.want {
				t.Fatalf("NeedsRefresh = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNeedsRefreshUsesNowLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	// 2025-03-15 01:00 KST is still 2025-03-14 in UTC.
	now := time.Date(2025, 3, 15, 1, 0, 0, 0, seoul)
	fetched := time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC) // 00:30 KST on the 15th
	if NeedsRefresh("202503", fetched, true, now) {
		t.Fatalf("fetch from the same KST day should count as fresh")
	}
}

func TestBucketKeyValidate(t *testing.T) {
	good := BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: SourceTrade}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got := good.String(); got != "11680:202503:TRADE" {
		t.Fatalf("unexpected key string %q", got)
	}

	bads := []struct {
		key  BucketKey
		want error
	}{
		{BucketKey{RegionCode5: "1168", YearMonth: "202503", Source: SourceTrade}, ErrInvalidRegionCode},
		{BucketKey{RegionCode5: "11a80", YearMonth: "202503", Source: SourceTrade}, ErrInvalidRegionCode},
		{BucketKey{RegionCode5: "11680", YearMonth: "202513", Source: SourceTrade}, ErrInvalidYearMonth},
		{BucketKey{RegionCode5: "11680", YearMonth: "2025-03", Source: SourceRent}, ErrInvalidYearMonth},
		{BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: "LEASE"}, ErrUnknownSourceKind},
	}
	for i, tc := range bads {
		if err := tc.key.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestRegionCode5(t *testing.T) {
	got, err := RegionCode5("1168010100")
	if err != nil || got != "11680" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
	if _, err := RegionCode5("11"); !errors.Is(err, ErrInvalidRegionCode) {
		t.Fatalf("expected ErrInvalidRegionCode, got %v", err)
	}
	if _, err := RegionCode5("abcde12345"); !errors.Is(err, ErrInvalidRegionCode) {
		t.Fatalf("expected ErrInvalidRegionCode, got %v", err)
	}
}

func TestSourceKindRecordKinds(t *testing.T) {
	if kinds := SourceTrade.RecordKinds(); len(kinds) != 1 || kinds[0] != Trade {
		t.Fatalf("unexpected trade kinds %v", kinds)
	}
	if kinds := SourceRent.RecordKinds(); len(kinds) != 2 || kinds[0] != Jeonse || kinds[1] != Wolse {
		t.Fatalf("unexpected rent kinds %v", kinds)
	}
	if Wolse.Source() != SourceRent || Trade.Source() != SourceTrade {
		t.Fatalf("record kind to source mapping broken")
	}
	if _, err := ParseSourceKind(" rent "); err != nil {
		t.Fatalf("expected rent to parse, got %v", err)
	}
}
