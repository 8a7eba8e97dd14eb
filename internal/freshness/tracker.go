// Package freshness decides which buckets need to be fetched again.
package freshness

import (
	"context"
	"fmt"
	"time"

	"apthere/internal/core"
	"apthere/internal/storage"
)

// Tracker evaluates staleness against the persisted fetch log.
type Tracker struct {
	logs storage.FetchLogStore
	now  func() time.Time
	loc  *time.Location
}

type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the zone in which "today" and "current month" are evaluated.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

func NewTracker(logs storage.FetchLogStore, opts ...Option) *Tracker {
	t := &Tracker{logs: logs, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's current time in its location.
func (t *Tracker) Now() time.Time {
	return t.now().In(t.loc)
}

// IsStale reports whether key has to be fetched.
func (t *Tracker) IsStale(ctx context.Context, key core.BucketKey) (bool, error) {
	logs, err := t.logs.GetFetchLogs(ctx, key.RegionCode5, []string{key.YearMonth})
	if err != nil {
		return false, err
	}
	for _, l := range logs {
		if l.Key == key {
			return core.NeedsRefresh(key.YearMonth, l.LastFetchedAt, true, t.Now()), nil
		}
	}
	return true, nil
}

// MarkFresh records now as the last successful fetch of key.
func (t *Tracker) MarkFresh(ctx context.Context, key core.BucketKey, now time.Time) error {
	return t.logs.UpsertFetchLog(ctx, key, now)
}

// StaleBuckets returns the stale buckets of a region window, month-major in
// the order of months then sources. It reads the log once.
func (t *Tracker) StaleBuckets(ctx context.Context, regionCode5 string, months []string, sources []core.SourceKind) ([]core.BucketKey, error) {
	logs, err := t.logs.GetFetchLogs(ctx, regionCode5, months)
	if err != nil {
		return nil, fmt.Errorf("get fetch logs: %w", err)
	}
	last := make(map[core.BucketKey]time.Time, len(logs))
	for _, l := range logs {
		last[l.Key] = l.LastFetchedAt
	}

	now := t.Now()
	var stale []core.BucketKey
	for _, ym := range months {
		for _, src := range sources {
			key := core.BucketKey{RegionCode5: regionCode5, YearMonth: ym, Source: src}
			at, found := last[key]
			if core.NeedsRefresh(ym, at, found, now) {
				stale = append(stale, key)
			}
		}
	}
	return stale, nil
}
