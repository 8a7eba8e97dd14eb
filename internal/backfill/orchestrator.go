// Package backfill refreshes stale region-month buckets from the upstream feed.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"apthere/internal/bucketlock"
	"apthere/internal/core"
	"apthere/internal/freshness"
	applog "apthere/internal/log"
	"apthere/internal/storage"
	"apthere/internal/upstream"
)

// DefaultMaxConcurrency covers a full trade+rent window in one wave.
const DefaultMaxConcurrency = 2 * core.WindowSize

// DefaultBucketTimeout bounds one shared bucket refresh.
const DefaultBucketTimeout = 2 * time.Minute

// Fetcher is the upstream port.
type Fetcher interface {
	Fetch(ctx context.Context, regionCode5, yearMonth string, source core.SourceKind) ([]upstream.RawFields, error)
}

type Config struct {
	MaxConcurrency int
	// FailFast cancels sibling buckets on the first failure and returns it.
	// When false every bucket runs to completion and failures land in Report.Failed.
	FailFast bool
	// BucketTimeout bounds a single bucket refresh. The refresh is shared by
	// every caller waiting on the bucket, so it does not inherit any one
	// caller's deadline.
	BucketTimeout time.Duration
}

// Report summarizes one Backfill call.
type Report struct {
	Stale     []core.BucketKey // stale when the pass started
	Refreshed []core.BucketKey
	Skipped   []core.BucketKey // refreshed by someone else before this pass got the lock
	Failed    []*BucketError
}

// Complete reports whether every stale bucket ended up fresh.
func (r Report) Complete() bool { return len(r.Failed) == 0 }

// Step names the stage a bucket pipeline failed in.
type Step string

const (
	StepLock    Step = "lock"
	StepCheck   Step = "check"
	StepFetch   Step = "fetch"
	StepReplace Step = "replace"
	StepMark    Step = "mark"

	// StepCancelled marks a bucket this call stopped waiting for, or never
	// started, because its own context ended. The bucket is still stale.
	StepCancelled Step = "cancelled"
)

// BucketError ties a failure to its bucket.
type BucketError struct {
	Key  core.BucketKey
	Step Step
	Err  error
}

func (e *BucketError) Error() string {
	return fmt.Sprintf("backfill %s: %s: %v", e.Key, e.Step, e.Err)
}

func (e *BucketError) Unwrap() error { return e.Err }

type Orchestrator struct {
	fetcher Fetcher
	store   storage.RecordStore
	tracker *freshness.Tracker
	locker  bucketlock.Locker
	cfg     Config
	logger  *applog.Logger

	flight singleflight.Group
}

func New(fetcher Fetcher, store storage.RecordStore, tracker *freshness.Tracker, locker bucketlock.Locker, cfg Config, logger *applog.Logger) *Orchestrator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.BucketTimeout <= 0 {
		cfg.BucketTimeout = DefaultBucketTimeout
	}
	if locker == nil {
		locker = bucketlock.Noop{}
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Orchestrator{
		fetcher: fetcher,
		store:   store,
		tracker: tracker,
		locker:  locker,
		cfg:     cfg,
		logger:  logger.WithComponent(applog.ComponentBackfill),
	}
}

type outcome struct {
	refreshed bool
	err       *BucketError
}

// Backfill refreshes every stale bucket of the region window. Fresh buckets
// are never fetched. Buckets written before a failure stay written.
func (o *Orchestrator) Backfill(ctx context.Context, regionCode5 string, months []string, sources []core.SourceKind) (Report, error) {
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return Report{}, err
		}
	}
	for _, ym := range months {
		key := core.BucketKey{RegionCode5: regionCode5, YearMonth: ym, Source: core.SourceTrade}
		if err := key.Validate(); err != nil {
			return Report{}, err
		}
	}

	stale, err := o.tracker.StaleBuckets(ctx, regionCode5, months, sources)
	if err != nil {
		return Report{}, err
	}
	report := Report{Stale: stale}
	if len(stale) == 0 {
		return report, nil
	}

	g := new(errgroup.Group)
	gctx := ctx
	if o.cfg.FailFast {
		g, gctx = errgroup.WithContext(ctx)
	}
	g.SetLimit(o.cfg.MaxConcurrency)

	outcomes := make([]outcome, len(stale))
	for i, key := range stale {
		i, key := i, key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = outcome{err: &BucketError{Key: key, Step: StepCancelled, Err: err}}
				return nil
			}
			refreshed, berr := o.refresh(gctx, key)
			outcomes[i] = outcome{refreshed: refreshed, err: berr}
			if berr != nil && o.cfg.FailFast {
				return berr
			}
			return nil
		})
	}
	firstErr := g.Wait()

	for i, out := range outcomes {
		switch {
		case out.err != nil:
			report.Failed = append(report.Failed, out.err)
		case out.refreshed:
			report.Refreshed = append(report.Refreshed, stale[i])
		default:
			report.Skipped = append(report.Skipped, stale[i])
		}
	}

	if firstErr == nil && o.cfg.FailFast && len(report.Failed) > 0 {
		firstErr = report.Failed[0]
		for _, f := range report.Failed {
			if f.Step != StepCancelled {
				firstErr = f
				break
			}
		}
	}

	applog.NewStructuredLogger(o.logger).LogBackfill(ctx, regionCode5, len(stale), len(report.Refreshed), len(report.Failed), firstErr)
	if firstErr != nil {
		return report, firstErr
	}
	return report, nil
}

// refresh runs the pipeline of one bucket. Concurrent callers inside this
// process share one run; across processes the bucket lock serializes them.
// The shared run keeps the first caller's values but not its cancellation,
// so a caller whose context ends only abandons its own wait.
func (o *Orchestrator) refresh(ctx context.Context, key core.BucketKey) (bool, *BucketError) {
	ch := o.flight.DoChan(key.String(), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.BucketTimeout)
		defer cancel()
		return o.refreshLocked(rctx, key)
	})
	select {
	case <-ctx.Done():
		return false, &BucketError{Key: key, Step: StepCancelled, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			var berr *BucketError
			if errors.As(res.Err, &berr) {
				return false, berr
			}
			return false, &BucketError{Key: key, Step: StepFetch, Err: res.Err}
		}
		return res.Val.(bool), nil
	}
}

func (o *Orchestrator) refreshLocked(ctx context.Context, key core.BucketKey) (bool, error) {
	unlock, err := o.locker.Lock(ctx, key.String())
	if err != nil {
		return false, &BucketError{Key: key, Step: StepLock, Err: err}
	}
	defer unlock()

	// Another request may have refreshed the bucket while we waited.
	stale, err := o.tracker.IsStale(ctx, key)
	if err != nil {
		return false, &BucketError{Key: key, Step: StepCheck, Err: err}
	}
	if !stale {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, &BucketError{Key: key, Step: StepFetch, Err: err}
	}
	start := time.Now()
	rows, err := o.fetcher.Fetch(ctx, key.RegionCode5, key.YearMonth, key.Source)
	if err != nil {
		return false, &BucketError{Key: key, Step: StepFetch, Err: err}
	}
	records := MapRecords(key.Source, rows)

	if err := o.store.ReplaceBucket(ctx, key, records); err != nil {
		return false, &BucketError{Key: key, Step: StepReplace, Err: err}
	}
	if err := o.tracker.MarkFresh(ctx, key, o.tracker.Now()); err != nil {
		return false, &BucketError{Key: key, Step: StepMark, Err: err}
	}

	fields := applog.NewFields().
		WithBucket(key.RegionCode5, key.YearMonth, string(key.Source)).
		WithOperation(applog.OpBackfill)
	fields[applog.FieldCount] = len(records)
	fields[applog.FieldDuration] = time.Since(start).Milliseconds()
	o.logger.DebugContext(ctx, "Bucket refreshed", fields.ToSlice()...)
	return true, nil
}
