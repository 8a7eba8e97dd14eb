package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"apthere/internal/amqp"
	"apthere/internal/backfill"
	"apthere/internal/core"
)

// Backfiller is the orchestrator port the worker drives.
type Backfiller interface {
	Backfill(ctx context.Context, regionCode5 string, months []string, sources []core.SourceKind) (backfill.Report, error)
}

// BackfillWorker warms the cache from queued backfill requests.
type BackfillWorker struct {
	backfiller Backfiller
	now        func() time.Time
}

// NewBackfillWorker builds a worker; now supplies the window anchor in the
// configured time zone.
func NewBackfillWorker(backfiller Backfiller, now func() time.Time) *BackfillWorker {
	if now == nil {
		now = time.Now
	}
	return &BackfillWorker{backfiller: backfiller, now: now}
}

// HandleBackfillRequested processes a single backfill message from AMQP.
// Messages without months cover the rolling window ending this month.
func (w *BackfillWorker) HandleBackfillRequested(ctx context.Context, msg *amqp.BackfillRequested) error {
	sources, err := msg.SourceKinds()
	if err != nil {
		return fmt.Errorf("decode sources: %w", err)
	}

	months := msg.Months
	if len(months) == 0 {
		months = core.Window(w.now())
	}

	slog.InfoContext(ctx, "Processing backfill request",
		"region_code", msg.RegionCode5,
		"sources", msg.Sources,
		"months", len(months),
		"requested_at", msg.RequestedAt)

	report, err := w.backfiller.Backfill(ctx, msg.RegionCode5, months, sources)
	if err != nil {
		return fmt.Errorf("backfill region %s: %w", msg.RegionCode5, err)
	}
	if !report.Complete() {
		return fmt.Errorf("backfill region %s: %d buckets failed, first: %w",
			msg.RegionCode5, len(report.Failed), report.Failed[0])
	}

	slog.InfoContext(ctx, "Backfill request completed",
		"region_code", msg.RegionCode5,
		"stale", len(report.Stale),
		"refreshed", len(report.Refreshed),
		"skipped", len(report.Skipped))
	return nil
}

// WarmRegions backfills the current window of each region.
// Failures are logged and do not stop the remaining regions.
func (w *BackfillWorker) WarmRegions(ctx context.Context, regions []string) error {
	if len(regions) == 0 {
		return nil
	}
	months := core.Window(w.now())

	successCount := 0
	errorCount := 0
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := w.backfiller.Backfill(ctx, region, months, core.AllSources())
		if err != nil || !report.Complete() {
			slog.ErrorContext(ctx, "Failed to warm region",
				"region_code", region,
				"failed", len(report.Failed),
				"error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Region warm-up completed",
		"total", len(regions),
		"warmed", successCount,
		"errors", errorCount)
	return nil
}
