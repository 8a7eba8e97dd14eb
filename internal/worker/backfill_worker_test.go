package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"apthere/internal/amqp"
	"apthere/internal/backfill"
	"apthere/internal/core"
)

type call struct {
	region  string
	months  []string
	sources []core.SourceKind
}

type fakeBackfiller struct {
	calls  []call
	report backfill.Report
	err    error
	failOn string
}

func (f *fakeBackfiller) Backfill(_ context.Context, region string, months []string, sources []core.SourceKind) (backfill.Report, error) {
	f.calls = append(f.calls, call{region: region, months: months, sources: sources})
	if region == f.failOn {
		return backfill.Report{}, errors.New("upstream down")
	}
	return f.report, f.err
}

func fixedNow() time.Time { return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC) }

func TestHandleBackfillRequestedDefaultsToWindow(t *testing.T) {
	fb := &fakeBackfiller{}
	w := NewBackfillWorker(fb, fixedNow)

	msg := amqp.NewBackfillRequested("11680", []core.SourceKind{core.SourceRent})
	if err := w.HandleBackfillRequested(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.calls) != 1 {
		t.Fatalf("expected one backfill, got %d", len(fb.calls))
	}
	c := fb.calls[0]
	if c.region != "11680" || len(c.sources) != 1 || c.sources[0] != core.SourceRent {
		t.Fatalf("unexpected call %+v", c)
	}
	if len(c.months) != core.WindowSize || c.months[0] != "202404" || c.months[11] != "202503" {
		t.Fatalf("unexpected window %v", c.months)
	}
}

func TestHandleBackfillRequestedExplicitMonths(t *testing.T) {
	fb := &fakeBackfiller{}
	w := NewBackfillWorker(fb, fixedNow)

	msg := amqp.NewBackfillRequested("11680", core.AllSources())
	msg.Months = []string{"202401"}
	if err := w.HandleBackfillRequested(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fb.calls[0].months; len(got) != 1 || got[0] != "202401" {
		t.Fatalf("months = %v", got)
	}
}

func TestHandleBackfillRequestedFailures(t *testing.T) {
	bucket := core.BucketKey{RegionCode5: "11680", YearMonth: "202503", Source: core.SourceTrade}
	boom := errors.New("result code 99")

	tests := []struct {
		name string
		fb   *fakeBackfiller
		msg  *amqp.BackfillRequested
	}{
		{
			name: "orchestrator error",
			fb:   &fakeBackfiller{err: boom},
			msg:  amqp.NewBackfillRequested("11680", core.AllSources()),
		},
		{
			name: "partial report",
			fb: &fakeBackfiller{report: backfill.Report{
				Failed: []*backfill.BucketError{{Key: bucket, Step: backfill.StepFetch, Err: boom}},
			}},
			msg: amqp.NewBackfillRequested("11680", core.AllSources()),
		},
		{
			name: "unknown source",
			fb:   &fakeBackfiller{},
			msg:  &amqp.BackfillRequested{RegionCode5: "11680", Sources: []string{"LEASE"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewBackfillWorker(tt.fb, fixedNow)
			if err := w.HandleBackfillRequested(context.Background(), tt.msg); err == nil {
				t.Fatal("expected error so the message is requeued")
			}
		})
	}
}

func TestWarmRegionsContinuesAfterFailure(t *testing.T) {
	fb := &fakeBackfiller{failOn: "11110"}
	w := NewBackfillWorker(fb, fixedNow)

	if err := w.WarmRegions(context.Background(), []string{"11110", "11680", "41135"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.calls) != 3 {
		t.Fatalf("expected all regions attempted, got %d", len(fb.calls))
	}
}

func TestWarmRegionsStopsOnCancel(t *testing.T) {
	fb := &fakeBackfiller{}
	w := NewBackfillWorker(fb, fixedNow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.WarmRegions(ctx, []string{"11680"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(fb.calls) != 0 {
		t.Fatal("no backfill should run after cancellation")
	}
}
