package main

import (
	"context"
	"errors"
	"os"
	"time"

	"apthere/internal/amqp"
	"apthere/internal/backfill"
	"apthere/internal/cli"
	"apthere/internal/freshness"
	applog "apthere/internal/log"
	"apthere/internal/upstream"
	"apthere/internal/worker"
)

// warmInterval re-warms configured regions so their current month stays fresh.
const warmInterval = 6 * time.Hour

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	be := cli.InitBackend(context.Background(), logger, cfg)

	tracker := freshness.NewTracker(be.Store, freshness.WithLocation(cfg.Location()))
	feed := upstream.NewClient(upstream.Config{
		BaseURL:    cfg.PublicDataBaseURL,
		ServiceKey: cfg.PublicDataServiceKey,
		Rows:       cfg.PublicDataRows,
	})
	orch := backfill.New(feed, be.Store, tracker, be.Locker, backfill.Config{
		MaxConcurrency: cfg.BackfillMaxConcurrency,
		FailFast:       cfg.BackfillFailFast,
	}, logger)
	w := worker.NewBackfillWorker(orch, tracker.Now)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", "error", err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	if len(cfg.WarmRegions) > 0 {
		go func() {
			ticker := time.NewTicker(warmInterval)
			defer ticker.Stop()
			for {
				if err := w.WarmRegions(ctx, cfg.WarmRegions); err != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	logger.Info("Starting apthere-worker",
		"queue", cfg.AMQPQueue,
		"warm_regions", len(cfg.WarmRegions),
		"backend", cfg.DataBackend)
	if err := amqpClient.ConsumeBackfillRequested(ctx, w.HandleBackfillRequested); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
