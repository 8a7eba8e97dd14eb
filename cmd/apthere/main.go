package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"apthere/internal/amqp"
	"apthere/internal/backfill"
	"apthere/internal/cache"
	"apthere/internal/cli"
	"apthere/internal/freshness"
	apphttp "apthere/internal/http"
	applog "apthere/internal/log"
	"apthere/internal/lookup"
	"apthere/internal/services"
	"apthere/internal/upstream"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

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

	listCache := cache.NewLRUCache[services.AptList](cfg.PlacesCacheSize, cfg.PlacesCacheTTL)
	caches := cache.NewManager()
	caches.Register("apt_list", listCache)

	opts := []services.Option{
		services.WithListCache(listCache),
		services.WithClock(tracker.Now),
	}

	// The warm-up queue is optional; requests still backfill inline without it.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, cache warm-up disabled", "error", err)
		} else {
			amqpClient = c
			opts = append(opts, services.WithWarmer(amqpClient))
			logger.Info("AMQP warm-up enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	deals := services.NewDealService(
		lookup.NewAreaCodeClient(cfg.AreaCodeBaseURL, cfg.AreaCodeAPIKey, nil),
		lookup.NewPlacesClient(cfg.KakaoBaseURL, cfg.KakaoAPIKey, nil),
		orch,
		be.Store,
		opts...,
	)

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, deals, be.Store, logger)
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})
	caches.Start(ctx, time.Minute)

	logger.Info("Starting apthere server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"lock", cfg.BackfillLock,
		"fail_fast", cfg.BackfillFailFast)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
