// Command apthere-export refreshes one region window and writes its monthly
// deal summary to Google Sheets.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"apthere/internal/backfill"
	"apthere/internal/cli"
	"apthere/internal/config"
	"apthere/internal/freshness"
	applog "apthere/internal/log"
	"apthere/internal/lookup"
	"apthere/internal/services"
	gsheet "apthere/internal/sheets/google"
	"apthere/internal/upstream"
)

type options struct {
	lawdCd  string
	dong    string
	aptName string
	sheet   string
	dryRun  bool
	timeout time.Duration
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("apthere-export", pflag.ExitOnError)
	flags.StringVarP(&opts.lawdCd, "region", "r", "", "legal-district code, 5 or 10 digits (required)")
	flags.StringVarP(&opts.dong, "dong", "d", "", "restrict to one dong")
	flags.StringVarP(&opts.aptName, "apt", "a", "", "restrict to one apartment name")
	flags.StringVar(&opts.sheet, "sheet", "", "target sheet name (default GOOGLE_SHEET_NAME)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the rows as JSON instead of writing the sheet")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall time limit")
	_ = flags.Parse(os.Args[1:])

	if opts.lawdCd == "" {
		fmt.Fprintln(os.Stderr, "--region is required")
		flags.Usage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	if opts.sheet != "" {
		cfg.GoogleSheetName = opts.sheet
	}
	logger := cli.SetupLogger(cfg, applog.ComponentSheets)
	if !opts.dryRun {
		if err := cfg.ValidateExport(); err != nil {
			logger.Error("Export configuration invalid", "error", err)
			os.Exit(1)
		}
	}

	if err := run(logger, cfg, opts); err != nil {
		fields := applog.NewFields()
		fields[applog.FieldRegionCode] = opts.lawdCd
		applog.NewStructuredLogger(logger).LogError(context.Background(), "Export failed", err, applog.ComponentSheets, applog.OpExport, fields)
		os.Exit(1)
	}
}

func run(logger *applog.Logger, cfg *config.Config, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}()

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
	deals := services.NewDealService(
		lookup.NewAreaCodeClient(cfg.AreaCodeBaseURL, cfg.AreaCodeAPIKey, nil),
		lookup.NewPlacesClient(cfg.KakaoBaseURL, cfg.KakaoAPIKey, nil),
		orch,
		be.Store,
		services.WithClock(tracker.Now),
	)

	req := services.FindRequest{LawdCd: &opts.lawdCd, Dong: opts.dong}
	if opts.aptName != "" {
		req.AptName = &opts.aptName
	}
	view, err := deals.FindDeals(ctx, req)
	if err != nil {
		return fmt.Errorf("find deals: %w", err)
	}

	if opts.dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(gsheet.SummaryRows(view, tracker.Now()))
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return err
	}
	rng, err := client.ExportSummary(ctx, view)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Export complete",
		"range", rng,
		"trades", view.Trade.TotalCount,
		"rents", view.Rent.TotalCount,
		"incomplete", len(view.Incomplete))
	return nil
}
