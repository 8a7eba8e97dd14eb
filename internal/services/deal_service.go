// Package services implements the request use cases on top of the cache core.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"apthere/internal/aggregate"
	"apthere/internal/amqp"
	"apthere/internal/backfill"
	"apthere/internal/cache"
	"apthere/internal/core"
	"apthere/internal/lookup"
	"apthere/internal/storage"
)

// ErrInvalidRequest marks caller mistakes, as opposed to collaborator failures.
var ErrInvalidRequest = errors.New("invalid request")

type (
	// RegionResolver turns a place into a 10-digit legal-district code.
	RegionResolver interface {
		Resolve(ctx context.Context, city, village string) (string, error)
		ResolveAddress(ctx context.Context, address string) (string, error)
	}

	// PlaceSearcher finds places around a point.
	PlaceSearcher interface {
		Search(ctx context.Context, query string, lat, lng float64, radius int) ([]lookup.Place, error)
	}

	Backfiller interface {
		Backfill(ctx context.Context, regionCode5 string, months []string, sources []core.SourceKind) (backfill.Report, error)
	}

	// Warmer queues a background backfill. Optional.
	Warmer interface {
		PublishBackfillRequested(ctx context.Context, msg *amqp.BackfillRequested) error
	}
)

// FindRequest selects the deals of one apartment or district.
type FindRequest struct {
	Address string  `json:"address"`
	LawdCd  *string `json:"lawdCd,omitempty"`
	Dong    string  `json:"dong"`
	AptName *string `json:"aptName,omitempty"`
}

// ListRequest selects apartments around a point.
type ListRequest struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius int     `json:"radius"`
}

const (
	DefaultRadius = 1000
	MaxRadius     = 20000
)

// AptInfo is one apartment complex near the requested point.
type AptInfo struct {
	AptName string  `json:"aptName"`
	Dong    string  `json:"dong"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	LawdCd  *string `json:"lawdCd"`
}

type AptList struct {
	Apartments []AptInfo `json:"apartments"`
}

// DealService wires region resolution, backfill and aggregation together.
type DealService struct {
	resolver   RegionResolver
	places     PlaceSearcher
	backfiller Backfiller
	records    storage.RecordStore
	warmer     Warmer
	listCache  cache.Cache[AptList]
	now        func() time.Time
}

// Option configures a DealService.
type Option func(*DealService)

// WithWarmer publishes warm-up requests for regions discovered by listings.
func WithWarmer(w Warmer) Option {
	return func(s *DealService) { s.warmer = w }
}

// WithListCache caches apartment listings by area.
func WithListCache(c cache.Cache[AptList]) Option {
	return func(s *DealService) { s.listCache = c }
}

// WithClock supplies the window anchor, normally the tracker's zoned clock.
func WithClock(now func() time.Time) Option {
	return func(s *DealService) { s.now = now }
}

func NewDealService(resolver RegionResolver, places PlaceSearcher, backfiller Backfiller, records storage.RecordStore, opts ...Option) *DealService {
	s := &DealService{
		resolver:   resolver,
		places:     places,
		backfiller: backfiller,
		records:    records,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindDeals resolves the region, refreshes its stale buckets and aggregates
// the rolling window.
func (s *DealService) FindDeals(ctx context.Context, req FindRequest) (aggregate.DealView, error) {
	lawdCd, err := s.resolveRegion(ctx, req)
	if err != nil {
		return aggregate.DealView{}, err
	}
	region, err := core.RegionCode5(lawdCd)
	if err != nil {
		return aggregate.DealView{}, fmt.Errorf("%w: %v", core.ErrRegionNotFound, err)
	}

	months := core.Window(s.now())
	report, err := s.backfiller.Backfill(ctx, region, months, core.AllSources())
	if err != nil {
		return aggregate.DealView{}, fmt.Errorf("backfill region %s: %w", region, err)
	}

	dong := strings.TrimSpace(req.Dong)
	records, err := s.records.ReadWindow(ctx, region, months, dong)
	if err != nil {
		return aggregate.DealView{}, fmt.Errorf("read window: %w", err)
	}

	q := aggregate.Query{RegionCode: lawdCd, Dong: dong}
	if req.AptName != nil {
		q.AptName = *req.AptName
	}
	view := aggregate.Build(records, months, q)
	for _, f := range report.Failed {
		view.Incomplete = append(view.Incomplete, f.Key.String())
	}
	if len(view.Incomplete) > 0 {
		slog.WarnContext(ctx, "Serving partially refreshed window",
			"region_code", region,
			"failed", len(view.Incomplete))
	}
	return view, nil
}

// resolveRegion uses the given code when present, otherwise looks up the
// first address token and the dong, falling back to the whole address.
func (s *DealService) resolveRegion(ctx context.Context, req FindRequest) (string, error) {
	if req.LawdCd != nil && strings.TrimSpace(*req.LawdCd) != "" {
		return strings.TrimSpace(*req.LawdCd), nil
	}

	address := strings.TrimSpace(req.Address)
	dong := strings.TrimSpace(req.Dong)
	if address == "" && dong == "" {
		return "", fmt.Errorf("%w: address or lawdCd is required", ErrInvalidRequest)
	}

	code, err := s.resolver.Resolve(ctx, firstToken(address), dong)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, core.ErrRegionNotFound) || address == "" {
		return "", err
	}

	slog.DebugContext(ctx, "Village lookup missed, trying full address", "address", address, "dong", dong)
	return s.resolver.ResolveAddress(ctx, address)
}

func firstToken(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
