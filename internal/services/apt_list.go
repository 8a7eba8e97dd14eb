package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/sync/errgroup"

	"apthere/internal/amqp"
	"apthere/internal/core"
	"apthere/internal/lookup"
)

const (
	placeQuery    = "아파트"
	aptCategory   = "아파트"
	listCacheCell = 7 // ~150m cells
	resolveLimit  = 8
)

// ListApartments returns apartment complexes near a point with their
// district codes. A failed places search yields an empty list; a failed
// code lookup leaves that entry's code nil.
//
// The point is snapped to the centre of its precision-7 geohash cell (about
// 150m) before searching, and results are cached per cell and radius. Two
// points in one cell therefore get the same list, searched from the cell
// centre rather than from either point.
func (s *DealService) ListApartments(ctx context.Context, req ListRequest) (AptList, error) {
	if req.Radius == 0 {
		req.Radius = DefaultRadius
	}
	if err := req.validate(); err != nil {
		return AptList{}, err
	}

	cell := listCell(req)
	key := listCacheKey(cell, req.Radius)
	if s.listCache != nil {
		if cached, ok := s.listCache.Get(key); ok {
			return cached, nil
		}
	}

	lat, lng := geohash.DecodeCenter(cell)
	places, err := s.places.Search(ctx, placeQuery, lat, lng, req.Radius)
	if err != nil {
		slog.WarnContext(ctx, "Places search failed, returning empty list", "error", err)
		return AptList{Apartments: []AptInfo{}}, nil
	}

	var apts []lookup.Place
	for _, p := range places {
		if strings.Contains(p.Category, aptCategory) {
			apts = append(apts, p)
		}
	}

	infos := make([]AptInfo, len(apts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveLimit)
	for i, p := range apts {
		i, p := i, p
		g.Go(func() error {
			infos[i] = s.describe(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AptList{}, err
	}

	list := AptList{Apartments: infos}
	if s.listCache != nil {
		s.listCache.Set(key, list)
	}
	s.warm(ctx, infos)
	return list, nil
}

func (s *DealService) describe(ctx context.Context, p lookup.Place) AptInfo {
	address := p.Address
	if strings.TrimSpace(address) == "" {
		address = p.RoadAddress
	}
	dong := ExtractDong(p.Address)
	info := AptInfo{
		AptName: p.Name,
		Dong:    dong,
		Lat:     p.Lat,
		Lng:     p.Lng,
		Address: address,
	}

	code, err := s.resolver.Resolve(ctx, firstToken(address), dong)
	if err != nil {
		slog.DebugContext(ctx, "District code not found for place", "apt_name", p.Name, "error", err)
		return info
	}
	info.LawdCd = &code
	return info
}

// warm queues one backfill per distinct region of the listing.
func (s *DealService) warm(ctx context.Context, infos []AptInfo) {
	if s.warmer == nil {
		return
	}
	seen := make(map[string]bool)
	for _, info := range infos {
		if info.LawdCd == nil {
			continue
		}
		region, err := core.RegionCode5(*info.LawdCd)
		if err != nil || seen[region] {
			continue
		}
		seen[region] = true
		if err := s.warmer.PublishBackfillRequested(ctx, amqp.NewBackfillRequested(region, core.AllSources())); err != nil {
			slog.WarnContext(ctx, "Failed to queue region warm-up", "region_code", region, "error", err)
		}
	}
}

// ExtractDong returns the first address token naming a dong, ri or eup.
func ExtractDong(address string) string {
	for _, tok := range strings.Fields(address) {
		if strings.HasSuffix(tok, "동") || strings.HasSuffix(tok, "리") || strings.HasSuffix(tok, "읍") {
			return tok
		}
	}
	return ""
}

func (r ListRequest) validate() error {
	switch {
	case r.Lat < -90 || r.Lat > 90:
		return fmt.Errorf("%w: lat out of range", ErrInvalidRequest)
	case r.Lng < -180 || r.Lng > 180:
		return fmt.Errorf("%w: lng out of range", ErrInvalidRequest)
	case r.Radius < 0 || r.Radius > MaxRadius:
		return fmt.Errorf("%w: radius must be between 0 and %d", ErrInvalidRequest, MaxRadius)
	}
	return nil
}

func listCell(r ListRequest) string {
	return geohash.EncodeWithPrecision(r.Lat, r.Lng, listCacheCell)
}

func listCacheKey(cell string, radius int) string {
	return fmt.Sprintf("%s:%d", cell, radius)
}
