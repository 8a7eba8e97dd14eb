// Package memory is an in-process Store used by tests and the memory backend.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"apthere/internal/core"
	"apthere/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	records map[core.BucketKey][]core.TransactionRecord
	logs    map[core.BucketKey]time.Time
	seq     []core.BucketKey // insertion order of buckets, for stable reads

	replaces int
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: map[core.BucketKey][]core.TransactionRecord{},
		logs:    map[core.BucketKey]time.Time{},
	}
}

func (s *Store) ReplaceBucket(_ context.Context, key core.BucketKey, records []core.TransactionRecord) error {
	prepared, err := storage.PrepareBucket(key, records)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		s.seq = append(s.seq, key)
	}
	s.records[key] = prepared
	s.replaces++
	return nil
}

func (s *Store) ReadWindow(_ context.Context, regionCode5 string, months []string, dong string) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.TransactionRecord
	for _, key := range s.seq {
		if key.RegionCode5 != regionCode5 || !slices.Contains(months, key.YearMonth) {
			continue
		}
		for _, r := range s.records[key] {
			if dong != "" && r.Dong != dong {
				continue
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetFetchLogs(_ context.Context, regionCode5 string, months []string) ([]core.FetchLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.FetchLog
	for key, at := range s.logs {
		if key.RegionCode5 == regionCode5 && slices.Contains(months, key.YearMonth) {
			out = append(out, core.FetchLog{Key: key, LastFetchedAt: at})
		}
	}
	return out, nil
}

func (s *Store) UpsertFetchLog(_ context.Context, key core.BucketKey, fetchedAt time.Time) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[key] = fetchedAt
	return nil
}

// Replaces reports how many ReplaceBucket calls succeeded.
func (s *Store) Replaces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaces
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
