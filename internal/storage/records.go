package storage

import (
	"fmt"
	"slices"
	"time"

	"apthere/internal/core"
)

// TimeLayout is how timestamps are stored in TEXT columns.
const TimeLayout = time.RFC3339Nano

// PrepareBucket validates the key and stamps every record with the bucket's
// region and month. A record whose kind does not belong to the bucket's source
// is rejected.
func PrepareBucket(key core.BucketKey, records []core.TransactionRecord) ([]core.TransactionRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bucket key: %w", err)
	}
	kinds := key.Source.RecordKinds()
	out := make([]core.TransactionRecord, len(records))
	for i, r := range records {
		if !slices.Contains(kinds, r.Kind) {
			return nil, fmt.Errorf("record %d: kind %s does not belong to %s bucket", i, r.Kind, key.Source)
		}
		r.RegionCode5 = key.RegionCode5
		r.YearMonth = key.YearMonth
		out[i] = r
	}
	return out, nil
}

// KindStrings returns the record kinds of a source as plain strings for SQL parameters.
func KindStrings(source core.SourceKind) []string {
	kinds := source.RecordKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
