package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Trade  RecordKind = "TRADE"
	Jeonse RecordKind = "JEONSE"
	Wolse  RecordKind = "WOLSE"
)

const (
	SourceTrade SourceKind = "TRADE"
	SourceRent  SourceKind = "RENT"
)

type (
	// RecordKind classifies a stored transaction.
	RecordKind string

	// SourceKind names the upstream endpoint a bucket is fetched from.
	// RENT buckets hold both JEONSE and WOLSE records.
	SourceKind string

	// BucketKey is the unit of caching: one region, one calendar month, one source.
	BucketKey struct {
		RegionCode5 string
		YearMonth   string // YYYYMM
		Source      SourceKind
	}

	// TransactionRecord is a normalized upstream row. Amounts are in units of
	// 10,000 KRW; nil means the upstream value was missing or unparseable.
	TransactionRecord struct {
		RegionCode5 string
		YearMonth   string
		Kind        RecordKind

		AptName   string
		Dong      string // legal sub-district (umdNm)
		AptDong   string // building number inside the complex
		Jibun     string
		Floor     string
		Area      string // exclusive area, upstream formatting preserved
		BuildYear string
		DealDate  string // YYYY-MM-DD

		DealAmount  *int64
		Deposit     *int64
		MonthlyRent *int64

		// Provenance tags, carried through untouched.
		DealingType      string // dealingGbn
		BrokerRegion     string // estateAgentSggNm
		RegisteredDate   string // rgstDate
		SellerType       string // slerGbn
		BuyerType        string // buyerGbn
		LandLeasehold    string // landLeaseholdGbn
		CancelType       string // cdealType
		CancelDate       string // cdealDay
		ContractType     string
		RenewalRightUsed string // useRRRight
	}

	// FetchLog records the last successful fetch of one bucket.
	FetchLog struct {
		Key           BucketKey
		LastFetchedAt time.Time
	}
)

var (
	ErrRegionNotFound    = errors.New("no region code found for input")
	ErrInvalidRegionCode = errors.New("invalid region code")
	ErrInvalidYearMonth  = errors.New("invalid year month")
	ErrUnknownSourceKind = errors.New("unknown source kind")
)

// AllSources lists every source kind in fetch order.
func AllSources() []SourceKind {
	return []SourceKind{SourceTrade, SourceRent}
}

// RecordKinds returns the record kinds stored in a bucket of this source.
func (s SourceKind) RecordKinds() []RecordKind {
	switch s {
	case SourceTrade:
		return []RecordKind{Trade}
	case SourceRent:
		return []RecordKind{Jeonse, Wolse}
	default:
		return nil
	}
}

func (s SourceKind) Validate() error {
	switch s {
	case SourceTrade, SourceRent:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceKind, string(s))
	}
}

// ParseSourceKind accepts the kind name in any case.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToUpper(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Source reports which source bucket a record kind belongs to.
func (k RecordKind) Source() SourceKind {
	if k == Trade {
		return SourceTrade
	}
	return SourceRent
}

func (k BucketKey) Validate() error {
	if !isDigits(k.RegionCode5, 5) {
		return fmt.Errorf("%w: %q", ErrInvalidRegionCode, k.RegionCode5)
	}
	if _, err := ParseYearMonth(k.YearMonth); err != nil {
		return err
	}
	return k.Source.Validate()
}

func (k BucketKey) String() string {
	return k.RegionCode5 + ":" + k.YearMonth + ":" + string(k.Source)
}

// RegionCode5 returns the leading five digits of a legal-district code.
func RegionCode5(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) < 5 || !isDigits(code[:5], 5) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRegionCode, code)
	}
	return code[:5], nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
