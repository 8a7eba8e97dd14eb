package aggregate

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"apthere/internal/core"
)

// aptSuffix is dropped from name queries before matching. Upstream names are
// inconsistent about carrying it, so "래미안아파트" should still find "래미안".
const aptSuffix = "아파트"

// Query narrows a view to one complex.
type Query struct {
	RegionCode string // echoed back as-is
	AptName    string // substring filter; blank keeps everything
	Dong       string // fallback when nothing matches
}

// Build aggregates records of the given months. months fixes the order and
// length of every monthly summary, including months without records.
func Build(records []core.TransactionRecord, months []string, q Query) DealView {
	filtered := FilterByName(records, q.AptName)
	sortByDealDateDesc(filtered)

	var trades, rents []core.TransactionRecord
	for _, r := range filtered {
		if r.Kind == core.Trade {
			trades = append(trades, r)
		} else {
			rents = append(rents, r)
		}
	}

	view := DealView{
		RegionCode: q.RegionCode,
		AptName:    strings.TrimSpace(q.AptName),
		Dong:       q.Dong,
		Trade:      buildTrade(trades, months),
		Rent:       buildRent(rents, months),
	}
	if len(filtered) > 0 {
		first := filtered[0]
		if view.AptName == "" {
			view.AptName = first.AptName
		}
		view.Dong = first.Dong
		view.BuildYear = first.BuildYear
	}
	return view
}

// FilterByName keeps records whose apartment name contains the query with the
// "아파트" suffix removed. Both sides are NFC normalized.
func FilterByName(records []core.TransactionRecord, query string) []core.TransactionRecord {
	needle := norm.NFC.String(strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(query), aptSuffix, "")))
	out := make([]core.TransactionRecord, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(query) == "" || strings.Contains(norm.NFC.String(strings.TrimSpace(r.AptName)), needle) {
			out = append(out, r)
		}
	}
	return out
}

// sortByDealDateDesc orders newest first. YYYY-MM-DD compares
// chronologically as a string. Ties keep store order.
func sortByDealDateDesc(records []core.TransactionRecord) {
	slices.SortStableFunc(records, func(a, b core.TransactionRecord) int {
		return strings.Compare(b.DealDate, a.DealDate)
	})
}

func buildTrade(trades []core.TransactionRecord, months []string) TradeView {
	byMonth := groupByMonth(trades)
	summary := make([]TradeMonthly, 0, len(months))
	for _, ym := range months {
		m := byMonth[ym]
		summary = append(summary, TradeMonthly{
			YearMonth: ym,
			Count:     len(m),
			AvgAmount: positiveMean(m, func(r core.TransactionRecord) *int64 { return r.DealAmount }),
		})
	}

	items := make([]TradeItem, 0, len(trades))
	for _, r := range trades {
		items = append(items, TradeItem{
			AptName:        r.AptName,
			Floor:          r.Floor,
			Area:           r.Area,
			DealAmount:     r.DealAmount,
			DealDate:       r.DealDate,
			Dong:           r.Dong,
			AptDong:        r.AptDong,
			DealingType:    r.DealingType,
			CancelType:     r.CancelType,
			CancelDate:     r.CancelDate,
			BrokerRegion:   r.BrokerRegion,
			RegisteredDate: r.RegisteredDate,
			SellerType:     r.SellerType,
			BuyerType:      r.BuyerType,
			LandLeasehold:  r.LandLeasehold,
		})
	}
	return TradeView{TotalCount: len(trades), MonthlySummary: summary, Items: items}
}

func buildRent(rents []core.TransactionRecord, months []string) RentView {
	var jeonse, wolse []core.TransactionRecord
	for _, r := range rents {
		if r.Kind == core.Wolse {
			wolse = append(wolse, r)
		} else {
			jeonse = append(jeonse, r)
		}
	}
	jeonseByMonth := groupByMonth(jeonse)
	wolseByMonth := groupByMonth(wolse)

	deposit := func(r core.TransactionRecord) *int64 { return r.Deposit }
	monthly := func(r core.TransactionRecord) *int64 { return r.MonthlyRent }

	summary := make([]RentMonthly, 0, len(months))
	for _, ym := range months {
		j, w := jeonseByMonth[ym], wolseByMonth[ym]
		summary = append(summary, RentMonthly{
			YearMonth:        ym,
			JeonseCount:      len(j),
			JeonseAvgDeposit: positiveMean(j, deposit),
			WolseCount:       len(w),
			WolseAvgDeposit:  positiveMean(w, deposit),
			WolseAvgMonthly:  positiveMean(w, monthly),
		})
	}

	items := make([]RentItem, 0, len(rents))
	for _, r := range rents {
		items = append(items, RentItem{
			AptName:          r.AptName,
			Floor:            r.Floor,
			Area:             r.Area,
			RentType:         string(r.Kind),
			Deposit:          r.Deposit,
			MonthlyRent:      r.MonthlyRent,
			DealDate:         r.DealDate,
			ContractType:     r.ContractType,
			RenewalRightUsed: r.RenewalRightUsed,
		})
	}
	return RentView{
		TotalCount:     len(rents),
		JeonseCount:    len(jeonse),
		WolseCount:     len(wolse),
		MonthlySummary: summary,
		Items:          items,
	}
}

func groupByMonth(records []core.TransactionRecord) map[string][]core.TransactionRecord {
	out := make(map[string][]core.TransactionRecord)
	for _, r := range records {
		out[r.YearMonth] = append(out[r.YearMonth], r)
	}
	return out
}

// positiveMean averages the non-nil positive values, truncating toward zero.
// It returns nil when no value qualifies.
func positiveMean(records []core.TransactionRecord, field func(core.TransactionRecord) *int64) *int64 {
	var sum, n int64
	for _, r := range records {
		if v := field(r); v != nil && *v > 0 {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / n
	return &mean
}
