package google

import (
	"strings"
	"time"

	"apthere/internal/aggregate"
)

var summaryHeader = []any{
	"Month",
	"Trades",
	"Avg trade (10k KRW)",
	"Jeonse",
	"Avg jeonse deposit",
	"Wolse",
	"Avg wolse deposit",
	"Avg wolse rent",
}

// SummaryRows lays out view as sheet rows: a metadata block, then one row
// per month with trade and rent figures side by side. Missing averages are
// left blank.
func SummaryRows(view aggregate.DealView, generatedAt time.Time) [][]any {
	rows := [][]any{
		{"Region", view.RegionCode, "Apartment", view.AptName, "Dong", view.Dong},
		{"Generated", generatedAt.Format(time.RFC3339)},
	}
	if len(view.Incomplete) > 0 {
		rows = append(rows, []any{"Incomplete buckets", strings.Join(view.Incomplete, ", ")})
	}
	rows = append(rows, []any{}, summaryHeader)

	var months []string
	trade := make(map[string]aggregate.TradeMonthly, len(view.Trade.MonthlySummary))
	for _, m := range view.Trade.MonthlySummary {
		trade[m.YearMonth] = m
		months = append(months, m.YearMonth)
	}
	rent := make(map[string]aggregate.RentMonthly, len(view.Rent.MonthlySummary))
	for _, m := range view.Rent.MonthlySummary {
		rent[m.YearMonth] = m
		if _, ok := trade[m.YearMonth]; !ok {
			months = append(months, m.YearMonth)
		}
	}

	for _, ym := range months {
		t, r := trade[ym], rent[ym]
		rows = append(rows, []any{
			formatYearMonth(ym),
			t.Count,
			cell(t.AvgAmount),
			r.JeonseCount,
			cell(r.JeonseAvgDeposit),
			r.WolseCount,
			cell(r.WolseAvgDeposit),
			cell(r.WolseAvgMonthly),
		})
	}

	rows = append(rows, []any{
		"Total",
		view.Trade.TotalCount,
		"",
		view.Rent.JeonseCount,
		"",
		view.Rent.WolseCount,
		"",
		"",
	})
	return rows
}

func cell(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

// formatYearMonth renders 202503 as 2025-03.
func formatYearMonth(ym string) string {
	if len(ym) != 6 {
		return ym
	}
	return ym[:4] + "-" + ym[4:]
}
