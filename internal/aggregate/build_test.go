package aggregate

import (
	"encoding/json"
	"strings"
	"testing"

	"golang.org/x/text/unicode/norm"

	"apthere/internal/core"
)

func amt(n int64) *int64 { return &n }

func trade(ym, date string, amount *int64) core.TransactionRecord {
	return core.TransactionRecord{Kind: core.Trade, YearMonth: ym, DealDate: date, AptName: "래미안", Dong: "역삼동", DealAmount: amount}
}

func TestTradeMonthlyAverage(t *testing.T) {
	records := []core.TransactionRecord{
		trade("202503", "2025-03-01", amt(1000)),
		trade("202503", "2025-03-02", amt(0)),
		trade("202503", "2025-03-03", nil),
		trade("202503", "2025-03-04", amt(3000)),
		trade("202502", "2025-02-01", amt(0)),
		trade("202502", "2025-02-02", nil),
	}
	view := Build(records, []string{"202501", "202502", "202503"}, Query{})

	s := view.Trade.MonthlySummary
	if len(s) != 3 {
		t.Fatalf("summary length = %d", len(s))
	}
	if s[0].YearMonth != "202501" || s[0].Count != 0 || s[0].AvgAmount != nil {
		t.Fatalf("empty month = %+v", s[0])
	}
	if s[1].Count != 2 || s[1].AvgAmount != nil {
		t.Fatalf("month without qualifying values = %+v", s[1])
	}
	if s[2].Count != 4 || s[2].AvgAmount == nil || *s[2].AvgAmount != 2000 {
		t.Fatalf("202503 = %+v", s[2])
	}
	if view.Trade.TotalCount != 6 {
		t.Fatalf("total = %d", view.Trade.TotalCount)
	}
}

func TestAverageTruncates(t *testing.T) {
	records := []core.TransactionRecord{trade("202503", "", amt(1)), trade("202503", "", amt(2))}
	got := Build(records, []string{"202503"}, Query{}).Trade.MonthlySummary[0].AvgAmount
	if got == nil || *got != 1 {
		t.Fatalf("avg = %v, want 1", got)
	}
}

func TestRentMonthlySummary(t *testing.T) {
	records := []core.TransactionRecord{
		{Kind: core.Jeonse, YearMonth: "202503", Deposit: amt(50000)},
		{Kind: core.Jeonse, YearMonth: "202503", Deposit: amt(30000)},
		{Kind: core.Jeonse, YearMonth: "202503", Deposit: nil},
		{Kind: core.Wolse, YearMonth: "202503", Deposit: amt(1000), MonthlyRent: amt(100)},
		{Kind: core.Wolse, YearMonth: "202503", Deposit: amt(0), MonthlyRent: amt(151)},
	}
	view := Build(records, []string{"202503"}, Query{})
	m := view.Rent.MonthlySummary[0]
	if m.JeonseCount != 3 || *m.JeonseAvgDeposit != 40000 {
		t.Fatalf("jeonse = %+v", m)
	}
	if m.WolseCount != 2 || *m.WolseAvgDeposit != 1000 || *m.WolseAvgMonthly != 125 {
		t.Fatalf("wolse = %+v", m)
	}
	if view.Rent.TotalCount != 5 || view.Rent.JeonseCount != 3 || view.Rent.WolseCount != 2 {
		t.Fatalf("rent totals = %+v", view.Rent)
	}
	if view.Trade.TotalCount != 0 || len(view.Trade.Items) != 0 {
		t.Fatalf("rent records leaked into trades")
	}
}

func TestItemsSortedNewestFirst(t *testing.T) {
	want := []string{"2025-03-01", "2024-12-31", "2024-01-05"}
	perms := [][]string{
		{"2024-01-05", "2025-03-01", "2024-12-31"},
		{"2024-12-31", "2024-01-05", "2025-03-01"},
		{"2025-03-01", "2024-12-31", "2024-01-05"},
		{"2024-01-05", "2024-12-31", "2025-03-01"},
	}
	for _, p := range perms {
		var records []core.TransactionRecord
		for _, d := range p {
			records = append(records, trade("", d, nil), core.TransactionRecord{Kind: core.Wolse, DealDate: d})
		}
		view := Build(records, nil, Query{})
		for i, item := range view.Trade.Items {
			if item.DealDate != want[i] {
				t.Fatalf("trade order for %v: got %s at %d", p, item.DealDate, i)
			}
		}
		for i, item := range view.Rent.Items {
			if item.DealDate != want[i] {
				t.Fatalf("rent order for %v: got %s at %d", p, item.DealDate, i)
			}
		}
	}
}

func TestFilterByName(t *testing.T) {
	records := []core.TransactionRecord{
		{AptName: "래미안 블레스티지"},
		{AptName: " 개포자이 "},
		{AptName: "디에이치아너힐즈"},
	}
	cases := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"  ", 3},
		{"래미안", 1},
		{"래미안아파트", 1},
		{"자이아파트 ", 1},
		{"아파트", 3},
		{"힐스테이트", 0},
		{norm.NFD.String("개포자이"), 1},
	}
	for _, tc := range cases {
		if got := len(FilterByName(records, tc.query)); got != tc.want {
			t.Errorf("FilterByName(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}

func TestRepresentativeFields(t *testing.T) {
	records := []core.TransactionRecord{
		{Kind: core.Trade, AptName: "개포자이", Dong: "개포동", BuildYear: "2019", DealDate: "2025-01-01"},
		{Kind: core.Trade, AptName: "래미안", Dong: "역삼동", BuildYear: "2016", DealDate: "2025-02-01"},
	}

	v := Build(records, nil, Query{AptName: " 자이 ", Dong: "역삼동"})
	if v.AptName != "자이" || v.Dong != "개포동" || v.BuildYear != "2019" {
		t.Fatalf("filtered representative = %+v", v)
	}

	v = Build(records, nil, Query{Dong: "역삼동"})
	if v.AptName != "래미안" || v.BuildYear != "2016" {
		t.Fatalf("newest record should represent the view: %+v", v)
	}

	v = Build(records, nil, Query{AptName: "없는단지", Dong: "삼성동", RegionCode: "1168010100"})
	if v.AptName != "없는단지" || v.Dong != "삼성동" || v.BuildYear != "" || v.RegionCode != "1168010100" {
		t.Fatalf("no-match defaults = %+v", v)
	}
}

func TestViewJSONShape(t *testing.T) {
	v := Build([]core.TransactionRecord{trade("202503", "2025-03-01", nil)}, []string{"202503"}, Query{RegionCode: "11680"})
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"lawdCd":"11680"`, `"avgAmount":null`, `"monthlySummary"`, `"items":[]`, `"dealingGbn"`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("missing %s in %s", key, b)
		}
	}
	if strings.Contains(string(b), "incompleteBuckets") {
		t.Errorf("incompleteBuckets should be omitted when empty")
	}
}
