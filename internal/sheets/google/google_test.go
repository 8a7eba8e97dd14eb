package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"apthere/internal/aggregate"
)

func i64(v int64) *int64 { return &v }

func sampleView() aggregate.DealView {
	return aggregate.DealView{
		RegionCode: "1168010100",
		AptName:    "래미안",
		Dong:       "역삼동",
		Trade: aggregate.TradeView{
			TotalCount: 3,
			MonthlySummary: []aggregate.TradeMonthly{
				{YearMonth: "202502", Count: 0},
				{YearMonth: "202503", Count: 3, AvgAmount: i64(120000)},
			},
		},
		Rent: aggregate.RentView{
			JeonseCount: 1,
			WolseCount:  1,
			MonthlySummary: []aggregate.RentMonthly{
				{YearMonth: "202502", JeonseCount: 1, JeonseAvgDeposit: i64(50000)},
				{YearMonth: "202503", WolseCount: 1, WolseAvgDeposit: i64(1000), WolseAvgMonthly: i64(120)},
			},
		},
	}
}

func TestSummaryRows(t *testing.T) {
	at := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	rows := SummaryRows(sampleView(), at)

	if got := rows[0][1]; got != "1168010100" {
		t.Fatalf("region cell = %v", got)
	}
	if got := rows[1][1]; got != "2025-03-15T09:00:00Z" {
		t.Fatalf("generated cell = %v", got)
	}
	if len(rows[2]) != 0 || rows[3][0] != "Month" {
		t.Fatalf("expected blank row then header, got %v / %v", rows[2], rows[3])
	}

	feb, mar := rows[4], rows[5]
	if feb[0] != "2025-02" || feb[1] != 0 || feb[2] != "" || feb[3] != 1 || feb[4] != int64(50000) {
		t.Fatalf("february row = %v", feb)
	}
	if mar[0] != "2025-03" || mar[2] != int64(120000) || mar[5] != 1 || mar[7] != int64(120) {
		t.Fatalf("march row = %v", mar)
	}

	total := rows[len(rows)-1]
	if total[0] != "Total" || total[1] != 3 || total[3] != 1 || total[5] != 1 {
		t.Fatalf("total row = %v", total)
	}
}

func TestSummaryRowsIncomplete(t *testing.T) {
	view := sampleView()
	view.Incomplete = []string{"11680/202503/TRADE"}
	rows := SummaryRows(view, time.Now())
	if rows[2][0] != "Incomplete buckets" || rows[2][1] != "11680/202503/TRADE" {
		t.Fatalf("incomplete row = %v", rows[2])
	}
}

func TestQuoteSheetName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Summary", "Summary"},
		{"Deal Summary", "'Deal Summary'"},
		{"Kim's", "'Kim''s'"},
	}
	for _, tt := range tests {
		if got := quoteSheetName(tt.in); got != tt.want {
			t.Errorf("quoteSheetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportSummary(t *testing.T) {
	var (
		mu      sync.Mutex
		cleared bool
		written gsheet.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":clear"):
			cleared = true
			w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
		case r.Method == http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&written); err != nil {
				t.Errorf("decode body: %v", err)
			}
			w.Write([]byte(`{"spreadsheetId":"sheet-1","updatedRange":"Summary!A1:H8","updatedRows":8}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewWithService(svc, "sheet-1", "")
	if err != nil {
		t.Fatal(err)
	}

	rng, err := c.ExportSummary(context.Background(), sampleView())
	if err != nil {
		t.Fatalf("ExportSummary: %v", err)
	}
	if rng != "Summary!A1:H8" {
		t.Fatalf("range = %q", rng)
	}

	mu.Lock()
	defer mu.Unlock()
	if !cleared {
		t.Fatal("sheet was not cleared before writing")
	}
	if len(written.Values) != 7 {
		t.Fatalf("wrote %d rows, want 7", len(written.Values))
	}
}

func TestNewWithServiceRequiresSpreadsheet(t *testing.T) {
	if _, err := NewWithService(nil, " ", "Summary"); err == nil {
		t.Fatal("expected error")
	}
}
