package core

import (
	"fmt"
	"time"
)

// WindowSize is the number of calendar months a deal lookup covers.
const WindowSize = 12

const yearMonthLayout = "200601"

// Window returns the rolling lookup window ending at the anchor's month,
// oldest first.
func Window(anchor time.Time) []string {
	return WindowN(anchor, WindowSize)
}

// WindowN returns n consecutive YYYYMM tokens ending at the anchor's month.
func WindowN(anchor time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	// Anchor on the 1st so that month arithmetic never overflows into the next month.
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	months := make([]string, 0, n)
	for offset := n - 1; offset >= 0; offset-- {
		months = append(months, first.AddDate(0, -offset, 0).Format(yearMonthLayout))
	}
	return months
}

// YearMonthOf formats t as a YYYYMM token in t's location.
func YearMonthOf(t time.Time) string {
	return t.Format(yearMonthLayout)
}

// ParseYearMonth validates a YYYYMM token and returns the first day of that month in UTC.
func ParseYearMonth(ym string) (time.Time, error) {
	if !isDigits(ym, 6) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, ym)
	}
	t, err := time.Parse(yearMonthLayout, ym)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, ym)
	}
	return t, nil
}

// NeedsRefresh decides whether a bucket for month ym must be fetched again.
//
// A bucket never fetched is always stale. Closed months are immutable upstream,
// so once logged they stay fresh forever. The current month is refreshed at most
// once per calendar day, compared in now's location.
func NeedsRefresh(ym string, lastFetchedAt time.Time, found bool, now time.Time) bool {
	if !found {
		return true
	}
	if ym != YearMonthOf(now) {
		return false
	}
	return dayOf(lastFetchedAt.In(now.Location())).Before(dayOf(now))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
