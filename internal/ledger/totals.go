package ledger

import (
	"fmt"
	"strings"
)

// CategoryTotal is the derived minute/hour total for one category.
type CategoryTotal struct {
	Minutes int     `json:"minutes"`
	Hours   float64 `json:"hours"`
}

// Report aggregates per-category totals plus the grand total. It is a pure
// function of a ledger snapshot and is never persisted.
type Report struct {
	PerCategory map[Category]CategoryTotal
	Grand       CategoryTotal
}

// Totals computes the total minutes and hours represented by one bucket.
func Totals(b Bucket) (minutes int, hours float64) {
	for i := 0; i < NumSlots; i++ {
		minutes += b[i] * MinuteBuckets[i]
	}
	return minutes, float64(minutes) / 60.0
}

// ComputeReport derives the totals report for a ledger snapshot.
func ComputeReport(l Ledger) Report {
	r := Report{PerCategory: make(map[Category]CategoryTotal, len(categories))}
	for _, c := range categories {
		m, h := Totals(l[c])
		r.PerCategory[c] = CategoryTotal{Minutes: m, Hours: h}
		r.Grand.Minutes += m
	}
	r.Grand.Hours = float64(r.Grand.Minutes) / 60.0
	return r
}

// BuildTotalsReport renders the deterministic multi-line totals report:
// header, one line per category in canonical order, blank line, grand total.
func BuildTotalsReport(l Ledger) string {
	r := ComputeReport(l)
	lines := make([]string, 0, len(categories)+3)
	lines = append(lines, "=== 2XP Totals Report ===")
	for _, c := range categories {
		t := r.PerCategory[c]
		lines = append(lines, fmt.Sprintf("%s: %d minutes (%.2f hours)", c.Label(), t.Minutes, t.Hours))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Grand Total: %d minutes (%.2f hours)", r.Grand.Minutes, r.Grand.Hours))
	return strings.Join(lines, "\n")
}
