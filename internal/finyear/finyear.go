// Package finyear resolves Indian financial-year labels and the audit
// workbook paths that are partitioned by them. The financial year runs
// April through March: a date in March 2025 belongs to "2024-2025", a
// date in April 2025 to "2025-2026".
package finyear

import (
	"fmt"
	"path/filepath"
	"time"
)

// StartYear returns the calendar year in which the financial year
// containing t begins.
func StartYear(t time.Time) int {
	if t.Month() >= time.April {
		return t.Year()
	}
	return t.Year() - 1
}

// Label returns the "{start}-{start+1}" financial-year label for t.
func Label(t time.Time) string {
	start := StartYear(t)
	return fmt.Sprintf("%d-%d", start, start+1)
}

// PreviousLabel returns the label of the financial year immediately
// before the one containing t.
func PreviousLabel(t time.Time) string {
	start := StartYear(t) - 1
	return fmt.Sprintf("%d-%d", start, start+1)
}

// OpeningDate returns April 1st of the financial year containing t,
// which is the date stamped on carried-forward opening stock rows.
func OpeningDate(t time.Time) time.Time {
	return time.Date(StartYear(t), time.April, 1, 0, 0, 0, 0, t.Location())
}

// PurchasePath returns the purchase audit workbook for the financial
// year containing t, e.g. dir/Purchase_2025-2026.xlsx.
func PurchasePath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("Purchase_%s.xlsx", Label(t)))
}

// PurchasePathForLabel is PurchasePath for an already-computed label.
func PurchasePathForLabel(dir, label string) string {
	return filepath.Join(dir, fmt.Sprintf("Purchase_%s.xlsx", label))
}

// SalesFYPath returns the financial-year sales workbook,
// e.g. dir/Sales_FY_2025-2026.xlsx.
func SalesFYPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("Sales_FY_%s.xlsx", Label(t)))
}

// SalesMonthPath returns the calendar-month sales workbook,
// e.g. dir/Sales_2025-07.xlsx.
func SalesMonthPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("Sales_%s.xlsx", t.Format("2006-01")))
}
