package finyear

import (
	"path/filepath"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func TestLabelAprilBoundary(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{date(2025, time.March, 31), "2024-2025"},
		{date(2025, time.April, 1), "2025-2026"},
		{date(2025, time.December, 15), "2025-2026"},
		{date(2026, time.January, 2), "2025-2026"},
	}
	for _, c := range cases {
		if got := Label(c.in); got != c.want {
			t.Fatalf("Label(%s) = %q, want %q", c.in.Format("2006-01-02"), got, c.want)
		}
	}
}

func TestPreviousLabel(t *testing.T) {
	if got := PreviousLabel(date(2025, time.April, 1)); got != "2024-2025" {
		t.Fatalf("PreviousLabel = %q, want 2024-2025", got)
	}
	if got := PreviousLabel(date(2025, time.February, 1)); got != "2023-2024" {
		t.Fatalf("PreviousLabel = %q, want 2023-2024", got)
	}
}

func TestOpeningDate(t *testing.T) {
	got := OpeningDate(date(2026, time.January, 15))
	want := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("OpeningDate = %s, want %s", got, want)
	}
}

func TestPaths(t *testing.T) {
	d := date(2025, time.July, 9)
	if got := PurchasePath("data", d); got != filepath.Join("data", "Purchase_2025-2026.xlsx") {
		t.Fatalf("PurchasePath = %q", got)
	}
	if got := SalesFYPath("data", d); got != filepath.Join("data", "Sales_FY_2025-2026.xlsx") {
		t.Fatalf("SalesFYPath = %q", got)
	}
	if got := SalesMonthPath("data", d); got != filepath.Join("data", "Sales_2025-07.xlsx") {
		t.Fatalf("SalesMonthPath = %q", got)
	}
}
