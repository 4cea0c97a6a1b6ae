package audit

import (
	"fmt"
	"strconv"
	"strings"

	"kisanpos/backend/internal/domain"
)

// EncodeProductDetails renders bill items in the flat spreadsheet form
// "name|qty|price; name|qty|price". The separators are reserved: item
// fields must not contain '|' or ';'.
func EncodeProductDetails(items []domain.BillItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s|%s|%s",
			item.Product, formatQty(item.Qty), formatMoney(item.Price)))
	}
	return strings.Join(parts, "; ")
}

// DecodeProductDetails parses the flat form back into items. Malformed
// segments are skipped rather than failing the whole row; old workbooks
// contain hand-edited cells.
func DecodeProductDetails(encoded string) []domain.BillItem {
	segments := strings.Split(encoded, ";")
	items := make([]domain.BillItem, 0, len(segments))
	for _, seg := range segments {
		fields := strings.Split(strings.TrimSpace(seg), "|")
		if len(fields) != 3 {
			continue
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			continue
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		items = append(items, domain.BillItem{Product: name, Qty: qty, Price: price})
	}
	return items
}

// formatQty trims trailing zeros so whole quantities render as "3", not "3.000000".
func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
