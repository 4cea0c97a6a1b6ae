package domain

import "strings"

// NormalizeProductKey is the canonical stock-ledger key for a product name:
// trimmed, internal whitespace collapsed to single spaces, lowercased.
// "Urea  45kg " and "urea 45kg" address the same ledger row.
func NormalizeProductKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NormalizeMobile strips everything but digits.
func NormalizeMobile(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
