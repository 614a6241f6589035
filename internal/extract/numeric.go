package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	reWhitespace   = regexp.MustCompile(`\s+`)
	reMoneyNoise   = regexp.MustCompile(`[^0-9.,\-]`)
	reCurrencyCode = regexp.MustCompile(`(?i)\b(usd|eur|gbp|cad|aud|inr|jpy|chf|mxn|dop)\b`)
	reAlnum        = regexp.MustCompile(`[^a-z0-9]`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// ParseMoney parses a money-ish cell value into a decimal, tolerating
// currency symbols, thousands separators and accounting-style parentheses
// for negatives. The second return is false when the text holds no usable
// number; callers treat such cells as absent, never as an error.
func ParseMoney(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	cleaned := reMoneyNoise.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSuffix(cleaned, "-")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if neg && d.IsPositive() {
		d = d.Neg()
	}
	return d, true
}

// ParseQuantity parses a quantity cell. Quantities share the tolerant
// numeric cleaning of ParseMoney ("2 pcs", "4.0 hrs").
func ParseQuantity(s string) (decimal.Decimal, bool) {
	return ParseMoney(s)
}

// IsCurrencyLike reports whether the text reads as a money value: it
// carries a currency symbol or code and still parses as a number. Used to
// reject leaked amounts posing as invoice numbers.
func IsCurrencyLike(s string) bool {
	if DetectCurrencyCode(s) == "" {
		return false
	}
	_, ok := ParseMoney(s)
	return ok
}

// DetectCurrencyCode returns the ISO 4217 code hinted at by a currency
// symbol or embedded code in the text, or "" when there is none.
func DetectCurrencyCode(s string) string {
	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.symbol) {
			return cs.code
		}
	}
	if m := reCurrencyCode.FindString(s); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

// DecimalPlaces counts the digits after the last decimal point in the
// text, a soft hint that a value is a cent-precise amount.
func DecimalPlaces(s string) int {
	i := strings.LastIndex(s, ".")
	if i < 0 {
		return 0
	}
	n := 0
	for _, r := range s[i+1:] {
		if r < '0' || r > '9' {
			break
		}
		n++
	}
	return n
}

// NormalizeInvoiceKey reduces an invoice number to its grouping key:
// lower-cased with all punctuation and whitespace removed, so "INV-100",
// "inv 100" and "INV#100" group together.
func NormalizeInvoiceKey(s string) string {
	return reAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// NormalizeDate parses the common date spellings OCR returns and renders
// them as an ISO 8601 date. Ambiguous slash dates are resolved by order:
// "MDY" (default) or "DMY".
func NormalizeDate(s string, order string) (string, bool) {
	s = CleanText(s)
	if s == "" {
		return "", false
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		"02-Jan-2006",
		"2006-01-02T15:04:05Z07:00",
	}
	if order == "DMY" {
		layouts = append(layouts, "02/01/2006", "02-01-2006", "2/1/2006", "02/01/06")
	} else {
		layouts = append(layouts, "01/02/2006", "01-02-2006", "1/2/2006", "01/02/06")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
