// Package sanitize is the final cleanup pass over merged line items:
// summary rows out, zero-quantity artifacts repaired, and a single missing
// value computed from the other two when the arithmetic is safe.
package sanitize

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

// summaryRow matches descriptions that are really document summary lines
// (Subtotal, Tax, Total, ...), not purchased items. A keyword at the start
// is not enough on its own: genuine purchases like "Tax consulting" can
// lead with one, so the drop additionally requires the row to be
// summary-shaped (no quantity cell).
var summaryRow = regexp.MustCompile(`(?i)^(sub\s*total|subtotal|total|tax|vat|discount|balance\s+due|amount\s+due)\b`)

var (
	one = decimal.NewFromInt(1)
	// relTolerance is the acceptance band for amount ≈ quantity × unit
	// when backfilling a missing value.
	relTolerance = decimal.NewFromFloat(0.01)
	// integralSnap: computed quantities within this of an integer are
	// rounded to it.
	integralSnap = decimal.NewFromFloat(0.001)
)

// Sanitize produces the final normalized line items. It is a pure,
// idempotent function: sanitize(sanitize(x)) == sanitize(x). Values the
// backend supplied are never replaced, only absent ones are computed.
func Sanitize(items []models.NormalizedLineItem) []models.NormalizedLineItem {
	cleaned := make([]models.NormalizedLineItem, 0, len(items))
	for _, item := range items {
		// Summary lines never carry a quantity; keyword-led rows that do
		// are purchases.
		if item.Quantity == nil && summaryRow.MatchString(item.Description) {
			continue
		}

		// Zero-quantity OCR artifact: a real amount with no distinct unit
		// price means one unit was bought.
		if item.Quantity != nil && item.Quantity.IsZero() &&
			item.Amount != nil && item.Amount.IsPositive() &&
			(item.UnitPrice == nil || item.UnitPrice.Equal(*item.Amount)) {
			q := one
			item.Quantity = &q
			item.Flags |= models.FlagComputed
		}

		item = computeMissing(item)

		if item.Description == "" && item.Quantity == nil && item.UnitPrice == nil && item.Amount == nil {
			continue
		}
		cleaned = append(cleaned, item)
	}
	return cleaned
}

// computeMissing fills in exactly one absent value from the other two. Two
// or more absences mean there is nothing safe to derive, so nothing is
// guessed.
func computeMissing(item models.NormalizedLineItem) models.NormalizedLineItem {
	missing := 0
	for _, v := range []*decimal.Decimal{item.Quantity, item.UnitPrice, item.Amount} {
		if v == nil {
			missing++
		}
	}
	if missing != 1 {
		return item
	}

	switch {
	case item.Amount == nil:
		amount := item.Quantity.Mul(*item.UnitPrice).Round(2)
		item.Amount = &amount
		item.Flags |= models.FlagComputed
	case item.UnitPrice == nil:
		if item.Quantity.IsZero() {
			return item
		}
		unit := item.Amount.DivRound(*item.Quantity, 2)
		if consistent(*item.Quantity, unit, *item.Amount) {
			item.UnitPrice = &unit
			item.Flags |= models.FlagComputed
		}
	case item.Quantity == nil:
		if item.UnitPrice.IsZero() {
			return item
		}
		qty := item.Amount.DivRound(*item.UnitPrice, 3)
		if snapped := qty.Round(0); qty.Sub(snapped).Abs().LessThanOrEqual(integralSnap) {
			qty = snapped
		}
		if consistent(qty, *item.UnitPrice, *item.Amount) {
			item.Quantity = &qty
			item.Flags |= models.FlagComputed
		}
	}
	return item
}

// consistent checks amount ≈ qty × unit within the relative tolerance.
func consistent(qty, unit, amount decimal.Decimal) bool {
	denom := amount.Abs()
	if denom.IsZero() {
		return qty.Mul(unit).IsZero()
	}
	return qty.Mul(unit).Sub(amount).Abs().Div(denom).LessThanOrEqual(relTolerance)
}
