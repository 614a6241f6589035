package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/expenselens/invoice-extract-service/internal/extract"
	"github.com/expenselens/invoice-extract-service/internal/models"
)

var (
	// coherenceRel / coherenceAbs bound how far the summed line amounts may
	// drift from the document total before we warn: 2% relative or 0.05
	// absolute, whichever is looser.
	coherenceRel = decimal.NewFromFloat(0.02)
	coherenceAbs = decimal.NewFromFloat(0.05)
)

// coherenceWarnings cross-checks the document total against the sum of the
// sanitized line amounts. A mismatch is advisory only: the extracted values
// are reported as-is, never adjusted to agree.
func coherenceWarnings(inv models.MergedInvoice, items []models.NormalizedLineItem) []models.Warning {
	totalText, ok := inv.HeaderValue(models.FieldTotal)
	if !ok {
		return nil
	}
	total, ok := extract.ParseMoney(totalText)
	if !ok {
		return nil
	}

	sum := decimal.Zero
	counted := 0
	for _, item := range items {
		if item.Amount == nil {
			continue
		}
		sum = sum.Add(*item.Amount)
		counted++
	}
	if counted == 0 {
		return nil
	}

	if closeEnough(sum, total) {
		return nil
	}
	return []models.Warning{{
		Code:    models.WarnTotalMismatch,
		Message: fmt.Sprintf("line items sum to %s but document total is %s", sum.StringFixed(2), total.StringFixed(2)),
	}}
}

func closeEnough(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	if diff.LessThanOrEqual(coherenceAbs) {
		return true
	}
	denom := decimal.Max(a.Abs(), b.Abs())
	if denom.IsZero() {
		return true
	}
	return diff.Div(denom).LessThanOrEqual(coherenceRel)
}
