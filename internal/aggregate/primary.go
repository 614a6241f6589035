package aggregate

import (
	"fmt"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

// SelectPrimary picks the single canonical invoice when grouping produced
// more than one candidate (distinct invoice numbers, or pages that could
// not be merged at all). Candidates are scored by mean confidence across
// their populated header fields; more complete documents win ties, then
// the lowest source page. Discarded groups are returned alongside a
// warning, not dropped silently.
func SelectPrimary(invoices []models.MergedInvoice) (models.MergedInvoice, []models.MergedInvoice, []models.Warning) {
	best := 0
	for i := 1; i < len(invoices); i++ {
		if betterCandidate(invoices[i], invoices[best]) {
			best = i
		}
	}

	var discarded []models.MergedInvoice
	var warnings []models.Warning
	if len(invoices) > 1 {
		var names []string
		for i, inv := range invoices {
			if i == best {
				continue
			}
			discarded = append(discarded, inv)
			names = append(names, candidateName(inv))
		}
		warnings = append(warnings, models.Warning{
			Code:    models.WarnMergeConflict,
			Message: fmt.Sprintf("%d invoice candidates found, kept %s, discarded %v", len(invoices), candidateName(invoices[best]), names),
		})
	}
	return invoices[best], discarded, warnings
}

func betterCandidate(a, b models.MergedInvoice) bool {
	scoreA, countA := headerScore(a)
	scoreB, countB := headerScore(b)
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if countA != countB {
		return countA > countB
	}
	return firstPage(a) < firstPage(b)
}

// headerScore returns the mean confidence across populated header fields
// and how many fields are populated.
func headerScore(inv models.MergedInvoice) (float64, int) {
	var sum float64
	count := 0
	for _, kind := range models.HeaderFieldTypes {
		if field, ok := inv.Header[kind]; ok {
			sum += field.Confidence
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}

func firstPage(inv models.MergedInvoice) int {
	if len(inv.SourcePages) == 0 {
		return 0
	}
	return inv.SourcePages[0]
}

func candidateName(inv models.MergedInvoice) string {
	if number, ok := inv.HeaderValue(models.FieldInvoiceNumber); ok {
		return fmt.Sprintf("%q", number)
	}
	return fmt.Sprintf("unnumbered document (page %d)", firstPage(inv))
}
