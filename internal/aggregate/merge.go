package aggregate

import (
	"fmt"
	"sort"

	"github.com/expenselens/invoice-extract-service/internal/extract"
	"github.com/expenselens/invoice-extract-service/internal/models"
)

// Merge groups assembled pages by normalized invoice number and combines
// each group into one MergedInvoice. Pages without an invoice number
// cannot be merged and form singleton groups. The result is independent of
// input ordering: pages are sorted by page index before grouping, headers
// keep the highest-confidence field per type (ties go to the lowest page),
// and line items concatenate in page order then row order.
func Merge(pages []models.AssembledPage) []models.MergedInvoice {
	sorted := make([]models.AssembledPage, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Doc.PageIndex < sorted[j].Doc.PageIndex
	})

	groups := make(map[string][]models.AssembledPage)
	var order []string
	for _, page := range sorted {
		key := groupKey(page)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], page)
	}

	merged := make([]models.MergedInvoice, 0, len(order))
	for _, key := range order {
		merged = append(merged, mergeGroup(groups[key]))
	}
	return merged
}

func groupKey(page models.AssembledPage) string {
	if number, ok := page.Doc.HeaderValue(models.FieldInvoiceNumber); ok {
		if key := extract.NormalizeInvoiceKey(number); key != "" {
			return key
		}
	}
	// No invoice number: a singleton group of its own.
	return fmt.Sprintf("\x00page-%d", page.Doc.PageIndex)
}

func mergeGroup(pages []models.AssembledPage) models.MergedInvoice {
	inv := models.MergedInvoice{
		Header: make(map[models.FieldType]models.RawField),
	}
	for _, kind := range models.HeaderFieldTypes {
		for _, page := range pages {
			field, ok := page.Doc.Header[kind]
			if !ok {
				continue
			}
			best, have := inv.Header[kind]
			// Higher confidence wins; first-seen (lowest page) wins ties
			// because pages arrive in ascending page order.
			if !have || field.Confidence > best.Confidence {
				inv.Header[kind] = field
			}
		}
	}
	for _, page := range pages {
		inv.LineItems = append(inv.LineItems, page.Items...)
		inv.SourcePages = append(inv.SourcePages, page.Doc.PageIndex)
	}
	return inv
}
