package extract

import (
	"github.com/shopspring/decimal"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

// AssemblePage turns one page of raw backend output into an immutable
// ExpenseDocument plus the normalized line items derived from it by column
// disambiguation. Pure per-page transformation with no cross-page
// dependency, so callers may run it in parallel across pages.
func AssemblePage(page models.PageExtraction) models.AssembledPage {
	doc := models.ExpenseDocument{
		PageIndex: page.PageIndex,
		Header:    ExtractHeader(page.Summary, page.PageIndex),
		LineItems: ExtractLineItems(page.Tables, page.PageIndex),
	}

	var totalHint *decimal.Decimal
	if total, ok := doc.Header[models.FieldTotal]; ok {
		if d, ok := ParseMoney(total.Value); ok {
			totalHint = &d
		}
	}

	assembled := models.AssembledPage{Doc: doc}
	soleRow := len(doc.LineItems) == 1
	for _, row := range doc.LineItems {
		item, warnings := Disambiguate(row, totalHint, soleRow)
		assembled.Items = append(assembled.Items, item)
		assembled.Warnings = append(assembled.Warnings, warnings...)
	}
	return assembled
}

// Usable reports whether the page yielded anything at all: a header field
// or a line item. Pages where the backend returned nothing usable count
// toward the engine's NoExtractableData check.
func Usable(p models.AssembledPage) bool {
	return len(p.Doc.Header) > 0 || len(p.Doc.LineItems) > 0
}
