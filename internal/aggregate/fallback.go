package aggregate

import (
	"github.com/expenselens/invoice-extract-service/internal/extract"
	"github.com/expenselens/invoice-extract-service/internal/models"
)

// fallbackTypes are the header fields the secondary key-value pass may
// fill. Totals and currency never come from the generic pass; they are too
// easy to confuse with line-level amounts.
var fallbackTypes = []models.FieldType{
	models.FieldInvoiceNumber,
	models.FieldInvoiceDate,
	models.FieldTerms,
}

// FillMissingHeader fills still-absent header fields from a generic
// key-value extraction, mapping keys through the same synonym table as the
// primary pass. A field the backend already supplied is never touched;
// fallback fills, it does not compete on confidence. Returns an updated
// copy; the input is not mutated.
func FillMissingHeader(inv models.MergedInvoice, kvs []models.KeyValue) models.MergedInvoice {
	header := make(map[models.FieldType]models.RawField, len(inv.Header))
	for kind, field := range inv.Header {
		header[kind] = field
	}

	for _, kv := range kvs {
		kind := extract.ResolveFallbackKey(kv.Key)
		if !fallbackType(kind) {
			continue
		}
		if _, present := header[kind]; present {
			continue
		}
		value := extract.CleanText(kv.Value)
		if value == "" {
			continue
		}
		// A money value posing as an invoice number is a leaked amount.
		if kind == models.FieldInvoiceNumber && extract.IsCurrencyLike(value) {
			continue
		}
		header[kind] = models.RawField{
			Type:       kind,
			Label:      extract.CleanText(kv.Key),
			Value:      value,
			Confidence: kv.Confidence,
			Page:       firstPage(inv),
		}
	}

	inv.Header = header
	return inv
}

func fallbackType(kind models.FieldType) bool {
	for _, t := range fallbackTypes {
		if kind == t {
			return true
		}
	}
	return false
}
