package extract

import (
	"regexp"
	"strings"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

// backendTypes maps the backend's own field type texts onto the closed
// FieldType set. Type wins over label whenever both are present.
var backendTypes = map[string]models.FieldType{
	"INVOICE_RECEIPT_ID":    models.FieldInvoiceNumber,
	"INVOICE_NUMBER":        models.FieldInvoiceNumber,
	"INVOICE_RECEIPT_DATE":  models.FieldInvoiceDate,
	"INVOICE_DATE":          models.FieldInvoiceDate,
	"DUE_DATE":              models.FieldOther,
	"TOTAL":                 models.FieldTotal,
	"GRAND_TOTAL":           models.FieldTotal,
	"AMOUNT_DUE":            models.FieldTotal,
	"PAYMENT_TERMS":         models.FieldTerms,
	"TERMS":                 models.FieldTerms,
	"VENDOR_NAME":           models.FieldVendor,
	"SUPPLIER_NAME":         models.FieldVendor,
	"CURRENCY":              models.FieldCurrency,
	"QUANTITY":              models.FieldQuantity,
	"QTY":                   models.FieldQuantity,
	"HOURS":                 models.FieldQuantity,
	"HOUR":                  models.FieldQuantity,
	"UNITS":                 models.FieldQuantity,
	"UNIT_PRICE":            models.FieldUnitPrice,
	"PRICE":                 models.FieldUnitPrice,
	"RATE":                  models.FieldUnitPrice,
	"AMOUNT":                models.FieldAmount,
	"LINE_TOTAL":            models.FieldAmount,
	"LINE_AMOUNT":           models.FieldAmount,
	"NET_AMOUNT":            models.FieldAmount,
	"AMOUNT_AFTER_DISCOUNT": models.FieldAmount,
	"ITEM":                  models.FieldDescription,
	"DESCRIPTION":           models.FieldDescription,
	"PRODUCT_CODE":          models.FieldDescription,
	"SERVICE":               models.FieldDescription,
}

// labelSynonym pairs a label pattern with the field type it implies. The
// slice order is the match priority; the first hit wins. This table is the
// extension point for vendor-specific label vocabularies.
type labelSynonym struct {
	re   *regexp.Regexp
	kind models.FieldType
}

var headerSynonyms = []labelSynonym{
	{regexp.MustCompile(`(?i)\b(invoice|inv)\s*(no\.?|number|#)`), models.FieldInvoiceNumber},
	{regexp.MustCompile(`(?i)\binvoice\s*date\b`), models.FieldInvoiceDate},
	{regexp.MustCompile(`(?i)\bpayment\s*(terms|due)\b`), models.FieldTerms},
	{regexp.MustCompile(`(?i)\bterms\b`), models.FieldTerms},
	{regexp.MustCompile(`(?i)\b(grand\s+)?total\b`), models.FieldTotal},
	{regexp.MustCompile(`(?i)\btotal\s+amount\b`), models.FieldTotal},
	{regexp.MustCompile(`(?i)\bamount\s+due\b`), models.FieldTotal},
	{regexp.MustCompile(`(?i)\b(vendor|supplier|sold\s+by|from)\b`), models.FieldVendor},
	{regexp.MustCompile(`(?i)\bcurrency\b`), models.FieldCurrency},
}

var lineSynonyms = []labelSynonym{
	{regexp.MustCompile(`(?i)\b(description|item|service)\b`), models.FieldDescription},
	{regexp.MustCompile(`(?i)\b(hours?|qty|quantity|units?|pcs?)\b`), models.FieldQuantity},
	{regexp.MustCompile(`(?i)\b(rate|unit\s*price|price)\b`), models.FieldUnitPrice},
	{regexp.MustCompile(`(?i)\b(amount|line\s*amount|line\s*total|total)\b`), models.FieldAmount},
}

func resolveType(backendType, label string, synonyms []labelSynonym) models.FieldType {
	if t, ok := backendTypes[strings.ToUpper(strings.TrimSpace(backendType))]; ok && t != models.FieldOther {
		return t
	}
	label = CleanText(label)
	if label == "" {
		return models.FieldOther
	}
	for _, syn := range synonyms {
		if syn.re.MatchString(label) {
			return syn.kind
		}
	}
	return models.FieldOther
}

// ResolveHeaderType classifies a summary field, backend type first, then
// fuzzy label match against the header synonym table.
func ResolveHeaderType(backendType, label string) models.FieldType {
	return resolveType(backendType, label, headerSynonyms)
}

// ResolveLineType classifies a line-item cell the same way, against the
// line synonym table.
func ResolveLineType(backendType, label string) models.FieldType {
	return resolveType(backendType, label, lineSynonyms)
}

// ResolveFallbackKey classifies a generic key-value key from the secondary
// extraction pass, reusing the header synonym table. Keys carry no backend
// type.
func ResolveFallbackKey(key string) models.FieldType {
	return resolveType("", key, headerSynonyms)
}

// ExtractHeader turns one page's summary fields into the header mapping,
// keeping the highest-confidence field per type when duplicates occur.
// Pure function of its input.
func ExtractHeader(fields []models.BackendField, page int) map[models.FieldType]models.RawField {
	header := make(map[models.FieldType]models.RawField)
	for _, f := range fields {
		kind := ResolveHeaderType(f.Type, f.Label)
		if kind == models.FieldOther {
			continue
		}
		value := CleanText(f.Value)
		if value == "" {
			continue
		}
		raw := models.RawField{
			Type:       kind,
			Label:      CleanText(f.Label),
			Value:      value,
			Confidence: f.Confidence,
			Page:       page,
		}
		if existing, ok := header[kind]; !ok || raw.Confidence > existing.Confidence {
			header[kind] = raw
		}
	}
	return header
}
