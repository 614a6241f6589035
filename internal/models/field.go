package models

// FieldType is the closed set of field kinds the extraction engine
// understands. Anything the backend reports that does not map onto one of
// these becomes FieldOther and is ignored by the normalizer.
type FieldType int

const (
	FieldOther FieldType = iota
	FieldInvoiceNumber
	FieldInvoiceDate
	FieldTotal
	FieldTerms
	FieldVendor
	FieldCurrency
	FieldQuantity
	FieldUnitPrice
	FieldAmount
	FieldDescription
)

var fieldTypeNames = map[FieldType]string{
	FieldOther:         "other",
	FieldInvoiceNumber: "invoice_number",
	FieldInvoiceDate:   "invoice_date",
	FieldTotal:         "total",
	FieldTerms:         "terms",
	FieldVendor:        "vendor",
	FieldCurrency:      "currency",
	FieldQuantity:      "quantity",
	FieldUnitPrice:     "unit_price",
	FieldAmount:        "amount",
	FieldDescription:   "description",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "other"
}

// MarshalText makes FieldType render as its name in JSON artifacts,
// including when used as a map key.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// HeaderFieldTypes are the types that live in a document header, in the
// order they appear in reports.
var HeaderFieldTypes = []FieldType{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldTotal,
	FieldTerms,
	FieldVendor,
	FieldCurrency,
}

// LineItemFieldTypes are the cell types a line-item row may carry.
var LineItemFieldTypes = []FieldType{
	FieldDescription,
	FieldQuantity,
	FieldUnitPrice,
	FieldAmount,
}

// RawField is a single typed value as the OCR backend supplied it, with a
// confidence score on the 0-100 scale. It is created once during extraction
// and never mutated afterwards; normalization only ever writes into derived
// structures.
type RawField struct {
	Type            FieldType `json:"type"`
	Label           string    `json:"label,omitempty"`
	Value           string    `json:"value"`
	NormalizedValue string    `json:"normalizedValue,omitempty"`
	Confidence      float64   `json:"confidence"`
	Page            int       `json:"page"`
}
