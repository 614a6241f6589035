package models

// BackendField is one field entry exactly as the backend reported it: a
// type text (may be empty or generic), a detected label, a detected value
// and a confidence on the 0-100 scale.
type BackendField struct {
	Type       string  `json:"type,omitempty"`
	Label      string  `json:"label,omitempty"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Row is one table row of backend fields.
type Row struct {
	Fields []BackendField `json:"fields"`
}

// RowGroup is one table / line-item group on a page.
type RowGroup struct {
	Rows []Row `json:"rows"`
}

// PageExtraction is the wire shape one page of backend output arrives in:
// the summary (header) fields plus the detected line-item tables. This is
// the input contract of the core engine.
type PageExtraction struct {
	PageIndex int            `json:"pageIndex"`
	Summary   []BackendField `json:"summary"`
	Tables    []RowGroup     `json:"tables"`
}

// LineItemRow holds the candidate cells of one extracted line item, keyed
// by the subset of field types a row may carry (description, quantity,
// unit price, amount). Absent cells are nil. A row belongs to exactly one
// page and is immutable once assembled.
type LineItemRow struct {
	Page  int
	Cells map[FieldType]*RawField
}

// Cell returns the raw cell for t, or nil when the backend did not supply
// one.
func (r LineItemRow) Cell(t FieldType) *RawField {
	return r.Cells[t]
}

// ExpenseDocument is the assembled extraction of a single page: a partial
// header mapping plus the ordered line-item rows. Immutable once built.
type ExpenseDocument struct {
	PageIndex int
	Header    map[FieldType]RawField
	LineItems []LineItemRow
}

// HeaderValue returns the header field value for t and whether it exists.
func (d ExpenseDocument) HeaderValue(t FieldType) (string, bool) {
	f, ok := d.Header[t]
	return f.Value, ok
}

// AssembledPage pairs an immutable per-page document with the normalized
// line items derived from it by column disambiguation, plus any warnings
// raised while assembling.
type AssembledPage struct {
	Doc      ExpenseDocument
	Items    []NormalizedLineItem
	Warnings []Warning
}

// KeyValue is one entry of the secondary generic key-value extraction pass
// used for fallback header resolution.
type KeyValue struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}
