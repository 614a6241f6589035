package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Flag marks how a normalized line-item value came to be.
type Flag uint8

const (
	// FlagSwapped: the unit-price/amount assignment was exchanged because
	// the quantity-aware residual showed the backend mislabeled the columns.
	FlagSwapped Flag = 1 << iota
	// FlagComputed: the value was derived from the other two cells, never
	// read off the document.
	FlagComputed
	// FlagDroppedNoise: a cell was nulled because it echoed a summary value
	// (typically the invoice total leaking into every row).
	FlagDroppedNoise
	// FlagLowConfidence: disambiguation residuals tied within noise and the
	// assignment was decided by soft heuristics only.
	FlagLowConfidence
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagSwapped, "swapped"},
	{FlagComputed, "computed"},
	{FlagDroppedNoise, "droppedNoise"},
	{FlagLowConfidence, "lowConfidence"},
}

// Has reports whether all bits of f are set.
func (s Flag) Has(f Flag) bool { return s&f == f }

// Names returns the set as a stable string slice for JSON output.
func (s Flag) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if s.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

func (s Flag) String() string { return strings.Join(s.Names(), "|") }

// NormalizedLineItem is a disambiguated line item. Nil decimals mean the
// backend supplied nothing usable for that cell.
type NormalizedLineItem struct {
	Description string
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
	Amount      *decimal.Decimal
	Flags       Flag
}

// MergedInvoice is the result of merging all pages sharing an invoice
// number: the best header field per type across the group plus the
// concatenated line items, ordered by page then row. Unlike the per-page
// documents it may be rebuilt during the pipeline (fallback fill,
// sanitization).
type MergedInvoice struct {
	Header      map[FieldType]RawField
	LineItems   []NormalizedLineItem
	SourcePages []int
}

// HeaderValue returns the merged header value for t and whether it exists.
func (m MergedInvoice) HeaderValue(t FieldType) (string, bool) {
	f, ok := m.Header[t]
	return f.Value, ok
}

// NormalizedInvoice is the output contract of the engine. Null fields are
// explicit (pointer fields without omitempty) so callers can distinguish
// "extraction absent" from "not applicable".
type NormalizedInvoice struct {
	InvoiceNumber *string              `json:"invoice_number"`
	InvoiceDate   *string              `json:"invoice_date"`
	Total         *string              `json:"total"`
	Terms         *string              `json:"terms"`
	Currency      *string              `json:"currency"`
	LineItems     []NormalizedItemJSON `json:"line_items"`
	Warnings      []Warning            `json:"warnings,omitempty"`
}

// NormalizedItemJSON is the serialized shape of one normalized line item.
type NormalizedItemJSON struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
	Flags       []string `json:"flags,omitempty"`
}
