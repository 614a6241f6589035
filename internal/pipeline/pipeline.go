// Package pipeline orchestrates the extraction-normalization engine:
// per-page assembly (parallel), merge by invoice number, primary
// selection, fallback header resolution and sanitization, producing the
// normalized invoice contract.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/expenselens/invoice-extract-service/internal/aggregate"
	"github.com/expenselens/invoice-extract-service/internal/extract"
	"github.com/expenselens/invoice-extract-service/internal/models"
	"github.com/expenselens/invoice-extract-service/internal/sanitize"
)

// Engine runs the normalization pipeline. All of its work is pure and
// synchronous; it never performs I/O, never retries and never blocks on
// the backend. Waiting, polling and retry policy belong to the
// collaborator that feeds it pages.
type Engine struct {
	cfg models.ExtractionConfig
	log *slog.Logger
}

// New creates an Engine with the given extraction configuration.
func New(cfg models.ExtractionConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	// Unset fields default individually; a caller-supplied value is never
	// discarded because an unrelated field was left empty.
	def := models.DefaultExtractionConfig()
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = def.DefaultCurrency
	}
	if cfg.DateOrder == "" {
		cfg.DateOrder = def.DateOrder
	}
	return &Engine{cfg: cfg, log: logger}
}

// Result is the full outcome of one submission: the output contract plus
// the intermediate artifacts callers persist (per-page documents, the
// primary merged invoice, discarded candidate groups).
type Result struct {
	Invoice   models.NormalizedInvoice
	Primary   models.MergedInvoice
	Pages     []models.AssembledPage
	Discarded []models.MergedInvoice

	// pipeline-stage warnings kept apart so finalize can rebuild the
	// output warnings after a fallback pass
	stageWarnings []models.Warning
}

// Process runs the pipeline over one submission's pages. Per-page assembly
// runs in parallel (pages are independent); the merge join waits for every
// page and combines them in ascending page order, so the result is
// deterministic. Returns ErrNoExtractableData when there are no pages or
// no page yielded a single usable field.
func (e *Engine) Process(pages []models.PageExtraction) (*Result, error) {
	if len(pages) == 0 {
		return nil, models.ErrNoExtractableData
	}

	assembled := make([]models.AssembledPage, len(pages))
	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(i int, page models.PageExtraction) {
			defer wg.Done()
			assembled[i] = extract.AssemblePage(page)
		}(i, page)
	}
	wg.Wait()

	usable := false
	for _, page := range assembled {
		if extract.Usable(page) {
			usable = true
			break
		}
	}
	if !usable {
		return nil, models.ErrNoExtractableData
	}

	merged := aggregate.Merge(assembled)
	primary, discarded, selectWarnings := aggregate.SelectPrimary(merged)

	e.log.Debug("assembled submission",
		"pages", len(pages),
		"groups", len(merged),
		"line_items", len(primary.LineItems))

	r := &Result{
		Primary:   primary,
		Pages:     assembled,
		Discarded: discarded,
	}
	for _, page := range assembled {
		r.stageWarnings = append(r.stageWarnings, page.Warnings...)
	}
	r.stageWarnings = append(r.stageWarnings, selectWarnings...)

	e.finalize(r)
	return r, nil
}

// MissingHeaderFields lists the fallback-eligible header fields still
// absent from the primary invoice. A non-empty result tells the caller a
// secondary key-value pass is worth fetching.
func (r *Result) MissingHeaderFields() []models.FieldType {
	var missing []models.FieldType
	for _, kind := range []models.FieldType{models.FieldInvoiceNumber, models.FieldInvoiceDate, models.FieldTerms} {
		if _, ok := r.Primary.Header[kind]; !ok {
			missing = append(missing, kind)
		}
	}
	return missing
}

// ApplyFallback fills still-missing header fields from a secondary generic
// key-value extraction and rebuilds the output. Existing values are never
// overwritten; sanitization is idempotent, so re-finalizing is safe.
func (e *Engine) ApplyFallback(r *Result, kvs []models.KeyValue) {
	r.Primary = aggregate.FillMissingHeader(r.Primary, kvs)
	e.finalize(r)
}

// finalize derives the output contract from the primary merged invoice.
// Rebuildable: called once by Process and again after a fallback pass.
func (e *Engine) finalize(r *Result) {
	items := sanitize.Sanitize(r.Primary.LineItems)

	out := models.NormalizedInvoice{
		LineItems: make([]models.NormalizedItemJSON, 0, len(items)),
	}
	warnings := append([]models.Warning(nil), r.stageWarnings...)

	if number, ok := r.Primary.HeaderValue(models.FieldInvoiceNumber); ok {
		v := extract.CleanText(number)
		out.InvoiceNumber = &v
	}
	if date, ok := r.Primary.HeaderValue(models.FieldInvoiceDate); ok {
		if iso, ok := extract.NormalizeDate(date, e.cfg.DateOrder); ok {
			out.InvoiceDate = &iso
		} else {
			// Unrecognized spelling: pass the backend's value through
			// rather than discard it.
			v := extract.CleanText(date)
			out.InvoiceDate = &v
		}
	}
	if total, ok := r.Primary.HeaderValue(models.FieldTotal); ok {
		if d, ok := extract.ParseMoney(total); ok {
			v := d.StringFixed(2)
			out.Total = &v
		} else {
			warnings = append(warnings, models.Warning{
				Code:    models.WarnMalformedNumeric,
				Message: fmt.Sprintf("total %q is not numeric", total),
			})
		}
	}
	if terms, ok := r.Primary.HeaderValue(models.FieldTerms); ok {
		v := extract.CleanText(terms)
		out.Terms = &v
	}
	if currency := e.currencyHint(r.Primary); currency != "" {
		out.Currency = &currency
	}

	for _, item := range items {
		out.LineItems = append(out.LineItems, models.NormalizedItemJSON{
			Description: item.Description,
			Quantity:    decimalPtrToFloat(item.Quantity),
			UnitPrice:   decimalPtrToFloat(item.UnitPrice),
			Amount:      decimalPtrToFloat(item.Amount),
			Flags:       item.Flags.Names(),
		})
	}

	warnings = append(warnings, missingFieldWarnings(out)...)
	warnings = append(warnings, coherenceWarnings(r.Primary, items)...)
	out.Warnings = warnings

	r.Invoice = out
}

// currencyHint resolves the output currency: an explicit CURRENCY field
// wins, then a symbol or code on the total, then the configured default.
func (e *Engine) currencyHint(inv models.MergedInvoice) string {
	if field, ok := inv.HeaderValue(models.FieldCurrency); ok {
		if code := extract.DetectCurrencyCode(field); code != "" {
			return code
		}
	}
	if total, ok := inv.HeaderValue(models.FieldTotal); ok {
		if code := extract.DetectCurrencyCode(total); code != "" {
			return code
		}
	}
	return e.cfg.DefaultCurrency
}

func missingFieldWarnings(out models.NormalizedInvoice) []models.Warning {
	var warnings []models.Warning
	missing := func(name string, v *string) {
		if v == nil {
			warnings = append(warnings, models.Warning{
				Code:    models.WarnMissingField,
				Message: name + " could not be extracted",
			})
		}
	}
	missing("invoice_number", out.InvoiceNumber)
	missing("invoice_date", out.InvoiceDate)
	missing("total", out.Total)
	missing("terms", out.Terms)
	return warnings
}

func decimalPtrToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
