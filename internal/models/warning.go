package models

import "errors"

// WarningCode classifies the non-fatal problems the engine can report.
// None of these stop the pipeline; they ride along on the result so
// callers can decide how much to trust each field.
type WarningCode string

const (
	// WarnMissingField: a header field is still null after merge and
	// fallback.
	WarnMissingField WarningCode = "MISSING_FIELD"
	// WarnAmbiguousColumn: disambiguation residuals tied within tolerance;
	// the row was settled by soft heuristics.
	WarnAmbiguousColumn WarningCode = "AMBIGUOUS_COLUMN"
	// WarnMergeConflict: more than one viable invoice-number group existed;
	// losers were discarded, not silently dropped.
	WarnMergeConflict WarningCode = "MERGE_CONFLICT"
	// WarnMalformedNumeric: a cell's text failed numeric parsing and was
	// treated as absent.
	WarnMalformedNumeric WarningCode = "MALFORMED_NUMERIC"
	// WarnTotalMismatch: the stated total and the sum of line amounts
	// disagree beyond tolerance.
	WarnTotalMismatch WarningCode = "TOTAL_MISMATCH"
)

// Warning is one non-fatal finding attached to a pipeline result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// ErrNoExtractableData is the engine's only fatal condition: the input had
// no pages, or no page carried a single usable field. The engine reports
// this instead of fabricating an empty invoice.
var ErrNoExtractableData = errors.New("no extractable data in document")
