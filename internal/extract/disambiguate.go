package extract

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

var (
	// relTolerance is the acceptance band for amount ≈ quantity × unit.
	relTolerance = decimal.NewFromFloat(0.01)
	// residualEps floors the denominator of relative residuals.
	residualEps = decimal.NewFromFloat(0.01)
	// swapMargin: swapping must at least halve the residual to win.
	swapMargin = decimal.NewFromFloat(0.5)
	// tieNoise: residuals closer than this are a tie and go to the soft
	// heuristics.
	tieNoise = decimal.NewFromFloat(0.02)
)

// Disambiguate decides the correct quantity/unit-price/amount reading of
// one extracted row. docTotal is the document's stated total when known;
// soleRow tells the summary-echo check whether this row is the only line
// item. Deterministic: the result is a pure function of the row, the total
// and soleRow.
func Disambiguate(row models.LineItemRow, docTotal *decimal.Decimal, soleRow bool) (models.NormalizedLineItem, []models.Warning) {
	var warnings []models.Warning

	parse := func(kind models.FieldType) (*decimal.Decimal, *models.RawField) {
		cell := row.Cell(kind)
		if cell == nil {
			return nil, nil
		}
		d, ok := ParseMoney(cell.Value)
		if !ok {
			warnings = append(warnings, models.Warning{
				Code:    models.WarnMalformedNumeric,
				Message: fmt.Sprintf("page %d: %s cell %q is not numeric, treated as absent", row.Page, kind, cell.Value),
			})
			return nil, nil
		}
		return &d, cell
	}

	qty, _ := parse(models.FieldQuantity)
	unit, unitCell := parse(models.FieldUnitPrice)
	amount, amountCell := parse(models.FieldAmount)

	item := models.NormalizedLineItem{}
	if desc := row.Cell(models.FieldDescription); desc != nil {
		item.Description = desc.Value
	}

	switch {
	case qty != nil && qty.IsPositive() && unit != nil && amount != nil:
		// Quantity-aware residuals: as-extracted vs. amount-read-as-unit.
		asIs := relResidual(qty.Mul(*unit), *amount)
		swapped := relResidual(qty.Mul(*amount), *unit)
		switch {
		case asIs.LessThanOrEqual(relTolerance):
			// Row already consistent.
		case swapped.LessThan(asIs) && swapped.LessThanOrEqual(asIs.Mul(swapMargin)):
			unit, amount = amount, unit
			unitCell, amountCell = amountCell, unitCell
			item.Flags |= models.FlagSwapped
		case asIs.Sub(swapped).Abs().LessThanOrEqual(tieNoise):
			item.Flags |= models.FlagLowConfidence
			warnings = append(warnings, models.Warning{
				Code:    models.WarnAmbiguousColumn,
				Message: fmt.Sprintf("page %d: unit/amount residuals tie, settled by soft heuristics", row.Page),
			})
			if softSwap(qty, unit, amount, unitCell, amountCell) {
				unit, amount = amount, unit
				unitCell, amountCell = amountCell, unitCell
				item.Flags |= models.FlagSwapped
			}
		}
	case unit != nil && amount != nil:
		// No usable quantity: soft heuristics only.
		if softSwap(qty, unit, amount, unitCell, amountCell) {
			unit, amount = amount, unit
			unitCell, amountCell = amountCell, unitCell
			item.Flags |= models.FlagSwapped
		}
	}

	// A value equal to the document total on a multi-row invoice is a
	// leaked summary value, not a genuine cell.
	if docTotal != nil && !soleRow {
		if amount != nil && amount.Equal(*docTotal) {
			amount = nil
			item.Flags |= models.FlagDroppedNoise
		}
		if unit != nil && unit.Equal(*docTotal) {
			unit = nil
			item.Flags |= models.FlagDroppedNoise
		}
	}

	item.Quantity = qty
	item.UnitPrice = unit
	item.Amount = amount
	return item, warnings
}

func relResidual(expected, actual decimal.Decimal) decimal.Decimal {
	denom := actual.Abs()
	if denom.LessThan(residualEps) {
		denom = residualEps
	}
	return expected.Sub(actual).Abs().Div(denom)
}

// softSwap runs the ordered soft hints and reports whether the unit/amount
// assignment should be exchanged. Hints are pure and evaluated in priority
// order; the first decisive one wins.
func softSwap(qty, unit, amount *decimal.Decimal, unitCell, amountCell *models.RawField) bool {
	for _, hint := range softHints {
		switch hint(qty, unit, amount, unitCell, amountCell) {
		case verdictSwap:
			return true
		case verdictKeep:
			return false
		}
	}
	return false
}

type verdict int

const (
	verdictNeutral verdict = iota
	verdictKeep
	verdictSwap
)

type softHint func(qty, unit, amount *decimal.Decimal, unitCell, amountCell *models.RawField) verdict

var softHints = []softHint{
	// With more than one unit bought, the unit price cannot exceed the
	// line amount.
	func(qty, unit, amount *decimal.Decimal, _, _ *models.RawField) verdict {
		if qty != nil && qty.GreaterThan(decimal.NewFromInt(1)) && unit.GreaterThan(*amount) {
			return verdictSwap
		}
		return verdictNeutral
	},
	// The cell shaped like money (currency symbol or cent precision) is
	// more likely the amount than the unit price.
	func(_, _, _ *decimal.Decimal, unitCell, amountCell *models.RawField) verdict {
		unitMoney := looksLikeMoney(unitCell)
		amountMoney := looksLikeMoney(amountCell)
		switch {
		case unitMoney && !amountMoney:
			return verdictSwap
		case amountMoney && !unitMoney:
			return verdictKeep
		}
		return verdictNeutral
	},
}

func looksLikeMoney(cell *models.RawField) bool {
	if cell == nil {
		return false
	}
	return DetectCurrencyCode(cell.Value) != "" || DecimalPlaces(cell.Value) == 2
}
