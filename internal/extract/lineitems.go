package extract

import (
	"github.com/expenselens/invoice-extract-service/internal/models"
)

// ExtractLineItems builds the ordered line-item rows for one page from the
// backend's table groups. Cells are assigned by backend column labels when
// available, positionally otherwise. Rows without a single numeric cell
// are pure noise and dropped here.
func ExtractLineItems(tables []models.RowGroup, page int) []models.LineItemRow {
	var rows []models.LineItemRow
	for _, group := range tables {
		for _, row := range group.Rows {
			item, ok := extractRow(row, page)
			if ok {
				rows = append(rows, item)
			}
		}
	}
	return rows
}

func extractRow(row models.Row, page int) (models.LineItemRow, bool) {
	cells := make(map[models.FieldType]*models.RawField)
	var unresolved []models.BackendField

	for _, f := range row.Fields {
		value := CleanText(f.Value)
		if value == "" {
			continue
		}
		kind := ResolveLineType(f.Type, f.Label)
		if kind == models.FieldOther {
			unresolved = append(unresolved, f)
			continue
		}
		assignCell(cells, kind, f, page)
	}

	// Positional heuristics for whatever the labels left unclaimed:
	// the longest text cell is the description, the shortest numeric cell
	// is the quantity, remaining numerics fill unit price then amount.
	// Length decides the description here, not confidence.
	var numerics []models.BackendField
	var bestText *models.BackendField
	for i, f := range unresolved {
		if _, ok := ParseMoney(f.Value); ok {
			numerics = append(numerics, f)
		} else if bestText == nil || len(CleanText(f.Value)) > len(CleanText(bestText.Value)) {
			bestText = &unresolved[i]
		}
	}
	if cells[models.FieldDescription] == nil && bestText != nil {
		cells[models.FieldDescription] = rawCell(models.FieldDescription, *bestText, page)
	}
	if cells[models.FieldQuantity] == nil && len(numerics) > 1 {
		shortest := 0
		for i, f := range numerics {
			if len(CleanText(f.Value)) < len(CleanText(numerics[shortest].Value)) {
				shortest = i
			}
		}
		assignCell(cells, models.FieldQuantity, numerics[shortest], page)
		numerics = append(numerics[:shortest], numerics[shortest+1:]...)
	}
	for _, kind := range []models.FieldType{models.FieldUnitPrice, models.FieldAmount} {
		if cells[kind] == nil && len(numerics) > 0 {
			assignCell(cells, kind, numerics[0], page)
			numerics = numerics[1:]
		}
	}

	if !hasNumericCell(cells) {
		return models.LineItemRow{}, false
	}
	return models.LineItemRow{Page: page, Cells: cells}, true
}

// assignCell keeps the highest-confidence candidate per cell type.
func assignCell(cells map[models.FieldType]*models.RawField, kind models.FieldType, f models.BackendField, page int) {
	raw := rawCell(kind, f, page)
	if existing := cells[kind]; existing == nil || raw.Confidence > existing.Confidence {
		cells[kind] = raw
	}
}

func rawCell(kind models.FieldType, f models.BackendField, page int) *models.RawField {
	return &models.RawField{
		Type:       kind,
		Label:      CleanText(f.Label),
		Value:      CleanText(f.Value),
		Confidence: f.Confidence,
		Page:       page,
	}
}

func hasNumericCell(cells map[models.FieldType]*models.RawField) bool {
	for _, kind := range []models.FieldType{models.FieldQuantity, models.FieldUnitPrice, models.FieldAmount} {
		if cell := cells[kind]; cell != nil {
			if _, ok := ParseMoney(cell.Value); ok {
				return true
			}
		}
	}
	return false
}
