package textract

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

// convertExpenseDocuments maps the SDK's expense documents onto the engine's
// page shape. ExpenseIndex is 1-based when present; documents without one
// keep their arrival order.
func convertExpenseDocuments(docs []types.ExpenseDocument) []models.PageExtraction {
	pages := make([]models.PageExtraction, 0, len(docs))
	for i, doc := range docs {
		idx := i
		if doc.ExpenseIndex != nil {
			idx = int(*doc.ExpenseIndex) - 1
		}

		page := models.PageExtraction{PageIndex: idx}
		for _, f := range doc.SummaryFields {
			page.Summary = append(page.Summary, convertField(f))
		}
		for _, group := range doc.LineItemGroups {
			var rg models.RowGroup
			for _, li := range group.LineItems {
				var row models.Row
				for _, f := range li.LineItemExpenseFields {
					row.Fields = append(row.Fields, convertField(f))
				}
				rg.Rows = append(rg.Rows, row)
			}
			page.Tables = append(page.Tables, rg)
		}
		pages = append(pages, page)
	}
	return pages
}

func convertField(f types.ExpenseField) models.BackendField {
	var out models.BackendField
	if f.Type != nil {
		out.Type = aws.ToString(f.Type.Text)
	}
	if f.LabelDetection != nil {
		out.Label = aws.ToString(f.LabelDetection.Text)
	}
	if f.ValueDetection != nil {
		out.Value = aws.ToString(f.ValueDetection.Text)
		if f.ValueDetection.Confidence != nil {
			out.Confidence = float64(*f.ValueDetection.Confidence)
		}
	}
	return out
}
