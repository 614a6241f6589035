package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceRecord is the persisted shape of one extraction run: the
// normalized header fields, the line items and warnings as JSONB, plus the
// object key of the uploaded source document.
type InvoiceRecord struct {
	ID            uuid.UUID  `json:"id"`
	SourceKey     string     `json:"source_key"`
	InvoiceNumber *string    `json:"invoice_number"`
	InvoiceDate   *string    `json:"invoice_date"`
	Total         *string    `json:"total"`
	Terms         *string    `json:"terms"`
	Currency      *string    `json:"currency"`
	LineItemsJSON string     `json:"line_items"`
	WarningsJSON  string     `json:"warnings"`
	UploadedBy    uuid.UUID  `json:"uploaded_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func SaveInvoice(ctx context.Context, rec *InvoiceRecord) error {
	query := `
		INSERT INTO invoices (
			source_key, invoice_number, invoice_date, total, terms,
			currency, line_items, warnings, uploaded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9)
		RETURNING id, created_at
	`

	return Pool.QueryRow(ctx, query,
		rec.SourceKey, rec.InvoiceNumber, rec.InvoiceDate, rec.Total, rec.Terms,
		rec.Currency, rec.LineItemsJSON, rec.WarningsJSON, rec.UploadedBy,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func GetInvoices(ctx context.Context, limit int) ([]InvoiceRecord, error) {
	query := `
		SELECT id, COALESCE(source_key, ''), invoice_number, invoice_date,
		       total, terms, currency,
		       COALESCE(line_items::text, '[]'), COALESCE(warnings::text, '[]'),
		       uploaded_by, created_at, updated_at
		FROM invoices
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []InvoiceRecord
	for rows.Next() {
		var rec InvoiceRecord
		err := rows.Scan(
			&rec.ID, &rec.SourceKey, &rec.InvoiceNumber, &rec.InvoiceDate,
			&rec.Total, &rec.Terms, &rec.Currency,
			&rec.LineItemsJSON, &rec.WarningsJSON,
			&rec.UploadedBy, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetInvoiceByID retrieves a single extraction record
func GetInvoiceByID(ctx context.Context, id string) (*InvoiceRecord, error) {
	query := `
		SELECT id, COALESCE(source_key, ''), invoice_number, invoice_date,
		       total, terms, currency,
		       COALESCE(line_items::text, '[]'), COALESCE(warnings::text, '[]'),
		       uploaded_by, created_at, updated_at
		FROM invoices
		WHERE id = $1
	`

	var rec InvoiceRecord
	err := Pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.SourceKey, &rec.InvoiceNumber, &rec.InvoiceDate,
		&rec.Total, &rec.Terms, &rec.Currency,
		&rec.LineItemsJSON, &rec.WarningsJSON,
		&rec.UploadedBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteInvoice removes an extraction record
func DeleteInvoice(ctx context.Context, id string) error {
	_, err := Pool.Exec(ctx, "DELETE FROM invoices WHERE id = $1", id)
	return err
}
