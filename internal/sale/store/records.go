package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lochiel/hacienda/internal/sale"
)

const selectDocumentColumns = `id, sale_id, type, file_name, object_key, url, content_type, size,
	extracted, processed, uploaded_at`

func scanDocument(sc scanner) (*sale.Document, error) {
	var d sale.Document

	var docType string

	var extracted []byte

	if err := sc.Scan(
		&d.ID, &d.SaleID, &docType, &d.FileName, &d.ObjectKey, &d.URL, &d.ContentType, &d.Size,
		&extracted, &d.Processed, &d.UploadedAt,
	); err != nil {
		return nil, err
	}

	d.Type = sale.DocumentType(docType)

	if len(extracted) > 0 {
		d.Extracted = json.RawMessage(extracted)
	}

	return &d, nil
}

// extractedArg keeps an absent extraction as SQL NULL.
func extractedArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return []byte(raw)
}

func listDocuments(ctx context.Context, q queryer, saleID uuid.UUID) ([]*sale.Document, error) {
	query := `SELECT ` + selectDocumentColumns + ` FROM documents WHERE sale_id = $1 ORDER BY uploaded_at ASC`

	rows, err := q.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*sale.Document

	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}

	return docs, nil
}

func (s *Store) ListDocuments(ctx context.Context, saleID uuid.UUID) ([]*sale.Document, error) {
	return listDocuments(ctx, s.db, saleID)
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*sale.Document, error) {
	query := `SELECT ` + selectDocumentColumns + ` FROM documents WHERE id = $1`

	d, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("getting document: %w", err)
	}

	return d, nil
}

func (s *Store) CreateDocument(ctx context.Context, d *sale.Document) error {
	query := `
		INSERT INTO documents (sale_id, type, file_name, object_key, url, content_type, size, extracted, processed, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, uploaded_at
	`

	err := s.db.QueryRowContext(ctx, query,
		d.SaleID, d.Type, d.FileName, d.ObjectKey, d.URL, d.ContentType, d.Size,
		extractedArg(d.Extracted), d.Processed,
	).Scan(&d.ID, &d.UploadedAt)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}

	return nil
}

func (s *Store) UpdateDocument(ctx context.Context, d *sale.Document) error {
	query := `
		UPDATE documents
		SET type = $1, url = $2, extracted = $3, processed = $4
		WHERE id = $5
	`

	res, err := s.db.ExecContext(ctx, query, d.Type, d.URL, extractedArg(d.Extracted), d.Processed, d.ID)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	return expectAffected(res)
}

func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	return expectAffected(res)
}

func (s *Store) CreateAlert(ctx context.Context, a *sale.Alert) error {
	query := `
		INSERT INTO alerts (sale_id, type, severity, message, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query, a.SaleID, a.Type, a.Severity, a.Message).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating alert: %w", err)
	}

	return nil
}

func (s *Store) ListAlerts(ctx context.Context, filter sale.AlertFilter) ([]*sale.Alert, error) {
	query := `
		SELECT a.id, a.sale_id, a.type, a.severity, a.message, a.resolved, a.created_at, a.resolved_at,
			s.document_number, s.destination_holder
		FROM alerts a
		JOIN sales s ON s.id = a.sale_id
		WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.SaleID != nil {
		query += fmt.Sprintf(" AND a.sale_id = $%d", argIdx)

		args = append(args, *filter.SaleID)
		argIdx++
	}

	if filter.Unresolved {
		query += " AND NOT a.resolved"
	}

	query += " ORDER BY a.created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*sale.Alert

	for rows.Next() {
		var a sale.Alert

		var alertType, severity string

		if err := rows.Scan(
			&a.ID, &a.SaleID, &alertType, &severity, &a.Message, &a.Resolved, &a.CreatedAt, &a.ResolvedAt,
			&a.DocumentNumber, &a.DestinationHolder,
		); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}

		a.Type = sale.AlertType(alertType)
		a.Severity = sale.Severity(severity)
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert rows: %w", err)
	}

	return alerts, nil
}

func (s *Store) ResolveAlert(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE alerts
		SET resolved = TRUE, resolved_at = NOW()
		WHERE id = $1 AND NOT resolved
	`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("resolving alert: %w", err)
	}

	return expectAffected(res)
}

// Stats counts work in progress. The monthly payable is attributed by
// weighing date.
func (s *Store) Stats(ctx context.Context, monthStart, monthEnd time.Time) (*sale.Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE state NOT IN ('FINALIZADO', 'CANCELADO')),
			COALESCE(SUM(total_payable) FILTER (
				WHERE state <> 'CANCELADO' AND weighing_date >= $1 AND weighing_date < $2
			), 0),
			COALESCE(SUM(total_payable - total_paid) FILTER (
				WHERE state NOT IN ('FINALIZADO', 'CANCELADO') AND total_payable IS NOT NULL
			), 0)
		FROM sales
	`

	var st sale.Stats
	if err := s.db.QueryRowContext(ctx, query, monthStart, monthEnd).Scan(
		&st.ActiveSales, &st.PayableThisMonth, &st.Receivables,
	); err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}

	return &st, nil
}

func (s *Store) Debts(ctx context.Context) ([]sale.Debt, error) {
	query := `
		SELECT destination_holder, COUNT(*), SUM(total_payable), SUM(total_paid), SUM(total_payable - total_paid)
		FROM sales
		WHERE state <> 'CANCELADO' AND total_payable IS NOT NULL AND total_payable > total_paid
		GROUP BY destination_holder
		ORDER BY 5 DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing debts: %w", err)
	}
	defer rows.Close()

	var debts []sale.Debt

	for rows.Next() {
		var d sale.Debt
		if err := rows.Scan(&d.Holder, &d.Sales, &d.Payable, &d.Paid, &d.Balance); err != nil {
			return nil, fmt.Errorf("scanning debt: %w", err)
		}

		debts = append(debts, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating debt rows: %w", err)
	}

	return debts, nil
}
