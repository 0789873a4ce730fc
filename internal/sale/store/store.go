package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/sale"
)

// Schema creates the sale tables when they do not exist.
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// saleColumns are the writable columns, in the order saleArgs returns them.
var saleColumns = []string{
	"document_number", "establishment", "destination_holder", "destination_renspa", "category", "reason",
	"quantity_declared", "issue_date", "load_date", "expiration_date", "document_fee", "guide_fee",
	"troop", "remito_number", "pickup_date", "quantity_loaded",
	"quantity_weighed", "weighing_date", "total_weight_kg", "avg_weight_per_head",
	"currency", "price_per_kg", "price_per_head", "amount_usd", "exchange_rate", "amount_original", "net_amount",
	"iva_percent", "total_with_tax", "withholding", "total_payable", "total_paid",
	"invoice_exempt", "invoice_number", "price_assigned",
	"payment_method", "credit_destination", "payment_date",
	"state", "notes",
}

func saleArgs(s *sale.Sale) []any {
	return []any{
		s.DocumentNumber, s.Establishment, s.DestinationHolder, s.DestinationRenspa, s.Category, s.Reason,
		s.QuantityDeclared, s.IssueDate, s.LoadDate, s.ExpirationDate, s.DocumentFee, s.GuideFee,
		s.Troop, s.RemitoNumber, s.PickupDate, s.QuantityLoaded,
		s.QuantityWeighed, s.WeighingDate, s.TotalWeightKg, s.AvgWeightPerHead,
		s.Currency, s.PricePerKg, s.PricePerHead, s.AmountUSD, s.ExchangeRate, s.AmountOriginal, s.NetAmount,
		s.IVAPercent, s.TotalWithTax, s.Withholding, s.TotalPayable, s.TotalPaid,
		s.InvoiceExempt, s.InvoiceNumber, s.PriceAssigned,
		s.PaymentMethod, s.CreditDestination, s.PaymentDate,
		s.State, s.Notes,
	}
}

var selectSaleColumns = "s.id, s.created_at, s.updated_at, s." + strings.Join(saleColumns, ", s.")

// scanSale reads a row selected with selectSaleColumns.
func scanSale(sc scanner) (*sale.Sale, error) {
	var s sale.Sale

	var establishment, category, currency, method, state string

	if err := sc.Scan(
		&s.ID, &s.CreatedAt, &s.UpdatedAt,
		&s.DocumentNumber, &establishment, &s.DestinationHolder, &s.DestinationRenspa, &category, &s.Reason,
		&s.QuantityDeclared, &s.IssueDate, &s.LoadDate, &s.ExpirationDate, &s.DocumentFee, &s.GuideFee,
		&s.Troop, &s.RemitoNumber, &s.PickupDate, &s.QuantityLoaded,
		&s.QuantityWeighed, &s.WeighingDate, &s.TotalWeightKg, &s.AvgWeightPerHead,
		&currency, &s.PricePerKg, &s.PricePerHead, &s.AmountUSD, &s.ExchangeRate, &s.AmountOriginal, &s.NetAmount,
		&s.IVAPercent, &s.TotalWithTax, &s.Withholding, &s.TotalPayable, &s.TotalPaid,
		&s.InvoiceExempt, &s.InvoiceNumber, &s.PriceAssigned,
		&method, &s.CreditDestination, &s.PaymentDate,
		&state, &s.Notes,
	); err != nil {
		return nil, err
	}

	st, err := sale.ParseState(state)
	if err != nil {
		return nil, err
	}

	s.State = st
	s.Establishment = sale.Establishment(establishment)
	s.Category = dut.Category(category)
	s.Currency = sale.Currency(currency)
	s.PaymentMethod = sale.PaymentMethod(method)

	return &s, nil
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}

	return strings.Join(ps, ", ")
}

func (s *Store) CreateSale(ctx context.Context, sl *sale.Sale) error {
	query := `INSERT INTO sales (` + strings.Join(saleColumns, ", ") + `, created_at)
		VALUES (` + placeholders(1, len(saleColumns)) + `, NOW())
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query, saleArgs(sl)...).Scan(&sl.ID, &sl.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sale.ErrDuplicateDocument
		}

		return fmt.Errorf("creating sale: %w", err)
	}

	return nil
}

func getSale(ctx context.Context, q queryer, id uuid.UUID, lock bool) (*sale.Sale, error) {
	query := `SELECT ` + selectSaleColumns + ` FROM sales s WHERE s.id = $1`
	if lock {
		query += " FOR UPDATE"
	}

	sl, err := scanSale(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("getting sale: %w", err)
	}

	return sl, nil
}

func (s *Store) GetSale(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	return getSale(ctx, s.db, id, false)
}

func (s *Store) ListSales(ctx context.Context, filter sale.ListFilter) ([]*sale.Sale, error) {
	query := `SELECT ` + selectSaleColumns + ` FROM sales s WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.State != nil {
		query += fmt.Sprintf(" AND s.state = $%d", argIdx)

		args = append(args, *filter.State)
		argIdx++
	}

	if filter.Establishment != nil {
		query += fmt.Sprintf(" AND s.establishment = $%d", argIdx)

		args = append(args, *filter.Establishment)
		argIdx++
	}

	if filter.Holder != "" {
		query += fmt.Sprintf(" AND s.destination_holder ILIKE '%%' || $%d || '%%'", argIdx)

		args = append(args, filter.Holder)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND s.issue_date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND s.issue_date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
	}

	query += " ORDER BY s.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var sales []*sale.Sale

	for rows.Next() {
		sl, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sale: %w", err)
		}

		sales = append(sales, sl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sale rows: %w", err)
	}

	return sales, nil
}

func (s *Store) DeleteSale(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting sale: %w", err)
	}

	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return sale.ErrNotFound
	}

	return nil
}

const selectPaymentColumns = `id, sale_id, amount, currency, exchange_rate, date, method,
	reference, credit_destination, proof_url, created_at`

func scanPayment(sc scanner) (*sale.Payment, error) {
	var p sale.Payment

	var currency, method string

	if err := sc.Scan(
		&p.ID, &p.SaleID, &p.Amount, &currency, &p.ExchangeRate, &p.Date, &method,
		&p.Reference, &p.CreditDestination, &p.ProofURL, &p.CreatedAt,
	); err != nil {
		return nil, err
	}

	p.Currency = sale.Currency(currency)
	p.Method = sale.PaymentMethod(method)

	return &p, nil
}

func listPayments(ctx context.Context, q queryer, saleID uuid.UUID) ([]*sale.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments WHERE sale_id = $1 ORDER BY date ASC, created_at ASC`

	rows, err := q.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*sale.Payment

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", err)
	}

	return payments, nil
}

func (s *Store) ListPayments(ctx context.Context, saleID uuid.UUID) ([]*sale.Payment, error) {
	return listPayments(ctx, s.db, saleID)
}

type saleTx struct {
	tx     *sql.Tx
	saleID uuid.UUID
}

// BeginSale opens a transaction scoped to one sale. The row lock is taken by
// the first Sale call.
func (s *Store) BeginSale(ctx context.Context, id uuid.UUID) (sale.SaleTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning sale tx: %w", err)
	}

	return &saleTx{tx: dbTx, saleID: id}, nil
}

func (stx *saleTx) Commit() error   { return stx.tx.Commit() }
func (stx *saleTx) Rollback() error { return stx.tx.Rollback() }

func (stx *saleTx) Sale(ctx context.Context) (*sale.Sale, error) {
	return getSale(ctx, stx.tx, stx.saleID, true)
}

func (stx *saleTx) UpdateSale(ctx context.Context, sl *sale.Sale) error {
	sets := make([]string, len(saleColumns))
	for i, c := range saleColumns {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}

	query := `UPDATE sales SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
		WHERE id = $` + fmt.Sprint(len(saleColumns)+1) + `
		RETURNING updated_at`

	args := append(saleArgs(sl), stx.saleID)

	if err := stx.tx.QueryRowContext(ctx, query, args...).Scan(&sl.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sale.ErrNotFound
		}

		return fmt.Errorf("updating sale: %w", err)
	}

	return nil
}

func (stx *saleTx) ListDocuments(ctx context.Context) ([]*sale.Document, error) {
	return listDocuments(ctx, stx.tx, stx.saleID)
}

func (stx *saleTx) ListPayments(ctx context.Context) ([]*sale.Payment, error) {
	return listPayments(ctx, stx.tx, stx.saleID)
}

func (stx *saleTx) CreatePayment(ctx context.Context, p *sale.Payment) error {
	query := `
		INSERT INTO payments (sale_id, amount, currency, exchange_rate, date, method, reference, credit_destination, proof_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at
	`

	err := stx.tx.QueryRowContext(ctx, query,
		stx.saleID, p.Amount, p.Currency, p.ExchangeRate, p.Date, p.Method,
		p.Reference, p.CreditDestination, p.ProofURL,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}

	return nil
}

func (stx *saleTx) UpdatePayment(ctx context.Context, p *sale.Payment) error {
	query := `
		UPDATE payments
		SET amount = $1, currency = $2, exchange_rate = $3, date = $4, method = $5,
			reference = $6, credit_destination = $7, proof_url = $8
		WHERE id = $9 AND sale_id = $10
	`

	res, err := stx.tx.ExecContext(ctx, query,
		p.Amount, p.Currency, p.ExchangeRate, p.Date, p.Method,
		p.Reference, p.CreditDestination, p.ProofURL,
		p.ID, stx.saleID,
	)
	if err != nil {
		return fmt.Errorf("updating payment: %w", err)
	}

	return expectAffected(res)
}

func (stx *saleTx) DeletePayment(ctx context.Context, id uuid.UUID) error {
	res, err := stx.tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1 AND sale_id = $2`, id, stx.saleID)
	if err != nil {
		return fmt.Errorf("deleting payment: %w", err)
	}

	return expectAffected(res)
}

// SumPayments converts each USD payment with its own rate, rounded the same
// way sale.Payment.Normalized rounds it.
func (stx *saleTx) SumPayments(ctx context.Context) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN currency = 'USD' THEN ROUND(amount * exchange_rate, 2) ELSE amount END
		), 0)
		FROM payments
		WHERE sale_id = $1
	`

	var total decimal.Decimal
	if err := stx.tx.QueryRowContext(ctx, query, stx.saleID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("summing payments: %w", err)
	}

	return total, nil
}
