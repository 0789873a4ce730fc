package sale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/metrics"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=sale
type Repository interface {
	CreateSale(ctx context.Context, s *Sale) error
	GetSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]*Sale, error)
	DeleteSale(ctx context.Context, id uuid.UUID) error

	ListPayments(ctx context.Context, saleID uuid.UUID) ([]*Payment, error)

	CreateDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	ListDocuments(ctx context.Context, saleID uuid.UUID) ([]*Document, error)
	UpdateDocument(ctx context.Context, d *Document) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	CreateAlert(ctx context.Context, a *Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID) error

	Stats(ctx context.Context, monthStart, monthEnd time.Time) (*Stats, error)
	Debts(ctx context.Context) ([]Debt, error)

	BeginSale(ctx context.Context, id uuid.UUID) (SaleTx, error)
}

// SaleTx is a write scope over a single sale. The sale row stays locked
// until Commit or Rollback, so concurrent writers to the same sale run one
// after another.
type SaleTx interface {
	Sale(ctx context.Context) (*Sale, error)
	UpdateSale(ctx context.Context, s *Sale) error
	ListDocuments(ctx context.Context) ([]*Document, error)
	ListPayments(ctx context.Context) ([]*Payment, error)
	CreatePayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) error
	SumPayments(ctx context.Context) (decimal.Decimal, error)
	Commit() error
	Rollback() error
}

type Service struct {
	repo       Repository
	defaultIVA decimal.Decimal
	now        func() time.Time
}

func NewService(repo Repository, defaultIVA decimal.Decimal) *Service {
	return &Service{repo: repo, defaultIVA: defaultIVA, now: time.Now}
}

type ListFilter struct {
	State         *State
	Establishment *Establishment
	Holder        string
	StartDate     *time.Time
	EndDate       *time.Time
}

type AlertFilter struct {
	SaleID     *uuid.UUID
	Unresolved bool
	Limit      int
}

type CreateParams struct {
	DocumentNumber    string
	Establishment     Establishment
	DestinationHolder string
	DestinationRenspa string
	Category          dut.Category
	Reason            string
	QuantityDeclared  *int
	IssueDate         *time.Time
	LoadDate          *time.Time
	ExpirationDate    *time.Time
	DocumentFee       decimal.NullDecimal
	GuideFee          decimal.NullDecimal
	Withholding       decimal.NullDecimal
	Notes             string
}

func (p CreateParams) validate() error {
	if strings.TrimSpace(p.DocumentNumber) == "" {
		return &ValidationError{Field: "document_number", Reason: "required"}
	}

	if !p.Establishment.Valid() {
		return &ValidationError{Field: "establishment", Reason: "unknown establishment"}
	}

	if p.QuantityDeclared != nil && *p.QuantityDeclared <= 0 {
		return &ValidationError{Field: "quantity_declared", Reason: "must be greater than zero"}
	}

	return validateNonNegative(map[string]decimal.NullDecimal{
		"document_fee": p.DocumentFee,
		"guide_fee":    p.GuideFee,
		"withholding":  p.Withholding,
	})
}

func validateNonNegative(fields map[string]decimal.NullDecimal) error {
	for name, v := range fields {
		if v.Valid && v.Decimal.IsNegative() {
			return &ValidationError{Field: name, Reason: "must not be negative"}
		}
	}

	return nil
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Sale, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	sl := &Sale{
		DocumentNumber:    strings.TrimSpace(params.DocumentNumber),
		Establishment:     params.Establishment,
		DestinationHolder: strings.TrimSpace(params.DestinationHolder),
		DestinationRenspa: params.DestinationRenspa,
		Category:          params.Category,
		Reason:            params.Reason,
		QuantityDeclared:  params.QuantityDeclared,
		IssueDate:         params.IssueDate,
		LoadDate:          params.LoadDate,
		ExpirationDate:    params.ExpirationDate,
		DocumentFee:       params.DocumentFee,
		GuideFee:          params.GuideFee,
		Withholding:       params.Withholding,
		IVAPercent:        decimal.NewNullDecimal(s.defaultIVA),
		State:             StateOpen,
		Notes:             params.Notes,
	}

	ComputeDerived(sl)

	if err := s.repo.CreateSale(ctx, sl); err != nil {
		return nil, err
	}

	metrics.SalesCreated.WithLabelValues(string(sl.Establishment)).Inc()
	slog.Info("sale created", "id", sl.ID, "document_number", sl.DocumentNumber)

	return sl, nil
}

// CreateFromExtraction creates a sale prefilled from a DUT reading. The
// extraction must at least carry a document number.
func (s *Service) CreateFromExtraction(ctx context.Context, res *dut.Result, est Establishment) (*Sale, error) {
	return s.Create(ctx, ParamsFromExtraction(res, est))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

// Delete removes a sale that never moved money.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	sl, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return err
	}

	if sl.State != StateOpen && sl.State != StateCancelled {
		return &ValidationError{Field: "state", Reason: "only open or cancelled sales can be deleted"}
	}

	if !sl.TotalPaid.IsZero() {
		return &ValidationError{Field: "payments", Reason: "sale has registered payments"}
	}

	return s.repo.DeleteSale(ctx, id)
}

// mutate runs fn on the locked sale and persists the result. Nothing is
// written when fn fails.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(stx SaleTx, sl *Sale) error) (*Sale, error) {
	stx, err := s.repo.BeginSale(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("begin sale: %w", err)
	}
	defer stx.Rollback()

	sl, err := stx.Sale(ctx)
	if err != nil {
		return nil, err
	}

	if err := fn(stx, sl); err != nil {
		return nil, err
	}

	if err := stx.UpdateSale(ctx, sl); err != nil {
		return nil, fmt.Errorf("update sale: %w", err)
	}

	if err := stx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}

	return sl, nil
}

func checkOpen(sl *Sale) error {
	if sl.State.Terminal() {
		return ErrSaleClosed
	}

	return nil
}

// checkBalance holds after any change to the payable side.
func checkBalance(sl *Sale) error {
	if sl.TotalPayable.Valid && sl.TotalPayable.Decimal.IsNegative() {
		return &ValidationError{Field: "withholding", Reason: "deductions exceed the invoiced total"}
	}

	if sl.PayableEstablished() && sl.TotalPaid.GreaterThan(sl.TotalPayable.Decimal) {
		return &ValidationError{Field: "total_payable", Reason: "would fall below the amount already paid"}
	}

	return nil
}

type UpdateParams struct {
	DestinationHolder *string
	DestinationRenspa *string
	Category          *dut.Category
	Reason            *string
	QuantityDeclared  *int
	IssueDate         *time.Time
	LoadDate          *time.Time
	ExpirationDate    *time.Time
	DocumentFee       decimal.NullDecimal
	GuideFee          decimal.NullDecimal
	Withholding       decimal.NullDecimal
	IVAPercent        decimal.NullDecimal
	ExchangeRate      decimal.NullDecimal
	PaymentMethod     *PaymentMethod
	CreditDestination *string
	PaymentDate       *time.Time
	Notes             *string
}

func (p UpdateParams) apply(sl *Sale) error {
	if err := validateNonNegative(map[string]decimal.NullDecimal{
		"document_fee": p.DocumentFee,
		"guide_fee":    p.GuideFee,
		"withholding":  p.Withholding,
		"iva_percent":  p.IVAPercent,
	}); err != nil {
		return err
	}

	if p.ExchangeRate.Valid && !p.ExchangeRate.Decimal.IsPositive() {
		return &ValidationError{Field: "exchange_rate", Reason: "must be greater than zero"}
	}

	if p.QuantityDeclared != nil && *p.QuantityDeclared <= 0 {
		return &ValidationError{Field: "quantity_declared", Reason: "must be greater than zero"}
	}

	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: "unknown payment method"}
	}

	setIf(&sl.DestinationHolder, p.DestinationHolder)
	setIf(&sl.DestinationRenspa, p.DestinationRenspa)
	setIf(&sl.Category, p.Category)
	setIf(&sl.Reason, p.Reason)
	setIf(&sl.CreditDestination, p.CreditDestination)
	setIf(&sl.PaymentMethod, p.PaymentMethod)
	setIf(&sl.Notes, p.Notes)

	if p.QuantityDeclared != nil {
		sl.QuantityDeclared = p.QuantityDeclared
	}

	for dst, src := range map[**time.Time]*time.Time{
		&sl.IssueDate:      p.IssueDate,
		&sl.LoadDate:       p.LoadDate,
		&sl.ExpirationDate: p.ExpirationDate,
		&sl.PaymentDate:    p.PaymentDate,
	} {
		if src != nil {
			*dst = src
		}
	}

	for dst, src := range map[*decimal.NullDecimal]decimal.NullDecimal{
		&sl.DocumentFee:  p.DocumentFee,
		&sl.GuideFee:     p.GuideFee,
		&sl.Withholding:  p.Withholding,
		&sl.IVAPercent:   p.IVAPercent,
		&sl.ExchangeRate: p.ExchangeRate,
	} {
		if src.Valid {
			*dst = src
		}
	}

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Update edits the descriptive and billing inputs of a sale and recomputes
// every derived amount.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Sale, error) {
	return s.mutate(ctx, id, func(_ SaleTx, sl *Sale) error {
		if err := checkOpen(sl); err != nil {
			return err
		}

		if err := params.apply(sl); err != nil {
			return err
		}

		ComputeDerived(sl)

		return checkBalance(sl)
	})
}

type PickupParams struct {
	Troop          string
	RemitoNumber   string
	PickupDate     time.Time
	QuantityLoaded int
}

// RecordPickup stores the pickup data. An open sale moves to RETIRADO; a
// sale already past pickup only has its data corrected.
func (s *Service) RecordPickup(ctx context.Context, id uuid.UUID, params PickupParams) (*Sale, error) {
	if params.QuantityLoaded <= 0 {
		return nil, &ValidationError{Field: "quantity_loaded", Reason: "must be greater than zero"}
	}

	if params.PickupDate.IsZero() {
		return nil, &ValidationError{Field: "pickup_date", Reason: "required"}
	}

	return s.mutate(ctx, id, func(_ SaleTx, sl *Sale) error {
		if err := checkOpen(sl); err != nil {
			return err
		}

		if sl.State == StateOpen {
			if err := CheckTransition(sl, StatePickedUp, nil); err != nil {
				return err
			}

			s.moved(sl, StatePickedUp)
		}

		sl.Troop = strings.TrimSpace(params.Troop)
		sl.RemitoNumber = strings.TrimSpace(params.RemitoNumber)
		sl.PickupDate = &params.PickupDate
		sl.QuantityLoaded = &params.QuantityLoaded

		return nil
	})
}

type WeighingParams struct {
	QuantityWeighed int
	TotalWeightKg   decimal.Decimal
	WeighingDate    time.Time
}

// RecordWeighing stores the slaughterhouse weighing. A picked-up sale moves
// to ROMANEO, which needs the romaneo document attached first.
func (s *Service) RecordWeighing(ctx context.Context, id uuid.UUID, params WeighingParams) (*Sale, error) {
	if params.QuantityWeighed <= 0 {
		return nil, &ValidationError{Field: "quantity_weighed", Reason: "must be greater than zero"}
	}

	if !params.TotalWeightKg.IsPositive() {
		return nil, &ValidationError{Field: "total_weight_kg", Reason: "must be greater than zero"}
	}

	if params.WeighingDate.IsZero() {
		return nil, &ValidationError{Field: "weighing_date", Reason: "required"}
	}

	return s.mutate(ctx, id, func(stx SaleTx, sl *Sale) error {
		if err := checkOpen(sl); err != nil {
			return err
		}

		if sl.State != StateWeighed {
			docs, err := stx.ListDocuments(ctx)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}

			if err := CheckTransition(sl, StateWeighed, docs); err != nil {
				return err
			}

			s.moved(sl, StateWeighed)
		}

		sl.QuantityWeighed = &params.QuantityWeighed
		sl.TotalWeightKg = decimal.NewNullDecimal(params.TotalWeightKg)
		sl.WeighingDate = &params.WeighingDate

		ComputeDerived(sl)

		return checkBalance(sl)
	})
}

func (s *Service) AssignPrice(ctx context.Context, id uuid.UUID, in PriceInput) (*Sale, error) {
	return s.mutate(ctx, id, func(_ SaleTx, sl *Sale) error {
		if err := checkOpen(sl); err != nil {
			return err
		}

		if !in.IVAPercent.Valid && !sl.IVAPercent.Valid {
			in.IVAPercent = decimal.NewNullDecimal(s.defaultIVA)
		}

		if err := AssignPrice(sl, in); err != nil {
			return err
		}

		slog.Info("price assigned", "sale_id", sl.ID, "currency", sl.Currency,
			"total_payable", sl.TotalPayable.Decimal.StringFixed(moneyPlaces), "exempt", sl.InvoiceExempt)

		return nil
	})
}

func (s *Service) MarkInvoiced(ctx context.Context, id uuid.UUID, number string) (*Sale, error) {
	return s.mutate(ctx, id, func(_ SaleTx, sl *Sale) error {
		if sl.State == StateCancelled {
			return ErrSaleClosed
		}

		return MarkInvoiced(sl, number)
	})
}

// Transition moves a sale to another state when the table and the target's
// guards allow it.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to State) (*Sale, error) {
	return s.mutate(ctx, id, func(stx SaleTx, sl *Sale) error {
		var docs []*Document

		if to == StateWeighed {
			var err error

			docs, err = stx.ListDocuments(ctx)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}
		}

		if err := CheckTransition(sl, to, docs); err != nil {
			return err
		}

		s.moved(sl, to)

		return nil
	})
}

func (s *Service) moved(sl *Sale, to State) {
	slog.Info("sale state changed", "sale_id", sl.ID, "from", sl.State, "to", to)
	metrics.Transitions.WithLabelValues(string(to)).Inc()

	sl.State = to
}

type PaymentParams struct {
	Amount            decimal.Decimal
	Currency          Currency
	ExchangeRate      decimal.NullDecimal
	Date              time.Time
	Method            PaymentMethod
	Reference         string
	CreditDestination string
	ProofURL          string
}

func (p PaymentParams) payment(saleID uuid.UUID) *Payment {
	pm := &Payment{
		SaleID:            saleID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		ExchangeRate:      p.ExchangeRate,
		Date:              p.Date,
		Method:            p.Method,
		Reference:         p.Reference,
		CreditDestination: p.CreditDestination,
		ProofURL:          p.ProofURL,
	}

	if pm.Currency == CurrencyARS {
		pm.ExchangeRate = decimal.NullDecimal{}
	}

	return pm
}

// refreshPaid recomputes TotalPaid from the stored payments.
func refreshPaid(ctx context.Context, stx SaleTx, sl *Sale) error {
	total, err := stx.SumPayments(ctx)
	if err != nil {
		return fmt.Errorf("sum payments: %w", err)
	}

	sl.TotalPaid = total

	return nil
}

func paymentOutcome(err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}

	metrics.Payments.WithLabelValues(outcome).Inc()
}

func (s *Service) AddPayment(ctx context.Context, saleID uuid.UUID, params PaymentParams) (*Payment, error) {
	p := params.payment(saleID)
	if err := ValidatePayment(p); err != nil {
		paymentOutcome(err)
		return nil, err
	}

	_, err := s.mutate(ctx, saleID, func(stx SaleTx, sl *Sale) error {
		if err := checkOpen(sl); err != nil {
			return err
		}

		existing, err := stx.ListPayments(ctx)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}

		if err := CheckPayments(sl, append(existing, p)); err != nil {
			return err
		}

		if err := stx.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		return refreshPaid(ctx, stx, sl)
	})

	paymentOutcome(err)

	if err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) UpdatePayment(ctx context.Context, saleID, paymentID uuid.UUID, params PaymentParams) (*Payment, error) {
	p := params.payment(saleID)
	p.ID = paymentID

	if err := ValidatePayment(p); err != nil {
		paymentOutcome(err)
		return nil, err
	}

	_, err := s.mutate(ctx, saleID, func(stx SaleTx, sl *Sale) error {
		if err := checkOpen(sl); err != nil {
			return err
		}

		existing, err := stx.ListPayments(ctx)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}

		next, found := replacePayment(existing, p)
		if !found {
			return ErrNotFound
		}

		if err := CheckPayments(sl, next); err != nil {
			return err
		}

		if err := stx.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		return refreshPaid(ctx, stx, sl)
	})

	paymentOutcome(err)

	if err != nil {
		return nil, err
	}

	return p, nil
}

// DeletePayment removes a payment. Closed sales keep their payments.
func (s *Service) DeletePayment(ctx context.Context, saleID, paymentID uuid.UUID) error {
	_, err := s.mutate(ctx, saleID, func(stx SaleTx, sl *Sale) error {
		if err := checkOpen(sl); err != nil {
			return err
		}

		if err := stx.DeletePayment(ctx, paymentID); err != nil {
			return err
		}

		return refreshPaid(ctx, stx, sl)
	})

	return err
}

func (s *Service) ListPayments(ctx context.Context, saleID uuid.UUID) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, saleID)
}

func (s *Service) AttachDocument(ctx context.Context, d *Document) error {
	if !d.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown document type"}
	}

	if _, err := s.repo.GetSale(ctx, d.SaleID); err != nil {
		return err
	}

	return s.repo.CreateDocument(ctx, d)
}

func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.GetDocument(ctx, id)
}

func (s *Service) ListDocuments(ctx context.Context, saleID uuid.UUID) ([]*Document, error) {
	return s.repo.ListDocuments(ctx, saleID)
}

func (s *Service) UpdateDocument(ctx context.Context, d *Document) error {
	return s.repo.UpdateDocument(ctx, d)
}

func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteDocument(ctx, id)
}

// Reconcile stores the alerts that apply to a sale and are not already
// open. It returns the newly raised ones.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) ([]*Alert, error) {
	sl, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}

	docs, err := s.repo.ListDocuments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	open, err := s.repo.ListAlerts(ctx, AlertFilter{SaleID: &id, Unresolved: true})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	raised := make(map[AlertType]bool, len(open))
	for _, a := range open {
		raised[a.Type] = true
	}

	var created []*Alert

	for _, a := range Reconcile(sl, docs, s.now()) {
		if raised[a.Type] {
			continue
		}

		if err := s.repo.CreateAlert(ctx, a); err != nil {
			return nil, fmt.Errorf("create alert: %w", err)
		}

		raised[a.Type] = true
		created = append(created, a)
	}

	return created, nil
}

// ReconcileActive runs Reconcile over every sale that is not closed. A
// failure on one sale is logged and does not stop the sweep.
func (s *Service) ReconcileActive(ctx context.Context) (int, error) {
	sales, err := s.repo.ListSales(ctx, ListFilter{})
	if err != nil {
		return 0, fmt.Errorf("list sales: %w", err)
	}

	raised := 0

	for _, sl := range sales {
		if sl.State.Terminal() {
			continue
		}

		alerts, err := s.Reconcile(ctx, sl.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return raised, err
			}

			slog.Warn("failed to reconcile sale", "sale_id", sl.ID, "error", err)

			continue
		}

		raised += len(alerts)
	}

	return raised, nil
}

func (s *Service) ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error) {
	return s.repo.ListAlerts(ctx, filter)
}

func (s *Service) ResolveAlert(ctx context.Context, id uuid.UUID) error {
	return s.repo.ResolveAlert(ctx, id)
}

const dashboardAlerts = 5

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	st, err := s.repo.Stats(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	alerts, err := s.repo.ListAlerts(ctx, AlertFilter{Unresolved: true, Limit: dashboardAlerts})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	st.OpenAlerts = alerts

	return st, nil
}

func (s *Service) Debts(ctx context.Context) ([]Debt, error) {
	return s.repo.Debts(ctx)
}
