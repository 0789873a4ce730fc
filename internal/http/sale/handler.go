package sale

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/sale"
)

// RateSuggester supplies a default exchange rate for dollar prices.
type RateSuggester interface {
	Suggest(ctx context.Context) (decimal.Decimal, error)
}

type Handler struct {
	svc   *sale.Service
	rates RateSuggester
}

// NewHandler builds the sales handler. rates may be nil.
func NewHandler(svc *sale.Service, rates RateSuggester) *Handler {
	return &Handler{svc: svc, rates: rates}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/stats", h.stats)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/pickup", h.pickup)
	r.Post("/{id}/weighing", h.weighing)
	r.Post("/{id}/price", h.price)
	r.Post("/{id}/invoice", h.invoice)
	r.Post("/{id}/state", h.transition)
	r.Post("/{id}/reconcile", h.reconcile)
	r.Get("/{id}/alerts", h.saleAlerts)

	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/payments", h.addPayment)
	r.Patch("/{id}/payments/{paymentID}", h.updatePayment)
	r.Delete("/{id}/payments/{paymentID}", h.deletePayment)
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}

	return decimal.NewNullDecimal(*d)
}

func parseCategory(s string) (dut.Category, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}

	c, ok := dut.ParseCategory(s)
	if !ok {
		return "", &sale.ValidationError{Field: "category", Reason: "unknown category"}
	}

	return c, nil
}

type createRequest struct {
	DocumentNumber    string           `json:"document_number" validate:"required"`
	Establishment     string           `json:"establishment" validate:"required,oneof=LOCHIEL CABO_CURIOSO"`
	DestinationHolder string           `json:"destination_holder"`
	DestinationRenspa string           `json:"destination_renspa"`
	Category          string           `json:"category"`
	Reason            string           `json:"reason"`
	QuantityDeclared  *int             `json:"quantity_declared" validate:"omitempty,gt=0"`
	IssueDate         *httpx.Date      `json:"issue_date"`
	LoadDate          *httpx.Date      `json:"load_date"`
	ExpirationDate    *httpx.Date      `json:"expiration_date"`
	DocumentFee       *decimal.Decimal `json:"document_fee" validate:"omitempty,gte=0"`
	GuideFee          *decimal.Decimal `json:"guide_fee" validate:"omitempty,gte=0"`
	Withholding       *decimal.Decimal `json:"withholding" validate:"omitempty,gte=0"`
	Notes             string           `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	category, err := parseCategory(req.Category)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	s, err := h.svc.Create(r.Context(), sale.CreateParams{
		DocumentNumber:    req.DocumentNumber,
		Establishment:     sale.Establishment(req.Establishment),
		DestinationHolder: req.DestinationHolder,
		DestinationRenspa: req.DestinationRenspa,
		Category:          category,
		Reason:            req.Reason,
		QuantityDeclared:  req.QuantityDeclared,
		IssueDate:         req.IssueDate.Ptr(),
		LoadDate:          req.LoadDate.Ptr(),
		ExpirationDate:    req.ExpirationDate.Ptr(),
		DocumentFee:       nullable(req.DocumentFee),
		GuideFee:          nullable(req.GuideFee),
		Withholding:       nullable(req.Withholding),
		Notes:             req.Notes,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toResponse(s))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := sale.ListFilter{
		Holder:    q.Get("holder"),
		StartDate: httpx.QueryDate(q.Get("start_date")),
		EndDate:   httpx.QueryDate(q.Get("end_date")),
	}

	if s := q.Get("state"); s != "" {
		st, err := sale.ParseState(s)
		if err != nil {
			httpx.BadRequest(w, err.Error())
			return
		}

		filter.State = new(st)
	}

	if s := q.Get("establishment"); s != "" {
		filter.Establishment = new(sale.Establishment(strings.ToUpper(s)))
	}

	sales, err := h.svc.List(r.Context(), filter)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponseList(sales))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	s, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponse(s))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateRequest struct {
	DestinationHolder *string          `json:"destination_holder,omitempty"`
	DestinationRenspa *string          `json:"destination_renspa,omitempty"`
	Category          *string          `json:"category,omitempty"`
	Reason            *string          `json:"reason,omitempty"`
	QuantityDeclared  *int             `json:"quantity_declared,omitempty" validate:"omitempty,gt=0"`
	IssueDate         *httpx.Date      `json:"issue_date,omitempty"`
	LoadDate          *httpx.Date      `json:"load_date,omitempty"`
	ExpirationDate    *httpx.Date      `json:"expiration_date,omitempty"`
	DocumentFee       *decimal.Decimal `json:"document_fee,omitempty" validate:"omitempty,gte=0"`
	GuideFee          *decimal.Decimal `json:"guide_fee,omitempty" validate:"omitempty,gte=0"`
	Withholding       *decimal.Decimal `json:"withholding,omitempty" validate:"omitempty,gte=0"`
	IVAPercent        *decimal.Decimal `json:"iva_percent,omitempty" validate:"omitempty,gte=0"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate,omitempty" validate:"omitempty,gt=0"`
	PaymentMethod     *string          `json:"payment_method,omitempty"`
	CreditDestination *string          `json:"credit_destination,omitempty"`
	PaymentDate       *httpx.Date      `json:"payment_date,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	var req updateRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	params := sale.UpdateParams{
		DestinationHolder: req.DestinationHolder,
		DestinationRenspa: req.DestinationRenspa,
		Reason:            req.Reason,
		QuantityDeclared:  req.QuantityDeclared,
		IssueDate:         req.IssueDate.Ptr(),
		LoadDate:          req.LoadDate.Ptr(),
		ExpirationDate:    req.ExpirationDate.Ptr(),
		DocumentFee:       nullable(req.DocumentFee),
		GuideFee:          nullable(req.GuideFee),
		Withholding:       nullable(req.Withholding),
		IVAPercent:        nullable(req.IVAPercent),
		ExchangeRate:      nullable(req.ExchangeRate),
		CreditDestination: req.CreditDestination,
		PaymentDate:       req.PaymentDate.Ptr(),
		Notes:             req.Notes,
	}

	if req.Category != nil {
		category, err := parseCategory(*req.Category)
		if err != nil {
			httpx.Error(w, err)
			return
		}

		params.Category = &category
	}

	if req.PaymentMethod != nil {
		params.PaymentMethod = new(sale.PaymentMethod(*req.PaymentMethod))
	}

	s, err := h.svc.Update(r.Context(), id, params)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponse(s))
}

type pickupRequest struct {
	Troop          string     `json:"troop"`
	RemitoNumber   string     `json:"remito_number"`
	PickupDate     httpx.Date `json:"pickup_date" validate:"required"`
	QuantityLoaded int        `json:"quantity_loaded" validate:"required,gt=0"`
}

func (h *Handler) pickup(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	var req pickupRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	s, err := h.svc.RecordPickup(r.Context(), id, sale.PickupParams{
		Troop:          req.Troop,
		RemitoNumber:   req.RemitoNumber,
		PickupDate:     req.PickupDate.Time,
		QuantityLoaded: req.QuantityLoaded,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponse(s))
}

type weighingRequest struct {
	QuantityWeighed int             `json:"quantity_weighed" validate:"required,gt=0"`
	TotalWeightKg   decimal.Decimal `json:"total_weight_kg" validate:"required,gt=0"`
	WeighingDate    httpx.Date      `json:"weighing_date" validate:"required"`
}

func (h *Handler) weighing(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	var req weighingRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	s, err := h.svc.RecordWeighing(r.Context(), id, sale.WeighingParams{
		QuantityWeighed: req.QuantityWeighed,
		TotalWeightKg:   req.TotalWeightKg,
		WeighingDate:    req.WeighingDate.Time,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponse(s))
}

type priceRequest struct {
	PricePerKg    decimal.Decimal  `json:"price_per_kg" validate:"required,gt=0"`
	Currency      string           `json:"currency" validate:"required,oneof=ARS USD"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	InvoiceExempt bool             `json:"invoice_exempt"`
	IVAPercent    *decimal.Decimal `json:"iva_percent" validate:"omitempty,gte=0"`
	Withholding   *decimal.Decimal `json:"withholding" validate:"omitempty,gte=0"`
}

// price assigns the sale price. A dollar price without an explicit rate
// takes the suggested market rate.
func (h *Handler) price(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	var req priceRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	in := sale.PriceInput{
		PricePerKg:    req.PricePerKg,
		Currency:      sale.Currency(req.Currency),
		ExchangeRate:  nullable(req.ExchangeRate),
		InvoiceExempt: req.InvoiceExempt,
		IVAPercent:    nullable(req.IVAPercent),
		Withholding:   nullable(req.Withholding),
	}

	if in.Currency == sale.CurrencyUSD && !in.ExchangeRate.Valid && h.rates != nil {
		rate, err := h.rates.Suggest(r.Context())
		if err != nil {
			httpx.Error(w, err)
			return
		}

		in.ExchangeRate = decimal.NewNullDecimal(rate)
	}

	s, err := h.svc.AssignPrice(r.Context(), id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponse(s))
}

type invoiceRequest struct {
	InvoiceNumber string `json:"invoice_number"`
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	var req invoiceRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	s, err := h.svc.MarkInvoiced(r.Context(), id, req.InvoiceNumber)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponse(s))
}

type stateRequest struct {
	State string `json:"state" validate:"required"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	var req stateRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	to, err := sale.ParseState(req.State)
	if err != nil {
		httpx.Error(w, &sale.ValidationError{Field: "state", Reason: err.Error()})
		return
	}

	s, err := h.svc.Transition(r.Context(), id, to)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toResponse(s))
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	raised, err := h.svc.Reconcile(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toAlertResponses(raised))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, statsResponse{
		ActiveSales:      st.ActiveSales,
		PayableThisMonth: st.PayableThisMonth,
		Receivables:      st.Receivables,
		OpenAlerts:       toAlertResponses(st.OpenAlerts),
	})
}
