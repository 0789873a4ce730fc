package sale

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/sale"
)

type paymentRequest struct {
	Amount            decimal.Decimal  `json:"amount" validate:"required,gt=0"`
	Currency          string           `json:"currency" validate:"required,oneof=ARS USD"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	Date              httpx.Date       `json:"date" validate:"required"`
	Method            string           `json:"method" validate:"required"`
	Reference         string           `json:"reference"`
	CreditDestination string           `json:"credit_destination"`
	ProofURL          string           `json:"proof_url" validate:"omitempty,url"`
}

func (req paymentRequest) params() sale.PaymentParams {
	return sale.PaymentParams{
		Amount:            req.Amount,
		Currency:          sale.Currency(req.Currency),
		ExchangeRate:      nullable(req.ExchangeRate),
		Date:              req.Date.Time,
		Method:            sale.PaymentMethod(req.Method),
		Reference:         req.Reference,
		CreditDestination: req.CreditDestination,
		ProofURL:          req.ProofURL,
	}
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	payments, err := h.svc.ListPayments(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}

	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	var req paymentRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	p, err := h.svc.AddPayment(r.Context(), id, req.params())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	paymentID, ok := httpx.ID(w, r, "paymentID")
	if !ok {
		return
	}

	var req paymentRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	p, err := h.svc.UpdatePayment(r.Context(), id, paymentID, req.params())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	paymentID, ok := httpx.ID(w, r, "paymentID")
	if !ok {
		return
	}

	if err := h.svc.DeletePayment(r.Context(), id, paymentID); err != nil {
		httpx.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
