package exchange

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/exchange"
	"github.com/lochiel/hacienda/internal/http/httpx"
)

type Handler struct {
	svc *exchange.Service
}

func NewHandler(svc *exchange.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.quotes)
	r.Get("/suggested", h.suggested)
	r.Get("/{house}", h.quote)
}

type quoteResponse struct {
	House     string          `json:"house"`
	Name      string          `json:"name"`
	Buy       decimal.Decimal `json:"buy"`
	Sell      decimal.Decimal `json:"sell"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toQuoteResponse(q *exchange.Quote) quoteResponse {
	return quoteResponse{
		House:     q.House,
		Name:      q.Name,
		Buy:       q.Buy,
		Sell:      q.Sell,
		UpdatedAt: q.UpdatedAt,
	}
}

func (h *Handler) quotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.svc.Quotes(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	resp := make([]quoteResponse, 0, len(quotes))
	for i := range quotes {
		resp = append(resp, toQuoteResponse(&quotes[i]))
	}

	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Quote(r.Context(), chi.URLParam(r, "house"))
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

type suggestedResponse struct {
	Rate decimal.Decimal `json:"rate"`
}

func (h *Handler) suggested(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.Suggest(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, suggestedResponse{Rate: rate})
}
