package sale

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/sale"
)

// AlertRoutes serves the cross-sale alert inbox.
func (h *Handler) AlertRoutes(r chi.Router) {
	r.Get("/", h.listAlerts)
	r.Post("/reconcile", h.reconcileActive)
	r.Post("/{alertID}/resolve", h.resolveAlert)
}

func alertFilter(r *http.Request) sale.AlertFilter {
	q := r.URL.Query()

	filter := sale.AlertFilter{Unresolved: q.Get("unresolved") != "false"}

	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = n
	}

	return filter
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.ListAlerts(r.Context(), alertFilter(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toAlertResponses(alerts))
}

func (h *Handler) saleAlerts(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	filter := alertFilter(r)
	filter.SaleID = &id

	alerts, err := h.svc.ListAlerts(r.Context(), filter)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toAlertResponses(alerts))
}

type reconcileResponse struct {
	Raised int `json:"raised"`
}

func (h *Handler) reconcileActive(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ReconcileActive(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, reconcileResponse{Raised: n})
}

func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "alertID")
	if !ok {
		return
	}

	if err := h.svc.ResolveAlert(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
