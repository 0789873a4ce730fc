package matching

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/matching"
)

type Handler struct {
	svc *matching.Service
}

func NewHandler(svc *matching.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.learn)
	r.Get("/resolve", h.resolve)
	r.Delete("/{id}", h.forget)
}

type mappingResponse struct {
	ID        uuid.UUID `json:"id"`
	Pattern   string    `json:"pattern"`
	Client    string    `json:"client"`
	CreatedAt time.Time `json:"created_at"`
}

func toMappingResponse(m *matching.Mapping) mappingResponse {
	return mappingResponse{ID: m.ID, Pattern: m.Pattern, Client: m.Client, CreatedAt: m.CreatedAt}
}

type resolveResponse struct {
	Holder string `json:"holder"`
	Client string `json:"client"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	holder := r.URL.Query().Get("holder")
	if holder == "" {
		httpx.BadRequest(w, "holder query parameter is required")
		return
	}

	client, err := h.svc.Resolve(r.Context(), holder)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, resolveResponse{Holder: holder, Client: client})
}

type learnRequest struct {
	Pattern string `json:"pattern" validate:"required"`
	Client  string `json:"client" validate:"required"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if !httpx.Decode(w, r, &req) {
		return
	}

	m, err := h.svc.Learn(r.Context(), req.Pattern, req.Client)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toMappingResponse(m))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.svc.List(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	resp := make([]mappingResponse, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, toMappingResponse(m))
	}

	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) forget(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.Forget(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
