package document

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lochiel/hacienda/internal/document"
	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/sale"
)

// Handler serves the documents of one sale. It is mounted under a route
// carrying the sale id as {id}.
type Handler struct {
	docs      *document.Service
	sales     *sale.Service
	maxUpload int64
}

func NewHandler(docs *document.Service, sales *sale.Service, maxUpload int64) *Handler {
	return &Handler{docs: docs, sales: sales, maxUpload: maxUpload}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.upload)
	r.Get("/{docID}/url", h.link)
	r.Delete("/{docID}", h.delete)
}

type documentResponse struct {
	ID          uuid.UUID         `json:"id"`
	SaleID      uuid.UUID         `json:"sale_id"`
	Type        sale.DocumentType `json:"type"`
	FileName    string            `json:"file_name"`
	URL         string            `json:"url"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Processed   bool              `json:"processed"`
	Extracted   json.RawMessage   `json:"extracted,omitempty"`
	UploadedAt  time.Time         `json:"uploaded_at"`
}

func toResponse(d *sale.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		SaleID:      d.SaleID,
		Type:        d.Type,
		FileName:    d.FileName,
		URL:         d.URL,
		ContentType: d.ContentType,
		Size:        d.Size,
		Processed:   d.Processed,
		Extracted:   d.Extracted,
		UploadedAt:  d.UploadedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	saleID, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	docs, err := h.sales.ListDocuments(r.Context(), saleID)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	resp := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, toResponse(d))
	}

	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	saleID, ok := httpx.ID(w, r, "id")
	if !ok {
		return
	}

	name, body, ok := httpx.File(w, r, h.maxUpload)
	if !ok {
		return
	}

	doc, err := h.docs.Upload(r.Context(), document.Upload{
		SaleID:   saleID,
		Type:     sale.DocumentType(r.FormValue("type")),
		FileName: name,
		Body:     body,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toResponse(doc))
}

type linkResponse struct {
	URL string `json:"url"`
}

// owned reads {docID} and answers 404 unless the document belongs to the
// sale in {id}.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	saleID, ok := httpx.ID(w, r, "id")
	if !ok {
		return uuid.Nil, false
	}

	docID, ok := httpx.ID(w, r, "docID")
	if !ok {
		return uuid.Nil, false
	}

	doc, err := h.sales.GetDocument(r.Context(), docID)
	if err != nil {
		httpx.Error(w, err)
		return uuid.Nil, false
	}

	if doc.SaleID != saleID {
		httpx.Error(w, sale.ErrNotFound)
		return uuid.Nil, false
	}

	return docID, true
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.owned(w, r)
	if !ok {
		return
	}

	url, err := h.docs.Link(r.Context(), docID)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, linkResponse{URL: url})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), docID); err != nil {
		httpx.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
