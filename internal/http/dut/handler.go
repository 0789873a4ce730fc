package dut

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/lochiel/hacienda/internal/document"
	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/importer"
	"github.com/lochiel/hacienda/internal/sale"
)

type Handler struct {
	importSvc *importer.Service
	docSvc    *document.Service
	threshold int
	maxUpload int64
}

func NewHandler(importSvc *importer.Service, docSvc *document.Service, threshold int, maxUpload int64) *Handler {
	return &Handler{
		importSvc: importSvc,
		docSvc:    docSvc,
		threshold: threshold,
		maxUpload: maxUpload,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/extract", h.extract)
	r.Post("/import", h.importDUT)
}

type extractResponse struct {
	*dut.Result
	LowConfidence bool `json:"low_confidence"`
}

// extract reads a DUT without creating anything, so the operator can review
// the fields first.
func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	_, body, ok := httpx.File(w, r, h.maxUpload)
	if !ok {
		return
	}

	mtype := mimetype.Detect(body)

	kind, ok := importer.KindOf(mtype.String())
	if !ok {
		httpx.Error(w, &sale.ValidationError{Field: "file", Reason: "unsupported file type " + mtype.String()})
		return
	}

	res, err := h.importSvc.Extract(r.Context(), kind, bytes.NewReader(body))
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, extractResponse{Result: res, LowConfidence: res.LowConfidence(h.threshold)})
}

type importResponse struct {
	SaleID        string      `json:"sale_id"`
	DocumentID    string      `json:"document_id,omitempty"`
	Extraction    *dut.Result `json:"extraction"`
	LowConfidence bool        `json:"low_confidence"`
}

// importDUT opens a sale from the uploaded DUT.
func (h *Handler) importDUT(w http.ResponseWriter, r *http.Request) {
	name, body, ok := httpx.File(w, r, h.maxUpload)
	if !ok {
		return
	}

	est := sale.Establishment(strings.ToUpper(r.FormValue("establishment")))
	if est == "" {
		est = sale.EstablishmentLochiel
	}

	out, err := h.docSvc.ImportDUT(r.Context(), est, name, body)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	resp := importResponse{
		SaleID:        out.Sale.ID.String(),
		Extraction:    out.Extraction,
		LowConfidence: out.Extraction.LowConfidence(h.threshold),
	}

	if out.Document != nil {
		resp.DocumentID = out.Document.ID.String()
	}

	httpx.JSON(w, http.StatusCreated, resp)
}
