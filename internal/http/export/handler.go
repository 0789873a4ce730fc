package export

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/export"
	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/sale"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.metadata)
	r.Post("/download", h.download)
	r.Get("/debts", h.debts)
}

type exportRequest struct {
	State         string      `json:"state,omitempty"`
	Establishment string      `json:"establishment,omitempty"`
	Holder        string      `json:"holder,omitempty"`
	StartDate     *httpx.Date `json:"start_date,omitempty"`
	EndDate       *httpx.Date `json:"end_date,omitempty"`
}

func (req exportRequest) filter() (sale.ListFilter, error) {
	filter := sale.ListFilter{
		Holder:    req.Holder,
		StartDate: req.StartDate.Ptr(),
		EndDate:   req.EndDate.Ptr(),
	}

	if req.State != "" {
		st, err := sale.ParseState(req.State)
		if err != nil {
			return filter, &sale.ValidationError{Field: "state", Reason: err.Error()}
		}

		filter.State = &st
	}

	if req.Establishment != "" {
		filter.Establishment = new(sale.Establishment(strings.ToUpper(req.Establishment)))
	}

	return filter, nil
}

type saleResponse struct {
	ID                uuid.UUID           `json:"id"`
	DocumentNumber    string              `json:"document_number"`
	DestinationHolder string              `json:"destination_holder"`
	IssueDate         *time.Time          `json:"issue_date"`
	State             sale.State          `json:"state"`
	TotalPayable      decimal.NullDecimal `json:"total_payable"`
	TotalPaid         decimal.Decimal     `json:"total_paid"`
	Files             []string            `json:"files"`
}

type exportMetadataResponse struct {
	Sales     []saleResponse `json:"sales"`
	EmailBody string         `json:"email_body"`
}

// run decodes the filter and exports into a fresh temporary directory. The
// caller removes the directory.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) ([]export.Item, string, bool) {
	var req exportRequest
	if !httpx.Decode(w, r, &req) {
		return nil, "", false
	}

	filter, err := req.filter()
	if err != nil {
		httpx.Error(w, err)
		return nil, "", false
	}

	tmpDir, err := os.MkdirTemp("", "hacienda-export-*")
	if err != nil {
		httpx.Error(w, err)
		return nil, "", false
	}

	items, err := h.svc.Export(r.Context(), filter, tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		httpx.Error(w, err)

		return nil, "", false
	}

	return items, tmpDir, true
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	items, tmpDir, ok := h.run(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	resp := exportMetadataResponse{
		Sales:     make([]saleResponse, 0, len(items)),
		EmailBody: h.svc.Summary(items),
	}

	for _, item := range items {
		files := make([]string, 0, len(item.Files))
		for _, f := range item.Files {
			files = append(files, filepath.Base(f))
		}

		resp.Sales = append(resp.Sales, saleResponse{
			ID:                item.Sale.ID,
			DocumentNumber:    item.Sale.DocumentNumber,
			DestinationHolder: item.Sale.DestinationHolder,
			IssueDate:         item.Sale.IssueDate,
			State:             item.Sale.State,
			TotalPayable:      item.Sale.TotalPayable,
			TotalPaid:         item.Sale.TotalPaid,
			Files:             files,
		})
	}

	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	items, tmpDir, ok := h.run(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "resumen.txt"), []byte(h.svc.Summary(items)), 0o644); err != nil {
		httpx.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"ventas_%s.zip\"", time.Now().Format("20060102")))

	zw := zip.NewWriter(w)
	defer zw.Close()

	err := filepath.Walk(tmpDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		rel, _ := filepath.Rel(tmpDir, path)

		zf, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(zf, f)

		return err
	})
	if err != nil {
		slog.Error("failed to create zip", "error", err)
	}
}

type debtResponse struct {
	Holder  string          `json:"holder"`
	Sales   int             `json:"sales"`
	Payable decimal.Decimal `json:"payable"`
	Paid    decimal.Decimal `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
}

type debtsResponse struct {
	Debts []debtResponse `json:"debts"`
	Body  string         `json:"body"`
}

func (h *Handler) debts(w http.ResponseWriter, r *http.Request) {
	debts, body, err := h.svc.Debts(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	resp := debtsResponse{Debts: make([]debtResponse, 0, len(debts)), Body: body}
	for _, d := range debts {
		resp.Debts = append(resp.Debts, debtResponse(d))
	}

	httpx.JSON(w, http.StatusOK, resp)
}
