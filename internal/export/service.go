package export

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/sale"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=export

type Sales interface {
	List(ctx context.Context, filter sale.ListFilter) ([]*sale.Sale, error)
	ListDocuments(ctx context.Context, saleID uuid.UUID) ([]*sale.Document, error)
	Debts(ctx context.Context) ([]sale.Debt, error)
}

// Linker hands out download URLs for stored documents.
type Linker interface {
	Link(ctx context.Context, id uuid.UUID) (string, error)
}

// Item is one exported sale with the local paths of its downloaded files.
type Item struct {
	Sale  *sale.Sale
	Files []string
}

type Service struct {
	sales  Sales
	links  Linker
	client *http.Client
}

// NewService creates an export service. links may be nil, in which case
// documents are not downloaded.
func NewService(sales Sales, links Linker) *Service {
	return &Service{
		sales:  sales,
		links:  links,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Export lists the sales matching filter and downloads their documents into
// one folder per sale under outputDir.
func (s *Service) Export(ctx context.Context, filter sale.ListFilter, outputDir string) ([]Item, error) {
	sales, err := s.sales.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	items := make([]Item, 0, len(sales))

	for _, sl := range sales {
		item := Item{Sale: sl}

		if s.links != nil {
			files, err := s.downloadAll(ctx, sl, outputDir)
			if err != nil {
				return nil, fmt.Errorf("downloading documents for sale %s: %w", sl.DocumentNumber, err)
			}

			item.Files = files
		}

		items = append(items, item)
	}

	return items, nil
}

func (s *Service) downloadAll(ctx context.Context, sl *sale.Sale, root string) ([]string, error) {
	docs, err := s.sales.ListDocuments(ctx, sl.ID)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, nil
	}

	dir := filepath.Join(root, sanitize(sl.DocumentNumber))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sale directory: %w", err)
	}

	files := make([]string, 0, len(docs))

	for i, d := range docs {
		link, err := s.links.Link(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("linking document %s: %w", d.ID, err)
		}

		path, err := s.download(ctx, link, dir, d, i)
		if err != nil {
			return nil, err
		}

		files = append(files, path)
	}

	return files, nil
}

func (s *Service) download(ctx context.Context, link, dir string, d *sale.Document, seq int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for document %s", resp.StatusCode, d.ID)
	}

	path := filepath.Join(dir, fmt.Sprintf("%02d_%s", seq+1, fileName(resp, d)))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return path, nil
}

// fileName prefers the server's Content-Disposition, then the uploaded name,
// then the document type with an extension from the content type.
func fileName(resp *http.Response, d *sale.Document) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return sanitize(filepath.Base(params["filename"]))
		}
	}

	if d.FileName != "" {
		return sanitize(filepath.Base(d.FileName))
	}

	ext := ".pdf"
	if exts, _ := mime.ExtensionsByType(d.ContentType); len(exts) > 0 {
		ext = exts[0]
	}

	return strings.ToLower(string(d.Type)) + ext
}

func sanitize(s string) string {
	if s == "" {
		return "sin_numero"
	}

	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}

		return '_'
	}, s)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Summary renders one line per exported sale, ready to paste in an email.
func (s *Service) Summary(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		sl := item.Sale

		date := "sin fecha"
		if sl.IssueDate != nil {
			date = sl.IssueDate.Format("2006-01-02")
		}

		payable := "sin precio"
		if sl.TotalPayable.Valid {
			payable = money(sl.TotalPayable.Decimal)
		}

		files := "sin documentos"
		if len(item.Files) > 0 {
			names := make([]string, 0, len(item.Files))
			for _, f := range item.Files {
				names = append(names, filepath.Base(f))
			}

			files = strings.Join(names, ", ")
		}

		fmt.Fprintf(&sb, "* %s | %s | %s | %s | pagado %s | %s | %s\n",
			date, sl.DocumentNumber, sl.DestinationHolder, payable, money(sl.TotalPaid), sl.State.Label(), files)
	}

	return sb.String()
}

// Debts returns the outstanding balance per holder and a plain text report.
func (s *Service) Debts(ctx context.Context) ([]sale.Debt, string, error) {
	debts, err := s.sales.Debts(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("listing debts: %w", err)
	}

	var (
		sb    strings.Builder
		total = decimal.Zero
	)

	for _, d := range debts {
		fmt.Fprintf(&sb, "* %s | %d ventas | a cobrar %s | cobrado %s | saldo %s\n",
			d.Holder, d.Sales, money(d.Payable), money(d.Paid), money(d.Balance))

		total = total.Add(d.Balance)
	}

	fmt.Fprintf(&sb, "Total adeudado: %s\n", money(total))

	return debts, sb.String(), nil
}
