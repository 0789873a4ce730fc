package export_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lochiel/hacienda/internal/export"
	"github.com/lochiel/hacienda/internal/sale"
)

func TestService_Export(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dut":
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="DUT 017885409.pdf"`)
			_, _ = w.Write([]byte("fake dut"))
		case "/romaneo":
			_, _ = w.Write([]byte("fake romaneo"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	issued := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	priced := &sale.Sale{
		ID:                uuid.New(),
		DocumentNumber:    "017885409-7",
		DestinationHolder: "Frigorífico Patagonia",
		IssueDate:         &issued,
		TotalPayable:      decimal.NewNullDecimal(decimal.RequireFromString("1000000")),
		TotalPaid:         decimal.RequireFromString("250000.5"),
		State:             sale.StateWeighed,
	}
	bare := &sale.Sale{ID: uuid.New(), DocumentNumber: "2024-002", DestinationHolder: "Frigorífico del Sur", State: sale.StateOpen}

	dutDoc := &sale.Document{ID: uuid.New(), Type: sale.DocumentDUT, FileName: "dut.pdf"}
	romaneoDoc := &sale.Document{ID: uuid.New(), Type: sale.DocumentRomaneo, FileName: "romaneo final.pdf"}

	ctrl := gomock.NewController(t)
	sales := export.NewMockSales(ctrl)
	links := export.NewMockLinker(ctrl)

	filter := sale.ListFilter{Holder: "Frigorífico"}

	sales.EXPECT().List(gomock.Any(), filter).Return([]*sale.Sale{priced, bare}, nil)
	sales.EXPECT().ListDocuments(gomock.Any(), priced.ID).Return([]*sale.Document{dutDoc, romaneoDoc}, nil)
	sales.EXPECT().ListDocuments(gomock.Any(), bare.ID).Return(nil, nil)
	links.EXPECT().Link(gomock.Any(), dutDoc.ID).Return(ts.URL+"/dut", nil)
	links.EXPECT().Link(gomock.Any(), romaneoDoc.ID).Return(ts.URL+"/romaneo", nil)

	svc := export.NewService(sales, links)
	dir := t.TempDir()

	items, err := svc.Export(t.Context(), filter, dir)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Len(t, items[0].Files, 2)
	assert.Equal(t, filepath.Join(dir, "017885409-7", "01_DUT_017885409.pdf"), items[0].Files[0])
	assert.Equal(t, filepath.Join(dir, "017885409-7", "02_romaneo_final.pdf"), items[0].Files[1])

	content, err := os.ReadFile(items[0].Files[1])
	require.NoError(t, err)
	assert.Equal(t, "fake romaneo", string(content))

	assert.Empty(t, items[1].Files)

	body := svc.Summary(items)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		"* 2024-03-14 | 017885409-7 | Frigorífico Patagonia | $1000000.00 | pagado $250000.50 | Romaneo | 01_DUT_017885409.pdf, 02_romaneo_final.pdf",
		lines[0])
	assert.Equal(t, "* sin fecha | 2024-002 | Frigorífico del Sur | sin precio | pagado $0.00 | Abierto | sin documentos", lines[1])
}

func TestService_ExportDownloadFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	ctrl := gomock.NewController(t)
	sales := export.NewMockSales(ctrl)
	links := export.NewMockLinker(ctrl)

	sl := &sale.Sale{ID: uuid.New(), DocumentNumber: "X-1"}
	doc := &sale.Document{ID: uuid.New(), Type: sale.DocumentInvoice}

	sales.EXPECT().List(gomock.Any(), gomock.Any()).Return([]*sale.Sale{sl}, nil)
	sales.EXPECT().ListDocuments(gomock.Any(), sl.ID).Return([]*sale.Document{doc}, nil)
	links.EXPECT().Link(gomock.Any(), doc.ID).Return(ts.URL+"/expired", nil)

	_, err := export.NewService(sales, links).Export(t.Context(), sale.ListFilter{}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code 403")
}

func TestService_ExportWithoutStorage(t *testing.T) {
	ctrl := gomock.NewController(t)
	sales := export.NewMockSales(ctrl)

	sales.EXPECT().List(gomock.Any(), gomock.Any()).Return([]*sale.Sale{{ID: uuid.New(), DocumentNumber: "A"}}, nil)

	items, err := export.NewService(sales, nil).Export(t.Context(), sale.ListFilter{}, t.TempDir())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Files)
}

func TestService_Debts(t *testing.T) {
	ctrl := gomock.NewController(t)
	sales := export.NewMockSales(ctrl)

	sales.EXPECT().Debts(gomock.Any()).Return([]sale.Debt{
		{
			Holder: "Frigorífico Patagonia", Sales: 2,
			Payable: decimal.NewFromInt(3000), Paid: decimal.NewFromInt(1000), Balance: decimal.NewFromInt(2000),
		},
		{
			Holder: "Frigorífico del Sur", Sales: 1,
			Payable: decimal.NewFromInt(500), Paid: decimal.Zero, Balance: decimal.NewFromInt(500),
		},
	}, nil)

	debts, body, err := export.NewService(sales, nil).Debts(t.Context())
	require.NoError(t, err)
	assert.Len(t, debts, 2)
	assert.Equal(t,
		"* Frigorífico Patagonia | 2 ventas | a cobrar $3000.00 | cobrado $1000.00 | saldo $2000.00\n"+
			"* Frigorífico del Sur | 1 ventas | a cobrar $500.00 | cobrado $0.00 | saldo $500.00\n"+
			"Total adeudado: $2500.00\n",
		body)
}
