package main

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/lochiel/hacienda/cmd/tui/internal/view"
	"github.com/lochiel/hacienda/internal/config"
	"github.com/lochiel/hacienda/internal/database"
	"github.com/lochiel/hacienda/internal/document"
	"github.com/lochiel/hacienda/internal/exchange"
	"github.com/lochiel/hacienda/internal/export"
	"github.com/lochiel/hacienda/internal/importer"
	"github.com/lochiel/hacienda/internal/importer/ocr"
	"github.com/lochiel/hacienda/internal/matching"
	matchingStore "github.com/lochiel/hacienda/internal/matching/store"
	"github.com/lochiel/hacienda/internal/sale"
	saleStore "github.com/lochiel/hacienda/internal/sale/store"
	"github.com/lochiel/hacienda/internal/storage/gcs"
)

type model struct {
	saleService     *sale.Service
	matchingService *matching.Service
	documentService *document.Service
	exportService   *export.Service
	exchangeService *exchange.Service
	threshold       int

	currentView View

	importView view.ImportModel
	salesView  view.SalesModel
	reviewView view.ReviewModel
	listView   view.ListModel
	alertView  view.AlertModel
	exportView view.ExportModel
	debtsView  view.DebtsModel
}

type View int

const (
	ViewMenu   View = 0
	ViewImport View = 1
	ViewSales  View = 2
	ViewReview View = 3
	ViewList   View = 4
	ViewAlerts View = 5
	ViewExport View = 6
	ViewDebts  View = 7
)

func initialModel(ctx context.Context) model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(ctx, cfg.ConnectionString(), cfg.DB.MaxConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var storage document.Storage

	if cfg.Storage.Bucket != "" {
		client, err := gcs.New(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsJSON)
		if err != nil {
			slog.Error("failed to open bucket", "error", err)
			os.Exit(1)
		}

		storage = client
	}

	var ocrSource importer.Source

	if cfg.OCR.URL != "" {
		ocrSource = ocr.New(cfg.OCR.URL, cfg.OCR.Timeout)
	}

	saleSvc := sale.NewService(saleStore.New(db), cfg.DefaultIVA())
	matchSvc := matching.NewService(matchingStore.New(db))
	docSvc := document.NewService(storage, importer.NewService(ocrSource), saleSvc, matchSvc, cfg.Storage.SignedURLTTL)
	exchSvc := exchange.NewService(exchange.NewClient(cfg.Exchange.BaseURL), nil, cfg.Exchange.House, cfg.Exchange.CacheTTL)

	var links export.Linker
	if storage != nil {
		links = docSvc
	}

	expSvc := export.NewService(saleSvc, links)
	threshold := cfg.Billing.ConfidenceThreshold

	return model{
		saleService:     saleSvc,
		matchingService: matchSvc,
		documentService: docSvc,
		exportService:   expSvc,
		exchangeService: exchSvc,
		threshold:       threshold,
		currentView:     ViewMenu,
		importView:      view.NewImportModel(docSvc, threshold),
		salesView:       view.NewSalesModel(saleSvc, exchSvc),
		reviewView:      view.NewReviewModel(saleSvc, matchSvc),
		listView:        view.NewListModel(saleSvc),
		alertView:       view.NewAlertModel(saleSvc),
		exportView:      view.NewExportModel(expSvc),
		debtsView:       view.NewDebtsModel(expSvc),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.documentService, m.threshold)

				return m, m.importView.Init()
			case "2":
				m.currentView = ViewSales
				m.salesView = view.NewSalesModel(m.saleService, m.exchangeService)

				return m, m.salesView.Init()
			case "3":
				m.currentView = ViewReview
				m.reviewView = view.NewReviewModel(m.saleService, m.matchingService)

				return m, m.reviewView.Init()
			case "4":
				m.currentView = ViewList
				m.listView = view.NewListModel(m.saleService)

				return m, m.listView.Init()
			case "5":
				m.currentView = ViewAlerts
				m.alertView = view.NewAlertModel(m.saleService)

				return m, m.alertView.Init()
			case "6":
				m.currentView = ViewExport
				m.exportView = view.NewExportModel(m.exportService)

				return m, m.exportView.Init()
			case "7":
				m.currentView = ViewDebts
				m.debtsView = view.NewDebtsModel(m.exportService)

				return m, m.debtsView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewSales:
		var newModel tea.Model
		newModel, cmd = m.salesView.Update(msg)
		m.salesView = newModel.(view.SalesModel)
	case ViewReview:
		var newModel tea.Model
		newModel, cmd = m.reviewView.Update(msg)
		m.reviewView = newModel.(view.ReviewModel)
	case ViewList:
		var newModel tea.Model
		newModel, cmd = m.listView.Update(msg)
		m.listView = newModel.(view.ListModel)
	case ViewAlerts:
		var newModel tea.Model
		newModel, cmd = m.alertView.Update(msg)
		m.alertView = newModel.(view.AlertModel)
	case ViewExport:
		var newModel tea.Model
		newModel, cmd = m.exportView.Update(msg)
		m.exportView = newModel.(view.ExportModel)
	case ViewDebts:
		var newModel tea.Model
		newModel, cmd = m.debtsView.Update(msg)
		m.debtsView = newModel.(view.DebtsModel)
	}

	return m, cmd
}

func (m model) current() view.View {
	switch m.currentView {
	case ViewImport:
		return m.importView
	case ViewSales:
		return m.salesView
	case ViewReview:
		return m.reviewView
	case ViewList:
		return m.listView
	case ViewAlerts:
		return m.alertView
	case ViewExport:
		return m.exportView
	case ViewDebts:
		return m.debtsView
	}

	return nil
}

func (m model) View() string {
	if m.currentView == ViewMenu {
		return lipgloss.NewStyle().Padding(2).Render(
			"Hacienda\n\n" +
				"1. Import DUT\n" +
				"2. Manage Sales\n" +
				"3. Review Holders\n" +
				"4. Sales Table\n" +
				"5. Review Alerts\n" +
				"6. Export Sales\n" +
				"7. Outstanding Debts\n\n" +
				"q. Quit",
		)
	}

	v := m.current()
	if v == nil {
		return "Unknown View"
	}

	help := lipgloss.NewStyle().Faint(true).Render(v.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Padding(1, 2, 0).Render(v.Title()),
		v.View(),
		lipgloss.NewStyle().PaddingLeft(2).Render(help),
	)
}

func main() {
	p := tea.NewProgram(initialModel(context.Background()))
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
