package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/lochiel/hacienda/internal/sale"
)

type listState int

const (
	listStateBrowse listState = iota
	listStateEdit
)

var (
	stateFilters = []*sale.State{
		nil,
		new(sale.StateOpen),
		new(sale.StatePickedUp),
		new(sale.StateWeighed),
		new(sale.StateFinalized),
		new(sale.StateCancelled),
	}
	establishmentFilters = []*sale.Establishment{
		nil,
		new(sale.EstablishmentLochiel),
		new(sale.EstablishmentCaboCurioso),
	}
)

type ListModel struct {
	CommonModel
	saleService *sale.Service

	state listState
	table table.Model
	sales []*sale.Sale
	form  *huh.Form

	stateFilterIdx int
	estFilterIdx   int
	dateFilterIdx  int

	filter  sale.ListFilter
	loading bool
	err     error
	status  string

	// Form bindings
	formHolder string
	formNotes  string
}

func NewListModel(saleSvc *sale.Service) ListModel {
	columns := []table.Column{
		{Title: "Issued", Width: 12},
		{Title: "DUT", Width: 16},
		{Title: "Est.", Width: 12},
		{Title: "Holder", Width: 28},
		{Title: "State", Width: 11},
		{Title: "Payable", Width: 16},
		{Title: "Balance", Width: 16},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ListModel{
		saleService: saleSvc,
		table:       t,
	}
}

func (m ListModel) Title() string { return "Sales Table" }
func (m ListModel) ShortHelp() string {
	if m.state == listStateEdit {
		return "Navigate form | Esc: cancel"
	}
	return "Esc: back | e: edit | s: state | f: establishment | d: date | r: refresh"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadSalesCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadListMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sales = msg.sales
		m.refreshTable()
		return m, nil

	case listSaveMsg:
		m.status = ""
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
		}
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()
		return m, m.loadSalesCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case listStateBrowse:
		return m.updateBrowse(msg)
	case listStateEdit:
		return m.updateEdit(msg)
	}

	return m, nil
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadSalesCmd()
		case "e":
			return m.enterEditMode()
		case "s":
			m.stateFilterIdx = (m.stateFilterIdx + 1) % len(stateFilters)
			m.applyFilter()
			return m, m.loadSalesCmd()
		case "f":
			m.estFilterIdx = (m.estFilterIdx + 1) % len(establishmentFilters)
			m.applyFilter()
			return m, m.loadSalesCmd()
		case "d":
			m.dateFilterIdx = (m.dateFilterIdx + 1) % 3
			m.applyFilter()
			return m, m.loadSalesCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ListModel) enterEditMode() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.sales) {
		return m, nil
	}

	sl := m.sales[idx]
	if sl.State.Terminal() {
		m.status = "Closed sales cannot be edited."
		return m, nil
	}

	m.formHolder = sl.DestinationHolder
	m.formNotes = sl.Notes

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("holder").
				Title("Destination holder").
				Value(&m.formHolder).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("holder cannot be empty")
					}
					return nil
				}),

			huh.NewText().
				Key("notes").
				Title("Notes").
				Value(&m.formNotes),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateEdit
	m.table.Blur()
	return m, m.form.Init()
}

func (m ListModel) updateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = listStateBrowse
			m.form = nil
			m.table.Focus()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.saveCmd()
}

func (m ListModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading sales...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	stateLabel := "All"
	if st := stateFilters[m.stateFilterIdx]; st != nil {
		stateLabel = st.Label()
	}

	estLabel := "All"
	if est := establishmentFilters[m.estFilterIdx]; est != nil {
		estLabel = string(*est)
	}

	dateLabels := []string{"All Time", "This Month", "Last Month"}

	header := fmt.Sprintf(
		"Filter: [s] State: %s | [f] Establishment: %s | [d] Date: %s",
		activeStyle(stateLabel),
		activeStyle(estLabel),
		activeStyle(dateLabels[m.dateFilterIdx]),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state == listStateEdit && m.form != nil {
		idx := m.table.Cursor()
		doc := ""
		if idx >= 0 && idx < len(m.sales) {
			doc = m.sales[idx].DocumentNumber
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(
				fmt.Sprintf("Edit Sale\n\nDUT: %s\n\n%s", doc, m.form.View()),
			)

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = faintStyle.Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *ListModel) applyFilter() {
	m.filter.State = stateFilters[m.stateFilterIdx]
	m.filter.Establishment = establishmentFilters[m.estFilterIdx]

	now := time.Now()
	switch m.dateFilterIdx {
	case 1:
		s, e := normalizeDateRange(timeframeToDateRange(TimeframeThisMonth, now))
		m.filter.StartDate = &s
		m.filter.EndDate = &e
	case 2:
		s, e := normalizeDateRange(timeframeToDateRange(TimeframeLastMonth, now))
		m.filter.StartDate = &s
		m.filter.EndDate = &e
	default:
		m.filter.StartDate = nil
		m.filter.EndDate = nil
	}
}

func (m *ListModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.sales))
	for _, sl := range m.sales {
		balance := "-"
		if sl.PayableEstablished() {
			balance = FormatMoney(sl.Balance())
		}

		rows = append(rows, table.Row{
			FormatDate(sl.IssueDate),
			sl.DocumentNumber,
			string(sl.Establishment),
			sl.DestinationHolder,
			sl.State.Label(),
			FormatNullMoney(sl.TotalPayable),
			balance,
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadListMsg struct {
	sales []*sale.Sale
	err   error
}

func (m ListModel) loadSalesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		sales, err := m.saleService.List(ctx, m.filter)
		return loadListMsg{sales: sales, err: err}
	}
}

type listSaveMsg struct {
	err error
}

func (m ListModel) saveCmd() tea.Cmd {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.sales) {
		return nil
	}

	id := m.sales[idx].ID
	holder := strings.TrimSpace(m.formHolder)
	notes := m.formNotes

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.saleService.Update(ctx, id, sale.UpdateParams{
			DestinationHolder: &holder,
			Notes:             &notes,
		})

		return listSaveMsg{err: err}
	}
}
