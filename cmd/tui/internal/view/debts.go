package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lochiel/hacienda/internal/export"
)

// DebtsModel shows what each holder still owes.
type DebtsModel struct {
	CommonModel
	exportService *export.Service

	table   table.Model
	report  string
	showRaw bool
	loading bool
	err     error
}

func NewDebtsModel(svc *export.Service) DebtsModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Holder", Width: 32},
			{Title: "Sales", Width: 6},
			{Title: "Payable", Width: 16},
			{Title: "Paid", Width: 16},
			{Title: "Balance", Width: 16},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	return DebtsModel{exportService: svc, table: t, loading: true}
}

func (m DebtsModel) Title() string { return "Outstanding Debts" }
func (m DebtsModel) ShortHelp() string {
	return "Esc: back | t: toggle text report | r: refresh"
}

func (m DebtsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m DebtsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case debtsMsg:
		m.loading = false
		m.err = msg.err
		m.report = msg.report
		m.table.SetRows(msg.rows)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "t":
			m.showRaw = !m.showRaw
			return m, nil
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m DebtsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading debts...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.showRaw {
		return lipgloss.NewStyle().Padding(1).Render(m.report)
	}

	return lipgloss.NewStyle().Padding(1).Render(m.table.View())
}

type debtsMsg struct {
	rows   []table.Row
	report string
	err    error
}

func (m DebtsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		debts, report, err := m.exportService.Debts(ctx)
		if err != nil {
			return debtsMsg{err: err}
		}

		rows := make([]table.Row, 0, len(debts))
		for _, d := range debts {
			rows = append(rows, table.Row{
				d.Holder,
				fmt.Sprint(d.Sales),
				FormatMoney(d.Payable),
				FormatMoney(d.Paid),
				FormatMoney(d.Balance),
			})
		}

		return debtsMsg{rows: rows, report: report}
	}
}
