package view

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lochiel/hacienda/internal/sale"
)

// AlertModel walks the unresolved alerts one at a time.
type AlertModel struct {
	CommonModel
	saleService *sale.Service

	queue   []*sale.Alert
	current *sale.Alert

	loading    bool
	status     string
	totalCount int
}

func NewAlertModel(saleSvc *sale.Service) AlertModel {
	return AlertModel{
		saleService: saleSvc,
		loading:     true,
	}
}

func (m AlertModel) Title() string { return "Review Alerts" }
func (m AlertModel) ShortHelp() string {
	return "Esc: back | Enter: resolve | s: skip | r: check active sales"
}

func (m AlertModel) Init() tea.Cmd {
	return m.loadAlertsCmd()
}

func (m AlertModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "enter":
			if m.current != nil {
				return m, m.resolveCmd(m.current)
			}
		case "s":
			if m.current != nil {
				m.next()
			}
		case "r":
			m.loading = true
			return m, m.reconcileCmd()
		}

	case loadAlertsMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.queue = msg.alerts
		m.totalCount = len(m.queue)
		m.next()

	case alertResolvedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error resolving: %v", msg.err)
			break
		}
		m.next()

	case reconciledMsg:
		if msg.err != nil {
			m.loading = false
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("%d new alerts raised.", msg.raised)
		return m, m.loadAlertsCmd()
	}

	return m, nil
}

func (m AlertModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading alerts...")
	}

	if m.current == nil {
		if m.totalCount == 0 {
			return lipgloss.NewStyle().Padding(2).Render(successStyle.Render("No open alerts.") + "\n\n" + faintStyle.Render(m.status))
		}

		return lipgloss.NewStyle().Padding(2).Render(m.status + "\n\n(r to check again, Esc to back)")
	}

	a := m.current

	severity := string(a.Severity)
	switch a.Severity {
	case sale.SeverityHigh, sale.SeverityCritical:
		severity = errorStyle.Render(severity)
	case sale.SeverityMedium:
		severity = warnStyle.Render(severity)
	}

	info := fmt.Sprintf(
		"DUT: %s\nHolder: %s\nType: %s\nSeverity: %s\nRaised: %s\n\n%s",
		a.DocumentNumber,
		a.DestinationHolder,
		a.Type,
		severity,
		a.CreatedAt.Format("2006-01-02 15:04"),
		a.Message,
	)

	header := fmt.Sprintf("Open Alert (%d remaining)", len(m.queue)+1)
	if m.status != "" {
		header += "\n" + faintStyle.Render(m.status)
	}

	return lipgloss.NewStyle().Padding(2).Render(
		header + "\n\n" + boxStyle.Render(info) + "\n\n(Enter to resolve, 's' to skip, Esc to back)",
	)
}

func (m *AlertModel) next() {
	if len(m.queue) == 0 {
		m.current = nil
		m.status = "All done!"

		return
	}

	m.current = m.queue[0]
	m.queue = m.queue[1:]
}

type loadAlertsMsg struct {
	alerts []*sale.Alert
	err    error
}

func (m AlertModel) loadAlertsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		alerts, err := m.saleService.ListAlerts(ctx, sale.AlertFilter{Unresolved: true})

		return loadAlertsMsg{alerts: alerts, err: err}
	}
}

type alertResolvedMsg struct {
	err error
}

func (m AlertModel) resolveCmd(a *sale.Alert) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		return alertResolvedMsg{err: m.saleService.ResolveAlert(ctx, a.ID)}
	}
}

type reconciledMsg struct {
	raised int
	err    error
}

func (m AlertModel) reconcileCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		raised, err := m.saleService.ReconcileActive(ctx)

		return reconciledMsg{raised: raised, err: err}
	}
}
