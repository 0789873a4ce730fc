package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lochiel/hacienda/internal/matching"
	"github.com/lochiel/hacienda/internal/sale"
)

// ReviewModel walks the open sales of a period so their destination holder
// can be confirmed. A corrected name is saved on the sale and learned as a
// mapping for future DUTs.
type ReviewModel struct {
	CommonModel
	saleService     *sale.Service
	matchingService *matching.Service

	state           ReviewState
	timeframePicker TimeframePicker

	queue   []*sale.Sale
	current *sale.Sale

	holderInput textinput.Model

	status     string
	loading    bool
	totalCount int
}

type ReviewState int

const (
	StateSelectTimeframe ReviewState = iota
	StateReviewing
)

func NewReviewModel(saleSvc *sale.Service, matchSvc *matching.Service) ReviewModel {
	ti := textinput.New()
	ti.Placeholder = "Client name"
	ti.Width = 50

	return ReviewModel{
		saleService:     saleSvc,
		matchingService: matchSvc,
		holderInput:     ti,
		timeframePicker: NewTimeframePicker(TimeframeThisMonth),
		state:           StateSelectTimeframe,
	}
}

func (m ReviewModel) Title() string { return "Review Holders" }
func (m ReviewModel) ShortHelp() string {
	if m.state == StateReviewing {
		return "Enter: save & learn | Tab: skip | Esc: back"
	}
	return "Esc: back | Enter: select"
}

func (m ReviewModel) Init() tea.Cmd {
	return nil
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.state = StateReviewing
		m.loading = true

		return m, m.loadOpenCmd(msg)

	case loadOpenMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error loading sales: %v", msg.err)
			return m, nil
		}

		m.queue = msg.sales
		m.totalCount = len(m.queue)

		if len(m.queue) > 0 {
			cmd := m.next()
			return m, cmd
		}

		m.status = "No open sales in this period."

		return m, nil

	case holderSavedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
			return m, nil
		}

		m.status = ""
		cmd := m.next()

		return m, cmd
	}

	switch m.state {
	case StateSelectTimeframe:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			return m, Back
		}

		var cmd tea.Cmd
		m.timeframePicker, cmd = m.timeframePicker.Update(msg)

		return m, cmd

	case StateReviewing:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			if m.loading {
				return m, nil
			}

			switch keyMsg.Type {
			case tea.KeyEsc:
				return m, Back
			case tea.KeyTab:
				if m.current != nil {
					cmd := m.next()
					return m, cmd
				}
			case tea.KeyEnter:
				if m.current != nil {
					return m, m.saveCmd(m.current, m.holderInput.Value())
				}
			}
		}

		var cmd tea.Cmd
		m.holderInput, cmd = m.holderInput.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *ReviewModel) next() tea.Cmd {
	if len(m.queue) == 0 {
		m.current = nil
		m.status = "All done!"
		m.holderInput.SetValue("")

		return nil
	}

	m.current = m.queue[0]
	m.queue = m.queue[1:]

	suggestion := m.current.DestinationHolder

	ctx, cancel := DbCtx()
	defer cancel()

	if client, err := m.matchingService.Resolve(ctx, m.current.DestinationHolder); err == nil && client != "" {
		suggestion = client
	}

	m.holderInput.SetValue(suggestion)
	m.holderInput.Focus()

	return textinput.Blink
}

func (m ReviewModel) View() string {
	if m.state == StateSelectTimeframe {
		return lipgloss.NewStyle().Padding(1).Render(m.timeframePicker.View())
	}

	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading open sales...")
	}

	if m.current == nil {
		return lipgloss.NewStyle().Padding(2).Render(m.status + "\n\n(Esc to back)")
	}

	info := fmt.Sprintf(
		"DUT: %s\nIssued: %s\nEstablishment: %s\nHolder on record: %s\nRENSPA: %s",
		m.current.DocumentNumber,
		FormatDate(m.current.IssueDate),
		m.current.Establishment,
		m.current.DestinationHolder,
		m.current.DestinationRenspa,
	)

	status := ""
	if m.status != "" {
		status = "\n" + errorStyle.Render(m.status)
	}

	return lipgloss.NewStyle().Padding(2).Render(
		fmt.Sprintf("Reviewing %d of %d\n\n%s\n\nClient:\n%s%s",
			m.totalCount-len(m.queue), m.totalCount, boxStyle.Render(info), m.holderInput.View(), status),
	)
}

type loadOpenMsg struct {
	sales []*sale.Sale
	err   error
}

func (m ReviewModel) loadOpenCmd(tf TimeframeSelectedMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		filter := sale.ListFilter{State: new(sale.StateOpen)}
		if !tf.All {
			filter.StartDate = &tf.Start
			filter.EndDate = &tf.End
		}

		sales, err := m.saleService.List(ctx, filter)

		return loadOpenMsg{sales: sales, err: err}
	}
}

type holderSavedMsg struct {
	err error
}

func (m ReviewModel) saveCmd(sl *sale.Sale, client string) tea.Cmd {
	client = strings.TrimSpace(client)
	raw := sl.DestinationHolder

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if client == "" || client == raw {
			return holderSavedMsg{}
		}

		if _, err := m.saleService.Update(ctx, sl.ID, sale.UpdateParams{DestinationHolder: &client}); err != nil {
			return holderSavedMsg{err: err}
		}

		if _, err := m.matchingService.Learn(ctx, raw, client); err != nil {
			return holderSavedMsg{err: err}
		}

		return holderSavedMsg{}
	}
}
