package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/lochiel/hacienda/internal/export"
	"github.com/lochiel/hacienda/internal/sale"
)

const exportTimeout = 2 * time.Minute

type exportStep int

const (
	exportStepFilters exportStep = iota
	exportStepRunning
	exportStepDone
)

// exportFilters backs the filter form.
type exportFilters struct {
	period        Timeframe
	from, to      string
	state         string
	establishment string
	holder        string
	dir           string
}

func (f *exportFilters) listFilter(now time.Time) (sale.ListFilter, error) {
	filter := sale.ListFilter{Holder: strings.TrimSpace(f.holder)}

	if f.state != "" {
		filter.State = new(sale.State(f.state))
	}

	if f.establishment != "" {
		filter.Establishment = new(sale.Establishment(f.establishment))
	}

	var start, end time.Time

	switch f.period {
	case TimeframeAll:
		return filter, nil
	case TimeframeCustom:
		var err1, err2 error
		start, err1 = parseDate(f.from)
		end, err2 = parseDate(f.to)

		if err := errors.Join(err1, err2); err != nil {
			return filter, fmt.Errorf("invalid date range: %w", err)
		}
	default:
		start, end = timeframeToDateRange(f.period, now)
	}

	start, end = normalizeDateRange(start, end)
	filter.StartDate = &start
	filter.EndDate = &end

	return filter, nil
}

// ExportModel downloads the documents of the filtered sales and shows the
// summary ready to paste in an email.
type ExportModel struct {
	CommonModel
	exportService *export.Service

	step    exportStep
	filters *exportFilters
	form    *huh.Form
	spinner spinner.Model

	items   int
	summary string
	err     error
}

func NewExportModel(svc *export.Service) ExportModel {
	spin := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	spin.Style = warnStyle

	m := ExportModel{
		exportService: svc,
		filters:       &exportFilters{period: TimeframeThisMonth, dir: "./exports"},
		spinner:       spin,
	}
	m.form = m.filterForm()

	return m
}

func (m ExportModel) Title() string { return "Export Sales" }

func (m ExportModel) ShortHelp() string {
	if m.step == exportStepFilters {
		return "Esc: back | Enter/Tab: next field"
	}
	if m.step == exportStepRunning {
		return "Downloading documents..."
	}
	return "Esc: back | n: new export"
}

func (m ExportModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m ExportModel) filterForm() *huh.Form {
	f := m.filters

	periods := make([]huh.Option[Timeframe], 0, int(TimeframeCustom)+1)
	for tf := TimeframeThisMonth; tf <= TimeframeCustom; tf++ {
		periods = append(periods, huh.NewOption(tf.String(), tf))
	}

	states := []huh.Option[string]{huh.NewOption("Any", "")}
	for _, st := range []sale.State{sale.StateOpen, sale.StatePickedUp, sale.StateWeighed, sale.StateFinalized, sale.StateCancelled} {
		states = append(states, huh.NewOption(st.Label(), string(st)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Timeframe]().Title("Issued").Options(periods...).Value(&f.period),
		),
		huh.NewGroup(
			huh.NewInput().Title("From (DD/MM/YYYY)").Value(&f.from).Validate(validDate),
			huh.NewInput().Title("To (DD/MM/YYYY)").Value(&f.to).Validate(validDate),
		).WithHideFunc(func() bool { return f.period != TimeframeCustom }),
		huh.NewGroup(
			huh.NewSelect[string]().Title("State").Options(states...).Value(&f.state),
			huh.NewSelect[string]().Title("Establishment").Options(
				huh.NewOption("Any", ""),
				huh.NewOption("Lochiel", string(sale.EstablishmentLochiel)),
				huh.NewOption("Cabo Curioso", string(sale.EstablishmentCaboCurioso)),
			).Value(&f.establishment),
			huh.NewInput().Title("Holder contains").Value(&f.holder),
			huh.NewInput().Title("Folder").Description("Created when missing").Value(&f.dir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("folder is required")
					}
					return nil
				}),
		),
	).WithWidth(56).WithShowHelp(false)
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(exportDoneMsg); ok {
		m.step = exportStepDone
		m.items, m.summary, m.err = done.items, done.summary, done.err

		return m, nil
	}

	keyMsg, isKey := msg.(tea.KeyMsg)

	switch m.step {
	case exportStepFilters:
		if isKey && keyMsg.Type == tea.KeyEsc {
			return m, Back
		}

		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}

		if m.form.State == huh.StateCompleted {
			m.step = exportStepRunning
			return m, tea.Batch(m.spinner.Tick, m.exportCmd(*m.filters))
		}

		return m, cmd

	case exportStepRunning:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case exportStepDone:
		if isKey {
			switch keyMsg.String() {
			case "esc":
				return m, Back
			case "n":
				m.step = exportStepFilters
				m.form = m.filterForm()

				return m, m.form.Init()
			}
		}
	}

	return m, nil
}

func (m ExportModel) View() string {
	pad := lipgloss.NewStyle().Padding(1)

	switch m.step {
	case exportStepRunning:
		return pad.Render(m.spinner.View() + " Collecting sales and their documents...")

	case exportStepDone:
		if m.err != nil {
			return pad.Render(errorStyle.Render("Export failed: " + m.err.Error()))
		}

		if m.items == 0 {
			return pad.Render(faintStyle.Render("No sales matched those filters."))
		}

		return pad.Render(
			successStyle.Bold(true).Render(fmt.Sprintf("%d sales exported to %s", m.items, m.filters.dir)) +
				"\n\n" + boxStyle.Render(strings.TrimRight(m.summary, "\n")),
		)
	}

	return pad.Render(m.form.View())
}

type exportDoneMsg struct {
	items   int
	summary string
	err     error
}

func (m ExportModel) exportCmd(f exportFilters) tea.Cmd {
	svc := m.exportService

	return func() tea.Msg {
		filter, err := f.listFilter(time.Now())
		if err != nil {
			return exportDoneMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		items, err := svc.Export(ctx, filter, strings.TrimSpace(f.dir))
		if err != nil {
			return exportDoneMsg{err: err}
		}

		return exportDoneMsg{items: len(items), summary: svc.Summary(items)}
	}
}
