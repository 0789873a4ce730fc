package view

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lochiel/hacienda/internal/dut"
)

// Timeframe is a predefined or custom range over the sale issue date.
type Timeframe int

const (
	TimeframeThisMonth Timeframe = iota
	TimeframeLastMonth
	TimeframeLastQuarter
	TimeframeThisYear
	TimeframeAll
	TimeframeCustom
)

func (t Timeframe) String() string {
	switch t {
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	case TimeframeLastQuarter:
		return "Last 3 Months"
	case TimeframeThisYear:
		return "This Year"
	case TimeframeAll:
		return "All Time"
	case TimeframeCustom:
		return "Custom Range"
	}

	return "Unknown"
}

func timeframeToDateRange(tf Timeframe, now time.Time) (time.Time, time.Time) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch tf {
	case TimeframeThisMonth:
		return monthStart, now
	case TimeframeLastMonth:
		start := monthStart.AddDate(0, -1, 0)
		return start, monthStart.AddDate(0, 0, -1)
	case TimeframeLastQuarter:
		return monthStart.AddDate(0, -2, 0), now
	case TimeframeThisYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), now
	}

	return time.Time{}, time.Time{}
}

func normalizeDateRange(start, end time.Time) (time.Time, time.Time) {
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
}

// parseDate accepts the printed DD/MM/YYYY form as well as YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, dut.NormalizeDate(s))
}

// TimeframeSelectedMsg is emitted when the user has selected a valid date range.
// Start and End are zero values when All is true.
type TimeframeSelectedMsg struct {
	Start time.Time
	End   time.Time
	All   bool
}

type timeframeState int

const (
	timeframeStateSelect timeframeState = iota
	timeframeStateCustom
)

// TimeframePicker is a reusable component for selecting a date range.
type TimeframePicker struct {
	state    timeframeState
	selected Timeframe

	startInput textinput.Model
	endInput   textinput.Model
	focusIndex int

	err error
}

func NewTimeframePicker(initial Timeframe) TimeframePicker {
	si := textinput.New()
	si.Placeholder = "DD/MM/YYYY"
	si.CharLimit = 10
	si.Width = 12
	si.Prompt = "From: "

	ei := textinput.New()
	ei.Placeholder = "DD/MM/YYYY"
	ei.CharLimit = 10
	ei.Width = 12
	ei.Prompt = "To:   "

	return TimeframePicker{
		state:      timeframeStateSelect,
		selected:   initial,
		startInput: si,
		endInput:   ei,
	}
}

func (m TimeframePicker) Init() tea.Cmd {
	return nil
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case timeframeStateSelect:
			return m.updateSelect(keyMsg)
		case timeframeStateCustom:
			if next, cmd, handled := m.updateCustom(keyMsg); handled {
				return next, cmd
			}
		}
	}

	if m.state != timeframeStateCustom {
		return m, nil
	}

	var cmds [2]tea.Cmd

	m.startInput, cmds[0] = m.startInput.Update(msg)
	m.endInput, cmds[1] = m.endInput.Update(msg)

	return m, tea.Batch(cmds[:]...)
}

func (m TimeframePicker) updateSelect(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.selected > TimeframeThisMonth {
			m.selected--
		}
	case tea.KeyDown:
		if m.selected < TimeframeCustom {
			m.selected++
		}
	case tea.KeyEnter:
		switch m.selected {
		case TimeframeCustom:
			m.state = timeframeStateCustom
			m.focusIndex = 0
			m.startInput.Focus()

			return m, textinput.Blink
		case TimeframeAll:
			return m, func() tea.Msg { return TimeframeSelectedMsg{All: true} }
		}

		start, end := normalizeDateRange(timeframeToDateRange(m.selected, time.Now()))

		return m, func() tea.Msg { return TimeframeSelectedMsg{Start: start, End: end} }
	}

	return m, nil
}

func (m TimeframePicker) updateCustom(msg tea.KeyMsg) (TimeframePicker, tea.Cmd, bool) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.focusIndex = 1 - m.focusIndex
		m.startInput.Blur()
		m.endInput.Blur()

		if m.focusIndex == 0 {
			m.startInput.Focus()
		} else {
			m.endInput.Focus()
		}

		return m, textinput.Blink, true

	case "enter":
		start, err := parseDate(m.startInput.Value())
		if err != nil {
			m.err = fmt.Errorf("invalid start date")
			return m, nil, true
		}

		end, err := parseDate(m.endInput.Value())
		if err != nil {
			m.err = fmt.Errorf("invalid end date")
			return m, nil, true
		}

		if end.Before(start) {
			m.err = fmt.Errorf("end date is before start date")
			return m, nil, true
		}

		m.err = nil
		start, end = normalizeDateRange(start, end)

		return m, func() tea.Msg { return TimeframeSelectedMsg{Start: start, End: end} }, true

	case "esc":
		m.state = timeframeStateSelect
		m.err = nil

		return m, nil, true
	}

	return m, nil, false
}

func (m TimeframePicker) View() string {
	errStr := ""
	if m.err != nil {
		errStr = errorStyle.Render(fmt.Sprintf("\n\nError: %v", m.err))
	}

	if m.state == timeframeStateCustom {
		return fmt.Sprintf(
			"Issue date range:\n\n%s\n%s\n\n(Enter to confirm, Tab to switch, Esc to back)%s",
			m.startInput.View(),
			m.endInput.View(),
			errStr,
		)
	}

	s := "Select period:\n\n"
	for i := TimeframeThisMonth; i <= TimeframeCustom; i++ {
		cursor := " "
		if m.selected == i {
			cursor = ">"
		}

		s += fmt.Sprintf("%s %s\n", cursor, i)
	}

	return s + "\n(Enter to select, Esc to back)" + errStr
}

// IsSelecting reports whether the picker is on the preset list.
func (m TimeframePicker) IsSelecting() bool {
	return m.state == timeframeStateSelect
}

// Reset returns the picker to its initial selection state.
func (m *TimeframePicker) Reset() {
	m.state = timeframeStateSelect
	m.err = nil
	m.startInput.SetValue("")
	m.endInput.SetValue("")
}
