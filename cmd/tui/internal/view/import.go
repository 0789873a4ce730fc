package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lochiel/hacienda/internal/document"
	"github.com/lochiel/hacienda/internal/sale"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateEstablishment importState = iota
	importStateFilePick
	importStateImporting
	importStateResult
)

// ImportModel opens a sale from a DUT file on disk.
type ImportModel struct {
	CommonModel
	docService *document.Service
	threshold  int

	state          importState
	filePicker     filepicker.Model
	establishments []sale.Establishment
	estCursor      int

	imported *document.Imported
	status   string
	err      error
}

func NewImportModel(docSvc *document.Service, threshold int) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".pdf", ".txt", ".jpg", ".jpeg", ".png", ".webp"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		docService:     docSvc,
		threshold:      threshold,
		filePicker:     fp,
		establishments: []sale.Establishment{sale.EstablishmentLochiel, sale.EstablishmentCaboCurioso},
	}
}

func (m ImportModel) Title() string { return "Import DUT" }

func (m ImportModel) ShortHelp() string {
	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStateEstablishment {
			return m.updateEstablishment(msg)
		}

	case importResultMsg:
		m.state = importStateResult
		m.err = msg.err
		m.imported = msg.imported

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Sale %s created.", msg.imported.Sale.DocumentNumber)

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Reading %s...", filepath.Base(path))

		return m, m.importCmd(path, m.establishments[m.estCursor])
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick:
		m.state = importStateEstablishment
		return m, nil
	case importStateResult:
		m.state = importStateEstablishment
		m.err = nil
		m.imported = nil
		m.status = ""

		return m, nil
	case importStateImporting:
		return m, nil
	}

	return m, Back
}

func (m ImportModel) updateEstablishment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.estCursor > 0 {
			m.estCursor--
		}
	case tea.KeyDown:
		if m.estCursor < len(m.establishments)-1 {
			m.estCursor++
		}
	case tea.KeyEnter:
		m.state = importStateFilePick
		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateEstablishment:
		return m.viewEstablishment()
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select DUT file (%s):\n\n%s", m.establishments[m.estCursor], m.filePicker.View()),
		)
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewEstablishment() string {
	s := "Selling establishment:\n\n"

	for i, est := range m.establishments {
		cursor := " "
		if i == m.estCursor {
			cursor = ">"
		}

		s += fmt.Sprintf("%s %s\n", cursor, est)
	}

	return lipgloss.NewStyle().Padding(2).Render(s)
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)

	if m.err != nil {
		return style.Render(errorStyle.Render(m.status) + "\n\n(Esc to go back)")
	}

	res := m.imported.Extraction
	sl := m.imported.Sale

	var b strings.Builder

	fmt.Fprintf(&b, "DUT:          %s\n", res.DocumentNumber)
	fmt.Fprintf(&b, "Holder (DUT): %s\n", res.DestinationHolder)
	fmt.Fprintf(&b, "Client:       %s\n", sl.DestinationHolder)
	fmt.Fprintf(&b, "RENSPA:       %s\n", res.DestinationRenspa)
	fmt.Fprintf(&b, "Issued:       %s\n", res.IssueDate)
	fmt.Fprintf(&b, "Category:     %s\n", res.Category)
	fmt.Fprintf(&b, "Head:         %s\n", FormatInt(res.Quantity))
	fmt.Fprintf(&b, "DUT fee:      %s\n", FormatNullMoney(res.DocumentFee))
	fmt.Fprintf(&b, "Guide fee:    %s\n", FormatNullMoney(res.GuideFee))

	confidence := fmt.Sprintf("Confidence: %d%%", res.Confidence)
	if res.LowConfidence(m.threshold) {
		confidence = warnStyle.Render(confidence + " (check the fields against the document)")
	}

	notes := ""
	if len(res.Errors) > 0 {
		notes = "\n" + faintStyle.Render("Missing: "+strings.Join(res.Errors, ", "))
	}

	if m.imported.Document == nil {
		notes += "\n" + faintStyle.Render("File not stored (no bucket configured).")
	}

	return style.Render(
		successStyle.Render(m.status) + "\n\n" +
			boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n" +
			confidence + notes +
			"\n\n(Esc to go back)",
	)
}

type importResultMsg struct {
	imported *document.Imported
	err      error
}

func (m ImportModel) importCmd(path string, est sale.Establishment) tea.Cmd {
	return func() tea.Msg {
		body, err := os.ReadFile(path)
		if err != nil {
			return importResultMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		imported, err := m.docService.ImportDUT(ctx, est, filepath.Base(path), body)

		return importResultMsg{imported: imported, err: err}
	}
}
