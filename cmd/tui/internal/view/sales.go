package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/sale"
)

// RateSuggester prefills the exchange rate of dollar prices and payments.
type RateSuggester interface {
	Suggest(ctx context.Context) (decimal.Decimal, error)
}

type salesState int

const (
	salesStateTimeframe salesState = iota
	salesStateList
	salesStateAction
	salesStateForm
)

type action string

const (
	actionPickup    action = "pickup"
	actionWeighing  action = "weighing"
	actionPrice     action = "price"
	actionPayment   action = "payment"
	actionInvoice   action = "invoice"
	actionState     action = "state"
	actionReconcile action = "reconcile"
)

// saleItem wraps a sale to implement list.Item.
type saleItem struct {
	sale *sale.Sale
}

func (i saleItem) Title() string {
	state := faintStyle.Render(fmt.Sprintf("[%s]", i.sale.State.Label()))

	return fmt.Sprintf("%s  %-14s %s  %s",
		FormatDate(i.sale.IssueDate), i.sale.DocumentNumber, state, i.sale.DestinationHolder)
}

func (i saleItem) Description() string {
	if !i.sale.TotalPayable.Valid {
		return "no price yet"
	}

	return fmt.Sprintf("payable %s | paid %s | balance %s",
		FormatNullMoney(i.sale.TotalPayable), FormatMoney(i.sale.TotalPaid), FormatMoney(i.sale.Balance()))
}

func (i saleItem) FilterValue() string {
	return i.sale.DocumentNumber + " " + i.sale.DestinationHolder
}

// saleForm holds the form bindings. It lives behind a pointer so the huh
// fields keep writing to the same place while the model is copied.
type saleForm struct {
	action action

	troop, remito, date, quantity string
	weight                        string
	amount, currency, rate        string
	exempt                        bool
	withholding                   string
	method, reference             string
	invoice                       string
	state                         string
}

type SalesModel struct {
	CommonModel
	saleService *sale.Service
	rates       RateSuggester

	state           salesState
	timeframePicker TimeframePicker
	list            list.Model
	form            *huh.Form
	fields          *saleForm
	sales           []*sale.Sale
	selected        *sale.Sale

	startDate time.Time
	endDate   time.Time
	allTime   bool
	loading   bool
	status    string
}

func NewSalesModel(saleSvc *sale.Service, rates RateSuggester) SalesModel {
	l := list.New([]list.Item{}, saleItemDelegate{}, 100, 20)
	l.Title = "Sales"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	return SalesModel{
		saleService:     saleSvc,
		rates:           rates,
		timeframePicker: NewTimeframePicker(TimeframeThisMonth),
		list:            l,
	}
}

func (m SalesModel) Title() string { return "Manage Sales" }

func (m SalesModel) ShortHelp() string {
	switch m.state {
	case salesStateTimeframe:
		return "Esc: back | Enter: select"
	case salesStateList:
		return "Esc: back | Enter: actions | /: filter"
	case salesStateAction, salesStateForm:
		return "Esc: cancel | Enter/Tab: navigate form"
	}

	return ""
}

func (m SalesModel) Init() tea.Cmd {
	return nil
}

func (m SalesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.startDate = msg.Start
		m.endDate = msg.End
		m.allTime = msg.All
		m.loading = true
		m.state = salesStateList

		return m, m.loadSalesCmd()

	case loadSalesMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.sales = msg.sales
		m.refreshListItems()

		if len(msg.sales) == 0 {
			m.status = "No sales found."
		}

		return m, nil

	case actionResultMsg:
		m.state = salesStateList
		m.form = nil

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = msg.status

		return m, m.loadSalesCmd()

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil
	}

	switch m.state {
	case salesStateTimeframe:
		return m.updateTimeframe(msg)
	case salesStateList:
		return m.updateList(msg)
	case salesStateAction:
		return m.updateAction(msg)
	case salesStateForm:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m SalesModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			return m, Back
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)

	return m, cmd
}

func (m SalesModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch keyMsg.Type {
		case tea.KeyEsc:
			m.state = salesStateTimeframe
			m.timeframePicker.Reset()

			return m, nil
		case tea.KeyEnter:
			return m.chooseAction()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m SalesModel) chooseAction() (tea.Model, tea.Cmd) {
	selected, ok := m.list.SelectedItem().(saleItem)
	if !ok {
		return m, nil
	}

	m.selected = selected.sale
	m.fields = &saleForm{}

	options := []huh.Option[action]{
		huh.NewOption("Record pickup", actionPickup),
		huh.NewOption("Record weighing", actionWeighing),
	}

	if !m.selected.PriceAssigned {
		options = append(options, huh.NewOption("Assign price", actionPrice))
	} else {
		options = append(options,
			huh.NewOption("Register payment", actionPayment),
			huh.NewOption("Invoice number", actionInvoice))
	}

	if len(m.selected.State.Next()) > 0 {
		options = append(options, huh.NewOption("Change state", actionState))
	}

	options = append(options, huh.NewOption("Check for alerts", actionReconcile))

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[action]().
				Title("Action").
				Options(options...).
				Value(&m.fields.action),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = salesStateAction

	return m, m.form.Init()
}

func (m SalesModel) updateAction(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = salesStateList
		m.form = nil

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.fields.action == actionReconcile {
		return m, m.reconcileCmd(m.selected)
	}

	m.form = m.buildActionForm()
	m.state = salesStateForm

	return m, m.form.Init()
}

func (m SalesModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = salesStateList
		m.form = nil

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.runActionCmd(m.selected, *m.fields)
}

func validAmount(s string) error {
	d, err := dut.ParseAmount(s)
	if err != nil {
		return errors.New("not a number")
	}

	if !d.IsPositive() {
		return errors.New("must be greater than zero")
	}

	return nil
}

func optionalAmount(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	return validAmount(s)
}

func validDate(s string) error {
	if _, err := parseDate(s); err != nil {
		return errors.New("use DD/MM/YYYY")
	}

	return nil
}

func validCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("must be a positive whole number")
	}

	return nil
}

func (m SalesModel) buildActionForm() *huh.Form {
	f := m.fields
	f.date = time.Now().Format("02/01/2006")

	var fields []huh.Field

	switch f.action {
	case actionPickup:
		fields = []huh.Field{
			huh.NewInput().Title("Troop").Value(&f.troop),
			huh.NewInput().Title("Field remito").Value(&f.remito),
			huh.NewInput().Title("Pickup date").Value(&f.date).Validate(validDate),
			huh.NewInput().Title("Head loaded").Value(&f.quantity).Validate(validCount),
		}
	case actionWeighing:
		fields = []huh.Field{
			huh.NewInput().Title("Head weighed").Value(&f.quantity).Validate(validCount),
			huh.NewInput().Title("Total kg").Value(&f.weight).Validate(validAmount),
			huh.NewInput().Title("Weighing date").Value(&f.date).Validate(validDate),
		}
	case actionPrice:
		f.currency = string(sale.CurrencyARS)
		f.rate = m.suggestedRate()
		fields = []huh.Field{
			huh.NewInput().Title("Price per kg").Value(&f.amount).Validate(validAmount),
			currencySelect(&f.currency),
			huh.NewInput().Title("Exchange rate (USD only)").Value(&f.rate).Validate(optionalAmount),
			huh.NewConfirm().Title("Invoice exempt?").Affirmative("Yes").Negative("No").Value(&f.exempt),
			huh.NewInput().Title("Withholding (optional)").Value(&f.withholding).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return nil
				}

				_, err := dut.ParseAmount(s)

				return err
			}),
		}
	case actionPayment:
		f.currency = string(sale.CurrencyARS)
		f.method = string(sale.PaymentTransfer)
		f.rate = m.suggestedRate()
		fields = []huh.Field{
			huh.NewInput().Title("Amount").Value(&f.amount).Validate(validAmount),
			currencySelect(&f.currency),
			huh.NewInput().Title("Exchange rate (USD only)").Value(&f.rate).Validate(optionalAmount),
			huh.NewInput().Title("Date").Value(&f.date).Validate(validDate),
			huh.NewSelect[string]().Title("Method").Value(&f.method).Options(
				huh.NewOption("Transfer", string(sale.PaymentTransfer)),
				huh.NewOption("Cash", string(sale.PaymentCash)),
				huh.NewOption("Check", string(sale.PaymentCheck)),
				huh.NewOption("E-check", string(sale.PaymentElectronicChck)),
			),
			huh.NewInput().Title("Reference").Value(&f.reference),
		}
	case actionInvoice:
		f.invoice = m.selected.InvoiceNumber
		fields = []huh.Field{
			huh.NewInput().Title("Invoice number").Value(&f.invoice),
		}
	case actionState:
		next := m.selected.State.Next()
		options := make([]huh.Option[string], 0, len(next))

		for _, st := range next {
			options = append(options, huh.NewOption(st.Label(), string(st)))
		}

		fields = []huh.Field{
			huh.NewSelect[string]().Title("Move to").Options(options...).Value(&f.state),
		}
	}

	return huh.NewForm(huh.NewGroup(fields...)).WithWidth(50).WithShowHelp(false)
}

func currencySelect(v *string) huh.Field {
	return huh.NewSelect[string]().Title("Currency").Value(v).Options(
		huh.NewOption("ARS", string(sale.CurrencyARS)),
		huh.NewOption("USD", string(sale.CurrencyUSD)),
	)
}

// suggestedRate is best effort; an empty rate leaves the field for the user.
func (m SalesModel) suggestedRate() string {
	if m.rates == nil {
		return ""
	}

	ctx, cancel := DbCtx()
	defer cancel()

	rate, err := m.rates.Suggest(ctx)
	if err != nil {
		return ""
	}

	return rate.String()
}

func (m SalesModel) View() string {
	switch m.state {
	case salesStateTimeframe:
		return lipgloss.NewStyle().Padding(1).Render(m.timeframePicker.View())

	case salesStateList:
		if m.loading {
			return lipgloss.NewStyle().Padding(2).Render("Loading sales...")
		}

		statusLine := ""
		if m.status != "" {
			statusLine = faintStyle.Render(m.status) + "\n"
		}

		return lipgloss.NewStyle().Padding(1).Render(statusLine + m.list.View())

	case salesStateAction, salesStateForm:
		if m.form == nil {
			return ""
		}

		return lipgloss.NewStyle().Padding(1).Render(m.saleInfoView() + "\n" + m.form.View())
	}

	return ""
}

func (m SalesModel) saleInfoView() string {
	sl := m.selected
	if sl == nil {
		return ""
	}

	return boxStyle.Render(fmt.Sprintf(
		"DUT %s  |  %s  |  %s\n"+
			"Head: declared %s, loaded %s, weighed %s  |  kg %s\n"+
			"Payable %s  |  Paid %s  |  Balance %s",
		sl.DocumentNumber, sl.DestinationHolder, sl.State.Label(),
		FormatInt(sl.QuantityDeclared), FormatInt(sl.QuantityLoaded), FormatInt(sl.QuantityWeighed),
		FormatNullMoney(sl.TotalWeightKg),
		FormatNullMoney(sl.TotalPayable), FormatMoney(sl.TotalPaid), FormatMoney(sl.Balance()),
	))
}

func (m *SalesModel) refreshListItems() {
	items := make([]list.Item, len(m.sales))
	for i, sl := range m.sales {
		items[i] = saleItem{sale: sl}
	}

	m.list.SetItems(items)
}

// Messages

type loadSalesMsg struct {
	sales []*sale.Sale
	err   error
}

func (m SalesModel) loadSalesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		filter := sale.ListFilter{}

		if !m.allTime {
			start, end := m.startDate, m.endDate
			filter.StartDate = &start
			filter.EndDate = &end
		}

		sales, err := m.saleService.List(ctx, filter)

		return loadSalesMsg{sales: sales, err: err}
	}
}

type actionResultMsg struct {
	status string
	err    error
}

func nullAmount(s string) decimal.NullDecimal {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}
	}

	d, err := dut.ParseAmount(s)
	if err != nil {
		return decimal.NullDecimal{}
	}

	return decimal.NewNullDecimal(d)
}

func (m SalesModel) runActionCmd(sl *sale.Sale, f saleForm) tea.Cmd {
	svc := m.saleService

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		date, _ := parseDate(f.date)
		count, _ := strconv.Atoi(strings.TrimSpace(f.quantity))

		var err error

		switch f.action {
		case actionPickup:
			_, err = svc.RecordPickup(ctx, sl.ID, sale.PickupParams{
				Troop:          f.troop,
				RemitoNumber:   f.remito,
				PickupDate:     date,
				QuantityLoaded: count,
			})
		case actionWeighing:
			weight, _ := dut.ParseAmount(f.weight)
			_, err = svc.RecordWeighing(ctx, sl.ID, sale.WeighingParams{
				QuantityWeighed: count,
				TotalWeightKg:   weight,
				WeighingDate:    date,
			})
		case actionPrice:
			price, _ := dut.ParseAmount(f.amount)
			_, err = svc.AssignPrice(ctx, sl.ID, sale.PriceInput{
				PricePerKg:    price,
				Currency:      sale.Currency(f.currency),
				ExchangeRate:  nullAmount(f.rate),
				InvoiceExempt: f.exempt,
				Withholding:   nullAmount(f.withholding),
			})
		case actionPayment:
			amount, _ := dut.ParseAmount(f.amount)
			_, err = svc.AddPayment(ctx, sl.ID, sale.PaymentParams{
				Amount:       amount,
				Currency:     sale.Currency(f.currency),
				ExchangeRate: nullAmount(f.rate),
				Date:         date,
				Method:       sale.PaymentMethod(f.method),
				Reference:    f.reference,
			})
		case actionInvoice:
			_, err = svc.MarkInvoiced(ctx, sl.ID, f.invoice)
		case actionState:
			_, err = svc.Transition(ctx, sl.ID, sale.State(f.state))
		}

		if err != nil {
			return actionResultMsg{err: err}
		}

		return actionResultMsg{status: fmt.Sprintf("Sale %s updated.", sl.DocumentNumber)}
	}
}

func (m SalesModel) reconcileCmd(sl *sale.Sale) tea.Cmd {
	svc := m.saleService

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		raised, err := svc.Reconcile(ctx, sl.ID)
		if err != nil {
			return actionResultMsg{err: err}
		}

		return actionResultMsg{status: fmt.Sprintf("%d new alerts for %s.", len(raised), sl.DocumentNumber)}
	}
}

// saleItemDelegate renders items in the list.
type saleItemDelegate struct{}

func (d saleItemDelegate) Height() int                             { return 2 }
func (d saleItemDelegate) Spacing() int                            { return 0 }
func (d saleItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d saleItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(saleItem)
	if !ok {
		return
	}

	title := i.Title()
	if index == m.Index() {
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render("> " + title)
	}

	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "    %s\n", faintStyle.Render(i.Description()))
}
