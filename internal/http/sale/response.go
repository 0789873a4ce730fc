package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/sale"
)

type saleResponse struct {
	ID                uuid.UUID          `json:"id"`
	DocumentNumber    string             `json:"document_number"`
	Establishment     sale.Establishment `json:"establishment"`
	DestinationHolder string             `json:"destination_holder"`
	DestinationRenspa string             `json:"destination_renspa,omitempty"`
	Category          dut.Category       `json:"category,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	QuantityDeclared  *int               `json:"quantity_declared"`
	IssueDate         *time.Time         `json:"issue_date"`
	LoadDate          *time.Time         `json:"load_date"`
	ExpirationDate    *time.Time         `json:"expiration_date"`

	DocumentFee decimal.NullDecimal `json:"document_fee"`
	GuideFee    decimal.NullDecimal `json:"guide_fee"`

	Troop          string     `json:"troop,omitempty"`
	RemitoNumber   string     `json:"remito_number,omitempty"`
	PickupDate     *time.Time `json:"pickup_date"`
	QuantityLoaded *int       `json:"quantity_loaded"`

	QuantityWeighed  *int                `json:"quantity_weighed"`
	WeighingDate     *time.Time          `json:"weighing_date"`
	TotalWeightKg    decimal.NullDecimal `json:"total_weight_kg"`
	AvgWeightPerHead decimal.NullDecimal `json:"avg_weight_per_head"`

	Currency       sale.Currency       `json:"currency,omitempty"`
	PricePerKg     decimal.NullDecimal `json:"price_per_kg"`
	PricePerHead   decimal.NullDecimal `json:"price_per_head"`
	AmountUSD      decimal.NullDecimal `json:"amount_usd"`
	ExchangeRate   decimal.NullDecimal `json:"exchange_rate"`
	AmountOriginal decimal.NullDecimal `json:"amount_original"`
	NetAmount      decimal.NullDecimal `json:"net_amount"`
	IVAPercent     decimal.NullDecimal `json:"iva_percent"`
	TotalWithTax   decimal.NullDecimal `json:"total_with_tax"`
	Withholding    decimal.NullDecimal `json:"withholding"`
	TotalPayable   decimal.NullDecimal `json:"total_payable"`
	TotalPaid      decimal.Decimal     `json:"total_paid"`
	Balance        decimal.Decimal     `json:"balance"`
	InvoiceExempt  bool                `json:"invoice_exempt"`
	InvoiceNumber  string              `json:"invoice_number,omitempty"`
	PriceAssigned  bool                `json:"price_assigned"`

	PaymentMethod     sale.PaymentMethod `json:"payment_method,omitempty"`
	CreditDestination string             `json:"credit_destination,omitempty"`
	PaymentDate       *time.Time         `json:"payment_date"`

	State      sale.State   `json:"state"`
	StateLabel string       `json:"state_label"`
	NextStates []sale.State `json:"next_states"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  *time.Time   `json:"updated_at,omitempty"`
}

func toResponse(s *sale.Sale) saleResponse {
	return saleResponse{
		ID:                s.ID,
		DocumentNumber:    s.DocumentNumber,
		Establishment:     s.Establishment,
		DestinationHolder: s.DestinationHolder,
		DestinationRenspa: s.DestinationRenspa,
		Category:          s.Category,
		Reason:            s.Reason,
		QuantityDeclared:  s.QuantityDeclared,
		IssueDate:         s.IssueDate,
		LoadDate:          s.LoadDate,
		ExpirationDate:    s.ExpirationDate,
		DocumentFee:       s.DocumentFee,
		GuideFee:          s.GuideFee,
		Troop:             s.Troop,
		RemitoNumber:      s.RemitoNumber,
		PickupDate:        s.PickupDate,
		QuantityLoaded:    s.QuantityLoaded,
		QuantityWeighed:   s.QuantityWeighed,
		WeighingDate:      s.WeighingDate,
		TotalWeightKg:     s.TotalWeightKg,
		AvgWeightPerHead:  s.AvgWeightPerHead,
		Currency:          s.Currency,
		PricePerKg:        s.PricePerKg,
		PricePerHead:      s.PricePerHead,
		AmountUSD:         s.AmountUSD,
		ExchangeRate:      s.ExchangeRate,
		AmountOriginal:    s.AmountOriginal,
		NetAmount:         s.NetAmount,
		IVAPercent:        s.IVAPercent,
		TotalWithTax:      s.TotalWithTax,
		Withholding:       s.Withholding,
		TotalPayable:      s.TotalPayable,
		TotalPaid:         s.TotalPaid,
		Balance:           s.Balance(),
		InvoiceExempt:     s.InvoiceExempt,
		InvoiceNumber:     s.InvoiceNumber,
		PriceAssigned:     s.PriceAssigned,
		PaymentMethod:     s.PaymentMethod,
		CreditDestination: s.CreditDestination,
		PaymentDate:       s.PaymentDate,
		State:             s.State,
		StateLabel:        s.State.Label(),
		NextStates:        s.State.Next(),
		Notes:             s.Notes,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toResponseList(sales []*sale.Sale) []saleResponse {
	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = toResponse(s)
	}

	return resp
}

type paymentResponse struct {
	ID                uuid.UUID           `json:"id"`
	SaleID            uuid.UUID           `json:"sale_id"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          sale.Currency       `json:"currency"`
	ExchangeRate      decimal.NullDecimal `json:"exchange_rate"`
	AmountARS         decimal.Decimal     `json:"amount_ars"`
	Date              time.Time           `json:"date"`
	Method            sale.PaymentMethod  `json:"method"`
	Reference         string              `json:"reference,omitempty"`
	CreditDestination string              `json:"credit_destination,omitempty"`
	ProofURL          string              `json:"proof_url,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

func toPaymentResponse(p *sale.Payment) paymentResponse {
	return paymentResponse{
		ID:                p.ID,
		SaleID:            p.SaleID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		ExchangeRate:      p.ExchangeRate,
		AmountARS:         p.Normalized(),
		Date:              p.Date,
		Method:            p.Method,
		Reference:         p.Reference,
		CreditDestination: p.CreditDestination,
		ProofURL:          p.ProofURL,
		CreatedAt:         p.CreatedAt,
	}
}

type alertResponse struct {
	ID                uuid.UUID      `json:"id"`
	SaleID            uuid.UUID      `json:"sale_id"`
	Type              sale.AlertType `json:"type"`
	Severity          sale.Severity  `json:"severity"`
	Message           string         `json:"message"`
	Resolved          bool           `json:"resolved"`
	CreatedAt         time.Time      `json:"created_at"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
	DocumentNumber    string         `json:"document_number,omitempty"`
	DestinationHolder string         `json:"destination_holder,omitempty"`
}

func toAlertResponses(alerts []*sale.Alert) []alertResponse {
	resp := make([]alertResponse, len(alerts))
	for i, a := range alerts {
		resp[i] = alertResponse{
			ID:                a.ID,
			SaleID:            a.SaleID,
			Type:              a.Type,
			Severity:          a.Severity,
			Message:           a.Message,
			Resolved:          a.Resolved,
			CreatedAt:         a.CreatedAt,
			ResolvedAt:        a.ResolvedAt,
			DocumentNumber:    a.DocumentNumber,
			DestinationHolder: a.DestinationHolder,
		}
	}

	return resp
}

type statsResponse struct {
	ActiveSales      int             `json:"active_sales"`
	PayableThisMonth decimal.Decimal `json:"payable_this_month"`
	Receivables      decimal.Decimal `json:"receivables"`
	OpenAlerts       []alertResponse `json:"open_alerts"`
}
