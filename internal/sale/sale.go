package sale

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/dut"
)

// Establishment is the ranch the animals leave from.
type Establishment string

const (
	EstablishmentLochiel     Establishment = "LOCHIEL"
	EstablishmentCaboCurioso Establishment = "CABO_CURIOSO"
)

func (e Establishment) Valid() bool {
	return e == EstablishmentLochiel || e == EstablishmentCaboCurioso
}

// Currency of a price or payment. ARS is the reference currency all
// balances are kept in.
type Currency string

const (
	CurrencyARS Currency = "ARS"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyARS || c == CurrencyUSD
}

type PaymentMethod string

const (
	PaymentTransfer       PaymentMethod = "TRANSFERENCIA"
	PaymentCash           PaymentMethod = "EFECTIVO"
	PaymentCheck          PaymentMethod = "CHEQUE"
	PaymentElectronicChck PaymentMethod = "CHEQUE_ELECTRONICO"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentTransfer, PaymentCash, PaymentCheck, PaymentElectronicChck:
		return true
	}

	return false
}

// Sale is one shipment of animals from DUT issuance to final payment.
//
// Optional amounts use decimal.NullDecimal: a field that is not Valid has not
// been established yet, which is different from zero.
type Sale struct {
	ID             uuid.UUID
	DocumentNumber string
	Establishment  Establishment

	DestinationHolder string
	DestinationRenspa string
	Category          dut.Category
	Reason            string
	QuantityDeclared  *int
	IssueDate         *time.Time
	LoadDate          *time.Time
	ExpirationDate    *time.Time
	DocumentFee       decimal.NullDecimal
	GuideFee          decimal.NullDecimal

	Troop          string
	RemitoNumber   string
	PickupDate     *time.Time
	QuantityLoaded *int

	QuantityWeighed  *int
	WeighingDate     *time.Time
	TotalWeightKg    decimal.NullDecimal
	AvgWeightPerHead decimal.NullDecimal

	Currency       Currency
	PricePerKg     decimal.NullDecimal
	PricePerHead   decimal.NullDecimal
	AmountUSD      decimal.NullDecimal
	ExchangeRate   decimal.NullDecimal
	AmountOriginal decimal.NullDecimal
	NetAmount      decimal.NullDecimal

	IVAPercent    decimal.NullDecimal
	TotalWithTax  decimal.NullDecimal
	Withholding   decimal.NullDecimal
	TotalPayable  decimal.NullDecimal
	TotalPaid     decimal.Decimal
	InvoiceExempt bool
	InvoiceNumber string
	PriceAssigned bool

	PaymentMethod     PaymentMethod
	CreditDestination string
	PaymentDate       *time.Time

	State     State
	Notes     string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// PayableEstablished reports whether a non-zero amount to collect exists.
func (s *Sale) PayableEstablished() bool {
	return s.TotalPayable.Valid && !s.TotalPayable.Decimal.IsZero()
}

// Balance is what is still owed, in ARS. Unpriced sales owe nothing.
func (s *Sale) Balance() decimal.Decimal {
	if !s.TotalPayable.Valid {
		return decimal.Zero.Sub(s.TotalPaid)
	}

	return s.TotalPayable.Decimal.Sub(s.TotalPaid)
}

type Payment struct {
	ID                uuid.UUID
	SaleID            uuid.UUID
	Amount            decimal.Decimal
	Currency          Currency
	ExchangeRate      decimal.NullDecimal
	Date              time.Time
	Method            PaymentMethod
	Reference         string
	CreditDestination string
	ProofURL          string
	CreatedAt         time.Time
}

type DocumentType string

const (
	DocumentDUT          DocumentType = "DUT"
	DocumentFieldRemito  DocumentType = "REMITO_CAMPO"
	DocumentRomaneo      DocumentType = "ROMANEO"
	DocumentSettlement   DocumentType = "LIQUIDACION"
	DocumentInvoice      DocumentType = "FACTURA"
	DocumentPaymentProof DocumentType = "COMPROBANTE_PAGO"
	DocumentOther        DocumentType = "OTRO"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentDUT, DocumentFieldRemito, DocumentRomaneo, DocumentSettlement,
		DocumentInvoice, DocumentPaymentProof, DocumentOther:
		return true
	}

	return false
}

// Document is an uploaded file attached to a sale. The bytes live in object
// storage under ObjectKey.
type Document struct {
	ID          uuid.UUID
	SaleID      uuid.UUID
	Type        DocumentType
	FileName    string
	ObjectKey   string
	URL         string
	ContentType string
	Size        int64
	Extracted   json.RawMessage
	Processed   bool
	UploadedAt  time.Time
}

func hasDocument(docs []*Document, t DocumentType) bool {
	for _, d := range docs {
		if d.Type == t {
			return true
		}
	}

	return false
}

type AlertType string

const (
	AlertQuantityMismatch AlertType = "DIFERENCIA_CANTIDAD"
	AlertWeightMismatch   AlertType = "DIFERENCIA_KILOS"
	AlertPaymentOverdue   AlertType = "PAGO_VENCIDO"
	AlertMissingDocument  AlertType = "DOCUMENTO_FALTANTE"
	AlertCalculationError AlertType = "ERROR_CALCULO"
	AlertPriceMismatch    AlertType = "PRECIO_DISCREPANTE"
)

type Severity string

const (
	SeverityLow      Severity = "BAJA"
	SeverityMedium   Severity = "MEDIA"
	SeverityHigh     Severity = "ALTA"
	SeverityCritical Severity = "CRITICA"
)

type Alert struct {
	ID         uuid.UUID
	SaleID     uuid.UUID
	Type       AlertType
	Severity   Severity
	Message    string
	Resolved   bool
	CreatedAt  time.Time
	ResolvedAt *time.Time

	// Set by ListAlerts for display.
	DocumentNumber    string
	DestinationHolder string
}

// Stats feeds the dashboard.
type Stats struct {
	ActiveSales      int
	PayableThisMonth decimal.Decimal
	Receivables      decimal.Decimal
	OpenAlerts       []*Alert
}

// Debt is the outstanding balance of one buyer across its open sales.
type Debt struct {
	Holder  string
	Sales   int
	Payable decimal.Decimal
	Paid    decimal.Decimal
	Balance decimal.Decimal
}
