package sale

import (
	"github.com/shopspring/decimal"
)

// PriceInput is the one-time commercial price of a weighed sale.
type PriceInput struct {
	PricePerKg    decimal.Decimal
	Currency      Currency
	ExchangeRate  decimal.NullDecimal
	InvoiceExempt bool
	IVAPercent    decimal.NullDecimal
	Withholding   decimal.NullDecimal
}

func (in PriceInput) validate() error {
	if !in.PricePerKg.IsPositive() {
		return &ValidationError{Field: "price_per_kg", Reason: "must be greater than zero"}
	}

	if !in.Currency.Valid() {
		return &ValidationError{Field: "currency", Reason: "must be ARS or USD"}
	}

	if in.Currency == CurrencyUSD && (!in.ExchangeRate.Valid || !in.ExchangeRate.Decimal.IsPositive()) {
		return &ValidationError{Field: "exchange_rate", Reason: "required for USD prices"}
	}

	if in.IVAPercent.Valid && in.IVAPercent.Decimal.IsNegative() {
		return &ValidationError{Field: "iva_percent", Reason: "must not be negative"}
	}

	if in.Withholding.Valid && in.Withholding.Decimal.IsNegative() {
		return &ValidationError{Field: "withholding", Reason: "must not be negative"}
	}

	return nil
}

// AssignPrice prices a weighed sale and fixes its billing mode. It can run
// once per sale. s is left untouched when an error is returned.
func AssignPrice(s *Sale, in PriceInput) error {
	if s.PriceAssigned {
		return ErrPriceAlreadyAssigned
	}

	if !s.TotalWeightKg.Valid || !s.TotalWeightKg.Decimal.IsPositive() {
		return &ValidationError{Field: "total_weight_kg", Reason: "weighing must be recorded before pricing"}
	}

	if err := in.validate(); err != nil {
		return err
	}

	next := *s
	next.PricePerKg = decimal.NewNullDecimal(in.PricePerKg)
	next.Currency = in.Currency
	next.InvoiceExempt = in.InvoiceExempt

	if in.Currency == CurrencyUSD {
		next.ExchangeRate = in.ExchangeRate
	} else {
		next.AmountUSD = decimal.NullDecimal{}
		next.ExchangeRate = decimal.NullDecimal{}
	}

	if in.IVAPercent.Valid {
		next.IVAPercent = in.IVAPercent
	}

	if in.Withholding.Valid {
		next.Withholding = in.Withholding
	}

	ComputeDerived(&next)

	if next.TotalPayable.Decimal.IsNegative() {
		return &ValidationError{Field: "withholding", Reason: "deductions exceed the invoiced total"}
	}

	if next.TotalPaid.GreaterThan(next.TotalPayable.Decimal) {
		return &ValidationError{Field: "price_per_kg", Reason: "registered payments exceed the resulting total"}
	}

	next.PriceAssigned = true
	*s = next

	return nil
}
