package sale

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalized is the payment amount in ARS, converted with the payment's own
// exchange rate.
func (p *Payment) Normalized() decimal.Decimal {
	if p.Currency == CurrencyUSD && p.ExchangeRate.Valid {
		return p.Amount.Mul(p.ExchangeRate.Decimal).Round(moneyPlaces)
	}

	return p.Amount
}

// TotalPaid sums the normalized amount of every payment.
func TotalPaid(payments []*Payment) decimal.Decimal {
	total := decimal.Zero

	for _, p := range payments {
		total = total.Add(p.Normalized())
	}

	return total
}

// ValidatePayment checks a payment on its own, before it is compared with
// the sale balance.
func ValidatePayment(p *Payment) error {
	if !p.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	if !p.Currency.Valid() {
		return &ValidationError{Field: "currency", Reason: "must be ARS or USD"}
	}

	if p.Currency == CurrencyUSD && (!p.ExchangeRate.Valid || !p.ExchangeRate.Decimal.IsPositive()) {
		return &ValidationError{Field: "exchange_rate", Reason: "required for USD payments"}
	}

	if !p.Method.Valid() {
		return &ValidationError{Field: "method", Reason: "unknown payment method"}
	}

	if p.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}

	p.Reference = strings.TrimSpace(p.Reference)

	return nil
}

// CheckPayments verifies that payments, the full set a sale would hold
// after a write, fit within its payable total.
func CheckPayments(s *Sale, payments []*Payment) error {
	if s.State.Terminal() {
		return ErrSaleClosed
	}

	if !s.PayableEstablished() {
		return ErrPriceNotAssigned
	}

	total := TotalPaid(payments)
	if total.GreaterThan(s.TotalPayable.Decimal) {
		return &ValidationError{
			Field: "amount",
			Reason: fmt.Sprintf("payments total %s exceeds payable %s",
				total.StringFixed(moneyPlaces), s.TotalPayable.Decimal.StringFixed(moneyPlaces)),
		}
	}

	return nil
}

// replacePayment returns payments with the entry matching p.ID swapped for p.
func replacePayment(payments []*Payment, p *Payment) ([]*Payment, bool) {
	out := make([]*Payment, len(payments))
	found := false

	for i, existing := range payments {
		if existing.ID == p.ID {
			out[i] = p
			found = true

			continue
		}

		out[i] = existing
	}

	return out, found
}
