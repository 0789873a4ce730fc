package sale

import (
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ComputeDerived recalculates every derived amount whose inputs are present.
// Rules run in dependency order so one pass is enough, and running it twice
// gives the same result. Derived fields whose inputs are missing are left as
// they are.
func ComputeDerived(s *Sale) {
	if s.TotalWeightKg.Valid && s.QuantityWeighed != nil && *s.QuantityWeighed > 0 {
		heads := decimal.NewFromInt(int64(*s.QuantityWeighed))
		s.AvgWeightPerHead = decimal.NewNullDecimal(s.TotalWeightKg.Decimal.DivRound(heads, moneyPlaces))
	}

	if s.TotalWeightKg.Valid && s.PricePerKg.Valid {
		amount := s.TotalWeightKg.Decimal.Mul(s.PricePerKg.Decimal).Round(moneyPlaces)

		if s.Currency == CurrencyARS {
			s.AmountOriginal = decimal.NewNullDecimal(amount)
		} else {
			s.AmountUSD = decimal.NewNullDecimal(amount)
		}

		if s.AvgWeightPerHead.Valid {
			s.PricePerHead = decimal.NewNullDecimal(s.PricePerKg.Decimal.Mul(s.AvgWeightPerHead.Decimal).Round(moneyPlaces))
		}
	}

	if s.Currency != CurrencyARS && s.AmountUSD.Valid && s.ExchangeRate.Valid {
		s.AmountOriginal = decimal.NewNullDecimal(s.AmountUSD.Decimal.Mul(s.ExchangeRate.Decimal).Round(moneyPlaces))
	}

	if s.AmountOriginal.Valid {
		s.NetAmount = s.AmountOriginal

		switch {
		case s.InvoiceExempt:
			s.TotalWithTax = s.AmountOriginal
		case s.IVAPercent.Valid:
			factor := decimal.NewFromInt(1).Add(s.IVAPercent.Decimal.Div(hundred))
			s.TotalWithTax = decimal.NewNullDecimal(s.AmountOriginal.Decimal.Mul(factor).Round(moneyPlaces))
		}
	}

	if s.TotalWithTax.Valid {
		s.TotalPayable = decimal.NewNullDecimal(s.TotalWithTax.Decimal.Sub(deductions(s)))
	}
}

// deductions are subtracted from the taxed total. Missing values count as
// zero.
func deductions(s *Sale) decimal.Decimal {
	total := decimal.Zero

	for _, d := range []decimal.NullDecimal{s.Withholding, s.DocumentFee, s.GuideFee} {
		if d.Valid {
			total = total.Add(d.Decimal)
		}
	}

	return total
}
