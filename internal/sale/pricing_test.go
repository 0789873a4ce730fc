package sale_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lochiel/hacienda/internal/sale"
)

func weighedSale() sale.Sale {
	return sale.Sale{
		State:           sale.StateWeighed,
		TotalWeightKg:   nd("100"),
		QuantityWeighed: new(4),
		IVAPercent:      nd("10.5"),
	}
}

func TestAssignPrice(t *testing.T) {
	type testCase struct {
		name       string
		sale       func() sale.Sale
		in         sale.PriceInput
		wantErr    error
		wantField  string
		wantPay    string
		wantTaxed  string
		wantOrigin string
	}

	tests := []testCase{
		{
			name: "TaxedARS",
			sale: weighedSale,
			in: sale.PriceInput{
				PricePerKg: dec("10"),
				Currency:   sale.CurrencyARS,
			},
			wantOrigin: "1000",
			wantTaxed:  "1105",
			wantPay:    "1105",
		},
		{
			name: "ExemptIgnoresDefaultIVA",
			sale: func() sale.Sale {
				s := weighedSale()
				s.DocumentFee = nd("30")
				s.GuideFee = nd("20")
				return s
			},
			in: sale.PriceInput{
				PricePerKg:    dec("10"),
				Currency:      sale.CurrencyARS,
				InvoiceExempt: true,
				Withholding:   nd("50"),
			},
			wantOrigin: "1000",
			wantTaxed:  "1000",
			wantPay:    "900",
		},
		{
			name: "USDConverted",
			sale: weighedSale,
			in: sale.PriceInput{
				PricePerKg:   dec("2"),
				Currency:     sale.CurrencyUSD,
				ExchangeRate: nd("1000"),
				IVAPercent:   nd("21"),
			},
			wantOrigin: "200000",
			wantTaxed:  "242000",
			wantPay:    "242000",
		},
		{
			name: "BeforeWeighing",
			sale: func() sale.Sale {
				return sale.Sale{State: sale.StatePickedUp, IVAPercent: nd("10.5")}
			},
			in:        sale.PriceInput{PricePerKg: dec("10"), Currency: sale.CurrencyARS},
			wantField: "total_weight_kg",
		},
		{
			name: "AlreadyAssigned",
			sale: func() sale.Sale {
				s := weighedSale()
				s.PriceAssigned = true
				return s
			},
			in:      sale.PriceInput{PricePerKg: dec("10"), Currency: sale.CurrencyARS},
			wantErr: sale.ErrPriceAlreadyAssigned,
		},
		{
			name:      "USDWithoutRate",
			sale:      weighedSale,
			in:        sale.PriceInput{PricePerKg: dec("2"), Currency: sale.CurrencyUSD},
			wantField: "exchange_rate",
		},
		{
			name:      "ZeroPrice",
			sale:      weighedSale,
			in:        sale.PriceInput{PricePerKg: decimal.Zero, Currency: sale.CurrencyARS},
			wantField: "price_per_kg",
		},
		{
			name:      "UnknownCurrency",
			sale:      weighedSale,
			in:        sale.PriceInput{PricePerKg: dec("10"), Currency: "EUR"},
			wantField: "currency",
		},
		{
			name: "DeductionsAboveTotal",
			sale: weighedSale,
			in: sale.PriceInput{
				PricePerKg:    dec("10"),
				Currency:      sale.CurrencyARS,
				InvoiceExempt: true,
				Withholding:   nd("1500"),
			},
			wantField: "withholding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.sale()
			before := s

			err := sale.AssignPrice(&s, tt.in)

			if tt.wantErr != nil || tt.wantField != "" {
				require.Error(t, err)

				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}

				if tt.wantField != "" {
					var vErr *sale.ValidationError
					require.True(t, errors.As(err, &vErr))
					assert.Equal(t, tt.wantField, vErr.Field)
				}

				assert.Equal(t, before, s, "sale must be untouched on error")

				return
			}

			require.NoError(t, err)
			assert.True(t, s.PriceAssigned)
			assert.Equal(t, tt.in.InvoiceExempt, s.InvoiceExempt)
			assertDecimal(t, tt.wantOrigin, s.AmountOriginal, "amount original")
			assertDecimal(t, tt.wantTaxed, s.TotalWithTax, "total with tax")
			assertDecimal(t, tt.wantPay, s.TotalPayable, "total payable")
		})
	}
}

func TestAssignPrice_SecondCallRejected(t *testing.T) {
	s := weighedSale()
	require.NoError(t, sale.AssignPrice(&s, sale.PriceInput{PricePerKg: dec("10"), Currency: sale.CurrencyARS}))

	err := sale.AssignPrice(&s, sale.PriceInput{PricePerKg: dec("12"), Currency: sale.CurrencyARS})
	assert.ErrorIs(t, err, sale.ErrPriceAlreadyAssigned)
	assertDecimal(t, "10", s.PricePerKg, "price per kg")
}
