package sale_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lochiel/hacienda/internal/sale"
)

func arsPayment(amount string) *sale.Payment {
	return &sale.Payment{
		ID:       uuid.New(),
		Amount:   dec(amount),
		Currency: sale.CurrencyARS,
		Method:   sale.PaymentTransfer,
		Date:     time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	}
}

func usdPayment(amount, rate string) *sale.Payment {
	p := arsPayment(amount)
	p.Currency = sale.CurrencyUSD
	p.ExchangeRate = nd(rate)

	return p
}

func TestTotalPaid(t *testing.T) {
	tests := []struct {
		name     string
		payments []*sale.Payment
		want     string
	}{
		{name: "Empty", want: "0"},
		{name: "ARSOnly", payments: []*sale.Payment{arsPayment("100"), arsPayment("250.50")}, want: "350.5"},
		{
			name:     "EachUSDPaymentUsesItsOwnRate",
			payments: []*sale.Payment{usdPayment("10", "900"), usdPayment("10", "1000"), arsPayment("5")},
			want:     "19005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sale.TotalPaid(tt.payments)
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestTotalPaid_OrderIndependent(t *testing.T) {
	a, b, c := usdPayment("12.5", "1010"), arsPayment("3000"), usdPayment("7", "980.25")

	first := sale.TotalPaid([]*sale.Payment{a, b, c})
	second := sale.TotalPaid([]*sale.Payment{c, a, b})

	assert.True(t, first.Equal(second))
}

func TestValidatePayment(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *sale.Payment)
		wantField string
	}{
		{name: "Valid", mutate: func(*sale.Payment) {}},
		{name: "ZeroAmount", mutate: func(p *sale.Payment) { p.Amount = dec("0") }, wantField: "amount"},
		{name: "NegativeAmount", mutate: func(p *sale.Payment) { p.Amount = dec("-1") }, wantField: "amount"},
		{name: "UnknownCurrency", mutate: func(p *sale.Payment) { p.Currency = "BRL" }, wantField: "currency"},
		{
			name: "USDWithoutRate",
			mutate: func(p *sale.Payment) {
				p.Currency = sale.CurrencyUSD
			},
			wantField: "exchange_rate",
		},
		{name: "UnknownMethod", mutate: func(p *sale.Payment) { p.Method = "TRUEQUE" }, wantField: "method"},
		{name: "MissingDate", mutate: func(p *sale.Payment) { p.Date = time.Time{} }, wantField: "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := arsPayment("100")
			tt.mutate(p)

			err := sale.ValidatePayment(p)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *sale.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestCheckPayments(t *testing.T) {
	priced := func() *sale.Sale {
		return &sale.Sale{State: sale.StateWeighed, TotalPayable: nd("1000"), PriceAssigned: true}
	}

	tests := []struct {
		name     string
		sale     *sale.Sale
		payments []*sale.Payment
		wantErr  error
		overpaid bool
	}{
		{name: "WithinBalance", sale: priced(), payments: []*sale.Payment{arsPayment("400"), arsPayment("600")}},
		{
			name:     "ExceedsBalance",
			sale:     priced(),
			payments: []*sale.Payment{arsPayment("400"), arsPayment("600.01")},
			overpaid: true,
		},
		{
			name:     "USDConvertedBeforeComparing",
			sale:     priced(),
			payments: []*sale.Payment{usdPayment("1", "1001")},
			overpaid: true,
		},
		{
			name:     "PriceNotAssigned",
			sale:     &sale.Sale{State: sale.StatePickedUp},
			payments: []*sale.Payment{arsPayment("1")},
			wantErr:  sale.ErrPriceNotAssigned,
		},
		{
			name:     "ZeroPayableIsNotEstablished",
			sale:     &sale.Sale{State: sale.StateWeighed, TotalPayable: nd("0")},
			payments: []*sale.Payment{arsPayment("1")},
			wantErr:  sale.ErrPriceNotAssigned,
		},
		{
			name:     "CancelledSale",
			sale:     &sale.Sale{State: sale.StateCancelled, TotalPayable: nd("1000")},
			payments: []*sale.Payment{arsPayment("1")},
			wantErr:  sale.ErrSaleClosed,
		},
		{
			name:     "FinalizedSale",
			sale:     &sale.Sale{State: sale.StateFinalized, TotalPayable: nd("1000")},
			payments: []*sale.Payment{arsPayment("1")},
			wantErr:  sale.ErrSaleClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sale.CheckPayments(tt.sale, tt.payments)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.overpaid:
				var vErr *sale.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "amount", vErr.Field)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
