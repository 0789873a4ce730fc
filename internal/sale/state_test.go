package sale_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lochiel/hacienda/internal/sale"
)

var allStates = []sale.State{
	sale.StateOpen, sale.StatePickedUp, sale.StateWeighed, sale.StateFinalized, sale.StateCancelled,
}

func TestCanTransition(t *testing.T) {
	allowed := map[sale.State][]sale.State{
		sale.StateOpen:     {sale.StatePickedUp, sale.StateCancelled},
		sale.StatePickedUp: {sale.StateWeighed, sale.StateCancelled},
		sale.StateWeighed:  {sale.StateFinalized, sale.StateCancelled},
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := false

			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}

			assert.Equal(t, want, sale.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransition_TerminalStates(t *testing.T) {
	romaneo := []*sale.Document{{Type: sale.DocumentRomaneo}}

	for _, from := range []sale.State{sale.StateFinalized, sale.StateCancelled} {
		for _, to := range allStates {
			s := &sale.Sale{State: from}

			err := sale.CheckTransition(s, to, romaneo)

			var tErr *sale.TransitionError
			require.True(t, errors.As(err, &tErr), "%s -> %s", from, to)
			assert.Equal(t, from, tErr.From)
			assert.Equal(t, to, tErr.To)
			assert.Empty(t, tErr.Guard)
		}
	}
}

func TestCheckTransition_Guards(t *testing.T) {
	tests := []struct {
		name      string
		sale      *sale.Sale
		to        sale.State
		docs      []*sale.Document
		wantGuard sale.Guard
		wantErr   bool
	}{
		{
			name:      "WeighingWithoutRomaneo",
			sale:      &sale.Sale{State: sale.StatePickedUp},
			to:        sale.StateWeighed,
			docs:      []*sale.Document{{Type: sale.DocumentDUT}},
			wantGuard: sale.GuardRomaneoDocument,
			wantErr:   true,
		},
		{
			name: "WeighingWithRomaneo",
			sale: &sale.Sale{State: sale.StatePickedUp},
			to:   sale.StateWeighed,
			docs: []*sale.Document{{Type: sale.DocumentDUT}, {Type: sale.DocumentRomaneo}},
		},
		{
			name:      "FinalizeWithOpenBalance",
			sale:      &sale.Sale{State: sale.StateWeighed, TotalPayable: nd("1000"), TotalPaid: dec("999")},
			to:        sale.StateFinalized,
			wantGuard: sale.GuardBalanceSettled,
			wantErr:   true,
		},
		{
			name: "FinalizeSettled",
			sale: &sale.Sale{State: sale.StateWeighed, TotalPayable: nd("1000"), TotalPaid: dec("1000")},
			to:   sale.StateFinalized,
		},
		{
			name:    "SkipPickup",
			sale:    &sale.Sale{State: sale.StateOpen},
			to:      sale.StateWeighed,
			docs:    []*sale.Document{{Type: sale.DocumentRomaneo}},
			wantErr: true,
		},
		{
			name: "CancelFromAnyOpenState",
			sale: &sale.Sale{State: sale.StateWeighed, TotalPayable: nd("1000")},
			to:   sale.StateCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sale.CheckTransition(tt.sale, tt.to, tt.docs)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var tErr *sale.TransitionError
			require.True(t, errors.As(err, &tErr))
			assert.Equal(t, tt.wantGuard, tErr.Guard)
			assert.Contains(t, err.Error(), string(tt.sale.State))
			assert.Contains(t, err.Error(), string(tt.to))
		})
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		want    sale.State
		wantErr bool
	}{
		{in: "ABIERTO", want: sale.StateOpen},
		{in: "pendiente", want: sale.StateOpen},
		{in: " romaneo ", want: sale.StateWeighed},
		{in: "FACTURADO", want: sale.StateWeighed},
		{in: "CANCELADO", want: sale.StateCancelled},
		{in: "VENDIDO", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sale.ParseState(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarkInvoiced(t *testing.T) {
	tests := []struct {
		name    string
		sale    *sale.Sale
		number  string
		wantErr bool
	}{
		{name: "WithNumber", sale: &sale.Sale{}, number: "0003-00001234"},
		{name: "ExemptWithoutNumber", sale: &sale.Sale{InvoiceExempt: true}},
		{name: "TaxedWithoutNumber", sale: &sale.Sale{}, number: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sale.MarkInvoiced(tt.sale, tt.number)
			if tt.wantErr {
				var vErr *sale.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "invoice_number", vErr.Field)
				assert.False(t, tt.sale.Invoiced())

				return
			}

			require.NoError(t, err)
			assert.True(t, tt.sale.Invoiced())
		})
	}
}
