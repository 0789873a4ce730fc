package sale_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lochiel/hacienda/internal/sale"
)

func alertTypes(alerts []*sale.Alert) []sale.AlertType {
	types := make([]sale.AlertType, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.Type)
	}

	return types
}

func TestReconcile(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	weighedAt := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	romaneo := []*sale.Document{{Type: sale.DocumentRomaneo}}

	tests := []struct {
		name string
		sale *sale.Sale
		docs []*sale.Document
		want []sale.AlertType
	}{
		{
			name: "Clean",
			sale: &sale.Sale{
				State:            sale.StateWeighed,
				QuantityDeclared: new(40),
				QuantityLoaded:   new(40),
				QuantityWeighed:  new(40),
				AvgWeightPerHead: nd("24.5"),
				WeighingDate:     &recent,
			},
			docs: romaneo,
			want: []sale.AlertType{},
		},
		{
			name: "HeadCountsDiffer",
			sale: &sale.Sale{
				State:            sale.StatePickedUp,
				QuantityDeclared: new(40),
				QuantityLoaded:   new(39),
			},
			want: []sale.AlertType{sale.AlertQuantityMismatch},
		},
		{
			name: "AverageWeightOutOfRange",
			sale: &sale.Sale{
				State:            sale.StateWeighed,
				AvgWeightPerHead: nd("61.2"),
			},
			docs: romaneo,
			want: []sale.AlertType{sale.AlertWeightMismatch},
		},
		{
			name: "OverdueBalance",
			sale: &sale.Sale{
				State:        sale.StateWeighed,
				WeighingDate: &weighedAt,
				TotalPayable: nd("1000"),
				TotalPaid:    dec("200"),
			},
			docs: romaneo,
			want: []sale.AlertType{sale.AlertPaymentOverdue},
		},
		{
			name: "SettledBalanceIsNotOverdue",
			sale: &sale.Sale{
				State:        sale.StateWeighed,
				WeighingDate: &weighedAt,
				TotalPayable: nd("1000"),
				TotalPaid:    dec("1000"),
			},
			docs: romaneo,
			want: []sale.AlertType{},
		},
		{
			name: "RomaneoMissing",
			sale: &sale.Sale{State: sale.StateFinalized},
			want: []sale.AlertType{sale.AlertMissingDocument},
		},
		{
			name: "StoredPayableDrifted",
			sale: &sale.Sale{
				State:          sale.StateWeighed,
				AmountOriginal: nd("1000"),
				IVAPercent:     nd("10.5"),
				TotalWithTax:   nd("1105"),
				TotalPayable:   nd("1200"),
				TotalPaid:      dec("1200"),
			},
			docs: romaneo,
			want: []sale.AlertType{sale.AlertCalculationError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sale.Reconcile(tt.sale, tt.docs, now)
			assert.ElementsMatch(t, tt.want, alertTypes(got))
		})
	}
}
