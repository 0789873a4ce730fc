package sale

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const paymentGracePeriod = 30 * 24 * time.Hour

var (
	minAvgWeightKg = decimal.NewFromInt(15)
	maxAvgWeightKg = decimal.NewFromInt(60)
)

// Reconcile inspects s and returns the alerts that currently apply to it.
// It does not look at alerts already raised; callers deduplicate by type.
func Reconcile(s *Sale, docs []*Document, now time.Time) []*Alert {
	var alerts []*Alert

	raise := func(t AlertType, sev Severity, format string, args ...any) {
		alerts = append(alerts, &Alert{
			SaleID:   s.ID,
			Type:     t,
			Severity: sev,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if counts, differ := headCounts(s); differ {
		raise(AlertQuantityMismatch, SeverityMedium, "head counts differ: %s", counts)
	}

	if s.AvgWeightPerHead.Valid {
		avg := s.AvgWeightPerHead.Decimal
		if avg.LessThan(minAvgWeightKg) || avg.GreaterThan(maxAvgWeightKg) {
			raise(AlertWeightMismatch, SeverityMedium, "average weight %s kg is outside %s-%s kg",
				avg.StringFixed(1), minAvgWeightKg, maxAvgWeightKg)
		}
	}

	if due, ok := paymentDue(s); ok && now.After(due) && s.Balance().IsPositive() && !s.State.Terminal() {
		raise(AlertPaymentOverdue, SeverityHigh, "balance %s overdue since %s",
			s.Balance().StringFixed(moneyPlaces), due.Format(time.DateOnly))
	}

	if (s.State == StateWeighed || s.State == StateFinalized) && !hasDocument(docs, DocumentRomaneo) {
		raise(AlertMissingDocument, SeverityHigh, "no %s document attached", DocumentRomaneo)
	}

	if s.TotalPayable.Valid {
		check := *s
		ComputeDerived(&check)

		if !check.TotalPayable.Decimal.Equal(s.TotalPayable.Decimal) {
			raise(AlertCalculationError, SeverityCritical, "stored payable %s, recomputed %s",
				s.TotalPayable.Decimal.StringFixed(moneyPlaces), check.TotalPayable.Decimal.StringFixed(moneyPlaces))
		}
	}

	return alerts
}

func headCounts(s *Sale) (string, bool) {
	var parts []string

	var seen []int

	for _, c := range []struct {
		label string
		n     *int
	}{
		{"declared", s.QuantityDeclared},
		{"loaded", s.QuantityLoaded},
		{"weighed", s.QuantityWeighed},
	} {
		if c.n == nil {
			continue
		}

		parts = append(parts, c.label+" "+strconv.Itoa(*c.n))
		seen = append(seen, *c.n)
	}

	for _, n := range seen[min(1, len(seen)):] {
		if n != seen[0] {
			return strings.Join(parts, ", "), true
		}
	}

	return "", false
}

// paymentDue is the agreed payment date, or thirty days after weighing.
func paymentDue(s *Sale) (time.Time, bool) {
	if s.PaymentDate != nil {
		return *s.PaymentDate, true
	}

	if s.WeighingDate != nil {
		return s.WeighingDate.Add(paymentGracePeriod), true
	}

	return time.Time{}, false
}
