package view

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const dbTimeout = 5 * time.Second

// FormatMoney renders an ARS amount with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatNullMoney renders "-" for amounts that are not set yet.
func FormatNullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}

	return FormatMoney(d.Decimal)
}

func FormatDate(t *time.Time) string {
	if t == nil {
		return "----------"
	}

	return t.Format(time.DateOnly)
}

func FormatInt(n *int) string {
	if n == nil {
		return "-"
	}

	return strconv.Itoa(*n)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
