package dut

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a printed amount in either Argentine ("1.234,56") or
// US ("1,234.56") notation. With a single separator kind, a repeated
// separator or a lone one followed by exactly three digits groups
// thousands; otherwise it is the decimal point.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	var clean string

	switch {
	case lastDot >= 0 && lastComma >= 0:
		decSep, thouSep := ",", "."
		if lastDot > lastComma {
			decSep, thouSep = ".", ","
		}

		clean = strings.ReplaceAll(s, thouSep, "")
		clean = strings.Replace(clean, decSep, ".", 1)
	case lastDot >= 0:
		clean = normalizeSingleSeparator(s, ".")
	case lastComma >= 0:
		clean = normalizeSingleSeparator(s, ",")
	default:
		clean = s
	}

	return decimal.NewFromString(clean)
}

func normalizeSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}

	frac := s[strings.Index(s, sep)+1:]
	if len(frac) == 3 {
		return strings.Replace(s, sep, "", 1)
	}

	return strings.Replace(s, sep, ".", 1)
}
