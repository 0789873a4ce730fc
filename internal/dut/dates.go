package dut

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// keywordWindow is how far back from a date token a role keyword may start.
const keywordWindow = 64

// NormalizeDate converts a printed date to YYYY-MM-DD. Tokens that do not
// form a real calendar date come back unchanged.
func NormalizeDate(raw string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '/' || r == '-' || r == '.' {
			return r
		}

		return -1
	}, strings.TrimSpace(raw))

	if len(clean) < 6 {
		return raw
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) != 3 {
		return raw
	}

	var year, month, day string
	if len(parts[0]) == 4 {
		year, month, day = parts[0], parts[1], parts[2]
	} else {
		day, month, year = parts[0], parts[1], parts[2]
	}

	if len(year) == 2 {
		year = "20" + year
	}

	formatted := fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))

	if _, err := time.Parse(time.DateOnly, formatted); err != nil {
		return raw
	}

	return formatted
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}

	return s
}

type dateMatch struct {
	raw   string
	start int
}

// assignDates resolves every date token to issue, load or expiration.
// Keyword-anchored tokens claim their role first; the rest fill the
// remaining roles in document order.
func assignDates(text string) [3]string {
	var roles [3]string

	var unanchored []dateMatch

	for _, loc := range dateToken.FindAllStringIndex(text, -1) {
		m := dateMatch{raw: text[loc[0]:loc[1]], start: loc[0]}

		role, ok := anchoredRole(text, m.start)
		if !ok {
			unanchored = append(unanchored, m)
			continue
		}

		if roles[role] == "" {
			roles[role] = NormalizeDate(m.raw)
		}
	}

	for _, m := range unanchored {
		for i := range roles {
			if roles[i] == "" {
				roles[i] = NormalizeDate(m.raw)
				break
			}
		}
	}

	return roles
}

func anchoredRole(text string, start int) (dateRole, bool) {
	prefix := text[max(0, start-keywordWindow):start]

	for _, k := range dateKeywords {
		if k.Pattern.MatchString(prefix) {
			return k.Role, true
		}
	}

	return 0, false
}
