package dut

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips combining marks so "Capón" and "CAPON"
// compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}

	return strings.ToLower(out)
}

// cleanReason keeps letters, digits, underscores and whitespace, the same
// alphabet a "Motivo:" value is expected to use.
func cleanReason(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			return r
		}

		return -1
	}, s)

	return strings.Join(strings.Fields(cleaned), " ")
}

// longEnough rejects punctuation-only or truncated captures.
func longEnough(s string, minRunes int) bool {
	return utf8.RuneCountInString(s) > minRunes
}

// firstSubmatch runs rules in order and returns the first capture group of
// the first rule that matches and satisfies accept.
func firstSubmatch(text string, rules []rule, accept func(string) bool) string {
	for _, rl := range rules {
		for _, m := range rl.Pattern.FindAllStringSubmatch(text, -1) {
			v := strings.TrimSpace(m[1])
			if accept == nil || accept(v) {
				return v
			}
		}
	}

	return ""
}
