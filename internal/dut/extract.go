// Package dut reads the fields of a DUT (Documento Único de Tránsito) out of
// the plain text of its PDF or OCR rendering.
//
// Every field is resolved by its own ordered rule table. A field that cannot
// be resolved is left empty; only the document number, the destination
// holder and the issue date are reported in Result.Errors, since those are
// the fields a sale cannot be created without.
package dut

import (
	"bytes"
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const minHolderRunes = 3

// Extract parses text and never fails: gaps are listed in Result.Errors.
func Extract(text string) *Result {
	res := &Result{Errors: []string{}}

	res.DocumentNumber = firstSubmatch(text, documentNumberRules, nil)
	res.DestinationHolder = extractHolder(text)
	res.DestinationRenspa = extractRenspa(text)

	dates := assignDates(text)
	res.IssueDate = dates[roleIssue]
	res.LoadDate = dates[roleLoad]
	res.ExpirationDate = dates[roleExpiration]

	res.Reason = extractReason(text)
	res.Category = extractCategory(text)
	res.DocumentFee, res.GuideFee = extractFees(text)
	res.Quantity = extractQuantity(text)

	if res.DocumentNumber == "" {
		res.Errors = append(res.Errors, "could not extract document number")
	}

	if res.DestinationHolder == "" {
		res.Errors = append(res.Errors, "could not extract destination holder")
	}

	if res.IssueDate == "" {
		res.Errors = append(res.Errors, "could not extract issue date")
	}

	res.Confidence = score(res)

	return res
}

// ExtractBytes is Extract for raw payloads. It rejects input that is not
// UTF-8 text, which is the only failure the extractor reports.
func ExtractBytes(b []byte) (*Result, error) {
	if !utf8.Valid(b) || bytes.IndexByte(b, 0) >= 0 {
		return nil, ErrBinaryInput
	}

	return Extract(string(b)), nil
}

func holderAccepted(s string) bool {
	return longEnough(s, minHolderRunes)
}

func extractHolder(text string) string {
	if m := destinoBlock.FindStringSubmatch(text); m != nil {
		if v := strings.TrimSpace(m[1]); holderAccepted(v) {
			return v
		}
	}

	if section, ok := sectionBetween(text, destinoSectionStart, origenSectionStart); ok {
		if v := sectionHolder(section); v != "" {
			return v
		}
	}

	if loc := origenSectionStart.FindStringIndex(text); loc != nil {
		if section, ok := sectionBetween(text[loc[1]:], destinoSectionStart, movementSectionStart); ok {
			if v := sectionHolder(section); v != "" {
				return v
			}
		}
	}

	return firstSubmatch(text, holderRules, holderAccepted)
}

func sectionHolder(section string) string {
	m := sectionTitular.FindStringSubmatch(section)
	if m == nil {
		return ""
	}

	if v := strings.TrimSpace(m[1]); holderAccepted(v) {
		return v
	}

	return ""
}

// sectionBetween returns the text from the first start marker up to the next
// end marker, or to the end of text when there is none.
func sectionBetween(text string, start, end *regexp.Regexp) (string, bool) {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return "", false
	}

	section := text[loc[0]:]
	if stop := end.FindStringIndex(section[loc[1]-loc[0]:]); stop != nil {
		section = section[:loc[1]-loc[0]+stop[0]]
	}

	return section, true
}

// extractRenspa relies on DT-e printouts listing the origin RENSPA before
// the destination one: with two or more codes the second wins outright.
func extractRenspa(text string) string {
	all := renspaAny.FindAllString(text, -1)
	if len(all) >= 2 {
		return all[1]
	}

	if v := firstSubmatch(text, renspaRules, renspaExact.MatchString); v != "" {
		return v
	}

	section, ok := sectionBetween(text, renspaSectionFrom, renspaSectionEnd)
	if !ok {
		return ""
	}

	return renspaAny.FindString(section)
}

func extractReason(text string) string {
	if v := firstSubmatch(text, reproduccionUERules, nil); v != "" {
		return strings.Join(strings.Fields(v), " ")
	}

	for _, m := range motivoRule.Pattern.FindAllStringSubmatch(text, -1) {
		v := cleanReason(m[1])
		if longEnough(v, 2) && !strings.Contains(fold(v), "oficina") {
			return v
		}
	}

	for _, h := range reasonHints {
		if h.Pattern.MatchString(text) {
			return h.Reason
		}
	}

	return ""
}

func extractCategory(text string) Category {
	for _, rl := range categoryRules {
		m := rl.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		if c, ok := mapCategory(m[1]); ok {
			return c
		}
	}

	return ""
}

func mapCategory(s string) (Category, bool) {
	folded := fold(s)

	for _, k := range categoryKeywords {
		if strings.Contains(folded, k.Keyword) {
			return k.Category, true
		}
	}

	return "", false
}

type feeMatch struct {
	value decimal.Decimal
	start int
}

// extractFees prefers the resolution-code labels. Whatever is still missing
// is filled from unlabelled amounts in the order they appear in the text.
func extractFees(text string) (document, guide decimal.NullDecimal) {
	seen := make(map[int]bool)

	var pool []feeMatch

	for _, lr := range labelledFeeRules {
		for _, loc := range lr.Pattern.FindAllStringSubmatchIndex(text, -1) {
			v, err := ParseAmount(text[loc[2]:loc[3]])
			if err != nil {
				continue
			}

			seen[loc[2]] = true

			switch {
			case lr.Role == feeDocument && !document.Valid:
				document = decimal.NewNullDecimal(v)
			case lr.Role == feeGuide && !guide.Valid:
				guide = decimal.NewNullDecimal(v)
			case lr.Role == feeUnassigned:
				pool = append(pool, feeMatch{value: v, start: loc[2]})
			}
		}
	}

	for _, rl := range genericFeeRules {
		for _, loc := range rl.Pattern.FindAllStringSubmatchIndex(text, -1) {
			if seen[loc[2]] {
				continue
			}

			v, err := ParseAmount(text[loc[2]:loc[3]])
			if err != nil {
				continue
			}

			seen[loc[2]] = true
			pool = append(pool, feeMatch{value: v, start: loc[2]})
		}
	}

	slices.SortStableFunc(pool, func(a, b feeMatch) int { return cmp.Compare(a.start, b.start) })

	for _, f := range pool {
		switch {
		case !document.Valid:
			document = decimal.NewNullDecimal(f.value)
		case !guide.Valid:
			guide = decimal.NewNullDecimal(f.value)
		}
	}

	return document, guide
}

func extractQuantity(text string) *int {
	for _, rl := range quantityRules {
		m := rl.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}

		return &n
	}

	return nil
}
