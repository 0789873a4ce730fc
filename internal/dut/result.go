package dut

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrBinaryInput is returned by ExtractBytes when the payload is not text.
var ErrBinaryInput = errors.New("dut: input is not text")

// Category is the closed set of sheep categories printed on a DUT.
type Category string

const (
	CategoryOveja   Category = "OVEJA"
	CategoryBorrego Category = "BORREGO"
	CategoryCordero Category = "CORDERO"
	CategoryCapon   Category = "CAPON"
	CategoryCarnero Category = "CARNERO"
	CategoryBorrega Category = "BORREGA"
)

// ParseCategory accepts a category name in any case, with or without accents.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(fold(strings.TrimSpace(s))))
	switch c {
	case CategoryOveja, CategoryBorrego, CategoryCordero, CategoryCapon, CategoryCarnero, CategoryBorrega:
		return c, true
	}

	return "", false
}

// Result is a best-effort, partial reading of a DUT. Empty strings and nil
// pointers mean the field could not be found.
type Result struct {
	DocumentNumber    string              `json:"document_number,omitempty"`
	DestinationHolder string              `json:"destination_holder,omitempty"`
	DestinationRenspa string              `json:"destination_renspa,omitempty"`
	IssueDate         string              `json:"issue_date,omitempty"`
	LoadDate          string              `json:"load_date,omitempty"`
	ExpirationDate    string              `json:"expiration_date,omitempty"`
	Reason            string              `json:"reason,omitempty"`
	Category          Category            `json:"category,omitempty"`
	DocumentFee       decimal.NullDecimal `json:"document_fee"`
	GuideFee          decimal.NullDecimal `json:"guide_fee"`
	Quantity          *int                `json:"quantity,omitempty"`
	Confidence        int                 `json:"confidence"`
	Errors            []string            `json:"errors"`
}

// LowConfidence reports whether the caller should warn before trusting r.
func (r *Result) LowConfidence(threshold int) bool {
	return r.Confidence < threshold
}

const maxConfidence = 100

// score is the weighted count of populated fields, capped at maxConfidence.
func score(r *Result) int {
	total := 0

	if r.DocumentNumber != "" {
		total += 20
	}

	if r.DestinationHolder != "" {
		total += 20
	}

	if r.IssueDate != "" {
		total += 15
	}

	if r.Reason != "" {
		total += 10
	}

	if r.Category != "" {
		total += 10
	}

	if r.Quantity != nil {
		total += 15
	}

	if r.DocumentFee.Valid {
		total += 10
	}

	return min(total, maxConfidence)
}
