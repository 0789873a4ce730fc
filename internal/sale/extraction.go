package sale

import (
	"time"

	"github.com/lochiel/hacienda/internal/dut"
)

// ParamsFromExtraction prefills a sale from an extracted DUT. Dates that the
// extractor could not normalize are dropped rather than guessed.
func ParamsFromExtraction(res *dut.Result, est Establishment) CreateParams {
	return CreateParams{
		DocumentNumber:    res.DocumentNumber,
		Establishment:     est,
		DestinationHolder: res.DestinationHolder,
		DestinationRenspa: res.DestinationRenspa,
		Category:          res.Category,
		Reason:            res.Reason,
		QuantityDeclared:  res.Quantity,
		IssueDate:         parseDate(res.IssueDate),
		LoadDate:          parseDate(res.LoadDate),
		ExpirationDate:    parseDate(res.ExpirationDate),
		DocumentFee:       res.DocumentFee,
		GuideFee:          res.GuideFee,
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}

	return &t
}
