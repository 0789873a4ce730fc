// Package pdftext reads the text layer of a PDF, row by row.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

type Reader struct{}

func New() *Reader {
	return &Reader{}
}

// Text joins the words of every row of every page, one row per line. A
// scanned PDF yields an empty string.
func (*Reader) Text(ctx context.Context, r io.Reader) (string, error) {
	buf := new(bytes.Buffer)

	size, err := buf.ReadFrom(r)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), size)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var sb strings.Builder

	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("reading page %d: %w", i, err)
		}

		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}

			sb.WriteString(strings.Join(words, " "))
			sb.WriteByte('\n')
		}
	}

	return sb.String(), nil
}
