package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/encoding"
	"github.com/lochiel/hacienda/internal/importer/pdftext"
	"github.com/lochiel/hacienda/internal/metrics"
)

type plainText struct{}

func (plainText) Text(_ context.Context, r io.Reader) (string, error) {
	return encoding.ReadString(r)
}

type Service struct {
	sources map[Kind]Source
}

// NewService wires the built-in PDF and text sources. ocr may be nil, in
// which case images are rejected with ErrOCRDisabled.
func NewService(ocr Source) *Service {
	s := &Service{
		sources: map[Kind]Source{
			KindPDF:  pdftext.New(),
			KindText: plainText{},
		},
	}

	if ocr != nil {
		s.sources[KindImage] = ocr
	}

	return s
}

// Text returns the plain text of r. PDFs without a text layer are sent to
// OCR when it is configured.
func (s *Service) Text(ctx context.Context, kind Kind, r io.Reader) (string, error) {
	src, ok := s.sources[kind]
	if !ok {
		if kind == KindImage {
			return "", &UpstreamError{Kind: kind, Err: ErrOCRDisabled}
		}

		return "", fmt.Errorf("unknown source kind: %s", kind)
	}

	if kind != KindPDF {
		text, err := src.Text(ctx, r)
		if err != nil {
			return "", &UpstreamError{Kind: kind, Err: err}
		}

		return text, nil
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}

	text, err := src.Text(ctx, bytes.NewReader(raw))
	if err != nil {
		return "", &UpstreamError{Kind: kind, Err: err}
	}

	ocr, hasOCR := s.sources[KindImage]
	if strings.TrimSpace(text) != "" || !hasOCR {
		return text, nil
	}

	slog.Info("pdf has no text layer, falling back to OCR", "bytes", len(raw))

	text, err = ocr.Text(ctx, bytes.NewReader(raw))
	if err != nil {
		return "", &UpstreamError{Kind: KindImage, Err: err}
	}

	return text, nil
}

// Extract reads the document and runs the DUT extractor over its text.
func (s *Service) Extract(ctx context.Context, kind Kind, r io.Reader) (*dut.Result, error) {
	text, err := s.Text(ctx, kind, r)
	if err != nil {
		metrics.Extractions.WithLabelValues(string(kind), "source_error").Inc()
		return nil, err
	}

	res := dut.Extract(text)

	outcome := "complete"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}

	metrics.Extractions.WithLabelValues(string(kind), outcome).Inc()
	metrics.ExtractionConfidence.Observe(float64(res.Confidence))

	slog.Info("dut extracted", "kind", kind, "document_number", res.DocumentNumber,
		"confidence", res.Confidence, "gaps", len(res.Errors))

	return res, nil
}
