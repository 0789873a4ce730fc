package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// Kind selects how an uploaded file is turned into text.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

//go:generate mockgen -source=importer.go -destination=source_mock.go -package=importer

// Source produces the plain text of a document.
type Source interface {
	Text(ctx context.Context, r io.Reader) (string, error)
}

var ErrOCRDisabled = errors.New("importer: OCR endpoint not configured")

// UpstreamError wraps a failure of the text source itself. It is never
// returned for documents that were read but yielded few fields.
type UpstreamError struct {
	Kind Kind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s text source: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// KindOf maps a MIME type to a source kind.
func KindOf(contentType string) (Kind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case mediaType == "application/pdf":
		return KindPDF, true
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage, true
	case strings.HasPrefix(mediaType, "text/"):
		return KindText, true
	}

	return "", false
}
