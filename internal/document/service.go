// Package document handles the files attached to a sale: upload to object
// storage, DUT extraction on upload and signed download links.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/importer"
	"github.com/lochiel/hacienda/internal/sale"
)

var ErrStorageDisabled = errors.New("document storage not configured")

var allowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/webp",
	"text/plain",
}

//go:generate mockgen -source=service.go -destination=service_mock.go -package=document

type Storage interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	SignedURL(key string, ttl time.Duration) (string, error)
	ObjectURL(key string) string
}

type Extractor interface {
	Extract(ctx context.Context, kind importer.Kind, r io.Reader) (*dut.Result, error)
}

type Sales interface {
	AttachDocument(ctx context.Context, d *sale.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*sale.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	CreateFromExtraction(ctx context.Context, res *dut.Result, est sale.Establishment) (*sale.Sale, error)
}

type Holders interface {
	Resolve(ctx context.Context, rawHolder string) (string, error)
}

type Service struct {
	storage   Storage
	extractor Extractor
	sales     Sales
	holders   Holders
	linkTTL   time.Duration
}

// NewService builds the document service. storage may be nil when no bucket
// is configured; uploads then fail with ErrStorageDisabled.
func NewService(storage Storage, extractor Extractor, sales Sales, holders Holders, linkTTL time.Duration) *Service {
	return &Service{
		storage:   storage,
		extractor: extractor,
		sales:     sales,
		holders:   holders,
		linkTTL:   linkTTL,
	}
}

type Upload struct {
	SaleID   uuid.UUID
	Type     sale.DocumentType
	FileName string
	Body     []byte
}

// Imported is the outcome of creating a sale from a DUT file.
type Imported struct {
	Sale       *sale.Sale
	Extraction *dut.Result
	Document   *sale.Document
}

func detect(body []byte) (string, error) {
	if len(body) == 0 {
		return "", &sale.ValidationError{Field: "file", Reason: "empty file"}
	}

	m := mimetype.Detect(body)
	for _, allowed := range allowedTypes {
		if m.Is(allowed) {
			return allowed, nil
		}
	}

	return "", &sale.ValidationError{Field: "file", Reason: "unsupported file type " + m.String()}
}

// Upload stores the file and records it against the sale. DUT files are run
// through the extractor; a failed extraction does not fail the upload.
func (s *Service) Upload(ctx context.Context, in Upload) (*sale.Document, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	if !in.Type.Valid() {
		return nil, &sale.ValidationError{Field: "type", Reason: "unknown document type"}
	}

	contentType, err := detect(in.Body)
	if err != nil {
		return nil, err
	}

	var extracted *dut.Result

	if in.Type == sale.DocumentDUT {
		if kind, ok := importer.KindOf(contentType); ok {
			extracted, err = s.extractor.Extract(ctx, kind, bytes.NewReader(in.Body))
			if err != nil {
				slog.Warn("dut extraction failed on upload", "sale_id", in.SaleID, "error", err)

				extracted = nil
			}
		}
	}

	return s.store(ctx, in, contentType, extracted)
}

func (s *Service) store(ctx context.Context, in Upload, contentType string, extracted *dut.Result) (*sale.Document, error) {
	key := fmt.Sprintf("sales/%s/%s-%s", in.SaleID, uuid.New(), safeName(in.FileName))

	if err := s.storage.Upload(ctx, key, contentType, bytes.NewReader(in.Body)); err != nil {
		return nil, fmt.Errorf("uploading document: %w", err)
	}

	doc := &sale.Document{
		SaleID:      in.SaleID,
		Type:        in.Type,
		FileName:    in.FileName,
		ObjectKey:   key,
		URL:         s.storage.ObjectURL(key),
		ContentType: contentType,
		Size:        int64(len(in.Body)),
	}

	if extracted != nil {
		raw, err := json.Marshal(extracted)
		if err != nil {
			return nil, fmt.Errorf("encoding extraction: %w", err)
		}

		doc.Extracted = raw
		doc.Processed = true
	}

	if err := s.sales.AttachDocument(ctx, doc); err != nil {
		if derr := s.storage.Delete(ctx, key); derr != nil {
			slog.Error("failed to remove orphaned object", "key", key, "error", derr)
		}

		return nil, err
	}

	slog.Info("document attached", "sale_id", in.SaleID, "type", in.Type, "size", doc.Size)

	return doc, nil
}

// ImportDUT extracts a DUT, maps its holder to a known client and opens a
// sale from it. The file is attached to the new sale when storage is
// available.
func (s *Service) ImportDUT(ctx context.Context, est sale.Establishment, fileName string, body []byte) (*Imported, error) {
	contentType, err := detect(body)
	if err != nil {
		return nil, err
	}

	kind, ok := importer.KindOf(contentType)
	if !ok {
		return nil, &sale.ValidationError{Field: "file", Reason: "unsupported file type " + contentType}
	}

	res, err := s.extractor.Extract(ctx, kind, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	mapped := *res

	client, err := s.holders.Resolve(ctx, res.DestinationHolder)
	if err != nil {
		return nil, fmt.Errorf("resolving holder: %w", err)
	}

	mapped.DestinationHolder = client

	sl, err := s.sales.CreateFromExtraction(ctx, &mapped, est)
	if err != nil {
		return nil, err
	}

	out := &Imported{Sale: sl, Extraction: res}

	if s.storage == nil {
		return out, nil
	}

	doc, err := s.store(ctx, Upload{SaleID: sl.ID, Type: sale.DocumentDUT, FileName: fileName, Body: body}, contentType, res)
	if err != nil {
		slog.Warn("sale created but dut file was not attached", "sale_id", sl.ID, "error", err)
		return out, nil
	}

	out.Document = doc

	return out, nil
}

// Link returns a time-limited download URL for a document.
func (s *Service) Link(ctx context.Context, id uuid.UUID) (string, error) {
	if s.storage == nil {
		return "", ErrStorageDisabled
	}

	doc, err := s.sales.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}

	return s.storage.SignedURL(doc.ObjectKey, s.linkTTL)
}

// Delete removes the stored object and then the record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.sales.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if s.storage != nil && doc.ObjectKey != "" {
		if err := s.storage.Delete(ctx, doc.ObjectKey); err != nil {
			return err
		}
	}

	return s.sales.DeleteDocument(ctx, id)
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}

		return '_'
	}, name)
}
