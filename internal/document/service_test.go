package document_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lochiel/hacienda/internal/document"
	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/importer"
	"github.com/lochiel/hacienda/internal/sale"
)

const dutText = "DUT N° 2024-002\nTitular Destino: Frigorífico del Sur S.A.\nFecha Emisión: 25/10/2024\n"

type mocks struct {
	storage   *document.MockStorage
	extractor *document.MockExtractor
	sales     *document.MockSales
	holders   *document.MockHolders
}

func newService(t *testing.T, withStorage bool) (*document.Service, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		storage:   document.NewMockStorage(ctrl),
		extractor: document.NewMockExtractor(ctrl),
		sales:     document.NewMockSales(ctrl),
		holders:   document.NewMockHolders(ctrl),
	}

	var storage document.Storage
	if withStorage {
		storage = m.storage
	}

	return document.NewService(storage, m.extractor, m.sales, m.holders, 15*time.Minute), m
}

func TestService_Upload(t *testing.T) {
	saleID := uuid.New()

	type testCase struct {
		name      string
		in        document.Upload
		setupMock func(m mocks)
		check     func(t *testing.T, doc *sale.Document, err error)
	}

	tests := []testCase{
		{
			name: "dut text is extracted",
			in:   document.Upload{SaleID: saleID, Type: sale.DocumentDUT, FileName: "dut 2024.txt", Body: []byte(dutText)},
			setupMock: func(m mocks) {
				m.extractor.EXPECT().Extract(gomock.Any(), importer.KindText, gomock.Any()).
					Return(&dut.Result{DocumentNumber: "2024-002", Confidence: 55}, nil)
				m.storage.EXPECT().Upload(gomock.Any(), gomock.Any(), "text/plain", gomock.Any()).Return(nil)
				m.storage.EXPECT().ObjectURL(gomock.Any()).Return("https://storage.googleapis.com/b/k")
				m.sales.EXPECT().AttachDocument(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, doc *sale.Document, err error) {
				require.NoError(t, err)
				assert.True(t, doc.Processed)
				assert.Equal(t, "text/plain", doc.ContentType)
				assert.True(t, strings.HasPrefix(doc.ObjectKey, "sales/"+saleID.String()+"/"))
				assert.True(t, strings.HasSuffix(doc.ObjectKey, "-dut_2024.txt"))

				var res dut.Result
				require.NoError(t, json.Unmarshal(doc.Extracted, &res))
				assert.Equal(t, "2024-002", res.DocumentNumber)
			},
		},
		{
			name: "romaneo pdf is stored without extraction",
			in:   document.Upload{SaleID: saleID, Type: sale.DocumentRomaneo, FileName: "romaneo.pdf", Body: []byte("%PDF-1.4\n%fake\n")},
			setupMock: func(m mocks) {
				m.storage.EXPECT().Upload(gomock.Any(), gomock.Any(), "application/pdf", gomock.Any()).Return(nil)
				m.storage.EXPECT().ObjectURL(gomock.Any()).Return("u")
				m.sales.EXPECT().AttachDocument(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, doc *sale.Document, err error) {
				require.NoError(t, err)
				assert.False(t, doc.Processed)
				assert.Nil(t, doc.Extracted)
			},
		},
		{
			name: "failed extraction keeps the upload",
			in:   document.Upload{SaleID: saleID, Type: sale.DocumentDUT, FileName: "dut.png", Body: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
			setupMock: func(m mocks) {
				m.extractor.EXPECT().Extract(gomock.Any(), importer.KindImage, gomock.Any()).
					Return(nil, &importer.UpstreamError{Kind: importer.KindImage, Err: importer.ErrOCRDisabled})
				m.storage.EXPECT().Upload(gomock.Any(), gomock.Any(), "image/png", gomock.Any()).Return(nil)
				m.storage.EXPECT().ObjectURL(gomock.Any()).Return("u")
				m.sales.EXPECT().AttachDocument(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, doc *sale.Document, err error) {
				require.NoError(t, err)
				assert.False(t, doc.Processed)
			},
		},
		{
			name: "unsupported file type",
			in:   document.Upload{SaleID: saleID, Type: sale.DocumentOther, FileName: "a.zip", Body: []byte("PK\x03\x04\x14\x00\x00\x00")},
			check: func(t *testing.T, _ *sale.Document, err error) {
				var verr *sale.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "file", verr.Field)
			},
		},
		{
			name: "unknown document type",
			in:   document.Upload{SaleID: saleID, Type: "CONTRATO", FileName: "a.pdf", Body: []byte("%PDF-1.4\n")},
			check: func(t *testing.T, _ *sale.Document, err error) {
				var verr *sale.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "type", verr.Field)
			},
		},
		{
			name: "record failure removes the object",
			in:   document.Upload{SaleID: saleID, Type: sale.DocumentInvoice, FileName: "f.pdf", Body: []byte("%PDF-1.4\n")},
			setupMock: func(m mocks) {
				var key string

				m.storage.EXPECT().Upload(gomock.Any(), gomock.Any(), "application/pdf", gomock.Any()).
					DoAndReturn(func(_ context.Context, k, _ string, _ io.Reader) error {
						key = k
						return nil
					})
				m.storage.EXPECT().ObjectURL(gomock.Any()).Return("u")
				m.sales.EXPECT().AttachDocument(gomock.Any(), gomock.Any()).Return(sale.ErrNotFound)
				m.storage.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, k string) error {
					assert.Equal(t, key, k)
					return nil
				})
			},
			check: func(t *testing.T, _ *sale.Document, err error) {
				assert.ErrorIs(t, err, sale.ErrNotFound)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, m := newService(t, true)

			if tc.setupMock != nil {
				tc.setupMock(m)
			}

			doc, err := svc.Upload(t.Context(), tc.in)
			tc.check(t, doc, err)
		})
	}
}

func TestService_UploadWithoutStorage(t *testing.T) {
	svc, _ := newService(t, false)

	_, err := svc.Upload(t.Context(), document.Upload{SaleID: uuid.New(), Type: sale.DocumentDUT, Body: []byte(dutText)})
	assert.ErrorIs(t, err, document.ErrStorageDisabled)
}

func TestService_ImportDUT(t *testing.T) {
	svc, m := newService(t, true)

	created := &sale.Sale{ID: uuid.New(), DocumentNumber: "2024-002"}

	m.extractor.EXPECT().Extract(gomock.Any(), importer.KindText, gomock.Any()).
		Return(&dut.Result{DocumentNumber: "2024-002", DestinationHolder: "FRIGORIFICO DEL SUR SA", Confidence: 55}, nil)
	m.holders.EXPECT().Resolve(gomock.Any(), "FRIGORIFICO DEL SUR SA").Return("Frigorífico del Sur", nil)
	m.sales.EXPECT().CreateFromExtraction(gomock.Any(), gomock.Any(), sale.EstablishmentLochiel).
		DoAndReturn(func(_ context.Context, res *dut.Result, _ sale.Establishment) (*sale.Sale, error) {
			assert.Equal(t, "Frigorífico del Sur", res.DestinationHolder)
			return created, nil
		})
	m.storage.EXPECT().Upload(gomock.Any(), gomock.Any(), "text/plain", gomock.Any()).Return(nil)
	m.storage.EXPECT().ObjectURL(gomock.Any()).Return("u")
	m.sales.EXPECT().AttachDocument(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *sale.Document) error {
		assert.Equal(t, created.ID, d.SaleID)
		assert.Equal(t, sale.DocumentDUT, d.Type)
		assert.True(t, d.Processed)

		return nil
	})

	out, err := svc.ImportDUT(t.Context(), sale.EstablishmentLochiel, "dut.txt", []byte(dutText))
	require.NoError(t, err)
	assert.Equal(t, created, out.Sale)
	assert.Equal(t, "FRIGORIFICO DEL SUR SA", out.Extraction.DestinationHolder)
	require.NotNil(t, out.Document)
}

func TestService_ImportDUTUpstreamFailure(t *testing.T) {
	svc, m := newService(t, true)

	m.extractor.EXPECT().Extract(gomock.Any(), importer.KindText, gomock.Any()).
		Return(nil, &importer.UpstreamError{Kind: importer.KindText, Err: errors.New("boom")})

	_, err := svc.ImportDUT(t.Context(), sale.EstablishmentLochiel, "dut.txt", []byte(dutText))

	var upstream *importer.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestService_LinkAndDelete(t *testing.T) {
	svc, m := newService(t, true)

	doc := &sale.Document{ID: uuid.New(), ObjectKey: "sales/x/y-dut.pdf"}

	m.sales.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil).Times(2)
	m.storage.EXPECT().SignedURL(doc.ObjectKey, 15*time.Minute).Return("https://signed", nil)
	m.storage.EXPECT().Delete(gomock.Any(), doc.ObjectKey).Return(nil)
	m.sales.EXPECT().DeleteDocument(gomock.Any(), doc.ID).Return(nil)

	link, err := svc.Link(t.Context(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed", link)

	require.NoError(t, svc.Delete(t.Context(), doc.ID))
}
