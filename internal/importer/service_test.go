package importer_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lochiel/hacienda/internal/importer"
)

const dutText = `DUT N° 2024-002
Titular Destino: Frigorífico del Sur S.A.
Fecha Emisión: 25/10/2024
Motivo: FAENA
Categoría: BORREGO
Cantidad: 250
Valor DUT: $200.00
`

func TestKindOf(t *testing.T) {
	tests := []struct {
		contentType string
		want        importer.Kind
		ok          bool
	}{
		{"application/pdf", importer.KindPDF, true},
		{"image/jpeg", importer.KindImage, true},
		{"image/png", importer.KindImage, true},
		{"text/plain; charset=iso-8859-1", importer.KindText, true},
		{"TEXT/PLAIN", importer.KindText, true},
		{"application/zip", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.contentType, func(t *testing.T) {
			got, ok := importer.KindOf(tc.contentType)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestService_Extract(t *testing.T) {
	type testCase struct {
		name           string
		kind           importer.Kind
		input          string
		withOCR        bool
		setupMock      func(ocr *importer.MockSource)
		wantNumber     string
		wantConfidence int
		wantUpstream   bool
		wantErr        error
	}

	tests := []testCase{
		{
			name:           "plain text",
			kind:           importer.KindText,
			input:          dutText,
			wantNumber:     "2024-002",
			wantConfidence: 100,
		},
		{
			name:    "image through OCR",
			kind:    importer.KindImage,
			input:   "\x89PNG",
			withOCR: true,
			setupMock: func(ocr *importer.MockSource) {
				ocr.EXPECT().Text(gomock.Any(), gomock.Any()).Return(dutText, nil)
			},
			wantNumber:     "2024-002",
			wantConfidence: 100,
		},
		{
			name:    "OCR returns nothing usable",
			kind:    importer.KindImage,
			input:   "\x89PNG",
			withOCR: true,
			setupMock: func(ocr *importer.MockSource) {
				ocr.EXPECT().Text(gomock.Any(), gomock.Any()).Return("", nil)
			},
			wantConfidence: 0,
		},
		{
			name:    "OCR failure",
			kind:    importer.KindImage,
			input:   "\x89PNG",
			withOCR: true,
			setupMock: func(ocr *importer.MockSource) {
				ocr.EXPECT().Text(gomock.Any(), gomock.Any()).Return("", errors.New("connection refused"))
			},
			wantUpstream: true,
		},
		{
			name:         "image without OCR configured",
			kind:         importer.KindImage,
			input:        "\x89PNG",
			wantUpstream: true,
			wantErr:      importer.ErrOCRDisabled,
		},
		{
			name:         "corrupt pdf",
			kind:         importer.KindPDF,
			input:        "not a pdf at all",
			wantUpstream: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ocr := importer.NewMockSource(ctrl)

			if tc.setupMock != nil {
				tc.setupMock(ocr)
			}

			var svc *importer.Service
			if tc.withOCR {
				svc = importer.NewService(ocr)
			} else {
				svc = importer.NewService(nil)
			}

			res, err := svc.Extract(t.Context(), tc.kind, strings.NewReader(tc.input))

			if tc.wantUpstream {
				var upstream *importer.UpstreamError
				require.ErrorAs(t, err, &upstream)

				if tc.wantErr != nil {
					assert.ErrorIs(t, err, tc.wantErr)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantNumber, res.DocumentNumber)
			assert.Equal(t, tc.wantConfidence, res.Confidence)
		})
	}
}

func TestService_TextLatin1(t *testing.T) {
	svc := importer.NewService(nil)

	// "Categoría" in ISO-8859-1
	latin1 := "Motivo: FAENA\nCategor\xeda: BORREGO, remitido por el establecimiento de origen\n"

	text, err := svc.Text(t.Context(), importer.KindText, strings.NewReader(latin1))
	require.NoError(t, err)
	assert.Contains(t, text, "Categoría")
}
