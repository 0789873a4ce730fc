package encoding_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/lochiel/hacienda/internal/encoding"
)

func TestNewUTF8Reader(t *testing.T) {
	const text = "Categoría: Capón\nMotivo: Reproducción UE\n"

	latin1, err := charmap.Windows1252.NewEncoder().String(text)
	require.NoError(t, err)

	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(text)
	require.NoError(t, err)

	type testCase struct {
		name  string
		input []byte
	}

	tests := []testCase{
		{name: "UTF8Passthrough", input: []byte(text)},
		{name: "UTF8BOMStripped", input: append([]byte{0xEF, 0xBB, 0xBF}, text...)},
		{name: "Windows1252", input: []byte(latin1)},
		{name: "UTF16LE", input: []byte(utf16le)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := encoding.NewUTF8Reader(bytes.NewReader(tt.input))
			require.NoError(t, err)

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, text, string(got))
		})
	}
}

func TestNewUTF8Reader_LongInput(t *testing.T) {
	text := strings.Repeat("Destino: Frigorífico Río Grande\n", 500)

	r, err := encoding.NewUTF8Reader(strings.NewReader(text))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, text, string(got))
}

func TestReadString_NormalizesCRLF(t *testing.T) {
	got, err := encoding.ReadString(strings.NewReader("DUT N° 123\r\nCantidad: 4\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "DUT N° 123\nCantidad: 4\n", got)
}
