package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NewUTF8Reader wraps r so that it yields UTF-8 regardless of how the DUT
// text export was encoded.
//
// Detection order:
//  1. BOM (UTF-8 BOM is stripped, UTF-16 LE/BE is decoded)
//  2. Valid UTF-8 passes through
//  3. chardet heuristic
//  4. Windows-1252, which is what SENASA exports from Windows desktops use
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	buf, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	if bytes.HasPrefix(buf, bomUTF8) {
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	}

	dec := decoderFor(buf)
	if dec == nil {
		return br, nil
	}

	return transform.NewReader(br, dec.NewDecoder()), nil
}

// ReadString drains r through NewUTF8Reader and normalizes line endings.
func ReadString(r io.Reader) (string, error) {
	utf8r, err := NewUTF8Reader(r)
	if err != nil {
		return "", err
	}

	b, err := io.ReadAll(utf8r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}

	return strings.ReplaceAll(string(b), "\r\n", "\n"), nil
}

// decoderFor returns nil when buf is already UTF-8.
func decoderFor(buf []byte) encoding.Encoding {
	switch {
	case bytes.HasPrefix(buf, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case bytes.HasPrefix(buf, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case utf8.Valid(buf):
		return nil
	}

	result, err := chardet.NewTextDetector().DetectBest(buf)
	if err == nil {
		switch result.Charset {
		case "UTF-8":
			return nil
		case "ISO-8859-1":
			return charmap.ISO8859_1
		case "ISO-8859-15":
			return charmap.ISO8859_15
		}
	}

	return charmap.Windows1252
}
