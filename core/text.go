package core

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

var utf16BOM = []byte{0xFE, 0xFF}

// DecodeTextString converts a PDF text string to UTF-8. Strings that start
// with the UTF-16BE byte order mark are decoded as UTF-16; anything else is
// treated as PDFDocEncoding, whose printable ASCII range matches Latin-1.
func DecodeTextString(s String) string {
	b := []byte(s)
	if bytes.HasPrefix(b, utf16BOM) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(b)
		if err == nil {
			return string(out)
		}
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
