package core

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the byte encoding an upload was decoded from.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
)

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// lineEndings strips byte-order marks and folds CRLF and lone CR to LF.
// "\r\n" must precede "\r" so the pair is consumed as one.
var lineEndings = strings.NewReplacer("\uFEFF", "", "\r\n", "\n", "\r", "\n")

// NormalizeEncoding decodes an upload of unknown encoding into UTF-8 text.
//
// A UTF-16LE byte-order mark selects UTF-16LE and a UTF-16BE mark selects
// big-endian. Without a mark, any NUL byte selects UTF-16LE: spreadsheet
// exports emit UTF-16 with NULs in the ASCII range and often omit the mark.
// Everything else is decoded as UTF-8 with invalid sequences replaced by
// U+FFFD. It never fails.
func NormalizeEncoding(data []byte) (string, Encoding) {
	var (
		text string
		enc  Encoding
	)
	switch {
	case bytes.HasPrefix(data, bomUTF16LE):
		enc = EncodingUTF16LE
		text = decodeUTF16LE(data)
	case bytes.HasPrefix(data, bomUTF16BE):
		enc = EncodingUTF16BE
		text = decodeUTF16BE(data)
	case bytes.IndexByte(data, 0) >= 0:
		enc = EncodingUTF16LE
		text = decodeUTF16LE(data)
	default:
		enc = EncodingUTF8
		text = string(sanitizeUTF8(data))
	}
	return lineEndings.Replace(text), enc
}

func decodeUTF16LE(data []byte) string {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	text, _, err := transform.Bytes(dec, data)
	if err != nil {
		return string(sanitizeUTF8(data))
	}
	return string(text)
}

func decodeUTF16BE(data []byte) string {
	dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	text, _, err := transform.Bytes(dec, data)
	if err != nil {
		return decodeUTF16LE(swapBytePairs(data))
	}
	return string(text)
}

// swapBytePairs turns big-endian UTF-16 into little-endian. A trailing odd
// byte is kept as is.
func swapBytePairs(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out
}

// sanitizeUTF8 replaces each invalid byte with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
