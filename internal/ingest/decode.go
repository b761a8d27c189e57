package ingest

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DecodeText converts file bytes to NFC-normalized UTF-8. A UTF-8 or UTF-16
// byte order mark selects the encoding; without one the bytes are read as
// UTF-8, with invalid sequences replaced.
func DecodeText(raw []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	if !utf8.Valid(out) {
		out = bytes.ToValidUTF8(out, []byte("\uFFFD"))
	}
	out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
	return norm.NFC.String(string(out)), nil
}
