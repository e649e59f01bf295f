package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns content as a UTF-8 string with any BOM removed.
//
// Store systems export Latin-1 as often as UTF-8, so input that is not valid
// UTF-8 is decoded as Windows-1252 (a superset of ISO-8859-1) instead of
// having its accented characters replaced.
func decodeText(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)

	if utf8.Valid(content) {
		return normalizeNewlines(string(content))
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return normalizeNewlines(strings.ToValidUTF8(string(content), "�"))
	}
	return normalizeNewlines(string(decoded))
}

// normalizeNewlines converts CRLF and lone CR line endings to LF.
func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
