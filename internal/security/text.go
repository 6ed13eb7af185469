// Package security holds input cleaning and outbound request guards.
package security

import (
	"strings"
	"unicode/utf8"
)

// CleanText prepares user text for storage. Ideas and updates are plain
// text: markup-like input is kept verbatim and escaping is left to whoever
// renders it. Only bytes Postgres text columns reject are touched: NUL is
// dropped and invalid UTF-8 becomes U+FFFD. The result is trimmed.
func CleanText(raw string) string {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "\uFFFD")
	}
	if strings.IndexByte(raw, 0) >= 0 {
		raw = strings.ReplaceAll(raw, "\x00", "")
	}
	return strings.TrimSpace(raw)
}
