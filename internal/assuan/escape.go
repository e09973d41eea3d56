// Package assuan implements the subset of the Assuan wire format spoken by
// the GnuPG agent protocol: percent-escaping of the reserved characters and
// the S-expression encoding of ECDSA signatures.
package assuan

import "strings"

const hexUpper = "0123456789ABCDEF"

// Escape replaces the three reserved Assuan characters ('%', LF, CR) with
// their uppercase %XX hex form. The input is scanned exactly once, so a '%'
// emitted by an earlier substitution is never re-escaped.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '%', '\n', '\r':
			b.WriteByte('%')
			b.WriteByte(hexUpper[c>>4])
			b.WriteByte(hexUpper[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
