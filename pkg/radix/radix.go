// Package radix implements the small textual encodings the CSV codec
// relies on: base-N integer formatting (used for mode bits and other
// numeric fields so they stay compact and case-insensitive-safe) and the
// minimal percent-style escaping applied to free-form path fields that
// may contain the field separator or a newline.
package radix

import (
	"strconv"
	"strings"
)

// NullField is the literal token the CSV codec writes in place of an
// absent value.
const NullField = "-"

// FormatInt renders n in base (2-36), lower-case, the form every numeric
// CSV field other than the command line uses.
func FormatInt(n int64, base int) string {
	return strconv.FormatInt(n, base)
}

// FormatUint renders an unsigned value in base (2-36), lower-case.
func FormatUint(n uint64, base int) string {
	return strconv.FormatUint(n, base)
}

// ParseInt reverses FormatInt.
func ParseInt(s string, base int) (int64, error) {
	return strconv.ParseInt(s, base, 64)
}

// ParseUint reverses FormatUint.
func ParseUint(s string, base int) (uint64, error) {
	return strconv.ParseUint(s, base, 64)
}

// escapeSet lists the bytes the minimal encoder turns into %XX escapes:
// '%' itself (so escaping is reversible), the field separator ',' used
// by the compact pskey/ptx list grammar, and the newline that would
// otherwise break the line-oriented CSV/CDB formats.
const escapeSet = "%,\n"

// EncodeMinimal percent-escapes only the bytes that would otherwise
// corrupt the line-oriented wire format: '%', ',' and '\n'. Everything
// else, including the rest of ASCII and all of UTF-8, passes through
// unchanged -- this is deliberately narrower than full URL-encoding so
// that ordinary paths stay human-readable in the CSV payload.
func EncodeMinimal(s string) string {
	if !strings.ContainsAny(s, escapeSet) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(escapeSet, c) >= 0 {
			hex := strings.ToUpper(strconv.FormatInt(int64(c), 16))
			if len(hex) < 2 {
				hex = "0" + hex
			}
			b.WriteByte('%')
			b.WriteString(hex)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unescape reverses EncodeMinimal (and tolerates arbitrary %XX escapes
// produced by other tools, like the original C implementation's
// util_encode_minimal/util_unescape pair).
func Unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '%') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", err
			}
			b.WriteByte(byte(v))
			i += 2
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// EncodeNewline replaces a literal newline inside a command line with the
// two-character token "^J", per spec: CA.line is stored this way in CSV
// form and converted back on read.
func EncodeNewline(s string) string {
	if !strings.ContainsRune(s, '\n') {
		return s
	}
	return strings.ReplaceAll(s, "\n", "^J")
}

// DecodeNewline reverses EncodeNewline.
func DecodeNewline(s string) string {
	if !strings.Contains(s, "^J") {
		return s
	}
	return strings.ReplaceAll(s, "^J", "\n")
}
