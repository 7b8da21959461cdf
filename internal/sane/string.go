package sane

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
)

// Str is a string as the library hands it out: Latin-1 bytes without the
// terminating NUL.
type Str []byte

// StrOf converts s to Latin-1. Characters outside Latin-1 are replaced
// with '?'.
func StrOf(s string) Str {
	out := make(Str, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			out = append(out, b)
		} else {
			out = append(out, '?')
		}
	}
	return out
}

// String decodes the Latin-1 bytes into UTF-8.
func (s Str) String() string {
	return string(s.Runes())
}

// Runes returns one rune per byte.
func (s Str) Runes() []rune {
	rs := make([]rune, len(s))
	for i, b := range s {
		rs[i] = charmap.ISO8859_1.DecodeByte(b)
	}
	return rs
}

// Equal reports whether s and t hold the same bytes.
func (s Str) Equal(t Str) bool {
	return bytes.Equal(s, t)
}

func cloneStr(b []byte) Str {
	if b == nil {
		return nil
	}
	return Str(bytes.Clone(b))
}

func cstring(b []byte) Str {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return cloneStr(b)
}
