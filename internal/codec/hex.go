// internal/codec/hex.go
package codec

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidHex is matched by every *InvalidHexError via errors.Is
var ErrInvalidHex = errors.New("invalid hex input")

// InvalidHexError reports why operator input could not be read as hex byte pairs
type InvalidHexError struct {
	Input  string
	Offset int
	Reason string
}

func (e *InvalidHexError) Error() string {
	return fmt.Sprintf("invalid hex input at offset %d: %s", e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidHex) work for wrapped values
func (e *InvalidHexError) Is(target error) bool {
	return target == ErrInvalidHex
}

const upperHex = "0123456789ABCDEF"

// DecodeHex parses a sequence of hex digit pairs. ASCII whitespace may separate
// pairs ("0A 0D" is fine) but may not split one ("0 A" is not).
func DecodeHex(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)/2)
	for i := 0; i < len(s); {
		if isSpace(s[i]) {
			i++
			continue
		}

		hi, ok := fromHexChar(s[i])
		if !ok {
			return nil, invalidChar(s, i)
		}
		if i+1 >= len(s) || isSpace(s[i+1]) {
			return nil, &InvalidHexError{Input: s, Offset: i, Reason: "odd number of hex digits"}
		}
		lo, ok := fromHexChar(s[i+1])
		if !ok {
			return nil, invalidChar(s, i+1)
		}

		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

// EncodeHex renders two uppercase digits per byte, separated by single spaces
func EncodeHex(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(p)*3 - 1)
	for i, c := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

func invalidChar(s string, i int) *InvalidHexError {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return &InvalidHexError{Input: s, Offset: i, Reason: fmt.Sprintf("invalid hex character %q", r)}
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
