// internal/console/escape.go
package console

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Unescape expands C-style escapes (\n, \r, \t, \\, \xHH and the other
// escapes Go accepts in string literals). \xHH produces the raw byte, so
// "\xff" yields one 0xFF byte rather than its UTF-8 encoding.
func Unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}

	buf := make([]byte, 0, len(s))
	for rest := s; len(rest) > 0; {
		if rest[0] != '\\' {
			r, size := utf8.DecodeRuneInString(rest)
			if r == utf8.RuneError && size == 1 {
				buf = append(buf, rest[0])
			} else {
				buf = append(buf, rest[:size]...)
			}
			rest = rest[size:]
			continue
		}

		value, multibyte, tail, err := strconv.UnquoteChar(rest, 0)
		if err != nil {
			return "", fmt.Errorf("invalid escape at %q", truncate(rest, 4))
		}
		if value < utf8.RuneSelf || !multibyte {
			buf = append(buf, byte(value))
		} else {
			buf = utf8.AppendRune(buf, value)
		}
		rest = tail
	}
	return string(buf), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
