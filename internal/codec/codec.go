// internal/codec/codec.go
package codec

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"serial-terminal/internal/model"
)

// DefaultCharset is used for Ascii mode when nothing else is configured
const DefaultCharset = "utf-8"

// ErrUnencodable is returned when Ascii-mode text has no representation in the
// configured charset
var ErrUnencodable = errors.New("text not representable in charset")

var utf8Codec = &Codec{name: DefaultCharset, enc: unicode.UTF8}

// Codec converts between operator text and wire bytes for both display modes.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// New looks up a charset by its WHATWG label ("utf-8", "gbk", "gb18030",
// "shift_jis", "latin1", ...). An empty name selects UTF-8.
func New(charset string) (*Codec, error) {
	charset = strings.TrimSpace(charset)
	if charset == "" {
		return utf8Codec, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(charset)
	}
	if name == DefaultCharset {
		return utf8Codec, nil
	}

	return &Codec{name: name, enc: enc}, nil
}

// Default returns the UTF-8 codec
func Default() *Codec {
	return utf8Codec
}

// Charset returns the canonical charset name
func (c *Codec) Charset() string {
	return c.name
}

// Encode turns operator input into the payload to write. Hex input is
// validated completely before anything is returned.
func (c *Codec) Encode(text string, mode model.DisplayMode) ([]byte, error) {
	if mode == model.DisplayModeHex {
		return DecodeHex(text)
	}

	if c.enc == unicode.UTF8 {
		return []byte(text), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnencodable, c.name, err)
	}
	return out, nil
}

// Format renders a payload for display. Undecodable bytes in Ascii mode show
// up as U+FFFD instead of failing.
func (c *Codec) Format(payload []byte, mode model.DisplayMode) string {
	if mode == model.DisplayModeHex {
		return EncodeHex(payload)
	}

	out, err := c.enc.NewDecoder().Bytes(payload)
	if err != nil {
		return strings.ToValidUTF8(string(payload), "\uFFFD")
	}
	return string(out)
}

// Format renders payload with the UTF-8 codec
func Format(payload []byte, mode model.DisplayMode) string {
	return utf8Codec.Format(payload, mode)
}

// Encode converts text with the UTF-8 codec
func Encode(text string, mode model.DisplayMode) ([]byte, error) {
	return utf8Codec.Encode(text, mode)
}
