package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-terminal/internal/model"
)

func TestDecodeHex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []byte
	}{
		{"empty", "", []byte{}},
		{"single byte", "0A", []byte{0x0a}},
		{"lowercase", "deadbeef", []byte{0xde, 0xad, 0xbe, 0xef}},
		{"spaced pairs", "01 02\t03", []byte{0x01, 0x02, 0x03}},
		{"surrounding whitespace", "  FF  ", []byte{0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeHex_Invalid(t *testing.T) {
	tests := []struct {
		input  string
		offset int
	}{
		{"1", 0},
		{"1G", 1},
		{"ABC", 2},
		{"0 A", 0},
		{"zz", 0},
		{"01 é", 3},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := DecodeHex(tt.input)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrInvalidHex))

			var hexErr *InvalidHexError
			require.ErrorAs(t, err, &hexErr)
			assert.Equal(t, tt.offset, hexErr.Offset)
			assert.Equal(t, tt.input, hexErr.Input)
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, s := range []string{"", "00", "0A", "FF", "DE AD BE EF", "01 23 45 67 89 AB CD EF"} {
		payload, err := DecodeHex(s)
		require.NoError(t, err)
		assert.Equal(t, s, Format(payload, model.DisplayModeHex))
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "hello", Format([]byte("hello"), model.DisplayModeASCII))
	assert.Equal(t, "68 65 6C 6C 6F", Format([]byte("hello"), model.DisplayModeHex))
	assert.Equal(t, "", Format(nil, model.DisplayModeHex))
	assert.Equal(t, "", Format(nil, model.DisplayModeASCII))
	assert.Equal(t, "A\uFFFDB", Format([]byte{'A', 0xff, 'B'}, model.DisplayModeASCII))
	assert.Equal(t, "0D 0A", Format([]byte("\r\n"), model.DisplayModeHex))
}

func TestEncode(t *testing.T) {
	got, err := Encode("AT\r\n", model.DisplayModeASCII)
	require.NoError(t, err)
	assert.Equal(t, []byte("AT\r\n"), got)

	got, err = Encode("41 54", model.DisplayModeHex)
	require.NoError(t, err)
	assert.Equal(t, []byte("AT"), got)

	_, err = Encode("4", model.DisplayModeHex)
	assert.ErrorIs(t, err, ErrInvalidHex)
}

func TestNew_Charsets(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Same(t, Default(), c)

	c, err = New("UTF-8")
	require.NoError(t, err)
	assert.Equal(t, DefaultCharset, c.Charset())

	_, err = New("no-such-charset")
	assert.Error(t, err)
}

func TestCodec_GBK(t *testing.T) {
	c, err := New("gbk")
	require.NoError(t, err)
	assert.Equal(t, "gbk", c.Charset())

	wire := []byte{0xc4, 0xe3, 0xba, 0xc3}
	assert.Equal(t, "你好", c.Format(wire, model.DisplayModeASCII))
	assert.Equal(t, "C4 E3 BA C3", c.Format(wire, model.DisplayModeHex))

	got, err := c.Encode("你好", model.DisplayModeASCII)
	require.NoError(t, err)
	assert.Equal(t, wire, got)

	_, err = c.Encode("😀", model.DisplayModeASCII)
	assert.ErrorIs(t, err, ErrUnencodable)
}
