package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"cp1252", CP1252},
		{" windows-1251 ", CP1251},
		{"Shift_JIS", CP932},
		{"cp936", GBK},
		{"euc-kr", EUCKR},
		{"utf-8", UTF8},
		{"ebcdic", Other},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.in), tt.in)
	}
}

func TestToUTF8(t *testing.T) {
	tests := []struct {
		name string
		enc  Type
		in   []byte
		want string
	}{
		{"latin", CP1252, []byte{'c', 'a', 'f', 0xE9}, "café"},
		{"euro", CP1252, []byte{0x80}, "€"},
		{"polish", CP1250, []byte{0xB3, 0xF3, 0x64, 0x9F}, "łódź"},
		{"cyrillic", CP1251, []byte{0xEC, 0xE8, 0xF0}, "мир"},
		{"japanese", CP932, []byte{0x82, 0xA0}, "あ"},
		{"utf8", UTF8, []byte("ü"), "ü"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToUTF8(tt.in, tt.enc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := FromUTF8(got, tt.enc)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back)
		})
	}
}

func TestUnsupported(t *testing.T) {
	_, err := ToUTF8([]byte("x"), Other)
	assert.Error(t, err)
	assert.Equal(t, "x", Converter(Other)("x"))
}
