// Package encoding converts NWScript string literals to UTF-8.
//
// Compiled scripts store strings as raw bytes in the code page of the game
// that produced them. golang.org/x/text provides the code pages.
package encoding

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Type is a code page used by script string literals.
type Type int

const (
	CP1252 Type = iota // Western European, the default for most games
	CP1250             // Central European (Polish releases)
	CP1251             // Cyrillic (Russian releases)
	CP932              // Japanese
	GBK                // Simplified Chinese (CP936)
	EUCKR              // Korean (CP949)
	UTF8
	Other
)

func (t Type) String() string {
	switch t {
	case CP1252:
		return "CP1252"
	case CP1250:
		return "CP1250"
	case CP1251:
		return "CP1251"
	case CP932:
		return "CP932"
	case GBK:
		return "GBK"
	case EUCKR:
		return "EUC-KR"
	case UTF8:
		return "UTF-8"
	default:
		return "Other"
	}
}

// Parse returns the encoding type from a string name.
func Parse(name string) Type {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CP1252", "WINDOWS-1252", "LATIN1", "ISO-8859-1":
		return CP1252
	case "CP1250", "WINDOWS-1250":
		return CP1250
	case "CP1251", "WINDOWS-1251":
		return CP1251
	case "CP932", "SHIFTJIS", "SHIFT_JIS", "SHIFT-JIS", "SJIS":
		return CP932
	case "GBK", "CP936", "GB2312":
		return GBK
	case "EUC-KR", "EUC_KR", "EUCKR", "CP949":
		return EUCKR
	case "UTF8", "UTF-8":
		return UTF8
	default:
		return Other
	}
}

func (t Type) codec() (encoding.Encoding, error) {
	switch t {
	case CP1252:
		return charmap.Windows1252, nil
	case CP1250:
		return charmap.Windows1250, nil
	case CP1251:
		return charmap.Windows1251, nil
	case CP932:
		return japanese.ShiftJIS, nil
	case GBK:
		return simplifiedchinese.GBK, nil
	case EUCKR:
		return korean.EUCKR, nil
	}
	return nil, errors.Errorf("unsupported encoding: %v", t)
}

// ToUTF8 converts a byte string from the given encoding to UTF-8.
func ToUTF8(data []byte, enc Type) (string, error) {
	if enc == UTF8 {
		return string(data), nil
	}
	c, err := enc.codec()
	if err != nil {
		return "", err
	}
	out, _, err := transform.Bytes(c.NewDecoder(), data)
	if err != nil {
		return "", errors.Wrapf(err, "decoding %v", enc)
	}
	return string(out), nil
}

// FromUTF8 converts a UTF-8 string to the given encoding.
func FromUTF8(text string, enc Type) ([]byte, error) {
	if enc == UTF8 {
		return []byte(text), nil
	}
	c, err := enc.codec()
	if err != nil {
		return nil, err
	}
	out, _, err := transform.String(c.NewEncoder(), text)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %v", enc)
	}
	return []byte(out), nil
}

// Converter returns a function that decodes literals in enc, falling back
// to the raw bytes when a literal is not valid in that code page.
func Converter(enc Type) func(string) string {
	return func(s string) string {
		out, err := ToUTF8([]byte(s), enc)
		if err != nil {
			return s
		}
		return out
	}
}
