package codec

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/morezero/native-bridge/pkg/protocol"
)

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes every byte outside [A-Za-z0-9-_.~]. The result contains no quote,
// parenthesis, comma, slash or backslash and decodes with decodeURIComponent.
func Escape(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", protocol.NewError(protocol.CodeEncodingFailure, "text is not valid UTF-8", nil)
	}
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String(), nil
}

// Unescape reverses Escape. '+' is kept literally.
func Unescape(s string) (string, error) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", protocol.NewError(protocol.CodeMalformedPayload, "invalid percent-encoding", err)
	}
	if !utf8.ValidString(out) {
		return "", protocol.NewError(protocol.CodeMalformedPayload, "unescaped text is not valid UTF-8", nil)
	}
	return out, nil
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
