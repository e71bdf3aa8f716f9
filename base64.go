package cirjson

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// Base64Variant is a flavor of base64 used for binary values, which travel
// as strings.
type Base64Variant struct {
	name          string
	enc           *base64.Encoding
	maxLineLength int
}

var (
	// MIME wraps lines at 76 characters.
	MIME = Base64Variant{name: "MIME", enc: base64.StdEncoding, maxLineLength: 76}
	// MIMENoLinefeeds is the default: standard alphabet, padding, one line.
	MIMENoLinefeeds = Base64Variant{name: "MIME-NO-LINEFEEDS", enc: base64.StdEncoding}
	// PEM wraps lines at 64 characters.
	PEM = Base64Variant{name: "PEM", enc: base64.StdEncoding, maxLineLength: 64}
	// ModifiedForURL uses the URL safe alphabet and no padding.
	ModifiedForURL = Base64Variant{name: "MODIFIED-FOR-URL", enc: base64.RawURLEncoding}
)

// DefaultBase64Variant is used when no variant is given.
func DefaultBase64Variant() Base64Variant {
	return MIMENoLinefeeds
}

func Base64VariantByName(name string) (Base64Variant, bool) {
	for _, v := range []Base64Variant{MIME, MIMENoLinefeeds, PEM, ModifiedForURL} {
		if strings.EqualFold(v.name, name) {
			return v, true
		}
	}
	return Base64Variant{}, false
}

func (v Base64Variant) Name() string {
	return v.name
}

func (v Base64Variant) String() string {
	return v.name
}

func (v Base64Variant) encoding() *base64.Encoding {
	if v.enc == nil {
		return base64.StdEncoding
	}
	return v.enc
}

// EncodedLen is the length of the encoding of n bytes, line feeds included.
func (v Base64Variant) EncodedLen(n int) int {
	l := v.encoding().EncodedLen(n)
	if v.maxLineLength > 0 && l > 0 {
		l += (l - 1) / v.maxLineLength
	}
	return l
}

// AppendEncode appends the encoding of src to dst.
func (v Base64Variant) AppendEncode(dst, src []byte) []byte {
	enc := v.encoding()
	n := enc.EncodedLen(len(src))
	if v.maxLineLength <= 0 {
		start := len(dst)
		dst = grow(dst, n)
		enc.Encode(dst[start:start+n], src)
		return dst
	}

	tmp := make([]byte, n)
	enc.Encode(tmp, src)
	for i := 0; i < n; i += v.maxLineLength {
		if i > 0 {
			dst = append(dst, '\n')
		}
		end := i + v.maxLineLength
		if end > n {
			end = n
		}
		dst = append(dst, tmp[i:end]...)
	}
	return dst
}

func (v Base64Variant) Encode(src []byte) string {
	return string(v.AppendEncode(nil, src))
}

// DecodedLen is an upper bound of the decoded length of n encoded bytes.
func (v Base64Variant) DecodedLen(n int) int {
	return v.encoding().DecodedLen(n)
}

// DecodeTo decodes src into dst, which must hold DecodedLen(len(src))
// bytes. Line feeds and other white space are skipped.
func (v Base64Variant) DecodeTo(dst, src []byte) ([]byte, error) {
	if hasBase64Space(src) {
		clean := make([]byte, 0, len(src))
		for _, c := range src {
			if c != '\n' && c != '\r' && c != ' ' && c != '\t' {
				clean = append(clean, c)
			}
		}
		src = clean
	}
	if v.enc == base64.RawURLEncoding {
		for len(src) > 0 && src[len(src)-1] == '=' {
			src = src[:len(src)-1]
		}
	}

	n, err := v.encoding().Decode(dst, src)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s base64 content", v.name)
	}
	return dst[:n], nil
}

func (v Base64Variant) Decode(src []byte) ([]byte, error) {
	return v.DecodeTo(make([]byte, v.DecodedLen(len(src))), src)
}

func hasBase64Space(b []byte) bool {
	for _, c := range b {
		if c == '\n' || c == '\r' || c == ' ' || c == '\t' {
			return true
		}
	}
	return false
}

func grow(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b[:len(b)+n]
	}
	next := make([]byte, len(b)+n, 2*cap(b)+n)
	copy(next, b)
	return next
}
