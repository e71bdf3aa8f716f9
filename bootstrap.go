package cirjson

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// Encoding is a Unicode transformation format CirJSON may be stored in.
type Encoding uint8

const (
	UTF8 Encoding = iota
	UTF16BE
	UTF16LE
	UTF32BE
	UTF32LE
)

var encodingNames = [...]string{
	UTF8:    "UTF-8",
	UTF16BE: "UTF-16BE",
	UTF16LE: "UTF-16LE",
	UTF32BE: "UTF-32BE",
	UTF32LE: "UTF-32LE",
}

func (e Encoding) Name() string {
	if int(e) < len(encodingNames) {
		return encodingNames[e]
	}
	return "unknown"
}

func (e Encoding) String() string {
	return e.Name()
}

func (e Encoding) IsBigEndian() bool {
	return e == UTF16BE || e == UTF32BE || e == UTF8
}

func (e Encoding) BytesPerUnit() int {
	switch e {
	case UTF16BE, UTF16LE:
		return 2
	case UTF32BE, UTF32LE:
		return 4
	default:
		return 1
	}
}

// textEncoding returns the transcoder for non UTF-8 encodings, nil for UTF-8.
func (e Encoding) textEncoding() encoding.Encoding {
	switch e {
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	case UTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
	default:
		return nil
	}
}

// EncodingByName resolves names like "UTF-16LE" or "utf16le".
func EncodingByName(name string) (Encoding, bool) {
	switch name {
	case "UTF-8", "UTF8", "utf-8", "utf8", "":
		return UTF8, true
	case "UTF-16BE", "UTF16BE", "utf-16be", "utf16be":
		return UTF16BE, true
	case "UTF-16LE", "UTF16LE", "utf-16le", "utf16le":
		return UTF16LE, true
	case "UTF-32BE", "UTF32BE", "utf-32be", "utf32be":
		return UTF32BE, true
	case "UTF-32LE", "UTF32LE", "utf-32le", "utf32le":
		return UTF32LE, true
	}
	return UTF8, false
}

// DetectEncoding inspects up to the first four bytes of byte input. It
// returns the encoding and the length of the byte order mark, if any. When no
// signal is found the input is assumed to be UTF-8. Without a BOM the
// heuristics rely on the first character being ASCII, so one half of the
// code unit is zero.
func DetectEncoding(b []byte) (Encoding, int, error) {
	switch {
	case len(b) >= 4:
		quad := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		if enc, bom, ok, err := detectBOM(quad); ok || err != nil {
			return enc, bom, err
		}
		if enc, ok, err := detectUTF32(quad); ok || err != nil {
			return enc, 0, err
		}
		return detectUTF16(uint16(quad >> 16)), 0, nil
	case len(b) >= 2:
		i16 := uint16(b[0])<<8 | uint16(b[1])
		switch i16 {
		case 0xFEFF:
			return UTF16BE, 2, nil
		case 0xFFFE:
			return UTF16LE, 2, nil
		}
		if len(b) == 3 && i16 == 0xEFBB && b[2] == 0xBF {
			return UTF8, 3, nil
		}
		return detectUTF16(i16), 0, nil
	default:
		return UTF8, 0, nil
	}
}

func detectBOM(quad uint32) (Encoding, int, bool, error) {
	switch quad {
	case 0x0000FEFF:
		return UTF32BE, 4, true, nil
	case 0xFFFE0000:
		return UTF32LE, 4, true, nil
	case 0x0000FFFE:
		return UTF8, 0, false, unsupportedUCS4("2143")
	case 0xFEFF0000:
		return UTF8, 0, false, unsupportedUCS4("3412")
	}

	switch quad >> 16 {
	case 0xFEFF:
		return UTF16BE, 2, true, nil
	case 0xFFFE:
		return UTF16LE, 2, true, nil
	}

	if quad>>8 == 0xEFBBBF {
		return UTF8, 3, true, nil
	}
	return UTF8, 0, false, nil
}

func detectUTF32(quad uint32) (Encoding, bool, error) {
	switch {
	case quad>>8 == 0:
		return UTF32BE, true, nil
	case quad&0x00FFFFFF == 0:
		return UTF32LE, true, nil
	case quad&^0x00FF0000 == 0:
		return UTF8, false, unsupportedUCS4("3412")
	case quad&^0x0000FF00 == 0:
		return UTF8, false, unsupportedUCS4("2143")
	}
	return UTF8, false, nil
}

func detectUTF16(i16 uint16) Encoding {
	switch {
	case i16&0xFF00 == 0:
		return UTF16BE
	case i16&0x00FF == 0:
		return UTF16LE
	default:
		return UTF8
	}
}

func unsupportedUCS4(order string) error {
	return &ReadError{
		Msg:      fmt.Sprintf("Unsupported UCS-4 endianness (%s) detected", order),
		Location: UnknownLocation,
	}
}

// NewUTF8Reader sniffs the encoding of r, drops the byte order mark and
// transcodes to UTF-8 when needed.
func NewUTF8Reader(r io.Reader) (io.Reader, Encoding, error) {
	br := bufio.NewReaderSize(r, 64)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, UTF8, wrapIO(err, "read input")
	}

	enc, bom, err := DetectEncoding(head)
	if err != nil {
		return nil, enc, err
	}
	if bom > 0 {
		if _, err := br.Discard(bom); err != nil {
			return nil, enc, wrapIO(err, "skip byte order mark")
		}
	}

	te := enc.textEncoding()
	if te == nil {
		return br, enc, nil
	}
	return transform.NewReader(br, te.NewDecoder()), enc, nil
}

// NewEncodingWriter wraps w so that UTF-8 written to it reaches w in enc.
// The returned writer must be closed to flush partial sequences.
func NewEncodingWriter(w io.Writer, enc Encoding) io.WriteCloser {
	te := enc.textEncoding()
	if te == nil {
		return nopWriteCloser{w}
	}
	return transform.NewWriter(w, te.NewEncoder())
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// SkipUTF8BOM consumes a UTF-8 byte order mark from input that can't be
// buffered and returns the first byte of content.
func SkipUTF8BOM(r io.ByteReader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xEF {
		return b, nil
	}

	for _, expected := range []byte{0xBB, 0xBF} {
		next, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if next != expected {
			return 0, errors.Errorf("unexpected byte 0x%02x following 0xEF; should get 0x%02x as part of UTF-8 BOM", next, expected)
		}
	}

	return r.ReadByte()
}
