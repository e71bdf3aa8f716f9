package cirjson

import (
	"io"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	minSegmentLen = 500
	maxSegmentLen = 64 * 1024
)

// StringLengthValidator is consulted whenever a TextBuffer grows or is
// finalized. A nil validator means no limit.
type StringLengthValidator interface {
	ValidateStringLength(length int) error
}

// TextBuffer accumulates token text. Content is either a window into the
// caller's data (shared), owned segments, or a cached result; only one of the
// three is authoritative at a time. Lengths count UTF-8 bytes.
type TextBuffer struct {
	recycler  *BufferRecycler
	fromPool  bool
	validator StringLengthValidator

	inputBuffer []byte
	inputStart  int
	inputLen    int

	segments    [][]byte
	segmentSize int

	currentSegment []byte
	currentSize    int

	resultString    string
	hasResultString bool
	resultArray     []byte
}

// NewTextBuffer creates a buffer whose first segment comes from the recycler,
// when one is given.
func NewTextBuffer(r *BufferRecycler, v StringLengthValidator) *TextBuffer {
	return &TextBuffer{recycler: r, validator: v, inputStart: -1}
}

// ReleaseBuffers returns the current segment to the recycler. The buffer stays
// usable, it will simply allocate again.
func (tb *TextBuffer) ReleaseBuffers() {
	tb.ResetWithEmpty()
	if tb.recycler != nil && tb.fromPool && tb.currentSegment != nil {
		buf := tb.currentSegment
		tb.currentSegment = nil
		tb.fromPool = false
		tb.recycler.Release(CharTokenBuffer, buf)
	}
}

func (tb *TextBuffer) ResetWithEmpty() {
	tb.inputStart = -1
	tb.inputBuffer = nil
	tb.inputLen = 0
	tb.currentSize = 0
	tb.clearResult()
	if tb.segments != nil {
		tb.clearSegments()
	}
}

// ResetWithShared points the buffer at data[offset:offset+length] without copying.
func (tb *TextBuffer) ResetWithShared(data []byte, offset, length int) {
	tb.clearResult()
	tb.inputBuffer = data
	tb.inputStart = offset
	tb.inputLen = length
	if tb.segments != nil {
		tb.clearSegments()
	}
}

func (tb *TextBuffer) ResetWithCopy(data []byte, offset, length int) error {
	tb.inputBuffer = nil
	tb.inputStart = -1
	tb.inputLen = 0
	tb.clearResult()

	if tb.segments != nil {
		tb.clearSegments()
	} else if tb.currentSegment == nil {
		tb.currentSegment = tb.buf(length)
	}
	tb.currentSize = 0
	tb.segmentSize = 0

	return tb.AppendBytes(data[offset : offset+length])
}

func (tb *TextBuffer) ResetWithString(s string) error {
	if err := tb.validate(len(s)); err != nil {
		return err
	}
	tb.inputBuffer = nil
	tb.inputStart = -1
	tb.inputLen = 0
	tb.resultString = s
	tb.hasResultString = true
	tb.resultArray = nil
	if tb.segments != nil {
		tb.clearSegments()
	}
	tb.currentSize = 0
	return nil
}

func (tb *TextBuffer) clearResult() {
	tb.resultString = ""
	tb.hasResultString = false
	tb.resultArray = nil
}

func (tb *TextBuffer) clearSegments() {
	// the current segment is always the biggest one, keep it
	for i := range tb.segments {
		tb.segments[i] = nil
	}
	tb.segments = tb.segments[:0]
	tb.segmentSize = 0
	tb.currentSize = 0
}

func (tb *TextBuffer) buf(needed int) []byte {
	if needed < minSegmentLen {
		needed = minSegmentLen
	}
	if tb.recycler != nil && !tb.fromPool {
		tb.fromPool = true
		return tb.recycler.Allocate(CharTokenBuffer, needed)
	}
	return make([]byte, needed)
}

func (tb *TextBuffer) validate(size int) error {
	if tb.validator == nil {
		return nil
	}
	return tb.validator.ValidateStringLength(size)
}

// Size returns the number of accumulated bytes.
func (tb *TextBuffer) Size() int {
	if tb.inputStart >= 0 {
		return tb.inputLen
	}
	if tb.resultArray != nil {
		return len(tb.resultArray)
	}
	if tb.hasResultString {
		return len(tb.resultString)
	}
	return tb.segmentSize + tb.currentSize
}

// HasTextAsCharacters tells whether the content is already available as bytes
// without materializing.
func (tb *TextBuffer) HasTextAsCharacters() bool {
	if tb.inputStart >= 0 || tb.resultArray != nil {
		return true
	}
	return !tb.hasResultString
}

// TextBytes returns the content, sharing the underlying storage when possible.
// The result is only valid until the next mutation.
func (tb *TextBuffer) TextBytes() ([]byte, error) {
	if tb.inputStart >= 0 {
		return tb.inputBuffer[tb.inputStart : tb.inputStart+tb.inputLen], nil
	}
	if tb.resultArray != nil {
		return tb.resultArray, nil
	}
	if tb.hasResultString {
		return []byte(tb.resultString), nil
	}
	if len(tb.segments) == 0 {
		if tb.currentSegment == nil {
			return []byte{}, nil
		}
		return tb.currentSegment[:tb.currentSize], nil
	}
	return tb.ContentsAsArray()
}

func (tb *TextBuffer) ContentsAsString() (string, error) {
	if tb.hasResultString {
		return tb.resultString, nil
	}
	if tb.resultArray != nil {
		tb.resultString = string(tb.resultArray)
		tb.hasResultString = true
		return tb.resultString, nil
	}

	if tb.inputStart >= 0 {
		if tb.inputLen < 1 {
			tb.hasResultString = true
			return "", nil
		}
		if err := tb.validate(tb.inputLen); err != nil {
			return "", err
		}
		tb.resultString = string(tb.inputBuffer[tb.inputStart : tb.inputStart+tb.inputLen])
		tb.hasResultString = true
		return tb.resultString, nil
	}

	size := tb.segmentSize + tb.currentSize
	if err := tb.validate(size); err != nil {
		return "", err
	}
	if len(tb.segments) == 0 {
		if tb.currentSize == 0 {
			tb.resultString = ""
		} else {
			tb.resultString = string(tb.currentSegment[:tb.currentSize])
		}
		tb.hasResultString = true
		return tb.resultString, nil
	}

	sb := strings.Builder{}
	sb.Grow(size)
	for _, seg := range tb.segments {
		sb.Write(seg)
	}
	sb.Write(tb.currentSegment[:tb.currentSize])
	tb.resultString = sb.String()
	tb.hasResultString = true

	return tb.resultString, nil
}

func (tb *TextBuffer) ContentsAsArray() ([]byte, error) {
	if tb.resultArray != nil {
		return tb.resultArray, nil
	}
	if tb.hasResultString {
		tb.resultArray = []byte(tb.resultString)
		return tb.resultArray, nil
	}
	if tb.inputStart >= 0 {
		if err := tb.validate(tb.inputLen); err != nil {
			return nil, err
		}
		tb.resultArray = append([]byte(nil), tb.inputBuffer[tb.inputStart:tb.inputStart+tb.inputLen]...)
		return tb.resultArray, nil
	}

	size := tb.segmentSize + tb.currentSize
	if err := tb.validate(size); err != nil {
		return nil, err
	}
	result := make([]byte, 0, size)
	for _, seg := range tb.segments {
		result = append(result, seg...)
	}
	if tb.currentSegment != nil {
		result = append(result, tb.currentSegment[:tb.currentSize]...)
	}
	tb.resultArray = result

	return result, nil
}

// ContentsToWriter writes the content without materializing it.
func (tb *TextBuffer) ContentsToWriter(w io.Writer) (int, error) {
	if tb.resultArray != nil {
		return w.Write(tb.resultArray)
	}
	if tb.hasResultString {
		return io.WriteString(w, tb.resultString)
	}
	if tb.inputStart >= 0 {
		return w.Write(tb.inputBuffer[tb.inputStart : tb.inputStart+tb.inputLen])
	}

	total := 0
	for _, seg := range tb.segments {
		n, err := w.Write(seg)
		total += n
		if err != nil {
			return total, err
		}
	}
	if tb.currentSize > 0 {
		n, err := w.Write(tb.currentSegment[:tb.currentSize])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (tb *TextBuffer) Append(c byte) error {
	if tb.inputStart >= 0 {
		tb.unshare(16)
	}
	tb.clearResult()

	if tb.currentSize >= len(tb.currentSegment) {
		if err := tb.validate(tb.segmentSize + tb.currentSize + 1); err != nil {
			return err
		}
		if _, err := tb.expand(); err != nil {
			return err
		}
	}
	tb.currentSegment[tb.currentSize] = c
	tb.currentSize++

	return nil
}

func (tb *TextBuffer) AppendBytes(b []byte) error {
	if tb.inputStart >= 0 {
		tb.unshare(len(b))
	}
	tb.clearResult()

	if err := tb.validate(tb.segmentSize + tb.currentSize + len(b)); err != nil {
		return err
	}
	if tb.currentSegment == nil {
		tb.currentSegment = tb.buf(len(b))
	}

	for len(b) > 0 {
		free := len(tb.currentSegment) - tb.currentSize
		if free == 0 {
			if _, err := tb.expand(); err != nil {
				return err
			}
			continue
		}
		n := copy(tb.currentSegment[tb.currentSize:], b)
		tb.currentSize += n
		b = b[n:]
	}

	return nil
}

func (tb *TextBuffer) AppendString(s string) error {
	return tb.AppendBytes(toByte(s))
}

// CurrentSegment is the raw growth handle for writers that fill the buffer
// byte by byte; use CurrentSegmentSize and SetCurrentLength with it.
func (tb *TextBuffer) CurrentSegment() []byte {
	if tb.inputStart >= 0 {
		tb.unshare(1)
	} else if tb.currentSegment == nil {
		tb.currentSegment = tb.buf(0)
	} else if tb.currentSize >= len(tb.currentSegment) {
		// a length violation resurfaces when the content is finalized
		_, _ = tb.expand()
	}
	return tb.currentSegment
}

func (tb *TextBuffer) CurrentSegmentSize() int {
	return tb.currentSize
}

func (tb *TextBuffer) SetCurrentLength(n int) {
	tb.currentSize = n
}

// SetCurrentAndReturn finalizes the content and returns it as a string.
func (tb *TextBuffer) SetCurrentAndReturn(n int) (string, error) {
	tb.currentSize = n
	if len(tb.segments) > 0 {
		return tb.ContentsAsString()
	}
	if err := tb.validate(n); err != nil {
		return "", err
	}
	s := ""
	if n > 0 {
		s = string(tb.currentSegment[:n])
	}
	tb.resultString = s
	tb.hasResultString = true
	return s, nil
}

func (tb *TextBuffer) EmptyAndGetCurrentSegment() []byte {
	tb.inputStart = -1
	tb.currentSize = 0
	tb.inputLen = 0
	tb.inputBuffer = nil
	tb.clearResult()
	if tb.segments != nil {
		tb.clearSegments()
	}
	if tb.currentSegment == nil {
		tb.currentSegment = tb.buf(0)
	}
	return tb.currentSegment
}

// FinishCurrentSegment moves the full current segment to the segment list and
// starts a new one, 1.5 times bigger up to the maximum segment length.
func (tb *TextBuffer) FinishCurrentSegment() ([]byte, error) {
	return tb.expand()
}

func (tb *TextBuffer) expand() ([]byte, error) {
	if tb.currentSegment == nil {
		tb.currentSegment = tb.buf(0)
		return tb.currentSegment, nil
	}

	tb.segments = append(tb.segments, tb.currentSegment[:tb.currentSize])
	tb.segmentSize += tb.currentSize
	tb.currentSize = 0

	oldLen := len(tb.currentSegment)
	newLen := oldLen + oldLen>>1
	if newLen < minSegmentLen {
		newLen = minSegmentLen
	} else if newLen > maxSegmentLen {
		newLen = maxSegmentLen
	}
	tb.currentSegment = make([]byte, newLen)

	if err := tb.validate(tb.segmentSize); err != nil {
		return tb.currentSegment, err
	}
	return tb.currentSegment, nil
}

// ExpandCurrentSegment grows the current segment in place, keeping its content.
func (tb *TextBuffer) ExpandCurrentSegment() []byte {
	curr := tb.currentSegment
	l := len(curr)
	newLen := l + l>>1
	if newLen > maxSegmentLen {
		newLen = l + l>>2
	}
	if newLen < minSegmentLen {
		newLen = minSegmentLen
	}
	next := make([]byte, newLen)
	copy(next, curr)
	tb.currentSegment = next
	return next
}

// unshare copies shared content into an owned segment with room for needExtra more bytes.
func (tb *TextBuffer) unshare(needExtra int) {
	sharedLen := tb.inputLen
	shared := tb.inputBuffer
	start := tb.inputStart

	tb.inputLen = 0
	tb.inputBuffer = nil
	tb.inputStart = -1

	needed := sharedLen + needExtra
	if tb.currentSegment == nil || needed > len(tb.currentSegment) {
		tb.currentSegment = tb.buf(needed)
	}
	if sharedLen > 0 {
		copy(tb.currentSegment, shared[start:start+sharedLen])
	}
	tb.segmentSize = 0
	tb.currentSize = sharedLen
}

// ContentsAsInt assumes a validated run of digits, the sign is passed separately.
func (tb *TextBuffer) ContentsAsInt(neg bool) int32 {
	b, _ := tb.TextBytes()
	b = trimSign(b)
	v := ParseInt(b)
	if neg {
		return -v
	}
	return v
}

func (tb *TextBuffer) ContentsAsLong(neg bool) int64 {
	b, _ := tb.TextBytes()
	b = trimSign(b)
	if len(b) > 18 {
		return ParseLong19(b, neg)
	}
	v := ParseLong(b)
	if neg {
		return -v
	}
	return v
}

func (tb *TextBuffer) ContentsAsBigInteger(maxLen int) (*big.Int, error) {
	b, err := tb.TextBytes()
	if err != nil {
		return nil, err
	}
	return ParseBigInteger(toString(b), maxLen)
}

func (tb *TextBuffer) ContentsAsDouble(fast bool) (float64, error) {
	b, err := tb.TextBytes()
	if err != nil {
		return 0, err
	}
	return ParseFloat64(toString(b), fast)
}

func (tb *TextBuffer) ContentsAsFloat() (float32, error) {
	b, err := tb.TextBytes()
	if err != nil {
		return 0, err
	}
	return ParseFloat32(toString(b))
}

func (tb *TextBuffer) ContentsAsDecimal(maxLen int) (decimal.Decimal, error) {
	b, err := tb.TextBytes()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return ParseDecimal(toString(b), maxLen)
}

func trimSign(b []byte) []byte {
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		return b[1:]
	}
	return b
}
