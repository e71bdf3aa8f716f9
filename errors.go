package cirjson

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrConstraintViolated is the cause of every *ConstraintError.
	ErrConstraintViolated = errors.New("stream constraint violated")
	// ErrInputCoercion is the cause of every *CoercionError.
	ErrInputCoercion = errors.New("numeric value out of range")
	ErrMissingID     = errors.New("missing CirJSON identifier")
	ErrDuplicateID   = errors.New("duplicate CirJSON identifier")
	ErrDuplicateName = errors.New("duplicate property name")
	ErrClosed        = errors.New("stream is closed")

	errNeedMoreInput = errors.New("need more input")
)

// Location points at a position within the input or output.
type Location struct {
	// Source describes the content, it includes a snippet of the input only when
	// IncludeSourceInLocation is enabled.
	Source     string
	ByteOffset int64
	Line       int
	Column     int
}

// UnknownLocation is used when no position is tracked.
var UnknownLocation = Location{Source: "UNKNOWN", ByteOffset: -1, Line: -1, Column: -1}

func (l Location) String() string {
	sb := strings.Builder{}
	sb.WriteString("[Source: ")
	if l.Source == "" {
		sb.WriteString("REDACTED (`IncludeSourceInLocation` disabled)")
	} else {
		sb.WriteString(l.Source)
	}
	sb.WriteString("; line: ")
	sb.WriteString(strconv.Itoa(l.Line))
	sb.WriteString(", column: ")
	sb.WriteString(strconv.Itoa(l.Column))
	sb.WriteString(", byte offset: ")
	sb.WriteString(strconv.FormatInt(l.ByteOffset, 10))
	sb.WriteByte(']')
	return sb.String()
}

// ReadError is a stream-read fault: the input is not valid CirJSON.
type ReadError struct {
	Msg      string
	Location Location
	Token    Token
	cause    error
}

func (e *ReadError) Error() string {
	return e.Msg + "\n at " + e.Location.String()
}

func (e *ReadError) Unwrap() error {
	return e.cause
}

// WriteError is a stream-write fault: the generator was driven out of order.
type WriteError struct {
	Msg   string
	cause error
}

func (e *WriteError) Error() string {
	return e.Msg
}

func (e *WriteError) Unwrap() error {
	return e.cause
}

// ConstraintError reports an exceeded configured limit.
type ConstraintError struct {
	Msg      string
	Limit    int
	Actual   int
	Location Location
}

func (e *ConstraintError) Error() string {
	if e.Location.Line <= 0 {
		return e.Msg
	}
	return e.Msg + "\n at " + e.Location.String()
}

func (e *ConstraintError) Unwrap() error {
	return ErrConstraintViolated
}

// CoercionError reports a numeric accessor that cannot represent the current
// value without loss.
type CoercionError struct {
	Msg      string
	Target   NumberType
	Location Location
}

func (e *CoercionError) Error() string {
	return e.Msg + "\n at " + e.Location.String()
}

func (e *CoercionError) Unwrap() error {
	return ErrInputCoercion
}

func newConstraintError(msg string, limit, actual int) *ConstraintError {
	return &ConstraintError{Msg: msg, Limit: limit, Actual: actual, Location: UnknownLocation}
}

func wrapIO(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, op)
}

// charDesc renders an offending character with its code point.
func charDesc(c rune) string {
	if c < 0 {
		return "EOF"
	}
	if c < 0x20 || c == 0x7F {
		return fmt.Sprintf("(CTRL-CHAR, code %d)", c)
	}
	if c > 255 {
		return fmt.Sprintf("'%c' (code %d / 0x%x)", c, c, c)
	}
	return fmt.Sprintf("'%c' (code %d)", c, c)
}

// sourceSnippet cuts a window around offset and draws a pointer under it.
func sourceSnippet(src []byte, offset int) string {
	a := offset - 20
	b := offset + 20
	if a < 0 {
		a = 0
	}
	if b > len(src) {
		b = len(src)
	}
	if offset > len(src) {
		offset = len(src)
	}
	if a >= b {
		return "``"
	}

	str := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(string(src[a:b]))
	pointer := strings.Repeat(" ", offset-a+1) + "^"

	return "`" + str + "`\n" + pointer
}

func panicIllegalState(format string, args ...any) {
	panic("IllegalState: " + fmt.Sprintf(format, args...))
}

func panicIllegalArgument(format string, args ...any) {
	panic("IllegalArgument: " + fmt.Sprintf(format, args...))
}
