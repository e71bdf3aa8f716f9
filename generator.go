package cirjson

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Generator is a push writer of CirJSON content. Every array and object must
// get its identifier right after it is started. A Generator is not safe for
// concurrent use.
type Generator interface {
	WriteStartObject() error
	WriteEndObject() error
	WriteStartArray() error
	WriteEndArray() error
	WriteName(name string) error

	// WriteObjectID writes the identifier property of the object just started,
	// the identifier comes from the configured IDGenerator for ref.
	WriteObjectID(ref any) error
	// WriteArrayID writes the leading identifier of the array just started.
	WriteArrayID(ref any) error
	WriteObjectIDString(id string) error
	WriteArrayIDString(id string) error

	WriteString(s string) error
	// WriteStringBytes writes UTF-8 text as a string value.
	WriteStringBytes(b []byte) error
	WriteInt(v int32) error
	WriteLong(v int64) error
	WriteBigInteger(v *big.Int) error
	WriteFloat(v float32) error
	WriteDouble(v float64) error
	WriteDecimal(v decimal.Decimal) error
	// WriteNumberString writes an already formatted number.
	WriteNumberString(s string) error
	WriteBool(v bool) error
	WriteNull() error

	// WriteRaw passes s through untouched, the context doesn't change.
	WriteRaw(s string) error
	// WriteRawValue writes s as a complete value.
	WriteRawValue(s string) error
	WriteBinary(v Base64Variant, b []byte) error
	WriteEmbeddedObject(v any) error
	// WriteValue serializes v through the configured ObjectWriteContext.
	WriteValue(v any) error

	CopyCurrentEvent(p Parser) error
	CopyCurrentStructure(p Parser) error

	WriteContext() *WriteContext
	IDGenerator() IDGenerator
	Features() WriteFeature
	Constraints() StreamWriteConstraints

	Flush() error
	IsClosed() bool
	Close() error
}

// ObjectWriteContext serializes application values; it is the write side
// seam for data binding layers.
type ObjectWriteContext interface {
	WriteValue(g Generator, v any) error
}

// Flusher is implemented by targets that buffer, like bufio.Writer.
type Flusher interface {
	Flush() error
}

const (
	hexDigits = "0123456789ABCDEF"

	// plain decimals with a larger scale magnitude are refused
	maxPlainDecimalScale = 9999
)

type generator struct {
	features    WriteFeature
	constraints StreamWriteConstraints
	codec       ObjectWriteContext
	recycler    *BufferRecycler
	ids         IDGenerator

	target  io.Writer
	enc     io.WriteCloser
	closer  io.Closer
	flusher Flusher

	out     []byte
	outBuf  []byte
	flushAt int

	ownsTarget bool

	ctx    *WriteContext
	closed bool
}

func newGenerator(w io.Writer, encoding Encoding, f *Factory) *generator {
	g := &generator{
		features:    f.writeFeatures,
		constraints: f.writeConstraints,
		codec:       f.writeCodec,
		recycler:    f.pool.Acquire(),
		ids:         f.newIDGenerator(),
		target:      w,
	}
	g.enc = NewEncodingWriter(w, encoding)
	if c, ok := w.(io.Closer); ok {
		g.closer = c
	}
	if fl, ok := w.(Flusher); ok {
		g.flusher = fl
	}

	g.outBuf = g.recycler.Allocate(ByteWriteEncodingBuffer, 0)
	g.out = g.outBuf[:0]
	g.flushAt = len(g.outBuf)

	var dups *DupDetector
	if g.isEnabled(StrictDuplicateDetectionOnWrite) {
		dups = NewDupDetector(g)
	}
	g.ctx = NewRootWriteContext(dups)
	return g
}

func (g *generator) isEnabled(f WriteFeature) bool {
	return g.features&f != 0
}

func (g *generator) WriteContext() *WriteContext {
	return g.ctx
}

func (g *generator) IDGenerator() IDGenerator {
	return g.ids
}

func (g *generator) Features() WriteFeature {
	return g.features
}

func (g *generator) Constraints() StreamWriteConstraints {
	return g.constraints
}

func (g *generator) IsClosed() bool {
	return g.closed
}

func writeErrorf(format string, args ...any) error {
	return &WriteError{Msg: fmt.Sprintf(format, args...)}
}

func writeErrorWrap(cause error, format string, args ...any) error {
	return &WriteError{Msg: fmt.Sprintf(format, args...), cause: cause}
}

func (g *generator) checkOpen() error {
	if g.closed {
		return writeErrorWrap(ErrClosed, "Generator closed, can not write")
	}
	return nil
}

// checkID refuses content in a structure that didn't get its identifier yet.
func (g *generator) checkID() error {
	ctx := g.ctx
	if ctx.InRoot() || ctx.hasID {
		return nil
	}
	if ctx.InArray() {
		return writeErrorWrap(ErrMissingID, "Can not write content of an Array before its CirJSON identifier, call WriteArrayID first")
	}
	return writeErrorWrap(ErrMissingID, "Can not write content of an Object before its CirJSON identifier, call WriteObjectID first")
}

// verifyValueWrite makes sure a value may come next and writes the
// separator in front of it.
func (g *generator) verifyValueWrite(typeMsg string) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if err := g.checkID(); err != nil {
		return err
	}
	switch g.ctx.writeValue() {
	case statusExpectName:
		return writeErrorf("Can not %s, expecting a property name (context: %s)", typeMsg, g.ctx.typ.typeDesc())
	case statusOKAfterComma:
		g.out = append(g.out, ',')
	case statusOKAfterColon:
		g.out = append(g.out, ':')
	case statusOKAfterSpace:
		g.out = append(g.out, ' ')
	}
	return nil
}

// Structures

func (g *generator) WriteStartObject() error {
	if err := g.verifyValueWrite("start an object"); err != nil {
		return err
	}
	if err := g.constraints.ValidateNestingDepth(g.ctx.Depth() + 1); err != nil {
		return err
	}
	g.ctx = g.ctx.createChild(ContextObject, nil)
	g.out = append(g.out, '{')
	return g.maybeFlush()
}

func (g *generator) WriteStartArray() error {
	if err := g.verifyValueWrite("start an array"); err != nil {
		return err
	}
	if err := g.constraints.ValidateNestingDepth(g.ctx.Depth() + 1); err != nil {
		return err
	}
	g.ctx = g.ctx.createChild(ContextArray, nil)
	g.out = append(g.out, '[')
	return g.maybeFlush()
}

func (g *generator) WriteEndObject() error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	ctx := g.ctx
	if !ctx.InObject() {
		return writeErrorf("Current context not Object but %s", ctx.typ.typeDesc())
	}
	if err := g.checkID(); err != nil {
		return err
	}
	if ctx.gotName {
		return writeErrorf("Can not write END_OBJECT after property name '%s' without a value", ctx.name)
	}
	g.ctx = ctx.clearAndGetParent()
	g.out = append(g.out, '}')
	return g.maybeFlush()
}

func (g *generator) WriteEndArray() error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	ctx := g.ctx
	if !ctx.InArray() {
		return writeErrorf("Current context not Array but %s", ctx.typ.typeDesc())
	}
	if err := g.checkID(); err != nil {
		return err
	}
	g.ctx = ctx.clearAndGetParent()
	g.out = append(g.out, ']')
	return g.maybeFlush()
}

func (g *generator) WriteName(name string) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if name == IDName {
		return writeErrorWrap(ErrDuplicateID, "Can not write property name '%s': reserved for the CirJSON identifier, use WriteObjectID", IDName)
	}
	if err := g.checkID(); err != nil {
		return err
	}

	status, dup := g.ctx.writeName(name)
	if status == statusExpectValue {
		if !g.ctx.InObject() {
			return writeErrorf("Can not write a property name, expecting a value (context: %s)", g.ctx.typ.typeDesc())
		}
		return writeErrorf("Can not write a property name, expecting a value for '%s'", g.ctx.name)
	}
	if dup {
		return writeErrorWrap(ErrDuplicateName, "Duplicate Object property \"%s\"", name)
	}
	if status == statusOKAfterComma {
		g.out = append(g.out, ',')
	}
	g.out = g.appendQuoted(g.out, name)
	return g.maybeFlush()
}

// Identifiers

func (g *generator) WriteObjectID(ref any) error {
	if err := g.checkObjectIDSlot(); err != nil {
		return err
	}
	return g.writeObjectID(g.ids.ID(ref))
}

func (g *generator) WriteObjectIDString(id string) error {
	if err := g.checkObjectIDSlot(); err != nil {
		return err
	}
	return g.writeObjectID(id)
}

func (g *generator) checkObjectIDSlot() error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	ctx := g.ctx
	if !ctx.InObject() {
		return writeErrorf("Can not write an Object identifier, current context is %s", ctx.typ.typeDesc())
	}
	if ctx.hasID {
		return writeErrorWrap(ErrDuplicateID, "Object identifier already written ('%s')", ctx.id)
	}
	return nil
}

func (g *generator) writeObjectID(id string) error {
	g.out = append(g.out, '"')
	g.out = append(g.out, IDName...)
	g.out = append(g.out, '"', ':')
	g.out = g.appendQuoted(g.out, id)
	g.ctx.setID(id)
	return g.maybeFlush()
}

func (g *generator) WriteArrayID(ref any) error {
	if err := g.checkArrayIDSlot(); err != nil {
		return err
	}
	return g.writeArrayID(g.ids.ID(ref))
}

func (g *generator) WriteArrayIDString(id string) error {
	if err := g.checkArrayIDSlot(); err != nil {
		return err
	}
	return g.writeArrayID(id)
}

func (g *generator) checkArrayIDSlot() error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	ctx := g.ctx
	if !ctx.InArray() {
		return writeErrorf("Can not write an Array identifier, current context is %s", ctx.typ.typeDesc())
	}
	if ctx.hasID {
		return writeErrorWrap(ErrDuplicateID, "Array identifier already written ('%s')", ctx.id)
	}
	return nil
}

func (g *generator) writeArrayID(id string) error {
	g.out = g.appendQuoted(g.out, id)
	g.ctx.setID(id)
	return g.maybeFlush()
}

// Scalars

func (g *generator) WriteString(s string) error {
	if err := g.verifyValueWrite("write a string"); err != nil {
		return err
	}
	g.out = g.appendQuoted(g.out, s)
	return g.maybeFlush()
}

func (g *generator) WriteStringBytes(b []byte) error {
	return g.WriteString(toString(b))
}

func (g *generator) WriteInt(v int32) error {
	if err := g.verifyValueWrite("write a number"); err != nil {
		return err
	}
	g.appendNumber(func(out []byte) []byte { return AppendInt(out, v) })
	return g.maybeFlush()
}

func (g *generator) WriteLong(v int64) error {
	if err := g.verifyValueWrite("write a number"); err != nil {
		return err
	}
	g.appendNumber(func(out []byte) []byte { return AppendLong(out, v) })
	return g.maybeFlush()
}

func (g *generator) WriteBigInteger(v *big.Int) error {
	if v == nil {
		return g.WriteNull()
	}
	if err := g.verifyValueWrite("write a number"); err != nil {
		return err
	}
	g.appendNumber(func(out []byte) []byte { return v.Append(out, 10) })
	return g.maybeFlush()
}

func (g *generator) WriteDouble(v float64) error {
	if err := g.verifyValueWrite("write a number"); err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		g.appendNonFinite(v)
	} else {
		g.appendNumber(func(out []byte) []byte { return AppendDouble(out, v) })
	}
	return g.maybeFlush()
}

func (g *generator) WriteFloat(v float32) error {
	if err := g.verifyValueWrite("write a number"); err != nil {
		return err
	}
	if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
		g.appendNonFinite(f)
	} else {
		g.appendNumber(func(out []byte) []byte { return AppendFloat(out, v) })
	}
	return g.maybeFlush()
}

func (g *generator) WriteDecimal(v decimal.Decimal) error {
	plain := g.isEnabled(WriteBigDecimalAsPlain)
	if plain {
		if scale := -int(v.Exponent()); scale < -maxPlainDecimalScale || scale > maxPlainDecimalScale {
			return writeErrorf("Attempt to write plain decimal (see `WriteBigDecimalAsPlain`) with illegal scale (%d): needs to be between [-%d, %d]",
				scale, maxPlainDecimalScale, maxPlainDecimalScale)
		}
	}
	if err := g.verifyValueWrite("write a number"); err != nil {
		return err
	}
	s := decimalToString(v, plain)
	g.appendNumber(func(out []byte) []byte { return append(out, s...) })
	return g.maybeFlush()
}

func (g *generator) WriteNumberString(s string) error {
	if err := g.verifyValueWrite("write a number"); err != nil {
		return err
	}
	g.appendNumber(func(out []byte) []byte { return append(out, s...) })
	return g.maybeFlush()
}

// appendNumber quotes numbers when WriteNumbersAsStrings is enabled.
func (g *generator) appendNumber(appendFn func([]byte) []byte) {
	if g.isEnabled(WriteNumbersAsStrings) {
		g.out = append(g.out, '"')
		g.out = appendFn(g.out)
		g.out = append(g.out, '"')
		return
	}
	g.out = appendFn(g.out)
}

func (g *generator) appendNonFinite(v float64) {
	if g.isEnabled(WriteNaNAsStrings) || g.isEnabled(WriteNumbersAsStrings) {
		g.out = append(g.out, '"')
		g.out = AppendDouble(g.out, v)
		g.out = append(g.out, '"')
		return
	}
	g.out = AppendDouble(g.out, v)
}

func (g *generator) WriteBool(v bool) error {
	if err := g.verifyValueWrite("write a boolean value"); err != nil {
		return err
	}
	if v {
		g.out = append(g.out, "true"...)
	} else {
		g.out = append(g.out, "false"...)
	}
	return g.maybeFlush()
}

func (g *generator) WriteNull() error {
	if err := g.verifyValueWrite("write a null"); err != nil {
		return err
	}
	g.out = append(g.out, "null"...)
	return g.maybeFlush()
}

func (g *generator) WriteRaw(s string) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	g.out = append(g.out, s...)
	return g.maybeFlush()
}

func (g *generator) WriteRawValue(s string) error {
	if err := g.verifyValueWrite("write a raw (unencoded) value"); err != nil {
		return err
	}
	g.out = append(g.out, s...)
	return g.maybeFlush()
}

func (g *generator) WriteBinary(v Base64Variant, b []byte) error {
	if b == nil {
		return g.WriteNull()
	}
	if err := g.verifyValueWrite("write a binary value"); err != nil {
		return err
	}

	scratch := g.recycler.Allocate(ByteBase64CodecBuffer, v.EncodedLen(len(b)))
	encoded := v.AppendEncode(scratch[:0], b)
	g.out = append(g.out, '"')
	for _, c := range encoded {
		if c == '\n' {
			g.out = append(g.out, '\\', 'n')
			continue
		}
		g.out = append(g.out, c)
	}
	g.out = append(g.out, '"')
	g.recycler.Release(ByteBase64CodecBuffer, scratch)

	return g.maybeFlush()
}

func (g *generator) WriteEmbeddedObject(v any) error {
	switch o := v.(type) {
	case nil:
		return g.WriteNull()
	case []byte:
		return g.WriteBinary(DefaultBase64Variant(), o)
	}
	return writeErrorf("No native support for writing embedded objects of type %T", v)
}

func (g *generator) WriteValue(v any) error {
	if v == nil {
		return g.WriteNull()
	}
	if g.codec == nil {
		return errors.New("no ObjectWriteContext configured, can not write values")
	}
	return g.codec.WriteValue(g, v)
}

// Copying

func (g *generator) CopyCurrentEvent(p Parser) error {
	return copyCurrentEvent(g, p)
}

func (g *generator) CopyCurrentStructure(p Parser) error {
	return copyCurrentStructure(g, p)
}

// copyCurrentEvent writes the current token of p to g. Identifiers are kept.
func copyCurrentEvent(g Generator, p Parser) error {
	t := p.CurrentToken()
	switch t {
	case StartObject:
		return g.WriteStartObject()
	case EndObject:
		return g.WriteEndObject()
	case StartArray:
		return g.WriteStartArray()
	case EndArray:
		return g.WriteEndArray()
	case IDPropertyName:
		if arrayIDToken(p) {
			id, err := p.Text()
			if err != nil {
				return err
			}
			return g.WriteArrayIDString(id)
		}
		// the identifier is written together with its value
		return nil
	case PropertyName:
		return g.WriteName(p.CurrentName())
	case ValueString:
		s, err := p.Text()
		if err != nil {
			return err
		}
		if isObjectIDValue(p) {
			return g.WriteObjectIDString(s)
		}
		return g.WriteString(s)
	case ValueNumberInt:
		nt, err := p.NumberType()
		if err != nil {
			return err
		}
		switch nt {
		case NumberInt:
			v, err := p.IntValue()
			if err != nil {
				return err
			}
			return g.WriteInt(v)
		case NumberLong:
			v, err := p.LongValue()
			if err != nil {
				return err
			}
			return g.WriteLong(v)
		}
		v, err := p.BigIntegerValue()
		if err != nil {
			return err
		}
		return g.WriteBigInteger(v)
	case ValueNumberFloat:
		if p.IsNaN() {
			v, err := p.DoubleValue()
			if err != nil {
				return err
			}
			return g.WriteDouble(v)
		}
		s, err := p.Text()
		if err != nil {
			return err
		}
		return g.WriteNumberString(s)
	case ValueTrue:
		return g.WriteBool(true)
	case ValueFalse:
		return g.WriteBool(false)
	case ValueNull:
		return g.WriteNull()
	case ValueEmbeddedObject:
		return g.WriteEmbeddedObject(p.EmbeddedObject())
	}
	return writeErrorf("No current event to copy (token %s)", t)
}

// isObjectIDValue tells whether the current string of p is the value of an
// object identifier property. The name can't occur later in an object.
func isObjectIDValue(p Parser) bool {
	return p.CurrentToken() == ValueString && p.CurrentName() == IDName
}

// arrayIDToken tells whether the current IDPropertyName of p is the leading
// identifier of an array. Parsers replaying tokens answer for themselves.
func arrayIDToken(p Parser) bool {
	if r, ok := p.(interface{ arrayIDToken() bool }); ok {
		return r.arrayIDToken()
	}
	return p.ReadContext().InArray()
}

// copyCurrentStructure copies the current token and, for a property name or
// a structure start, everything up to the end of the value.
func copyCurrentStructure(g Generator, p Parser) error {
	t := p.CurrentToken()
	if t == PropertyName {
		if err := g.WriteName(p.CurrentName()); err != nil {
			return err
		}
		var err error
		if t, err = p.NextToken(); err != nil {
			return err
		}
	}
	if err := copyCurrentEvent(g, p); err != nil {
		return err
	}
	if !t.IsStructStart() {
		return nil
	}

	depth := 1
	for depth > 0 {
		t, err := p.NextToken()
		if err != nil {
			return err
		}
		switch t {
		case TokenNone:
			return writeErrorf("Unexpected end of content while copying structure")
		case TokenNotAvailable:
			return writeErrorf("Can not copy structure: parser needs more input")
		case StartObject, StartArray:
			depth++
		case EndObject, EndArray:
			depth--
		}
		if err := copyCurrentEvent(g, p); err != nil {
			return err
		}
	}
	return nil
}

// Escaping

// appendQuoted appends s as a quoted string. Control characters get short or
// \u escapes, invalid UTF-8 becomes U+FFFD.
func (g *generator) appendQuoted(out []byte, s string) []byte {
	nonASCII := g.isEnabled(EscapeNonASCII)
	slash := g.isEnabled(EscapeForwardSlashes)

	out = append(out, '"')
	if !needsEscape(s, nonASCII, slash) {
		out = append(out, s...)
		return append(out, '"')
	}

	start := 0
	for i := 0; i < len(s); {
		if c := s[i]; c < utf8.RuneSelf {
			if c >= 0x20 && c != '"' && c != '\\' && (c != '/' || !slash) {
				i++
				continue
			}
			out = append(out, s[start:i]...)
			switch c {
			case '"', '\\', '/':
				out = append(out, '\\', c)
			case '\b':
				out = append(out, '\\', 'b')
			case '\f':
				out = append(out, '\\', 'f')
			case '\n':
				out = append(out, '\\', 'n')
			case '\r':
				out = append(out, '\\', 'r')
			case '\t':
				out = append(out, '\\', 't')
			default:
				out = appendUnicodeEscape(out, rune(c))
			}
			i++
			start = i
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, s[start:i]...)
			out = append(out, "\\uFFFD"...)
			i += size
			start = i
			continue
		}
		if nonASCII {
			out = append(out, s[start:i]...)
			if r > 0xFFFF {
				r -= 0x10000
				out = appendUnicodeEscape(out, 0xD800+(r>>10))
				out = appendUnicodeEscape(out, 0xDC00+(r&0x3FF))
			} else {
				out = appendUnicodeEscape(out, r)
			}
			i += size
			start = i
			continue
		}
		i += size
	}
	out = append(out, s[start:]...)
	return append(out, '"')
}

func appendUnicodeEscape(out []byte, r rune) []byte {
	return append(out, '\\', 'u',
		hexDigits[(r>>12)&0xF], hexDigits[(r>>8)&0xF], hexDigits[(r>>4)&0xF], hexDigits[r&0xF])
}

func needsEscape(s string, nonASCII, slash bool) bool {
	validated := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == '"' || c == '\\' || c == '/' && slash {
			return true
		}
		if c >= utf8.RuneSelf && !validated {
			if nonASCII || !utf8.ValidString(s[i:]) {
				return true
			}
			validated = true
		}
	}
	return false
}

// Output

func (g *generator) maybeFlush() error {
	if len(g.out) < g.flushAt {
		return nil
	}
	return g.flushBuffer()
}

func (g *generator) flushBuffer() error {
	if len(g.out) == 0 {
		return nil
	}
	_, err := g.enc.Write(g.out)
	g.out = g.out[:0]
	return wrapIO(err, "write output")
}

func (g *generator) Flush() error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if err := g.flushBuffer(); err != nil {
		return err
	}
	if g.flusher != nil && g.isEnabled(FlushPassedToStream) {
		return wrapIO(g.flusher.Flush(), "flush output")
	}
	return nil
}

// Close writes the pending output and releases buffers. With AutoCloseContent
// open structures are closed first. It is safe to call more than once.
func (g *generator) Close() error {
	if g.closed {
		return nil
	}

	var closeErr error
	if g.isEnabled(AutoCloseContent) {
		ctx := g.ctx
		for !ctx.InRoot() {
			// an empty structure without identifier is not valid CirJSON
			if !ctx.hasID {
				closeErr = writeErrorWrap(ErrMissingID, "Can not close %s without identifier", ctx.typ.typeDesc())
				break
			}
			if ctx.InArray() {
				g.out = append(g.out, ']')
			} else {
				g.out = append(g.out, '}')
			}
			ctx = ctx.clearAndGetParent()
		}
		g.ctx = ctx
	}

	err := g.flushBuffer()
	if closeErr != nil {
		err = closeErr
	}
	if encErr := wrapIO(g.enc.Close(), "flush encoder"); err == nil {
		err = encErr
	}
	switch {
	case g.closer != nil && (g.ownsTarget || g.isEnabled(AutoCloseTarget)):
		if cErr := wrapIO(g.closer.Close(), "close target"); err == nil {
			err = cErr
		}
	case g.flusher != nil && g.isEnabled(FlushPassedToStream):
		if fErr := wrapIO(g.flusher.Flush(), "flush output"); err == nil {
			err = fErr
		}
	}

	g.closed = true
	g.recycler.Release(ByteWriteEncodingBuffer, g.outBuf)
	g.recycler.ReleaseToPool()
	g.out, g.outBuf = nil, nil

	return err
}
