package cirjson

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// NextToken advances to the next token. A blocking parser returns TokenNone
// at the end of content and after Close. A non-blocking parser returns
// TokenNotAvailable when the fed input ends inside a token; the partial token
// is read again after more input is fed.
func (p *parser) NextToken() (Token, error) {
	if p.closed {
		return TokenNone, nil
	}
	p.binary = nil

	if !p.nonBlocking {
		p.keep = p.ptr
		t, err := p.nextToken()
		if err != nil {
			return TokenNone, err
		}
		return t, nil
	}

	ptr, line, lineStart := p.ptr, p.line, p.lineStart
	p.keep = p.ptr
	t, err := p.nextToken()
	if err == errNeedMoreInput {
		p.ptr, p.line, p.lineStart = ptr, line, lineStart
		p.needInput = true
		p.cur = TokenNotAvailable
		return TokenNotAvailable, nil
	}
	if err != nil {
		return TokenNone, err
	}
	return t, nil
}

// nextToken reads one token. Nothing but the input position changes until
// the token is complete: a non-blocking parser may roll back to the token
// start at any point before that.
func (p *parser) nextToken() (Token, error) {
	ctx := p.ctx

	if ctx.InObject() && (p.last == PropertyName || p.last == IDPropertyName) {
		c, ok, err := p.skipWS()
		if err != nil {
			return TokenNone, err
		}
		if !ok {
			return TokenNone, p.eofInStructure()
		}
		p.markToken()
		if p.last == IDPropertyName {
			return p.objectIDValue(c)
		}
		return p.scanValue(c)
	}

	c, ok, err := p.skipWS()
	if err != nil {
		return TokenNone, err
	}
	if !ok {
		if !ctx.InRoot() {
			return TokenNone, p.eofInStructure()
		}
		p.cur, p.last = TokenNone, TokenNone
		return TokenNone, nil
	}
	p.markToken()

	switch ctx.Type() {
	case ContextArray:
		if !ctx.HasID() {
			return p.arrayID(c)
		}
		if c == ']' {
			return p.closeStructure(EndArray)
		}
		if c != ',' {
			if c == '}' {
				return TokenNone, p.mismatchedClose(c)
			}
			return TokenNone, p.errorf("Unexpected character (%s): was expecting comma to separate Array entries", charDesc(p.runeAt()))
		}
		p.ptr++

		if c, ok, err = p.skipWS(); err != nil {
			return TokenNone, err
		} else if !ok {
			return TokenNone, p.eofInStructure()
		}
		p.markToken()
		switch {
		case c == ']' && p.isEnabled(AllowTrailingComma):
			return p.closeStructure(EndArray)
		case (c == ']' || c == ',') && p.isEnabled(AllowMissingValues):
			return p.commitValue(ValueNull)
		case c == ']':
			return TokenNone, p.errorf("Unexpected character (']' (code 93)): expected a valid value (JSON String, Number, Array, Object or token 'null', 'true' or 'false'); enable `%s` to allow", AllowTrailingComma)
		}
		return p.scanValue(c)

	case ContextObject:
		if !ctx.HasID() {
			return p.objectIDName(c)
		}
		if c == '}' {
			return p.closeStructure(EndObject)
		}
		if c != ',' {
			if c == ']' {
				return TokenNone, p.mismatchedClose(c)
			}
			return TokenNone, p.errorf("Unexpected character (%s): was expecting comma to separate Object entries", charDesc(p.runeAt()))
		}
		p.ptr++

		if c, ok, err = p.skipWS(); err != nil {
			return TokenNone, err
		} else if !ok {
			return TokenNone, p.eofInStructure()
		}
		p.markToken()
		if c == '}' {
			if p.isEnabled(AllowTrailingComma) {
				return p.closeStructure(EndObject)
			}
			return TokenNone, p.errorf("Unexpected character ('}' (code 125)): was expecting double-quote to start property name; enable `%s` to allow", AllowTrailingComma)
		}
		return p.propertyName(c)

	default:
		return p.scanValue(c)
	}
}

func (p *parser) runeAt() rune {
	if p.ptr >= p.end {
		return -1
	}
	if p.buf[p.ptr] < 0x80 {
		return rune(p.buf[p.ptr])
	}
	r, _ := utf8.DecodeRune(p.buf[p.ptr:p.end])
	return r
}

func (p *parser) missingID(format string, args ...any) error {
	return p.errorWrap(ErrMissingID, format, args...)
}

// arrayID reads the identifier every array starts with.
func (p *parser) arrayID(c byte) (Token, error) {
	switch c {
	case ']':
		return TokenNone, p.missingID("Expected CirJSON identifier as the first element of an Array, got END_ARRAY")
	case '"':
	default:
		return TokenNone, p.missingID("Expected a String CirJSON identifier as the first element of an Array, got %s", charDesc(p.runeAt()))
	}

	p.ptr++
	if err := p.scanString(); err != nil {
		return TokenNone, err
	}
	id, err := p.tb.ContentsAsString()
	if err != nil {
		return TokenNone, p.located(err)
	}

	p.ctx.setID(id)
	return p.commit(IDPropertyName), nil
}

// objectIDName reads the identifier property every object starts with.
func (p *parser) objectIDName(c byte) (Token, error) {
	switch c {
	case '}':
		return TokenNone, p.missingID("Expected CirJSON identifier property '%s' as the first property of an Object, got END_OBJECT", IDName)
	case '"':
	default:
		return TokenNone, p.errorf("Unexpected character (%s): was expecting double-quote to start property name", charDesc(p.runeAt()))
	}

	p.ptr++
	name, err := p.scanName()
	if err != nil {
		return TokenNone, err
	}
	if name != IDName {
		return TokenNone, p.missingID("Expected CirJSON identifier property '%s' as the first property of an Object, got property '%s'", IDName, name)
	}
	if err := p.expectColon(); err != nil {
		return TokenNone, err
	}

	p.ctx.setCurrentName(IDName)
	p.name = IDName
	return p.commit(IDPropertyName), nil
}

func (p *parser) objectIDValue(c byte) (Token, error) {
	if c != '"' {
		return TokenNone, p.missingID("Expected a String value for CirJSON identifier property '%s', got %s", IDName, charDesc(p.runeAt()))
	}
	p.ptr++
	if err := p.scanString(); err != nil {
		return TokenNone, err
	}
	id, err := p.tb.ContentsAsString()
	if err != nil {
		return TokenNone, p.located(err)
	}

	p.ctx.setID(id)
	return p.commit(ValueString), nil
}

func (p *parser) propertyName(c byte) (Token, error) {
	if c != '"' {
		return TokenNone, p.errorf("Unexpected character (%s): was expecting double-quote to start property name", charDesc(p.runeAt()))
	}
	p.ptr++
	name, err := p.scanName()
	if err != nil {
		return TokenNone, err
	}
	if name == IDName {
		return TokenNone, p.errorWrap(ErrDuplicateID, "Duplicate CirJSON identifier property '%s' in Object", IDName)
	}
	if err := p.expectColon(); err != nil {
		return TokenNone, err
	}

	ctx := p.ctx
	if ctx.setCurrentName(name) {
		return TokenNone, p.errorWrap(ErrDuplicateName, "Duplicate Object property \"%s\"", name)
	}
	if err := p.constraints.ValidateObjectProperties(ctx.nextIndex() + 1); err != nil {
		return TokenNone, p.located(err)
	}
	p.name = name
	return p.commit(PropertyName), nil
}

func (p *parser) expectColon() error {
	c, ok, err := p.skipWS()
	if err != nil {
		return err
	}
	if !ok {
		return p.eofInStructure()
	}
	if c != ':' {
		return p.errorf("Unexpected character (%s): was expecting a colon to separate property name and value", charDesc(p.runeAt()))
	}
	p.ptr++
	return nil
}

// scanValue reads a value token starting with c.
func (p *parser) scanValue(c byte) (Token, error) {
	switch c {
	case '"':
		p.ptr++
		if err := p.scanString(); err != nil {
			return TokenNone, err
		}
		return p.commitValue(ValueString)
	case '[', '{':
		if err := p.constraints.ValidateNestingDepth(p.ctx.Depth() + 1); err != nil {
			return TokenNone, p.located(err)
		}
		p.ptr++
		if c == '[' {
			return p.commitValue(StartArray)
		}
		return p.commitValue(StartObject)
	case 't':
		if err := p.matchLiteral("true"); err != nil {
			return TokenNone, err
		}
		return p.commitValue(ValueTrue)
	case 'f':
		if err := p.matchLiteral("false"); err != nil {
			return TokenNone, err
		}
		return p.commitValue(ValueFalse)
	case 'n':
		if err := p.matchLiteral("null"); err != nil {
			return TokenNone, err
		}
		return p.commitValue(ValueNull)
	case 'N', 'I':
		p.tokPtr = p.ptr
		t, err := p.scanNonNumeric()
		if err != nil {
			return TokenNone, err
		}
		return p.commitValue(t)
	case '-', '+', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		t, err := p.scanNumber()
		if err != nil {
			return TokenNone, err
		}
		return p.commitValue(t)
	case ']', '}':
		ctx := p.ctx
		if ctx.InRoot() || c == ']' && ctx.InArray() || c == '}' && ctx.InObject() {
			return TokenNone, p.errorf("Unexpected close marker '%c': expected a value", c)
		}
		return TokenNone, p.mismatchedClose(c)
	case ',':
		return TokenNone, p.errorf("Unexpected character (',' (code 44)): expected a value; enable `%s` to allow", AllowMissingValues)
	}

	if isTokenChar(c) {
		return TokenNone, p.invalidToken(p.ptr)
	}
	return TokenNone, p.errorf("Unexpected character (%s): expected a valid value (JSON String, Number, Array, Object or token 'null', 'true' or 'false')", charDesc(p.runeAt()))
}

func (p *parser) commit(t Token) Token {
	p.cur, p.last = t, t
	return t
}

// commitValue completes a value token in the current context, entering a
// child context for structure starts.
func (p *parser) commitValue(t Token) (Token, error) {
	ctx := p.ctx
	if !ctx.InObject() {
		ctx.nextIndex()
	}
	switch t {
	case StartArray:
		p.ctx = ctx.createChild(ContextArray, p.tokLine, p.tokCol, p.tokOffset)
	case StartObject:
		p.ctx = ctx.createChild(ContextObject, p.tokLine, p.tokCol, p.tokOffset)
	}
	return p.commit(t), nil
}

func (p *parser) closeStructure(t Token) (Token, error) {
	p.ptr++
	p.ctx = p.ctx.clearAndGetParent()
	return p.commit(t), nil
}

func (p *parser) mismatchedClose(c byte) error {
	ctx := p.ctx
	expected := byte(']')
	if ctx.InObject() {
		expected = '}'
	}
	return p.errorf("Unexpected close marker '%c': expected '%c' (for %s starting at %s)",
		c, expected, ctx.Type().typeDesc(), ctx.StartLocation(p.sourceRef()))
}

func (p *parser) eofInStructure() error {
	ctx := p.ctx
	return p.errorf("Unexpected end-of-input: expected close marker for %s (start marker at %s)",
		ctx.Type(), ctx.StartLocation(p.sourceRef()))
}

// byteReaderAdapter reads one byte per call so that no input past the end of
// the document is consumed.
type byteReaderAdapter struct {
	r io.ByteReader
}

func (a byteReaderAdapter) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	c, err := a.r.ReadByte()
	if err != nil {
		return 0, err
	}
	b[0] = c
	return 1, nil
}

func describeContent(kind string, content []byte) string {
	const max = 500
	if len(content) <= max {
		return fmt.Sprintf("(%s)%q", kind, content)
	}
	return fmt.Sprintf("(%s)%q[truncated %d bytes]", kind, content[:max], len(content)-max)
}
