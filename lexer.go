package cirjson

import (
	"io"
	"math"
	"unicode/utf8"
)

const maxEmptyReads = 100

// loadMore makes more input available after p.end. Bytes from p.keep on are
// retained, everything before may be dropped. It returns false at the end of
// content; a non-blocking parser that still expects input returns
// errNeedMoreInput instead.
func (p *parser) loadMore() (bool, error) {
	if p.nonBlocking {
		if p.endOfInput {
			return false, nil
		}
		return false, errNeedMoreInput
	}
	if p.src == nil || p.eof {
		return false, nil
	}

	if p.keep > 0 {
		shift := p.keep
		p.end = copy(p.buf, p.buf[shift:p.end])
		p.processed += int64(shift)
		p.ptr -= shift
		p.tokPtr -= shift
		p.keep = 0
	}
	if p.end == len(p.buf) {
		grown := make([]byte, len(p.buf)*2)
		copy(grown, p.buf[:p.end])
		p.buf = grown
	}

	for i := 0; i < maxEmptyReads; i++ {
		n, err := p.src.Read(p.buf[p.end:])
		p.end += n
		if err == io.EOF {
			p.eof = true
		} else if err != nil {
			return false, wrapIO(err, "read input")
		}
		if n > 0 {
			if err := p.constraints.ValidateDocumentLength(p.processed + int64(p.end)); err != nil {
				return false, p.located(err)
			}
			return true, nil
		}
		if p.eof {
			return false, nil
		}
	}
	return false, wrapIO(io.ErrNoProgress, "read input")
}

// ensure makes at least n bytes available at p.ptr.
func (p *parser) ensure(n int) (bool, error) {
	for p.end-p.ptr < n {
		ok, err := p.loadMore()
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// peek returns the byte at p.ptr without consuming it.
func (p *parser) peek() (byte, bool, error) {
	if p.ptr >= p.end {
		ok, err := p.loadMore()
		if err != nil || !ok {
			return 0, false, err
		}
	}
	return p.buf[p.ptr], true, nil
}

// release lets blocking parsers drop input already consumed. Non-blocking
// parsers keep everything since the token start to be able to roll back.
func (p *parser) release() {
	if !p.nonBlocking {
		p.keep = p.ptr
	}
}

func (p *parser) newLine() {
	p.line++
	p.lineStart = p.processed + int64(p.ptr)
}

// skipWS skips white space and comments, returning the next significant byte
// without consuming it. ok is false at the end of content.
func (p *parser) skipWS() (byte, bool, error) {
	for {
		if p.ptr >= p.end {
			p.release()
			ok, err := p.loadMore()
			if err != nil || !ok {
				return 0, false, err
			}
		}

		c := p.buf[p.ptr]
		switch c {
		case ' ', '\t', '\r':
			p.ptr++
		case '\n':
			p.ptr++
			p.newLine()
		case '/':
			if err := p.skipComment(); err != nil {
				return 0, false, err
			}
		case '#':
			if !p.isEnabled(AllowYAMLComments) {
				return c, true, nil
			}
			p.ptr++
			if err := p.skipLine(); err != nil {
				return 0, false, err
			}
		default:
			if c < 0x20 {
				return 0, false, p.errorf("Illegal character (%s): only regular white space (\\r, \\n, \\t) is allowed between tokens", charDesc(rune(c)))
			}
			return c, true, nil
		}
	}
}

func (p *parser) skipComment() error {
	if !p.isEnabled(AllowComments) {
		return p.errorf("Unexpected character ('/' (code 47)): maybe a (non-standard) comment? (not recognized as one since Feature '%s' not enabled for parser)", AllowComments)
	}
	ok, err := p.ensure(2)
	if err != nil {
		return err
	}
	if !ok {
		return p.errorf("Unexpected end-of-input in a comment")
	}

	switch c := p.buf[p.ptr+1]; c {
	case '/':
		p.ptr += 2
		return p.skipLine()
	case '*':
		p.ptr += 2
		return p.skipBlockComment()
	default:
		p.ptr++
		return p.errorf("Unexpected character (%s) after '/': was expecting '/' or '*' for comment", charDesc(rune(c)))
	}
}

func (p *parser) skipBlockComment() error {
	for {
		if p.ptr >= p.end {
			p.release()
			ok, err := p.loadMore()
			if err != nil {
				return err
			}
			if !ok {
				return p.errorf("Unexpected end-of-input in a comment")
			}
		}

		switch p.buf[p.ptr] {
		case '*':
			ok, err := p.ensure(2)
			if err != nil {
				return err
			}
			if !ok {
				return p.errorf("Unexpected end-of-input in a comment")
			}
			if p.buf[p.ptr+1] == '/' {
				p.ptr += 2
				return nil
			}
			p.ptr++
		case '\n':
			p.ptr++
			p.newLine()
		default:
			p.ptr++
		}
	}
}

func (p *parser) skipLine() error {
	for {
		if p.ptr >= p.end {
			p.release()
			ok, err := p.loadMore()
			if err != nil || !ok {
				return err
			}
		}
		c := p.buf[p.ptr]
		p.ptr++
		if c == '\n' {
			p.newLine()
			return nil
		}
	}
}

// scanString reads string content after the opening quote into the text
// buffer, validated against the buffer's length validator. Strings without
// escapes that sit in the input buffer are not copied.
func (p *parser) scanString() error {
	tb := p.tb
	tb.ResetWithEmpty()
	copied := false

	for {
		start := p.ptr
		for p.ptr < p.end {
			c := p.buf[p.ptr]
			if c >= utf8.RuneSelf {
				r, size := utf8.DecodeRune(p.buf[p.ptr:p.end])
				if r == utf8.RuneError && size <= 1 {
					break
				}
				p.ptr += size
				continue
			}
			if c == '"' || c == '\\' || c < 0x20 {
				break
			}
			p.ptr++
		}

		if p.ptr < p.end && p.buf[p.ptr] == '"' && !copied {
			tb.ResetWithShared(p.buf, start, p.ptr-start)
			p.ptr++
			return p.located(tb.validate(tb.Size()))
		}
		if p.ptr > start {
			if err := tb.AppendBytes(p.buf[start:p.ptr]); err != nil {
				return p.located(err)
			}
			copied = true
		}

		if p.ptr >= p.end {
			p.release()
			ok, err := p.loadMore()
			if err != nil {
				return err
			}
			if !ok {
				return p.errorf("Unexpected end-of-input: was expecting closing quote for a string value")
			}
			continue
		}

		c := p.buf[p.ptr]
		switch {
		case c == '"':
			p.ptr++
			return nil
		case c == '\\':
			p.release()
			if err := p.scanEscape(); err != nil {
				return err
			}
			copied = true
		case c < 0x20:
			if !p.isEnabled(AllowUnescapedControlChars) {
				return p.errorf("Illegal unquoted character (%s): has to be escaped using backslash to be included in string value; enable `%s` to allow",
					charDesc(rune(c)), AllowUnescapedControlChars)
			}
			if err := tb.Append(c); err != nil {
				return p.located(err)
			}
			copied = true
			p.ptr++
			if c == '\n' {
				p.newLine()
			}
		default:
			if !utf8.FullRune(p.buf[p.ptr:p.end]) {
				p.release()
				ok, err := p.ensure(p.end - p.ptr + 1)
				if err != nil {
					return err
				}
				if !ok {
					return p.errorf("Unexpected end-of-input: incomplete UTF-8 sequence in a string value")
				}
				continue
			}
			if c < 0xC2 || c > 0xF4 {
				return p.errorf("Invalid UTF-8 start byte 0x%02x", c)
			}
			return p.errorf("Invalid UTF-8 middle byte following start byte 0x%02x", c)
		}
	}
}

func (p *parser) scanEscape() error {
	ok, err := p.ensure(2)
	if err != nil {
		return err
	}
	if !ok {
		return p.errorf("Unexpected end-of-input in character escape sequence")
	}

	var out byte
	switch c := p.buf[p.ptr+1]; c {
	case '"', '\\', '/':
		out = c
	case 'b':
		out = '\b'
	case 'f':
		out = '\f'
	case 'n':
		out = '\n'
	case 'r':
		out = '\r'
	case 't':
		out = '\t'
	case 'u':
		return p.scanUnicodeEscape()
	default:
		if !p.isEnabled(AllowBackslashEscapingAnyCharacter) {
			p.ptr++
			r, _ := utf8.DecodeRune(p.buf[p.ptr:p.end])
			return p.errorf("Unrecognized character escape %s; enable `%s` to allow", charDesc(r), AllowBackslashEscapingAnyCharacter)
		}
		if c >= utf8.RuneSelf {
			// the escaped character is copied as regular content
			p.ptr++
			return nil
		}
		out = c
	}

	p.ptr += 2
	return p.located(p.tb.Append(out))
}

// scanUnicodeEscape decodes \uXXXX at p.ptr, joining surrogate pairs.
func (p *parser) scanUnicodeEscape() error {
	ok, err := p.ensure(6)
	if err != nil {
		return err
	}
	if !ok {
		return p.errorf("Unexpected end-of-input in character escape sequence")
	}
	r, err := p.hex4(p.ptr + 2)
	if err != nil {
		return err
	}
	size := 6

	switch {
	case r >= 0xDC00 && r <= 0xDFFF:
		return p.errorf("Broken surrogate pair: unexpected low surrogate (0x%04x) without a preceding high surrogate", r)
	case r >= 0xD800 && r <= 0xDBFF:
		ok, err := p.ensure(12)
		if err != nil {
			return err
		}
		if !ok || p.buf[p.ptr+6] != '\\' || p.buf[p.ptr+7] != 'u' {
			return p.errorf("Broken surrogate pair: high surrogate (0x%04x) not followed by a \\u escaped low surrogate", r)
		}
		low, err := p.hex4(p.ptr + 8)
		if err != nil {
			return err
		}
		if low < 0xDC00 || low > 0xDFFF {
			return p.errorf("Broken surrogate pair: invalid low surrogate (0x%04x) following high surrogate (0x%04x)", low, r)
		}
		r = (r-0xD800)<<10 + (low - 0xDC00) + 0x10000
		size = 12
	}

	var enc [utf8.UTFMax]byte
	n := utf8.EncodeRune(enc[:], r)
	p.ptr += size
	return p.located(p.tb.AppendBytes(enc[:n]))
}

func (p *parser) hex4(at int) (rune, error) {
	r := rune(0)
	for i := at; i < at+4; i++ {
		v := hexValue(p.buf[i])
		if v < 0 {
			p.ptr = i
			return 0, p.errorf("Unexpected character (%s) in character escape sequence: expected a hex-digit", charDesc(rune(p.buf[i])))
		}
		r = r<<4 | rune(v)
	}
	return r, nil
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// scanName reads a property name after the opening quote.
func (p *parser) scanName() (string, error) {
	p.tb.validator = nameLengthValidator(p.constraints)
	err := p.scanString()
	p.tb.validator = p.constraints
	if err != nil {
		return "", err
	}

	b, err := p.tb.TextBytes()
	if err != nil {
		return "", p.located(err)
	}
	if p.symbols != nil {
		return p.symbols.Lookup(b), nil
	}
	name := string(b)
	if p.isEnabled(InternPropertyNames) {
		name = Intern(name)
	}
	return name, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// scanDigits consumes a run of digits, returning its length.
func (p *parser) scanDigits(limit func(int) error) (int, error) {
	n := 0
	for {
		c, ok, err := p.peek()
		if err != nil {
			return n, err
		}
		if !ok || !isDigit(c) {
			return n, nil
		}
		p.ptr++
		n++
		if err := limit(n); err != nil {
			return n, p.located(err)
		}
	}
}

// scanNumber reads a number starting at p.ptr. The text buffer receives the
// number normalized to strict JSON form when a lenient feature was used.
func (p *parser) scanNumber() (Token, error) {
	p.tokPtr = p.ptr
	neg := false
	plus := false
	normalize := false

	if c := p.buf[p.ptr]; c == '-' || c == '+' {
		neg = c == '-'
		plus = c == '+'
		p.ptr++
		c, ok, err := p.peek()
		if err != nil {
			return TokenNone, err
		}
		if ok && c == 'I' {
			return p.scanNonNumeric()
		}
		if plus && !p.isEnabled(AllowLeadingPlusSign) {
			p.ptr--
			return TokenNone, p.errorf("Unexpected character ('+' (code 43)) in numeric value: JSON does not allow numbers to have plus signs: enable `%s` to allow", AllowLeadingPlusSign)
		}
		normalize = plus
	}

	maxLen := p.constraints.MaxNumberLength
	intStart := p.ptr - p.tokPtr
	intLen, err := p.scanDigits(p.constraints.ValidateIntegerLength)
	if err != nil {
		return TokenNone, err
	}

	c, ok, err := p.peek()
	if err != nil {
		return TokenNone, err
	}

	if intLen == 0 {
		if !ok || c != '.' {
			desc := "EOF"
			if ok {
				desc = charDesc(rune(c))
			}
			return TokenNone, p.errorf("Unexpected character (%s) in numeric value: expected digit (0-9) to follow minus sign, for valid numeric value", desc)
		}
		if !p.isEnabled(AllowLeadingDecimalPoint) {
			return TokenNone, p.errorf("Unexpected character ('.' (code 46)) in numeric value: Decimal point not allowed to lead a number; enable `%s` to allow", AllowLeadingDecimalPoint)
		}
		normalize = true
	}

	zeros := 0
	if intLen > 1 && p.buf[p.tokPtr+intStart] == '0' {
		if !p.isEnabled(AllowLeadingZeros) {
			return TokenNone, p.errorf("Invalid numeric value: Leading zeroes not allowed; enable `%s` to allow", AllowLeadingZeros)
		}
		for zeros < intLen-1 && p.buf[p.tokPtr+intStart+zeros] == '0' {
			zeros++
		}
		normalize = true
	}

	hasDot := false
	fracStart, fracLen := 0, 0
	if ok && c == '.' {
		hasDot = true
		p.ptr++
		fracStart = p.ptr - p.tokPtr
		fracLen, err = p.scanDigits(func(n int) error { return p.constraints.ValidateFPLength(intLen + n) })
		if err != nil {
			return TokenNone, err
		}
		if fracLen == 0 {
			if !p.isEnabled(AllowTrailingDecimalPoint) {
				c, ok, err := p.peek()
				if err != nil {
					return TokenNone, err
				}
				desc := "EOF"
				if ok {
					desc = charDesc(rune(c))
				}
				return TokenNone, p.errorf("Unexpected character (%s) in numeric value: Decimal point not followed by a digit; enable `%s` to allow", desc, AllowTrailingDecimalPoint)
			}
			normalize = true
		}
		c, ok, err = p.peek()
		if err != nil {
			return TokenNone, err
		}
	}

	expStart, expLen := 0, 0
	if ok && (c == 'e' || c == 'E') {
		expStart = p.ptr - p.tokPtr
		p.ptr++
		c, ok, err = p.peek()
		if err != nil {
			return TokenNone, err
		}
		if ok && (c == '-' || c == '+') {
			p.ptr++
		}
		expLen, err = p.scanDigits(func(n int) error { return p.constraints.ValidateFPLength(intLen + fracLen + n) })
		if err != nil {
			return TokenNone, err
		}
		if expLen == 0 {
			c, ok, err := p.peek()
			if err != nil {
				return TokenNone, err
			}
			desc := "EOF"
			if ok {
				desc = charDesc(rune(c))
			}
			return TokenNone, p.errorf("Unexpected character (%s) in numeric value: Exponent indicator not followed by a digit", desc)
		}
	}

	if p.ctx.InRoot() {
		if err := p.verifyRootSpace(); err != nil {
			return TokenNone, err
		}
	}

	total := p.ptr - p.tokPtr
	if !normalize {
		p.tb.ResetWithShared(p.buf, p.tokPtr, total)
	} else {
		tb := p.tb
		tb.ResetWithEmpty()
		if neg {
			_ = tb.Append('-')
		}
		if intLen-zeros > 0 {
			_ = tb.AppendBytes(p.buf[p.tokPtr+intStart+zeros : p.tokPtr+intStart+intLen])
		} else {
			_ = tb.Append('0')
		}
		if hasDot {
			_ = tb.Append('.')
			if fracLen > 0 {
				_ = tb.AppendBytes(p.buf[p.tokPtr+fracStart : p.tokPtr+fracStart+fracLen])
			} else {
				_ = tb.Append('0')
			}
		}
		if expStart > 0 {
			_ = tb.AppendBytes(p.buf[p.tokPtr+expStart : p.ptr])
		}
	}

	if !hasDot && expLen == 0 {
		digits := intLen - zeros
		if err := p.constraints.ValidateIntegerLength(digits); err != nil {
			return TokenNone, p.located(err)
		}
		p.resetNumber(neg, digits, 0, 0)
		return ValueNumberInt, nil
	}

	if total > maxLen {
		if err := p.constraints.ValidateFPLength(total); err != nil {
			return TokenNone, p.located(err)
		}
	}
	if hasDot && fracLen == 0 {
		fracLen = 1
	}
	p.resetNumber(neg, intLen-zeros, fracLen, expLen)
	return ValueNumberFloat, nil
}

// scanNonNumeric reads NaN and the infinities, p.ptr at 'N' or 'I' and
// p.tokPtr at the sign if there is one.
func (p *parser) scanNonNumeric() (Token, error) {
	lit := "NaN"
	v := math.NaN()
	if p.buf[p.ptr] == 'I' {
		lit = "Infinity"
		v = math.Inf(1)
		if p.buf[p.tokPtr] == '-' {
			v = math.Inf(-1)
		}
	}

	if err := p.matchLiteral(lit); err != nil {
		return TokenNone, err
	}
	text := p.buf[p.tokPtr:p.ptr]
	if !p.isEnabled(AllowNonNumericNumbers) {
		return TokenNone, p.errorf("Non-standard token '%s': enable `%s` to allow", text, AllowNonNumericNumbers)
	}

	p.tb.ResetWithShared(p.buf, p.tokPtr, len(text))
	p.resetNaN(v)
	return ValueNumberFloat, nil
}

// verifyRootSpace checks that a root level number is followed by white space
// or the end of content.
func (p *parser) verifyRootSpace() error {
	c, ok, err := p.peek()
	if err != nil || !ok {
		return err
	}
	switch c {
	case ' ', '\t', '\r', '\n':
		return nil
	case '/', '#':
		if p.isEnabled(AllowComments) || p.isEnabled(AllowYAMLComments) {
			return nil
		}
	}
	return p.errorf("Unexpected character (%s): Expected space separating root-level values", charDesc(rune(c)))
}

// matchLiteral consumes lit at p.ptr, which must not be followed by more
// token characters.
func (p *parser) matchLiteral(lit string) error {
	// positions are relative to p.ptr, loading more input may move the buffer
	for i := 0; i < len(lit); i++ {
		if p.ptr+i >= p.end {
			ok, err := p.ensure(i + 1)
			if err != nil {
				return err
			}
			if !ok {
				return p.invalidToken(p.ptr)
			}
		}
		if p.buf[p.ptr+i] != lit[i] {
			return p.invalidToken(p.ptr)
		}
	}
	p.ptr += len(lit)

	c, ok, err := p.peek()
	if err != nil {
		return err
	}
	if ok && isTokenChar(c) {
		return p.invalidToken(p.ptr - len(lit))
	}
	return nil
}

func isTokenChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || isDigit(c) || c == '_' || c == '$' || c >= utf8.RuneSelf
}

// invalidToken reports the run of token characters at start, as far as it is
// buffered.
func (p *parser) invalidToken(start int) error {
	end := start
	for end < p.end && end-start < 256 {
		c := p.buf[end]
		if !isTokenChar(c) && !(end == start && (c == '-' || c == '+')) {
			break
		}
		end++
	}
	if end == start && end < p.end {
		end++
	}
	p.ptr = start
	return p.errorf("Unrecognized token '%s': was expecting (JSON String, Number, Array, Object or token 'null', 'true' or 'false')", p.buf[start:end])
}
