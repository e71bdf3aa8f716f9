package cirjson

import (
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Parser is a pull tokenizer over CirJSON content. NextToken advances by one
// token; accessors describe the current token. A Parser is not safe for
// concurrent use.
type Parser interface {
	// NextToken advances the stream. TokenNone marks the end of content,
	// TokenNotAvailable is returned only by non-blocking parsers.
	NextToken() (Token, error)
	// NextValue is NextToken that skips property names.
	NextValue() (Token, error)
	// NextNameMatch advances and matches a property name against m.
	NextNameMatch(m *NameMatcher) (int, error)
	CurrentToken() Token
	CurrentName() string

	Text() (string, error)
	// TextBytes is valid only until the next call on the parser.
	TextBytes() ([]byte, error)

	NumberType() (NumberType, error)
	IntValue() (int32, error)
	LongValue() (int64, error)
	BigIntegerValue() (*big.Int, error)
	FloatValue() (float32, error)
	DoubleValue() (float64, error)
	DecimalValue() (decimal.Decimal, error)
	// IsNaN reports whether the current float token is NaN or infinite.
	IsNaN() bool
	BooleanValue() (bool, error)
	BinaryValue(v Base64Variant) ([]byte, error)
	EmbeddedObject() any

	// ObjectID is the identifier of the innermost structure the parser is in.
	ObjectID() string
	SkipChildren() error
	FinishToken() error

	CurrentLocation() Location
	TokenLocation() Location
	ReadContext() *ReadContext
	Features() ReadFeature
	Constraints() StreamReadConstraints

	// ReadValue decodes the value starting at the current token through the
	// configured ObjectReadContext.
	ReadValue(v any) error

	IsClosed() bool
	Close() error
}

// NonBlockingParser is fed by the caller instead of reading by itself.
type NonBlockingParser interface {
	Parser
	// FeedInput may only be called when NeedMoreInput is true.
	FeedInput(b []byte) error
	EndOfInput()
	NeedMoreInput() bool
}

// ObjectReadContext binds a parsed sub-tree to an application value. It is the
// seam for data binding layers, the codec itself knows nothing about types.
type ObjectReadContext interface {
	ReadValue(p Parser, v any) error
}

// representations of the current number that are already computed
const (
	numIntValid = 1 << iota
	numLongValid
	numBigIntValid
	numDoubleValid
	numFloatValid
	numDecimalValid
)

type parser struct {
	features    ReadFeature
	constraints StreamReadConstraints
	codec       ObjectReadContext
	recycler    *BufferRecycler

	src      io.Reader
	closer   io.Closer
	source   string
	content  []byte
	ownedBuf bool

	buf    []byte
	ptr    int
	end    int
	keep   int
	tokPtr int
	eof    bool

	nonBlocking bool
	endOfInput  bool
	needInput   bool

	processed int64
	line      int
	lineStart int64

	tokOffset int64
	tokLine   int
	tokCol    int

	ctx    *ReadContext
	cur    Token
	last   Token
	closed bool

	tb      *TextBuffer
	name    string
	symbols *ChildSymbols

	numNeg   bool
	intLen   int
	fracLen  int
	expLen   int
	numValid int
	numInt   int32
	numLong  int64
	numBig   *big.Int
	numFloat float32
	numDbl   float64
	numDec   decimal.Decimal
	nanValue bool

	binary []byte
}

type nameLengthValidator StreamReadConstraints

func (v nameLengthValidator) ValidateStringLength(length int) error {
	return StreamReadConstraints(v).ValidateNameLength(length)
}

func (p *parser) CurrentToken() Token {
	return p.cur
}

func (p *parser) CurrentName() string {
	switch p.cur {
	case PropertyName:
		return p.name
	case IDPropertyName:
		return IDName
	case StartObject, StartArray:
		if parent := p.ctx.Parent(); parent != nil {
			return parent.CurrentName()
		}
		return ""
	}
	return p.ctx.CurrentName()
}

func (p *parser) Text() (string, error) {
	switch p.cur {
	case PropertyName:
		return p.name, nil
	case IDPropertyName:
		if p.ctx.InObject() {
			return IDName, nil
		}
		return p.tb.ContentsAsString()
	case ValueString, ValueNumberInt, ValueNumberFloat:
		return p.tb.ContentsAsString()
	case TokenNone, TokenNotAvailable:
		return "", nil
	}
	return p.cur.Text(), nil
}

func (p *parser) TextBytes() ([]byte, error) {
	switch p.cur {
	case PropertyName:
		return toByte(p.name), nil
	case IDPropertyName:
		if p.ctx.InObject() {
			return toByte(IDName), nil
		}
		return p.tb.TextBytes()
	case ValueString, ValueNumberInt, ValueNumberFloat:
		return p.tb.TextBytes()
	case TokenNone, TokenNotAvailable:
		return nil, nil
	}
	return toByte(p.cur.Text()), nil
}

func (p *parser) BooleanValue() (bool, error) {
	switch p.cur {
	case ValueTrue:
		return true, nil
	case ValueFalse:
		return false, nil
	}
	return false, p.errorf("Current token (%s) not of boolean type", p.cur)
}

func (p *parser) EmbeddedObject() any {
	if p.cur == ValueEmbeddedObject {
		return p.binary
	}
	return nil
}

func (p *parser) BinaryValue(v Base64Variant) ([]byte, error) {
	switch p.cur {
	case ValueEmbeddedObject:
		return p.binary, nil
	case ValueString:
	default:
		return nil, p.errorf("Current token (%s) not VALUE_STRING or VALUE_EMBEDDED_OBJECT, can not access as binary", p.cur)
	}
	if p.binary != nil {
		return p.binary, nil
	}

	text, err := p.tb.TextBytes()
	if err != nil {
		return nil, p.located(err)
	}
	if p.recycler != nil {
		scratch := p.recycler.Allocate(ByteBase64CodecBuffer, v.DecodedLen(len(text)))
		decoded, err := v.DecodeTo(scratch, text)
		if err == nil {
			p.binary = append([]byte(nil), decoded...)
		}
		p.recycler.Release(ByteBase64CodecBuffer, scratch)
		if err != nil {
			return nil, p.errorWrap(err, "Failed to decode VALUE_STRING as base64 (%s)", v.Name())
		}
		return p.binary, nil
	}

	decoded, err := v.Decode(text)
	if err != nil {
		return nil, p.errorWrap(err, "Failed to decode VALUE_STRING as base64 (%s)", v.Name())
	}
	p.binary = decoded
	return decoded, nil
}

func (p *parser) ObjectID() string {
	return p.ctx.ID()
}

func (p *parser) ReadContext() *ReadContext {
	return p.ctx
}

func (p *parser) Features() ReadFeature {
	return p.features
}

func (p *parser) Constraints() StreamReadConstraints {
	return p.constraints
}

func (p *parser) IsClosed() bool {
	return p.closed
}

func (p *parser) isEnabled(f ReadFeature) bool {
	return p.features&f != 0
}

func (p *parser) ReadValue(v any) error {
	if p.codec == nil {
		return errors.New("no ObjectReadContext configured, can not read values")
	}
	return p.codec.ReadValue(p, v)
}

func (p *parser) NextValue() (Token, error) {
	t, err := p.NextToken()
	if err != nil {
		return t, err
	}
	if t == PropertyName || t == IDPropertyName {
		return p.NextToken()
	}
	return t, nil
}

func (p *parser) NextNameMatch(m *NameMatcher) (int, error) {
	t, err := p.NextToken()
	if err != nil {
		return MatchOddToken, err
	}
	switch t {
	case PropertyName:
		return m.MatchName(p.name), nil
	case IDPropertyName:
		return m.IDIndex(), nil
	case EndObject:
		return MatchEndObject, nil
	}
	return MatchOddToken, nil
}

// SkipChildren moves to the end of the structure that starts at the current
// token. For any other token it does nothing.
func (p *parser) SkipChildren() error {
	if p.cur != StartObject && p.cur != StartArray {
		return nil
	}
	open := 1
	for {
		t, err := p.NextToken()
		if err != nil {
			return err
		}
		switch t {
		case TokenNone:
			return nil
		case TokenNotAvailable:
			return p.errorf("Can not skip children: need more input")
		case StartObject, StartArray:
			open++
		case EndObject, EndArray:
			open--
			if open == 0 {
				return nil
			}
		}
	}
}

// FinishToken is a no-op: token content is always read completely.
func (p *parser) FinishToken() error {
	return nil
}

// Locations

func (p *parser) sourceRef() string {
	if p.isEnabled(IncludeSourceInLocation) {
		return p.source
	}
	return ""
}

func (p *parser) CurrentLocation() Location {
	offset := p.processed + int64(p.ptr)
	return Location{
		Source:     p.sourceRef(),
		ByteOffset: offset,
		Line:       p.line,
		Column:     int(offset-p.lineStart) + 1,
	}
}

func (p *parser) TokenLocation() Location {
	return Location{
		Source:     p.sourceRef(),
		ByteOffset: p.tokOffset,
		Line:       p.tokLine,
		Column:     p.tokCol,
	}
}

func (p *parser) markToken() {
	p.tokOffset = p.processed + int64(p.ptr)
	p.tokLine = p.line
	p.tokCol = int(p.tokOffset-p.lineStart) + 1
}

// Errors

func (p *parser) errorf(format string, args ...any) error {
	return p.newError(nil, fmt.Sprintf(format, args...))
}

func (p *parser) errorWrap(cause error, format string, args ...any) error {
	return p.newError(cause, fmt.Sprintf(format, args...))
}

func (p *parser) newError(cause error, msg string) error {
	loc := p.CurrentLocation()
	if p.content != nil && p.isEnabled(IncludeSourceInLocation) {
		msg += "\n" + sourceSnippet(p.content, int(loc.ByteOffset))
	}
	return &ReadError{Msg: msg, Location: loc, Token: p.cur, cause: cause}
}

// located attaches the current location to constraint violations.
func (p *parser) located(err error) error {
	var ce *ConstraintError
	if errors.As(err, &ce) && ce.Location.Line <= 0 {
		ce.Location = p.CurrentLocation()
	}
	return err
}

// Numbers

func (p *parser) NumberType() (NumberType, error) {
	switch p.cur {
	case ValueNumberInt:
		digits := p.intLen
		if digits <= 9 {
			return NumberInt, nil
		}
		b, err := p.intDigits()
		if err != nil {
			return NumberInt, err
		}
		if InIntRange(b, p.numNeg) {
			return NumberInt, nil
		}
		if InLongRange(b, p.numNeg) {
			return NumberLong, nil
		}
		return NumberBigInteger, nil
	case ValueNumberFloat:
		if p.numValid&numDecimalValid != 0 {
			return NumberBigDecimal, nil
		}
		if p.numValid&numFloatValid != 0 && p.numValid&numDoubleValid == 0 {
			return NumberFloat, nil
		}
		return NumberDouble, nil
	}
	return NumberInt, p.errorf("Current token (%s) not numeric, can not use numeric value accessors", p.cur)
}

// intDigits returns the digits of the current integer token without sign.
func (p *parser) intDigits() ([]byte, error) {
	b, err := p.tb.TextBytes()
	if err != nil {
		return nil, p.located(err)
	}
	return trimSign(b), nil
}

func (p *parser) numberText() string {
	s, _ := p.tb.ContentsAsString()
	return s
}

func (p *parser) coercionError(target NumberType, low, high string) error {
	return &CoercionError{
		Msg:      fmt.Sprintf("Numeric value (%s) out of range of %s (%s - %s)", abbreviate(p.numberText()), target, low, high),
		Target:   target,
		Location: p.CurrentLocation(),
	}
}

func (p *parser) requireNumeric() error {
	if p.cur != ValueNumberInt && p.cur != ValueNumberFloat {
		return p.errorf("Current token (%s) not numeric, can not use numeric value accessors", p.cur)
	}
	return nil
}

func (p *parser) IntValue() (int32, error) {
	if err := p.requireNumeric(); err != nil {
		return 0, err
	}
	if p.numValid&numIntValid != 0 {
		return p.numInt, nil
	}

	if p.cur == ValueNumberInt {
		b, err := p.intDigits()
		if err != nil {
			return 0, err
		}
		if !InIntRange(b, p.numNeg) {
			return 0, p.coercionError(NumberInt, "-2147483648", "2147483647")
		}
		p.numInt = p.tb.ContentsAsInt(p.numNeg)
		p.numValid |= numIntValid
		return p.numInt, nil
	}

	if p.numValid&numDecimalValid != 0 {
		bi := p.numDec.BigInt()
		if bi.Cmp(minInt32Big) < 0 || bi.Cmp(maxInt32Big) > 0 {
			return 0, p.coercionError(NumberInt, "-2147483648", "2147483647")
		}
		p.numInt = int32(bi.Int64())
		p.numValid |= numIntValid
		return p.numInt, nil
	}

	d, err := p.DoubleValue()
	if err != nil {
		return 0, err
	}
	if d < math.MinInt32 || d > math.MaxInt32 || math.IsNaN(d) {
		return 0, p.coercionError(NumberInt, "-2147483648", "2147483647")
	}
	p.numInt = int32(d)
	p.numValid |= numIntValid
	return p.numInt, nil
}

func (p *parser) LongValue() (int64, error) {
	if err := p.requireNumeric(); err != nil {
		return 0, err
	}
	if p.numValid&numLongValid != 0 {
		return p.numLong, nil
	}

	if p.cur == ValueNumberInt {
		b, err := p.intDigits()
		if err != nil {
			return 0, err
		}
		if !InLongRange(b, p.numNeg) {
			return 0, p.coercionError(NumberLong, "-9223372036854775808", "9223372036854775807")
		}
		p.numLong = p.tb.ContentsAsLong(p.numNeg)
		p.numValid |= numLongValid
		return p.numLong, nil
	}

	if p.numValid&numDecimalValid != 0 {
		bi := p.numDec.BigInt()
		if bi.Cmp(minInt64Big) < 0 || bi.Cmp(maxInt64Big) > 0 {
			return 0, p.coercionError(NumberLong, "-9223372036854775808", "9223372036854775807")
		}
		p.numLong = bi.Int64()
		p.numValid |= numLongValid
		return p.numLong, nil
	}

	d, err := p.DoubleValue()
	if err != nil {
		return 0, err
	}
	// float64(MaxInt64) rounds up to 2^63
	if d < math.MinInt64 || d >= math.MaxInt64 || math.IsNaN(d) {
		return 0, p.coercionError(NumberLong, "-9223372036854775808", "9223372036854775807")
	}
	p.numLong = int64(d)
	p.numValid |= numLongValid
	return p.numLong, nil
}

func (p *parser) BigIntegerValue() (*big.Int, error) {
	if err := p.requireNumeric(); err != nil {
		return nil, err
	}
	if p.numValid&numBigIntValid != 0 {
		return new(big.Int).Set(p.numBig), nil
	}

	if p.cur == ValueNumberInt {
		b, err := p.tb.TextBytes()
		if err != nil {
			return nil, p.located(err)
		}
		v, err := ParseBigInteger(toString(b), p.constraints.MaxNumberLength)
		if err != nil {
			return nil, p.located(err)
		}
		p.numBig = v
		p.numValid |= numBigIntValid
		return new(big.Int).Set(v), nil
	}

	if p.nanValue {
		return nil, p.errorf("Can not convert non-numeric value (%s) to BigInteger", p.numberText())
	}
	d, err := p.DecimalValue()
	if err != nil {
		return nil, err
	}
	if err := p.constraints.ValidateBigIntScale(int(d.Exponent())); err != nil {
		return nil, p.located(err)
	}
	p.numBig = d.BigInt()
	p.numValid |= numBigIntValid
	return new(big.Int).Set(p.numBig), nil
}

func (p *parser) DoubleValue() (float64, error) {
	if err := p.requireNumeric(); err != nil {
		return 0, err
	}
	if p.numValid&numDoubleValid != 0 {
		return p.numDbl, nil
	}

	if p.cur == ValueNumberInt {
		if l, err := p.LongValue(); err == nil {
			p.numDbl = float64(l)
			p.numValid |= numDoubleValid
			return p.numDbl, nil
		}
	}

	v, err := p.tb.ContentsAsDouble(p.isEnabled(UseFastDoubleParser))
	if err != nil {
		return 0, p.errorWrap(err, "Malformed numeric value (%s)", abbreviate(p.numberText()))
	}
	p.numDbl = v
	p.numValid |= numDoubleValid
	return v, nil
}

func (p *parser) FloatValue() (float32, error) {
	if err := p.requireNumeric(); err != nil {
		return 0, err
	}
	if p.numValid&numFloatValid != 0 {
		return p.numFloat, nil
	}
	if p.nanValue {
		d, err := p.DoubleValue()
		if err != nil {
			return 0, err
		}
		p.numFloat = float32(d)
		p.numValid |= numFloatValid
		return p.numFloat, nil
	}

	v, err := p.tb.ContentsAsFloat()
	if err != nil {
		return 0, p.errorWrap(err, "Malformed numeric value (%s)", abbreviate(p.numberText()))
	}
	p.numFloat = v
	p.numValid |= numFloatValid
	return v, nil
}

func (p *parser) DecimalValue() (decimal.Decimal, error) {
	if err := p.requireNumeric(); err != nil {
		return decimal.Decimal{}, err
	}
	if p.numValid&numDecimalValid != 0 {
		return p.numDec, nil
	}
	if p.nanValue {
		return decimal.Decimal{}, p.errorf("Can not convert non-numeric value (%s) to BigDecimal", p.numberText())
	}

	d, err := p.tb.ContentsAsDecimal(p.constraints.MaxNumberLength)
	if err != nil {
		return decimal.Decimal{}, p.located(err)
	}
	p.numDec = d
	p.numValid |= numDecimalValid
	return d, nil
}

func (p *parser) IsNaN() bool {
	return p.cur == ValueNumberFloat && p.nanValue
}

func (p *parser) resetNumber(neg bool, intLen, fracLen, expLen int) {
	p.numNeg = neg
	p.intLen = intLen
	p.fracLen = fracLen
	p.expLen = expLen
	p.numValid = 0
	p.numBig = nil
	p.nanValue = false

	if fracLen == 0 && expLen == 0 && intLen <= 9 {
		p.numInt = p.tb.ContentsAsInt(neg)
		p.numLong = int64(p.numInt)
		p.numValid = numIntValid | numLongValid
	} else if fracLen == 0 && expLen == 0 && intLen <= 18 {
		p.numLong = p.tb.ContentsAsLong(neg)
		p.numValid = numLongValid
	}
}

func (p *parser) resetNaN(v float64) {
	p.numNeg = v < 0
	p.intLen = 0
	p.fracLen = 0
	p.expLen = 0
	p.numBig = nil
	p.numDbl = v
	p.numValid = numDoubleValid
	p.nanValue = true
}

// Close releases all buffers back to the recycler and the recycler back to
// its pool. It is safe to call more than once.
func (p *parser) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cur = TokenNone

	var err error
	if p.closer != nil && p.isEnabled(AutoCloseSource) {
		err = wrapIO(p.closer.Close(), "close source")
	}

	if p.symbols != nil {
		p.symbols.Release()
	}
	p.tb.ReleaseBuffers()
	if p.recycler != nil {
		if p.ownedBuf {
			p.recycler.Release(ByteReadIOBuffer, p.buf[:cap(p.buf)])
		}
		p.recycler.ReleaseToPool()
	}
	p.buf = nil
	p.content = nil
	p.ptr, p.end, p.keep = 0, 0, 0

	return err
}
