package cirjson

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textToken struct {
	tok  Token
	text string
}

func readTokens(t *testing.T, p Parser) ([]textToken, error) {
	result := make([]textToken, 0)
	for {
		tok, err := p.NextToken()
		if err != nil {
			return result, err
		}
		if tok == TokenNone {
			return result, nil
		}
		text, err := p.Text()
		require.NoError(t, err, "can't get text of %s", tok)
		result = append(result, textToken{tok: tok, text: text})
	}
}

func parseString(t *testing.T, f *Factory, input string) ([]textToken, error) {
	p, err := f.CreateParserFromString(input)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return readTokens(t, p)
}

// scalarTexts keeps the text of scalar values only.
func scalarTexts(tokens []textToken) []string {
	result := make([]string, 0)
	for _, tt := range tokens {
		if tt.tok.IsScalarValue() {
			result = append(result, tt.text)
		}
	}
	return result
}

func TestParserTokens(t *testing.T) {
	input := `{"__cirJsonId__":"0","a":["1",1,2.5,"s",true,false,null,{"__cirJsonId__":"2"}]}`
	want := []textToken{
		{StartObject, "{"},
		{IDPropertyName, IDName},
		{ValueString, "0"},
		{PropertyName, "a"},
		{StartArray, "["},
		{IDPropertyName, "1"},
		{ValueNumberInt, "1"},
		{ValueNumberFloat, "2.5"},
		{ValueString, "s"},
		{ValueTrue, "true"},
		{ValueFalse, "false"},
		{ValueNull, "null"},
		{StartObject, "{"},
		{IDPropertyName, IDName},
		{ValueString, "2"},
		{EndObject, "}"},
		{EndArray, "]"},
		{EndObject, "}"},
	}

	tokens, err := parseString(t, NewFactory(), input)
	require.NoError(t, err)
	assert.Equal(t, want, tokens, "wrong token stream")
}

func TestParserObjectID(t *testing.T) {
	p, err := NewFactory().CreateParserFromString(`{"__cirJsonId__":"root","arr":["inner",1]}`)
	require.NoError(t, err)
	defer p.Close()

	expect := func(want Token) {
		tok, err := p.NextToken()
		require.NoError(t, err)
		require.Equal(t, want, tok)
	}

	expect(StartObject)
	expect(IDPropertyName)
	assert.Equal(t, IDName, p.CurrentName(), "id property name")
	expect(ValueString)
	assert.Equal(t, "root", p.ObjectID(), "object id isn't set")
	expect(PropertyName)
	expect(StartArray)
	assert.Equal(t, "arr", p.CurrentName(), "array start must report parent name")
	expect(IDPropertyName)
	assert.Equal(t, "inner", p.ObjectID(), "array id isn't set")
	expect(ValueNumberInt)
	assert.Equal(t, "/arr/0", p.ReadContext().PathAsPointer(), "identifiers aren't counted")
}

func TestParserRootValues(t *testing.T) {
	tokens, err := parseString(t, NewFactory(), "1 2.5 \"s\" [\"0\"] true\n-7")
	require.NoError(t, err)

	want := []textToken{
		{ValueNumberInt, "1"},
		{ValueNumberFloat, "2.5"},
		{ValueString, "s"},
		{StartArray, "["},
		{IDPropertyName, "0"},
		{EndArray, "]"},
		{ValueTrue, "true"},
		{ValueNumberInt, "-7"},
	}
	assert.Equal(t, want, tokens)

	tokens, err = parseString(t, NewFactory(), "  ")
	require.NoError(t, err)
	assert.Empty(t, tokens, "blank content has no tokens")
}

func TestParserIdentifierErrors(t *testing.T) {
	tests := []struct {
		input string
		cause error
		msg   string
	}{
		{input: `{}`, cause: ErrMissingID, msg: "as the first property of an Object, got END_OBJECT"},
		{input: `[]`, cause: ErrMissingID, msg: "as the first element of an Array, got END_ARRAY"},
		{input: `[1]`, cause: ErrMissingID, msg: "Expected a String CirJSON identifier"},
		{input: `[null]`, cause: ErrMissingID, msg: "Expected a String CirJSON identifier"},
		{input: `["0",{}]`, cause: ErrMissingID, msg: "got END_OBJECT"},
		{input: `{"__cirJsonId__":1}`, cause: ErrMissingID, msg: "Expected a String value for CirJSON identifier property"},
		{input: `{"a":"0"}`, cause: ErrMissingID, msg: "got property 'a'"},
		{input: `{"__cirJsonId__":"0","__cirJsonId__":"1"}`, cause: ErrDuplicateID, msg: "Duplicate CirJSON identifier property"},
		{input: `{"__cirJsonId__":"0","a":1,"a":2}`, cause: ErrDuplicateName, msg: `Duplicate Object property "a"`},
	}

	for _, test := range tests {
		_, err := parseString(t, NewFactory(), test.input)
		require.Error(t, err, "error expected for %s", test.input)
		assert.True(t, errors.Is(err, test.cause), "wrong cause for %s: %v", test.input, err)
		assert.Contains(t, err.Error(), test.msg, "wrong message for %s", test.input)

		var rerr *ReadError
		assert.True(t, errors.As(err, &rerr), "read error expected for %s", test.input)
	}
}

func TestParserDuplicatesAllowed(t *testing.T) {
	f := NewFactory(WithReadFeatures(DefaultReadFeatures &^ StrictDuplicateDetection))
	tokens, err := parseString(t, f, `{"__cirJsonId__":"0","a":1,"a":2}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2"}, scalarTexts(tokens))

	// the identifier is reserved no matter what
	_, err = parseString(t, f, `{"__cirJsonId__":"0","__cirJsonId__":"1"}`)
	assert.True(t, errors.Is(err, ErrDuplicateID), "wrong error: %v", err)
}

func TestParserSyntaxErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{input: `["0"}`, msg: "Unexpected close marker '}': expected ']'"},
		{input: `{"__cirJsonId__":"0"]`, msg: "Unexpected close marker ']': expected '}'"},
		{input: `["0",1`, msg: "Unexpected end-of-input: expected close marker for ARRAY"},
		{input: `["0" 1]`, msg: "was expecting comma to separate Array entries"},
		{input: `{"__cirJsonId__":"0" "a":1}`, msg: "was expecting comma to separate Object entries"},
		{input: `{"__cirJsonId__":"0","a" 1}`, msg: "was expecting a colon to separate property name and value"},
		{input: `{"__cirJsonId__":"0",a:1}`, msg: "was expecting double-quote to start property name"},
		{input: `["0",tru]`, msg: "Unrecognized token 'tru'"},
		{input: `["0",nulls]`, msg: "Unrecognized token 'nulls'"},
		{input: `1x`, msg: "Expected space separating root-level values"},
		{input: `["0",01]`, msg: "Leading zeroes not allowed"},
		{input: `["0",+1]`, msg: "JSON does not allow numbers to have plus signs"},
		{input: `["0",.5]`, msg: "Decimal point not allowed to lead a number"},
		{input: `["0",5.]`, msg: "Decimal point not followed by a digit"},
		{input: `["0",1e]`, msg: "Exponent indicator not followed by a digit"},
		{input: `["0",-]`, msg: "expected digit (0-9) to follow minus sign"},
		{input: `["0",NaN]`, msg: "Non-standard token 'NaN'"},
		{input: `["0",-Infinity]`, msg: "Non-standard token '-Infinity'"},
		{input: `["0",1,]`, msg: "expected a valid value"},
		{input: `["0",,1]`, msg: "expected a value"},
		{input: `{"__cirJsonId__":"0",}`, msg: "was expecting double-quote to start property name"},
		{input: `["0","abc`, msg: "was expecting closing quote for a string value"},
		{input: "[\"0\",\"a\x01\"]", msg: "Illegal unquoted character"},
		{input: `["0","\q"]`, msg: "Unrecognized character escape"},
		{input: `["0","\u12G4"]`, msg: "expected a hex-digit"},
		{input: `["0","\ude00"]`, msg: "Broken surrogate pair"},
		{input: `["0","\ud83dx"]`, msg: "Broken surrogate pair"},
		{input: "[\"0\",\"\xff\"]", msg: "Invalid UTF-8 start byte 0xff"},
		{input: `/* c */["0"]`, msg: "maybe a (non-standard) comment?"},
		{input: "# c\n[\"0\"]", msg: "Unexpected character ('#'"},
		{input: "[\"0\",\x01]", msg: "only regular white space"},
	}

	for _, test := range tests {
		_, err := parseString(t, NewFactory(), test.input)
		require.Error(t, err, "error expected for %q", test.input)
		assert.Contains(t, err.Error(), test.msg, "wrong message for %q", test.input)

		var rerr *ReadError
		assert.True(t, errors.As(err, &rerr), "read error expected for %q", test.input)
	}
}

func TestParserFeatures(t *testing.T) {
	tests := []struct {
		feature ReadFeature
		input   string
		values  []string
	}{
		{feature: AllowComments, input: "[\"0\", /* c */ 1 // x\n]", values: []string{"1"}},
		{feature: AllowComments, input: "// x\n1 /* y */ 2", values: []string{"1", "2"}},
		{feature: AllowYAMLComments, input: "# c\n[\"0\", # d\n 1]", values: []string{"1"}},
		{feature: AllowLeadingZeros, input: `["0",007,-00.5,0]`, values: []string{"7", "-0.5", "0"}},
		{feature: AllowLeadingPlusSign, input: `["0",+1,+2.5]`, values: []string{"1", "2.5"}},
		{feature: AllowLeadingDecimalPoint, input: `["0",.5,-.25]`, values: []string{"0.5", "-0.25"}},
		{feature: AllowTrailingDecimalPoint, input: `["0",5.,5.e2]`, values: []string{"5.0", "5.0e2"}},
		{feature: AllowNonNumericNumbers, input: `["0",NaN,Infinity,-Infinity]`, values: []string{"NaN", "Infinity", "-Infinity"}},
		{feature: AllowMissingValues, input: `["0",,1,]`, values: []string{"null", "1", "null"}},
		{feature: AllowTrailingComma, input: `["0",1,]`, values: []string{"1"}},
		{feature: AllowTrailingComma, input: `{"__cirJsonId__":"0","a":1,}`, values: []string{"0", "1"}},
		{feature: AllowUnescapedControlChars, input: "[\"0\",\"a\tb\"]", values: []string{"a\tb"}},
		{feature: AllowBackslashEscapingAnyCharacter, input: `["0","\q\'"]`, values: []string{"q'"}},
	}

	for _, test := range tests {
		_, err := parseString(t, NewFactory(), test.input)
		assert.Error(t, err, "%s must be required for %q", test.feature, test.input)

		f := NewFactory(WithReadFeatures(DefaultReadFeatures | test.feature))
		tokens, err := parseString(t, f, test.input)
		require.NoError(t, err, "%s: %q", test.feature, test.input)
		assert.Equal(t, test.values, scalarTexts(tokens), "%s: wrong values", test.feature)
	}
}

func TestParserFeatureNames(t *testing.T) {
	for f, name := range readFeatureNames {
		assert.Equal(t, name, f.String())
		byName, ok := ReadFeatureByName(strings.ToLower(name))
		assert.True(t, ok, "feature %s not found", name)
		assert.Equal(t, f, byName)
	}
	_, ok := ReadFeatureByName("NO_SUCH_FEATURE")
	assert.False(t, ok)
	assert.True(t, AutoCloseSource.EnabledIn(DefaultReadFeatures))
	assert.False(t, AllowComments.EnabledIn(DefaultReadFeatures))
}

func TestParserStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: `["0",""]`, want: ""},
		{input: `["0","plain"]`, want: "plain"},
		{input: `["0","a\n\t\r\b\f"]`, want: "a\n\t\r\b\f"},
		{input: `["0","\"\\\/"]`, want: `"\/`},
		{input: `["0","éé"]`, want: "éé"},
		{input: `["0","😀"]`, want: "😀"},
		{input: `["0","Überprüfung 😀"]`, want: "Überprüfung 😀"},
		{input: `["0","mixed A and ü"]`, want: "mixed A and ü"},
	}

	for _, test := range tests {
		tokens, err := parseString(t, NewFactory(), test.input)
		require.NoError(t, err, "input %s", test.input)
		assert.Equal(t, []string{test.want}, scalarTexts(tokens), "input %s", test.input)
	}
}

func TestParserConstraints(t *testing.T) {
	tests := []struct {
		name        string
		constraints StreamReadConstraints
		ok          string
		fail        string
		limit       int
		actual      int
	}{
		{
			name:        "nesting",
			constraints: StreamReadConstraints{MaxNestingDepth: 2},
			ok:          `["0",["1"]]`,
			fail:        `["0",["1",["2"]]]`,
			limit:       2,
			actual:      3,
		},
		{
			name:        "string",
			constraints: StreamReadConstraints{MaxStringLength: 5},
			ok:          `["0","12345"]`,
			fail:        `["0","123456"]`,
			limit:       5,
			actual:      6,
		},
		{
			name:        "name",
			constraints: StreamReadConstraints{MaxNameLength: 20},
			ok:          `{"__cirJsonId__":"0","` + strings.Repeat("n", 20) + `":1}`,
			fail:        `{"__cirJsonId__":"0","` + strings.Repeat("n", 21) + `":1}`,
			limit:       20,
			actual:      21,
		},
		{
			name:        "number",
			constraints: StreamReadConstraints{MaxNumberLength: 5},
			ok:          `["0",12345]`,
			fail:        `["0",123456]`,
			limit:       5,
			actual:      6,
		},
		{
			name:        "properties",
			constraints: StreamReadConstraints{MaxObjectProperties: 2},
			ok:          `{"__cirJsonId__":"0","a":1,"b":2}`,
			fail:        `{"__cirJsonId__":"0","a":1,"b":2,"c":3}`,
			limit:       2,
			actual:      3,
		},
		{
			name:        "document",
			constraints: StreamReadConstraints{MaxDocumentLength: 10},
			ok:          `["0",1234]`,
			fail:        `["0",12345]`,
			limit:       10,
			actual:      11,
		},
	}

	for _, test := range tests {
		f := NewFactory(WithReadConstraints(test.constraints))

		_, err := parseString(t, f, test.ok)
		require.NoError(t, err, "%s: value at the limit must pass", test.name)

		_, err = parseString(t, f, test.fail)
		require.Error(t, err, "%s: value over the limit must fail", test.name)
		assert.True(t, errors.Is(err, ErrConstraintViolated), "%s: wrong error %v", test.name, err)

		var cerr *ConstraintError
		require.True(t, errors.As(err, &cerr), test.name)
		assert.Equal(t, test.limit, cerr.Limit, "%s: wrong limit", test.name)
		assert.Equal(t, test.actual, cerr.Actual, "%s: wrong actual", test.name)
	}
}

func TestParserDocumentLengthFromReader(t *testing.T) {
	f := NewFactory(WithReadConstraints(StreamReadConstraints{MaxDocumentLength: 10}))
	p, err := f.CreateParserFromReader(strings.NewReader(`["0",12345]`))
	require.NoError(t, err)
	defer p.Close()

	_, err = readTokens(t, p)
	assert.True(t, errors.Is(err, ErrConstraintViolated), "wrong error: %v", err)
}

// numberAt returns a parser positioned at a number inside an array.
func numberAt(t *testing.T, f *Factory, number string) Parser {
	p, err := f.CreateParserFromString(`["0",` + number + `]`)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := p.NextToken()
		require.NoError(t, err, "number %s", number)
	}
	require.True(t, p.CurrentToken().IsNumeric(), "not at number: %s", p.CurrentToken())
	return p
}

func TestParserNumberTypes(t *testing.T) {
	tests := []struct {
		number  string
		typ     NumberType
		intErr  bool
		longErr bool
	}{
		{number: "0", typ: NumberInt},
		{number: "-17", typ: NumberInt},
		{number: "2147483647", typ: NumberInt},
		{number: "-2147483648", typ: NumberInt},
		{number: "2147483648", typ: NumberLong, intErr: true},
		{number: "-9223372036854775808", typ: NumberLong, intErr: true},
		{number: "9223372036854775808", typ: NumberBigInteger, intErr: true, longErr: true},
		{number: "1.5", typ: NumberDouble},
		{number: "-2.5e3", typ: NumberDouble},
	}

	for _, test := range tests {
		p := numberAt(t, NewFactory(), test.number)

		typ, err := p.NumberType()
		require.NoError(t, err)
		assert.Equal(t, test.typ, typ, "wrong type of %s", test.number)

		_, err = p.IntValue()
		assert.Equal(t, test.intErr, err != nil, "int of %s: %v", test.number, err)
		if test.intErr {
			assert.True(t, errors.Is(err, ErrInputCoercion), "wrong int error for %s", test.number)
		}

		_, err = p.LongValue()
		assert.Equal(t, test.longErr, err != nil, "long of %s: %v", test.number, err)
		if test.longErr {
			var cerr *CoercionError
			require.True(t, errors.As(err, &cerr), "wrong long error for %s", test.number)
			assert.Equal(t, NumberLong, cerr.Target)
		}

		want, _ := strconv.ParseFloat(test.number, 64)
		d, err := p.DoubleValue()
		require.NoError(t, err)
		assert.Equal(t, want, d, "wrong double of %s", test.number)

		require.NoError(t, p.Close())
	}
}

func TestParserNumberValues(t *testing.T) {
	f := NewFactory()

	p := numberAt(t, f, "2147483648")
	_, err := p.IntValue()
	assert.EqualError(t, errors.Unwrap(err), ErrInputCoercion.Error())
	assert.Contains(t, err.Error(), "Numeric value (2147483648) out of range of int (-2147483648 - 2147483647)")
	l, err := p.LongValue()
	require.NoError(t, err)
	assert.Equal(t, int64(2147483648), l)

	p = numberAt(t, f, "1.75")
	i, err := p.IntValue()
	require.NoError(t, err)
	assert.Equal(t, int32(1), i, "fraction must be truncated")
	fl, err := p.FloatValue()
	require.NoError(t, err)
	assert.Equal(t, float32(1.75), fl)

	p = numberAt(t, f, "2.5e3")
	l, err = p.LongValue()
	require.NoError(t, err)
	assert.Equal(t, int64(2500), l)
	bi, err := p.BigIntegerValue()
	require.NoError(t, err)
	assert.Equal(t, "2500", bi.String())

	p = numberAt(t, f, "123456789012345678901234567890")
	bi, err = p.BigIntegerValue()
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", bi.String())
	bi.SetInt64(0)
	again, err := p.BigIntegerValue()
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", again.String(), "cached value must not leak")

	p = numberAt(t, f, "0.1000000000000000000001")
	dec, err := p.DecimalValue()
	require.NoError(t, err)
	assert.Equal(t, "0.1000000000000000000001", dec.String(), "decimal must keep precision")
	typ, err := p.NumberType()
	require.NoError(t, err)
	assert.Equal(t, NumberBigDecimal, typ, "decimal was computed")

	p = numberAt(t, f, "1e100001")
	_, err = p.BigIntegerValue()
	assert.True(t, errors.Is(err, ErrConstraintViolated), "huge scale must be refused: %v", err)
}

func TestParserNonNumeric(t *testing.T) {
	f := NewFactory(WithReadFeatures(DefaultReadFeatures | AllowNonNumericNumbers))

	p := numberAt(t, f, "NaN")
	assert.True(t, p.IsNaN())
	d, err := p.DoubleValue()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(d))
	_, err = p.DecimalValue()
	assert.Error(t, err, "NaN has no decimal form")
	_, err = p.IntValue()
	assert.True(t, errors.Is(err, ErrInputCoercion), "NaN has no int form")

	p = numberAt(t, f, "-Infinity")
	assert.True(t, p.IsNaN())
	d, err = p.DoubleValue()
	require.NoError(t, err)
	assert.True(t, math.IsInf(d, -1))
	fl, err := p.FloatValue()
	require.NoError(t, err)
	assert.True(t, math.IsInf(float64(fl), -1))
}

func TestParserAccessorErrors(t *testing.T) {
	p, err := NewFactory().CreateParserFromString(`["0","s",true]`)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		_, err := p.NextToken()
		require.NoError(t, err)
	}
	require.Equal(t, ValueString, p.CurrentToken())

	_, err = p.IntValue()
	assert.Contains(t, err.Error(), "not numeric, can not use numeric value accessors")
	_, err = p.NumberType()
	assert.Error(t, err)
	_, err = p.BooleanValue()
	assert.Contains(t, err.Error(), "not of boolean type")

	_, err = p.NextToken()
	require.NoError(t, err)
	b, err := p.BooleanValue()
	require.NoError(t, err)
	assert.True(t, b)
	_, err = p.BinaryValue(DefaultBase64Variant())
	assert.Contains(t, err.Error(), "can not access as binary")
}

func TestParserBinary(t *testing.T) {
	tests := []struct {
		variant Base64Variant
		text    string
		err     bool
	}{
		{variant: MIMENoLinefeeds, text: "aGVsbG8="},
		{variant: MIME, text: "aGVsbG8="},
		{variant: ModifiedForURL, text: "aGVsbG8"},
		{variant: MIMENoLinefeeds, text: "!!!!", err: true},
	}

	for _, test := range tests {
		p, err := NewFactory().CreateParserFromString(`["0","` + test.text + `"]`)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := p.NextToken()
			require.NoError(t, err)
		}

		b, err := p.BinaryValue(test.variant)
		if test.err {
			assert.Error(t, err, "%s: %s", test.variant, test.text)
		} else {
			require.NoError(t, err, "%s: %s", test.variant, test.text)
			assert.Equal(t, "hello", string(b), "%s: wrong content", test.variant)
		}
		require.NoError(t, p.Close())
	}
}

func TestParserLocations(t *testing.T) {
	p, err := NewFactory().CreateParserFromString("[\"0\",\n  true]")
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		_, err := p.NextToken()
		require.NoError(t, err)
	}
	require.Equal(t, ValueTrue, p.CurrentToken())

	loc := p.TokenLocation()
	assert.Equal(t, int64(8), loc.ByteOffset)
	assert.Equal(t, 2, loc.Line)
	assert.Equal(t, 3, loc.Column)
	assert.Equal(t, "", loc.Source, "source must be redacted by default")

	loc = p.CurrentLocation()
	assert.Equal(t, int64(12), loc.ByteOffset, "current location is after the token")
	assert.Equal(t, 7, loc.Column)
}

func TestParserErrorLocation(t *testing.T) {
	input := "[\"0\",\n x]"

	_, err := parseString(t, NewFactory(), input)
	var rerr *ReadError
	require.True(t, errors.As(err, &rerr), "read error expected: %v", err)
	assert.Equal(t, Location{ByteOffset: 7, Line: 2, Column: 2}, rerr.Location)
	assert.Contains(t, err.Error(), "REDACTED")

	f := NewFactory(WithReadFeatures(DefaultReadFeatures | IncludeSourceInLocation))
	_, err = parseString(t, f, input)
	require.True(t, errors.As(err, &rerr), "read error expected: %v", err)
	assert.True(t, strings.HasPrefix(rerr.Location.Source, "(String)"), "wrong source %q", rerr.Location.Source)
	assert.NotContains(t, err.Error(), "REDACTED")
}

func TestParserNextValue(t *testing.T) {
	p, err := NewFactory().CreateParserFromString(`{"__cirJsonId__":"0","a":1,"b":{"__cirJsonId__":"1"}}`)
	require.NoError(t, err)
	defer p.Close()

	want := []Token{StartObject, ValueString, ValueNumberInt, StartObject, ValueString, EndObject, EndObject, TokenNone}
	names := []string{"", IDName, "a", "b", IDName, "", "", ""}
	for i, w := range want {
		tok, err := p.NextValue()
		require.NoError(t, err)
		assert.Equal(t, w, tok, "wrong token #%d", i)
		if names[i] != "" {
			assert.Equal(t, names[i], p.CurrentName(), "wrong name at #%d", i)
		}
	}
}

func TestParserNextNameMatch(t *testing.T) {
	m := NewNameMatcher([]string{"a", "b"})
	p, err := NewFactory().CreateParserFromString(`{"__cirJsonId__":"0","b":1,"c":2,"a":3}`)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.NextToken()
	require.NoError(t, err)

	want := []int{m.IDIndex(), 1, MatchUnknownName, 0, MatchEndObject}
	for i, w := range want {
		got, err := p.NextNameMatch(m)
		require.NoError(t, err)
		assert.Equal(t, w, got, "wrong match #%d", i)
		if got != MatchEndObject {
			_, err = p.NextToken()
			require.NoError(t, err)
		}
	}

	got, err := p.NextNameMatch(m)
	require.NoError(t, err)
	assert.Equal(t, MatchOddToken, got, "end of content isn't a name")
}

func TestParserSkipChildren(t *testing.T) {
	p, err := NewFactory().CreateParserFromString(`{"__cirJsonId__":"0","a":{"__cirJsonId__":"1","x":["2",["3"],{"__cirJsonId__":"4"}]},"b":2}`)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 5; i++ {
		_, err := p.NextToken()
		require.NoError(t, err)
	}
	require.Equal(t, StartObject, p.CurrentToken())

	require.NoError(t, p.SkipChildren())
	assert.Equal(t, EndObject, p.CurrentToken())

	tok, err := p.NextToken()
	require.NoError(t, err)
	assert.Equal(t, PropertyName, tok)
	assert.Equal(t, "b", p.CurrentName())

	tok, err = p.NextToken()
	require.NoError(t, err)
	require.NoError(t, p.SkipChildren(), "scalars have no children")
	assert.Equal(t, tok, p.CurrentToken())
}

type closeRecorder struct {
	io.Reader
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestParserClose(t *testing.T) {
	tests := []struct {
		features ReadFeature
		closed   int
	}{
		{features: DefaultReadFeatures, closed: 1},
		{features: DefaultReadFeatures &^ AutoCloseSource, closed: 0},
	}

	for _, test := range tests {
		src := &closeRecorder{Reader: strings.NewReader(`["0",1]`)}
		p, err := NewFactory(WithReadFeatures(test.features)).CreateParserFromReader(src)
		require.NoError(t, err)

		_, err = readTokens(t, p)
		require.NoError(t, err)

		require.NoError(t, p.Close())
		require.NoError(t, p.Close(), "second close must be ignored")
		assert.True(t, p.IsClosed())
		assert.Equal(t, test.closed, src.closed, "wrong close count")

		tok, err := p.NextToken()
		require.NoError(t, err)
		assert.Equal(t, TokenNone, tok, "closed parser has no tokens")
	}
}

func TestParserCloseReturnsRecycler(t *testing.T) {
	pool := NewBoundedPool(4)
	f := NewFactory(WithRecyclerPool(pool))

	p, err := f.CreateParserFromReader(strings.NewReader(`["0"]`))
	require.NoError(t, err)
	assert.Equal(t, 0, pool.Size())

	require.NoError(t, p.Close())
	assert.Equal(t, 1, pool.Size(), "recycler must go back to the pool")
}

// bigDocument is larger than the read buffer, with names and strings long
// enough to straddle buffer boundaries.
func bigDocument() string {
	sb := strings.Builder{}
	sb.WriteString(`{"__cirJsonId__":"root","items":["list"`)
	for i := 0; i < 500; i++ {
		sb.WriteString(`,{"__cirJsonId__":"`)
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(`","name":"item `)
		sb.WriteString(strings.Repeat("x", i%37))
		sb.WriteString(`","escaped":"tab\tquote\"snow☃","value":`)
		sb.WriteString(strconv.Itoa(i * 7919))
		sb.WriteString(`,"ratio":`)
		sb.WriteString(strconv.FormatFloat(float64(i)/7, 'g', -1, 64))
		sb.WriteString(",\n\"flags\":[\"f")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(`",true,false,null]}`)
	}
	sb.WriteString("]}")
	return sb.String()
}

func TestParserReaders(t *testing.T) {
	doc := bigDocument()
	want, err := parseString(t, NewFactory(), doc)
	require.NoError(t, err)
	require.True(t, len(want) > 5000, "document is too small")

	readers := map[string]func() io.Reader{
		"plain":    func() io.Reader { return strings.NewReader(doc) },
		"one byte": func() io.Reader { return iotest.OneByteReader(strings.NewReader(doc)) },
		"half":     func() io.Reader { return iotest.HalfReader(strings.NewReader(doc)) },
		"utf-16le": func() io.Reader { return bytes.NewReader(encode(t, UTF16LE, doc)) },
		"utf-32be": func() io.Reader { return bytes.NewReader(encode(t, UTF32BE, doc)) },
	}

	for name, newReader := range readers {
		p, err := NewFactory().CreateParserFromReader(newReader())
		require.NoError(t, err, name)

		got, err := readTokens(t, p)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, "%s: wrong tokens", name)
		require.NoError(t, p.Close())
	}

	for _, enc := range []Encoding{UTF16BE, UTF32LE} {
		p, err := NewFactory().CreateParser(encode(t, enc, doc))
		require.NoError(t, err, "%s", enc)

		got, err := readTokens(t, p)
		require.NoError(t, err, "%s", enc)
		assert.Equal(t, want, got, "%s: wrong tokens", enc)
		require.NoError(t, p.Close())
	}
}

func TestParserByteReader(t *testing.T) {
	r := bytes.NewReader([]byte("\xEF\xBB\xBF[\"0\",1]tail"))
	p, err := NewFactory().CreateParserFromByteReader(r)
	require.NoError(t, err)
	defer p.Close()

	want := []Token{StartArray, IDPropertyName, ValueNumberInt, EndArray}
	for _, w := range want {
		tok, err := p.NextToken()
		require.NoError(t, err)
		require.Equal(t, w, tok)
	}

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(rest), "nothing past the document may be consumed")
}

func TestParserReadValue(t *testing.T) {
	p, err := NewFactory().CreateParserFromString(`["0",{"__cirJsonId__":"1","a":["2",true]},5]`)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		_, err := p.NextToken()
		require.NoError(t, err)
	}

	var n *Node
	require.NoError(t, p.ReadValue(&n))
	assert.Equal(t, "1", n.ID)
	assert.True(t, n.Dig("a", "0").AsBool())
	assert.Equal(t, EndObject, p.CurrentToken(), "tree reading must stop at the end of the value")

	tok, err := p.NextToken()
	require.NoError(t, err)
	assert.Equal(t, ValueNumberInt, tok)
}
