package cirjson

// Token is a single unit of the CirJSON token stream.
type Token uint8

const (
	TokenNone Token = iota
	// TokenNotAvailable is only returned by the non-blocking parser when the
	// buffered input is not enough to complete the next token.
	TokenNotAvailable
	StartObject
	EndObject
	StartArray
	EndArray
	PropertyName
	// IDPropertyName is always the first entry of every array and object.
	IDPropertyName
	ValueEmbeddedObject
	ValueString
	ValueNumberInt
	ValueNumberFloat
	ValueTrue
	ValueFalse
	ValueNull
)

// IDName is the reserved name of the identifier property of objects.
const IDName = "__cirJsonId__"

var tokenNames = [...]string{
	TokenNone:           "NONE",
	TokenNotAvailable:   "NOT_AVAILABLE",
	StartObject:         "START_OBJECT",
	EndObject:           "END_OBJECT",
	StartArray:          "START_ARRAY",
	EndArray:            "END_ARRAY",
	PropertyName:        "PROPERTY_NAME",
	IDPropertyName:      "CIRJSON_ID_PROPERTY_NAME",
	ValueEmbeddedObject: "VALUE_EMBEDDED_OBJECT",
	ValueString:         "VALUE_STRING",
	ValueNumberInt:      "VALUE_NUMBER_INT",
	ValueNumberFloat:    "VALUE_NUMBER_FLOAT",
	ValueTrue:           "VALUE_TRUE",
	ValueFalse:          "VALUE_FALSE",
	ValueNull:           "VALUE_NULL",
}

var tokenText = [...]string{
	StartObject: "{",
	EndObject:   "}",
	StartArray:  "[",
	EndArray:    "]",
	ValueTrue:   "true",
	ValueFalse:  "false",
	ValueNull:   "null",
}

func (t Token) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "UNKNOWN"
}

// Text returns the fixed textual representation for structural and literal
// tokens, or an empty string for tokens whose text varies.
func (t Token) Text() string {
	if int(t) < len(tokenText) {
		return tokenText[t]
	}
	return ""
}

func (t Token) IsStructStart() bool {
	return t == StartObject || t == StartArray
}

func (t Token) IsStructEnd() bool {
	return t == EndObject || t == EndArray
}

func (t Token) IsName() bool {
	return t == PropertyName || t == IDPropertyName
}

func (t Token) IsScalarValue() bool {
	return t >= ValueEmbeddedObject
}

func (t Token) IsNumeric() bool {
	return t == ValueNumberInt || t == ValueNumberFloat
}

func (t Token) IsBoolean() bool {
	return t == ValueTrue || t == ValueFalse
}

// NumberType is the narrowest natural representation of a numeric token.
type NumberType uint8

const (
	NumberInt NumberType = iota
	NumberLong
	NumberBigInteger
	NumberFloat
	NumberDouble
	NumberBigDecimal
)

func (n NumberType) String() string {
	switch n {
	case NumberInt:
		return "int"
	case NumberLong:
		return "long"
	case NumberBigInteger:
		return "BigInteger"
	case NumberFloat:
		return "float"
	case NumberDouble:
		return "double"
	case NumberBigDecimal:
		return "BigDecimal"
	default:
		return "unknown"
	}
}
