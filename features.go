package cirjson

import (
	"strings"
)

// ReadFeature toggles parser behavior. Each feature carries its default.
type ReadFeature uint32

const (
	AutoCloseSource ReadFeature = 1 << iota
	StrictDuplicateDetection
	IncludeSourceInLocation
	UseFastDoubleParser
	CanonicalizePropertyNames
	InternPropertyNames
	AllowComments
	AllowYAMLComments
	AllowUnescapedControlChars
	AllowBackslashEscapingAnyCharacter
	AllowLeadingZeros
	AllowLeadingPlusSign
	AllowLeadingDecimalPoint
	AllowTrailingDecimalPoint
	AllowNonNumericNumbers
	AllowMissingValues
	AllowTrailingComma
)

var readFeatureNames = map[ReadFeature]string{
	AutoCloseSource:                    "AUTO_CLOSE_SOURCE",
	StrictDuplicateDetection:           "STRICT_DUPLICATE_DETECTION",
	IncludeSourceInLocation:            "INCLUDE_SOURCE_IN_LOCATION",
	UseFastDoubleParser:                "USE_FAST_DOUBLE_PARSER",
	CanonicalizePropertyNames:          "CANONICALIZE_PROPERTY_NAMES",
	InternPropertyNames:                "INTERN_PROPERTY_NAMES",
	AllowComments:                      "ALLOW_JAVA_COMMENTS",
	AllowYAMLComments:                  "ALLOW_YAML_COMMENTS",
	AllowUnescapedControlChars:         "ALLOW_UNESCAPED_CONTROL_CHARS",
	AllowBackslashEscapingAnyCharacter: "ALLOW_BACKSLASH_ESCAPING_ANY_CHARACTER",
	AllowLeadingZeros:                  "ALLOW_LEADING_ZEROS_FOR_NUMBERS",
	AllowLeadingPlusSign:               "ALLOW_LEADING_PLUS_SIGN_FOR_NUMBERS",
	AllowLeadingDecimalPoint:           "ALLOW_LEADING_DECIMAL_POINT_FOR_NUMBERS",
	AllowTrailingDecimalPoint:          "ALLOW_TRAILING_DECIMAL_POINT_FOR_NUMBERS",
	AllowNonNumericNumbers:             "ALLOW_NON_NUMERIC_NUMBERS",
	AllowMissingValues:                 "ALLOW_MISSING_VALUES",
	AllowTrailingComma:                 "ALLOW_TRAILING_COMMA",
}

// DefaultReadFeatures are enabled unless configured otherwise. Duplicate
// detection is on: a repeated name in one object is a read error.
const DefaultReadFeatures = AutoCloseSource | StrictDuplicateDetection | CanonicalizePropertyNames | InternPropertyNames

func (f ReadFeature) String() string {
	if name, ok := readFeatureNames[f]; ok {
		return name
	}
	return "UNKNOWN_READ_FEATURE"
}

func (f ReadFeature) EnabledIn(set ReadFeature) bool {
	return set&f != 0
}

// ReadFeatureByName resolves names as printed by String, case-insensitively.
func ReadFeatureByName(name string) (ReadFeature, bool) {
	for f, n := range readFeatureNames {
		if strings.EqualFold(n, name) {
			return f, true
		}
	}
	return 0, false
}

// WriteFeature toggles generator behavior.
type WriteFeature uint32

const (
	AutoCloseTarget WriteFeature = 1 << iota
	AutoCloseContent
	FlushPassedToStream
	EscapeNonASCII
	EscapeForwardSlashes
	WriteBigDecimalAsPlain
	WriteNumbersAsStrings
	WriteNaNAsStrings
	StrictDuplicateDetectionOnWrite
)

var writeFeatureNames = map[WriteFeature]string{
	AutoCloseTarget:                 "AUTO_CLOSE_TARGET",
	AutoCloseContent:                "AUTO_CLOSE_CONTENT",
	FlushPassedToStream:             "FLUSH_PASSED_TO_STREAM",
	EscapeNonASCII:                  "ESCAPE_NON_ASCII",
	EscapeForwardSlashes:            "ESCAPE_FORWARD_SLASHES",
	WriteBigDecimalAsPlain:          "WRITE_BIGDECIMAL_AS_PLAIN",
	WriteNumbersAsStrings:           "WRITE_NUMBERS_AS_STRINGS",
	WriteNaNAsStrings:               "WRITE_NAN_AS_STRINGS",
	StrictDuplicateDetectionOnWrite: "STRICT_DUPLICATE_DETECTION",
}

const DefaultWriteFeatures = AutoCloseTarget | AutoCloseContent | FlushPassedToStream | WriteNaNAsStrings |
	StrictDuplicateDetectionOnWrite

func (f WriteFeature) String() string {
	if name, ok := writeFeatureNames[f]; ok {
		return name
	}
	return "UNKNOWN_WRITE_FEATURE"
}

func (f WriteFeature) EnabledIn(set WriteFeature) bool {
	return set&f != 0
}

func WriteFeatureByName(name string) (WriteFeature, bool) {
	for f, n := range writeFeatureNames {
		if strings.EqualFold(n, name) {
			return f, true
		}
	}
	return 0, false
}
