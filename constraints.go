package cirjson

import (
	"fmt"
)

const (
	DefaultMaxNestingDepth = 1000
	DefaultMaxNumberLength = 1000
	DefaultMaxStringLength = 20_000_000
	DefaultMaxNameLength   = 50_000
	// DefaultMaxDocumentLength of zero or less means unlimited.
	DefaultMaxDocumentLength = -1

	maxBigNumberScale = 100_000
)

// StreamReadConstraints limits what a parser accepts. A zero value field means
// "use the default"; build with DefaultReadConstraints to get explicit values.
type StreamReadConstraints struct {
	MaxNestingDepth   int
	MaxNumberLength   int
	MaxStringLength   int
	MaxNameLength     int
	MaxDocumentLength int64
	// MaxObjectProperties limits the property count of a single object,
	// zero or less means unlimited.
	MaxObjectProperties int
}

func DefaultReadConstraints() StreamReadConstraints {
	return StreamReadConstraints{
		MaxNestingDepth:   DefaultMaxNestingDepth,
		MaxNumberLength:   DefaultMaxNumberLength,
		MaxStringLength:   DefaultMaxStringLength,
		MaxNameLength:     DefaultMaxNameLength,
		MaxDocumentLength: DefaultMaxDocumentLength,
	}
}

func (c StreamReadConstraints) withDefaults() StreamReadConstraints {
	d := DefaultReadConstraints()
	if c.MaxNestingDepth > 0 {
		d.MaxNestingDepth = c.MaxNestingDepth
	}
	if c.MaxNumberLength > 0 {
		d.MaxNumberLength = c.MaxNumberLength
	}
	if c.MaxStringLength > 0 {
		d.MaxStringLength = c.MaxStringLength
	}
	if c.MaxNameLength > 0 {
		d.MaxNameLength = c.MaxNameLength
	}
	if c.MaxDocumentLength != 0 {
		d.MaxDocumentLength = c.MaxDocumentLength
	}
	d.MaxObjectProperties = c.MaxObjectProperties
	return d
}

func (c StreamReadConstraints) ValidateNestingDepth(depth int) error {
	if depth > c.MaxNestingDepth {
		return newConstraintError(fmt.Sprintf(
			"Document nesting depth (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxNestingDepth`)",
			depth, c.MaxNestingDepth), c.MaxNestingDepth, depth)
	}
	return nil
}

func (c StreamReadConstraints) ValidateStringLength(length int) error {
	if length > c.MaxStringLength {
		return newConstraintError(fmt.Sprintf(
			"String value length (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxStringLength`)",
			length, c.MaxStringLength), c.MaxStringLength, length)
	}
	return nil
}

func (c StreamReadConstraints) ValidateNameLength(length int) error {
	if length > c.MaxNameLength {
		return newConstraintError(fmt.Sprintf(
			"Name length (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxNameLength`)",
			length, c.MaxNameLength), c.MaxNameLength, length)
	}
	return nil
}

func (c StreamReadConstraints) ValidateIntegerLength(length int) error {
	if length > c.MaxNumberLength {
		return newConstraintError(fmt.Sprintf(
			"Number value length (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxNumberLength`)",
			length, c.MaxNumberLength), c.MaxNumberLength, length)
	}
	return nil
}

func (c StreamReadConstraints) ValidateFPLength(length int) error {
	if length > c.MaxNumberLength {
		return newConstraintError(fmt.Sprintf(
			"Number value length (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxNumberLength`)",
			length, c.MaxNumberLength), c.MaxNumberLength, length)
	}
	return nil
}

func (c StreamReadConstraints) ValidateDocumentLength(length int64) error {
	if c.MaxDocumentLength > 0 && length > c.MaxDocumentLength {
		return newConstraintError(fmt.Sprintf(
			"Document length (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxDocumentLength`)",
			length, c.MaxDocumentLength), int(c.MaxDocumentLength), int(length))
	}
	return nil
}

func (c StreamReadConstraints) ValidateObjectProperties(count int) error {
	if c.MaxObjectProperties > 0 && count > c.MaxObjectProperties {
		return newConstraintError(fmt.Sprintf(
			"Object property count (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxObjectProperties`)",
			count, c.MaxObjectProperties), c.MaxObjectProperties, count)
	}
	return nil
}

// ValidateBigIntScale guards conversions of huge exponents into integers.
func (c StreamReadConstraints) ValidateBigIntScale(scale int) error {
	abs := scale
	if abs < 0 {
		abs = -abs
	}
	if abs > maxBigNumberScale {
		return newConstraintError(fmt.Sprintf(
			"BigDecimal scale (%d) magnitude exceeds the maximum allowed (%d)", scale, maxBigNumberScale),
			maxBigNumberScale, abs)
	}
	return nil
}

// StreamWriteConstraints limits what a generator emits.
type StreamWriteConstraints struct {
	MaxNestingDepth int
}

func DefaultWriteConstraints() StreamWriteConstraints {
	return StreamWriteConstraints{MaxNestingDepth: DefaultMaxNestingDepth}
}

func (c StreamWriteConstraints) withDefaults() StreamWriteConstraints {
	if c.MaxNestingDepth <= 0 {
		c.MaxNestingDepth = DefaultMaxNestingDepth
	}
	return c
}

func (c StreamWriteConstraints) ValidateNestingDepth(depth int) error {
	if depth > c.MaxNestingDepth {
		return newConstraintError(fmt.Sprintf(
			"Document nesting depth (%d) exceeds the maximum allowed (%d, from `StreamWriteConstraints.MaxNestingDepth`)",
			depth, c.MaxNestingDepth), c.MaxNestingDepth, depth)
	}
	return nil
}
