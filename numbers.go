package cirjson

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valyala/fastjson/fastfloat"
)

const (
	minIntStr  = "2147483648"
	minLongStr = "9223372036854775808"
	maxLongStr = "9223372036854775807"

	// longest digit run that always fits into int64
	maxFastLongDigits = 18
	maxFastIntDigits  = 9
)

var (
	minInt64Big = big.NewInt(math.MinInt64)
	maxInt64Big = big.NewInt(math.MaxInt64)
	minInt32Big = big.NewInt(math.MinInt32)
	maxInt32Big = big.NewInt(math.MaxInt32)
)

// ParseInt converts a validated run of at most 9 digits. The sign is the
// caller's business. Never use it on unvalidated input.
func ParseInt(b []byte) int32 {
	num := int32(0)
	for _, c := range b {
		num = num*10 + int32(c-'0')
	}
	return num
}

// ParseLong converts a validated run of at most 18 digits.
func ParseLong(b []byte) int64 {
	l := len(b)
	if l <= maxFastIntDigits {
		return int64(ParseInt(b))
	}

	// split in two int-sized halves, the way int32 math stays in registers
	head := l - 9
	return int64(ParseInt(b[:head]))*1_000_000_000 + int64(ParseInt(b[head:]))
}

// ParseLong19 converts a validated 19 digit run, the result wraps when the
// value is out of range so callers check InLongRange first.
func ParseLong19(b []byte, neg bool) int64 {
	num := uint64(0)
	for _, c := range b {
		num = num*10 + uint64(c-'0')
	}
	if neg {
		return -int64(num)
	}
	return int64(num)
}

// InIntRange tells whether a validated digit run fits in int32.
func InIntRange(b []byte, neg bool) bool {
	l := len(b)
	if l < len(minIntStr) {
		return true
	}
	if l > len(minIntStr) {
		return false
	}
	cmp := minIntStr
	if !neg {
		cmp = "2147483647"
	}
	return string(b) <= cmp
}

// InLongRange tells whether a validated digit run fits in int64.
func InLongRange(b []byte, neg bool) bool {
	l := len(b)
	if l < len(minLongStr) {
		return true
	}
	if l > len(minLongStr) {
		return false
	}
	cmp := minLongStr
	if !neg {
		cmp = maxLongStr
	}
	return string(b) <= cmp
}

// ParseFloat64 parses a validated number. The fast parser is opt-in; both
// yield the correctly rounded value. Overflow saturates to infinity.
func ParseFloat64(s string, fast bool) (float64, error) {
	if fast {
		if f, err := fastfloat.Parse(s); err == nil {
			return f, nil
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return f, nil
		}
		return 0, errors.Wrapf(err, "invalid floating-point value %q", s)
	}
	return f, nil
}

// ParseFloat32 rounds once, straight from the text. Going through float64
// first would round twice.
func ParseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return float32(f), nil
		}
		return 0, errors.Wrapf(err, "invalid floating-point value %q", s)
	}
	return float32(f), nil
}

// ParseBigInteger refuses pathologically long inputs before doing any work.
func ParseBigInteger(s string, maxLen int) (*big.Int, error) {
	if err := checkBigNumberLength(s, maxLen); err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid BigInteger value %q", abbreviate(s))
	}
	return v, nil
}

func ParseDecimal(s string, maxLen int) (decimal.Decimal, error) {
	if err := checkBigNumberLength(s, maxLen); err != nil {
		return decimal.Decimal{}, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "invalid BigDecimal value %q", abbreviate(s))
	}
	return d, nil
}

func checkBigNumberLength(s string, maxLen int) error {
	if maxLen > 0 && len(s) > maxLen {
		return newConstraintError(fmt.Sprintf("Number value length (%d) exceeds the maximum allowed (%d, from `StreamReadConstraints.MaxNumberLength`)",
			len(s), maxLen), maxLen, len(s))
	}
	return nil
}

func abbreviate(s string) string {
	if len(s) <= 1000 {
		return s
	}
	return s[:1000] + fmt.Sprintf("[truncated %d chars]", len(s)-1000)
}

// AppendInt writes the decimal form of v.
func AppendInt(out []byte, v int32) []byte {
	return strconv.AppendInt(out, int64(v), 10)
}

func AppendLong(out []byte, v int64) []byte {
	return strconv.AppendInt(out, v, 10)
}

// decimalToString renders a decimal the way BigDecimal.toString
// does: plain while the adjusted exponent is at least -6 and the exponent is
// not positive, scientific otherwise.
func decimalToString(d decimal.Decimal, plain bool) string {
	if plain {
		return d.String()
	}

	coef := d.Coefficient()
	exp := int(d.Exponent())
	neg := coef.Sign() < 0
	digits := new(big.Int).Abs(coef).String()
	adjusted := exp + len(digits) - 1

	if exp <= 0 && adjusted >= -6 {
		return d.StringFixed(int32(-exp))
	}

	out := make([]byte, 0, len(digits)+8)
	if neg {
		out = append(out, '-')
	}
	out = append(out, digits[0])
	if len(digits) > 1 {
		out = append(out, '.')
		out = append(out, digits[1:]...)
	}
	out = append(out, 'E')
	if adjusted >= 0 {
		out = append(out, '+')
	}
	out = strconv.AppendInt(out, int64(adjusted), 10)
	return string(out)
}
