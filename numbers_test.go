package cirjson

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntegers(t *testing.T) {
	tests := []struct {
		s    string
		neg  bool
		long int64
		fits bool
	}{
		{s: "0", long: 0, fits: true},
		{s: "7", long: 7, fits: true},
		{s: "123456789", long: 123456789, fits: true},
		{s: "2147483647", long: 2147483647, fits: true},
		{s: "2147483648", long: 2147483648, fits: false},
		{s: "2147483648", neg: true, long: -2147483648, fits: true},
		{s: "999999999999999999", long: 999999999999999999, fits: false},
	}

	for _, test := range tests {
		b := []byte(test.s)
		assert.Equal(t, test.fits, InIntRange(b, test.neg), "wrong int range for %s", test.s)

		v := ParseLong(b)
		if test.neg {
			v = -v
		}
		assert.Equal(t, test.long, v, "wrong long for %s", test.s)
	}
}

func TestInLongRange(t *testing.T) {
	tests := []struct {
		s    string
		neg  bool
		fits bool
	}{
		{s: "922337203685477580", fits: true},
		{s: "9223372036854775807", fits: true},
		{s: "9223372036854775808", fits: false},
		{s: "9223372036854775808", neg: true, fits: true},
		{s: "9223372036854775809", neg: true, fits: false},
		{s: "10000000000000000000", fits: false},
	}

	for _, test := range tests {
		assert.Equal(t, test.fits, InLongRange([]byte(test.s), test.neg), "wrong range for %s", test.s)
	}
	assert.Equal(t, int64(math.MinInt64), ParseLong19([]byte("9223372036854775808"), true))
	assert.Equal(t, int64(math.MaxInt64), ParseLong19([]byte("9223372036854775807"), false))
}

func TestParseFloat64(t *testing.T) {
	tests := []struct {
		s    string
		fast bool
	}{
		{s: "0", fast: true},
		{s: "1.5", fast: true},
		{s: "1e10", fast: true},
		{s: "1e400", fast: true},
		{s: "-0.0"},
		{s: "-2.5E-3"},
		{s: "3.141592653589793"},
		{s: "4.9e-324"},
		{s: "0.1"},
	}

	for _, test := range tests {
		want, _ := strconv.ParseFloat(test.s, 64)
		got, err := ParseFloat64(test.s, test.fast)
		require.NoError(t, err, "error for %s", test.s)
		assert.Equal(t, math.Float64bits(want), math.Float64bits(got), "wrong value for %s", test.s)
	}

	_, err := ParseFloat64("1.2.3", false)
	assert.Error(t, err, "garbage must fail")
}

func TestParseFloat32(t *testing.T) {
	// rounding through float64 first would give 1.0
	f, err := ParseFloat32("1.00000005960464477550")
	require.NoError(t, err)
	assert.Equal(t, float32(1.0000001), f)

	f, err = ParseFloat32("0.1")
	require.NoError(t, err)
	assert.Equal(t, float32(0.1), f)
}

func TestParseBigNumbers(t *testing.T) {
	bi, err := ParseBigInteger("-123456789012345678901234567890", 0)
	require.NoError(t, err)
	assert.Equal(t, "-123456789012345678901234567890", bi.String())

	d, err := ParseDecimal("1.25E+3", 0)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(1250)), "wrong decimal %s", d)

	long := strings.Repeat("9", 2000)
	_, err = ParseBigInteger(long, 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConstraintViolated), "wrong error: %v", err)
	assert.Contains(t, err.Error(), "Number value length (2000) exceeds the maximum allowed (1000")

	_, err = ParseDecimal(long, 1000)
	assert.True(t, errors.Is(err, ErrConstraintViolated), "wrong error: %v", err)
}

func TestFormatDouble(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{v: 0, want: "0.0"},
		{v: math.Copysign(0, -1), want: "-0.0"},
		{v: 1, want: "1.0"},
		{v: -1, want: "-1.0"},
		{v: 0.1, want: "0.1"},
		{v: 100, want: "100.0"},
		{v: 1.5, want: "1.5"},
		{v: 0.001, want: "0.001"},
		{v: 0.0001, want: "1.0E-4"},
		{v: 1234567, want: "1234567.0"},
		{v: 12345678, want: "1.2345678E7"},
		{v: 1e7, want: "1.0E7"},
		{v: math.Float64frombits(0x3FD3333333333334), want: "0.30000000000000004"},
		{v: math.MaxFloat64, want: "1.7976931348623157E308"},
		{v: math.SmallestNonzeroFloat64, want: "4.9E-324"},
		{v: 0x1p-1022, want: "2.2250738585072014E-308"},
		{v: 1e23, want: "1.0E23"},
		{v: math.NaN(), want: "NaN"},
		{v: math.Inf(1), want: "Infinity"},
		{v: math.Inf(-1), want: "-Infinity"},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, FormatDouble(test.v), "wrong rendering of %v", test.v)
	}
}

// requireShortestDouble checks that s parses back to v and has as few digits
// as strconv's shortest rendering. A single digit is rendered with two when
// two are closer, e.g. 4.9E-324.
func requireShortestDouble(t *testing.T, v float64, s string) {
	back, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err, "can't parse %s", s)
	require.Equal(t, math.Float64bits(v), math.Float64bits(back), "%s doesn't round trip to %v", s, v)

	got := significantDigits(s)
	want := significantDigits(strconv.FormatFloat(v, 'e', -1, 64))
	if want == 1 && got == 2 {
		return
	}
	require.Equal(t, want, got, "%s is not the shortest rendering of %v", s, v)
}

func requireShortestFloat(t *testing.T, v float32, s string) {
	back, err := strconv.ParseFloat(s, 32)
	require.NoError(t, err, "can't parse %s", s)
	require.Equal(t, math.Float32bits(v), math.Float32bits(float32(back)), "%s doesn't round trip to %v", s, v)

	got := significantDigits(s)
	want := significantDigits(strconv.FormatFloat(float64(v), 'e', -1, 32))
	if want == 1 && got == 2 {
		return
	}
	require.Equal(t, want, got, "%s is not the shortest rendering of %v", s, v)
}

func TestFormatDoubleExponents(t *testing.T) {
	for e := -1074; e <= 1023; e++ {
		v := math.Ldexp(1, e)
		requireShortestDouble(t, v, FormatDouble(v))
		requireShortestDouble(t, -v, FormatDouble(-v))
		if e > -1074 {
			// largest value below the power of two
			prev := math.Nextafter(v, 0)
			requireShortestDouble(t, prev, FormatDouble(prev))
		}
	}

	for n := -323; n <= 308; n++ {
		v, err := strconv.ParseFloat("1e"+strconv.Itoa(n), 64)
		require.NoError(t, err)
		requireShortestDouble(t, v, FormatDouble(v))
		up := math.Nextafter(v, math.Inf(1))
		requireShortestDouble(t, up, FormatDouble(up))
	}

	requireShortestDouble(t, math.MaxFloat64, FormatDouble(math.MaxFloat64))
	requireShortestDouble(t, math.SmallestNonzeroFloat64, FormatDouble(math.SmallestNonzeroFloat64))
	requireShortestDouble(t, 0x1p-1022, FormatDouble(0x1p-1022))
}

func TestFormatFloatExponents(t *testing.T) {
	for e := -149; e <= 127; e++ {
		v := float32(math.Ldexp(1, e))
		requireShortestFloat(t, v, FormatFloat(v))
	}

	for n := -45; n <= 38; n++ {
		v, err := strconv.ParseFloat("1e"+strconv.Itoa(n), 32)
		require.NoError(t, err)
		if v == 0 {
			continue
		}
		requireShortestFloat(t, float32(v), FormatFloat(float32(v)))
	}

	assert.Equal(t, "1.4E-45", FormatFloat(math.SmallestNonzeroFloat32))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		v    float32
		want string
	}{
		{v: 0, want: "0.0"},
		{v: 0.1, want: "0.1"},
		{v: 1.5, want: "1.5"},
		{v: 1e10, want: "1.0E10"},
		{v: 3.4028235e38, want: "3.4028235E38"},
		{v: float32(math.Inf(1)), want: "Infinity"},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, FormatFloat(test.v), "wrong rendering of %v", test.v)
	}
}

func significantDigits(s string) int {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "-")
	s = strings.Replace(s, ".", "", 1)
	s = strings.TrimLeft(s, "0")
	s = strings.TrimRight(s, "0")
	return len(s)
}

func TestFormatDoubleRandom(t *testing.T) {
	samples := 1_000_000
	if testing.Short() {
		samples = 10_000
	}
	r := rand.New(rand.NewSource(1))

	for i := 0; i < samples; i++ {
		v := math.Float64frombits(r.Uint64())
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		requireShortestDouble(t, v, FormatDouble(v))
	}
}

func TestFormatFloatRandom(t *testing.T) {
	samples := 1_000_000
	if testing.Short() {
		samples = 10_000
	}
	r := rand.New(rand.NewSource(2))

	for i := 0; i < samples; i++ {
		v := math.Float32frombits(r.Uint32())
		if v != v || math.IsInf(float64(v), 0) {
			continue
		}
		requireShortestFloat(t, v, FormatFloat(v))
	}
}

func TestDecimalToString(t *testing.T) {
	tests := []struct {
		s     string
		plain bool
		want  string
	}{
		{s: "123.45", want: "123.45"},
		{s: "0.000001", want: "0.000001"},
		{s: "1E+3", want: "1E+3"},
		{s: "1E+3", plain: true, want: "1000"},
	}

	for _, test := range tests {
		d, err := decimal.NewFromString(test.s)
		require.NoError(t, err)
		assert.Equal(t, test.want, decimalToString(d, test.plain), "wrong rendering of %s", test.s)
	}
}
