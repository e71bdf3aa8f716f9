package cirjson

import (
	"math"
	"math/big"
	"math/bits"
	"strconv"
)

// Shortest decimal rendering of binary floating point values, after
// R. Giulietti, "The Schubfach way to render doubles". For every finite value
// the produced decimal is the shortest one that rounds back to the same bits,
// and among those the closest to the exact value.

const (
	doublePrecision = 53
	doubleQMin      = -1074
	doubleCMin      = uint64(1) << 52
	doubleTMask     = doubleCMin - 1
	doubleBQMask    = 0x7FF

	floatPrecision = 24
	floatQMin      = -149
	floatCMin      = uint64(1) << 23
	floatTMask     = floatCMin - 1
	floatBQMask    = 0xFF

	gKMin = -324
	gKMax = 292

	mask63 = uint64(1)<<63 - 1
)

// gTable[k-gKMin] holds the 126-bit g = floor(10^-k * 2^-r) + 1 split in a
// high and a low 63-bit half, with r chosen so that 2^125 <= g < 2^126.
var gTable [gKMax - gKMin + 1][2]uint64

func init() {
	one := big.NewInt(1)
	ten := big.NewInt(10)
	m63 := new(big.Int).SetUint64(mask63)

	for k := gKMin; k <= gKMax; k++ {
		e := -k
		r := flog2pow10(e) - 125
		g := new(big.Int)
		if e >= 0 {
			g.Exp(ten, big.NewInt(int64(e)), nil)
			if r >= 0 {
				g.Rsh(g, uint(r))
			} else {
				g.Lsh(g, uint(-r))
			}
		} else {
			den := new(big.Int).Exp(ten, big.NewInt(int64(-e)), nil)
			g.Lsh(one, uint(-r))
			g.Quo(g, den)
		}
		g.Add(g, one)

		hi := new(big.Int).Rsh(g, 63)
		lo := new(big.Int).And(g, m63)
		gTable[k-gKMin] = [2]uint64{hi.Uint64(), lo.Uint64()}
	}
}

// floor(q * log10(2))
func flog10pow2(q int) int {
	return int((int64(q) * 661_971_961_083) >> 41)
}

// floor(q * log10(2) + log10(3/4))
func flog10threeQuartersPow2(q int) int {
	return int((int64(q)*661_971_961_083 - 274_743_187_321) >> 41)
}

// floor(e * log2(10))
func flog2pow10(e int) int {
	return int((int64(e) * 913_124_641_741) >> 38)
}

// rop is the round-to-odd product g * cp / 2^127.
func rop(g1, g0, cp uint64) uint64 {
	x1, _ := bits.Mul64(g0, cp)
	y1, y0 := bits.Mul64(g1, cp)
	z := (y0 >> 1) + x1
	vbp := y1 + (z >> 63)
	return vbp | ((z&mask63)+mask63)>>63
}

// toDecimal returns f, e such that f * 10^e is the shortest decimal within
// the rounding interval of c * 2^q.
func toDecimal(q int, c, cMin uint64, qMin int) (uint64, int) {
	out := c & 1
	cb := c << 2
	cbr := cb + 2

	var cbl uint64
	var k int
	if c != cMin || q == qMin {
		cbl = cb - 2
		k = flog10pow2(q)
	} else {
		// the interval is asymmetric at powers of two
		cbl = cb - 1
		k = flog10threeQuartersPow2(q)
	}

	h := q + flog2pow10(-k) + 2
	g := gTable[k-gKMin]
	vb := rop(g[0], g[1], cb<<h)
	vbl := rop(g[0], g[1], cbl<<h)
	vbr := rop(g[0], g[1], cbr<<h)

	s := vb >> 2
	if s >= 100 {
		sp10 := s / 10 * 10
		tp10 := sp10 + 10
		upin := vbl+out <= sp10<<2
		wpin := tp10<<2+out <= vbr
		if upin != wpin {
			if upin {
				return sp10, k
			}
			return tp10, k
		}
	}

	t := s + 1
	uin := vbl+out <= s<<2
	win := t<<2+out <= vbr
	if uin != win {
		if uin {
			return s, k
		}
		return t, k
	}

	cmp := int64(vb) - int64((s+t)<<1)
	if cmp < 0 || cmp == 0 && s&1 == 0 {
		return s, k
	}
	return t, k
}

// AppendDouble appends the shortest round-tripping rendering of v. Non-finite
// values render as NaN, Infinity and -Infinity.
func AppendDouble(out []byte, v float64) []byte {
	b := math.Float64bits(v)
	t := b & doubleTMask
	bq := int(b>>(doublePrecision-1)) & doubleBQMask
	neg := b>>63 != 0

	if bq == doubleBQMask {
		if t != 0 {
			return append(out, "NaN"...)
		}
		if neg {
			return append(out, "-Infinity"...)
		}
		return append(out, "Infinity"...)
	}

	if bq == 0 && t == 0 {
		if neg {
			return append(out, "-0.0"...)
		}
		return append(out, "0.0"...)
	}

	var f uint64
	var e int
	if bq != 0 {
		mq := -doubleQMin + 1 - bq
		c := doubleCMin | t
		if mq > 0 && mq < doublePrecision && c>>mq<<mq == c {
			// integers fast path
			f, e = c>>mq, 0
		} else {
			f, e = toDecimal(-mq, c, doubleCMin, doubleQMin)
		}
	} else {
		f, e = toDecimal(doubleQMin, t, doubleCMin, doubleQMin)
	}

	return appendDecimal(out, neg, f, e)
}

// AppendFloat is AppendDouble for float32 values, shortest for 32 bits.
func AppendFloat(out []byte, v float32) []byte {
	b := uint64(math.Float32bits(v))
	t := b & floatTMask
	bq := int(b>>(floatPrecision-1)) & floatBQMask
	neg := b>>31 != 0

	if bq == floatBQMask {
		if t != 0 {
			return append(out, "NaN"...)
		}
		if neg {
			return append(out, "-Infinity"...)
		}
		return append(out, "Infinity"...)
	}

	if bq == 0 && t == 0 {
		if neg {
			return append(out, "-0.0"...)
		}
		return append(out, "0.0"...)
	}

	var f uint64
	var e int
	if bq != 0 {
		mq := -floatQMin + 1 - bq
		c := floatCMin | t
		if mq > 0 && mq < floatPrecision && c>>mq<<mq == c {
			f, e = c>>mq, 0
		} else {
			f, e = toDecimal(-mq, c, floatCMin, floatQMin)
		}
	} else {
		f, e = toDecimal(floatQMin, t, floatCMin, floatQMin)
	}

	return appendDecimal(out, neg, f, e)
}

func FormatDouble(v float64) string {
	return string(AppendDouble(make([]byte, 0, 24), v))
}

func FormatFloat(v float32) string {
	return string(AppendFloat(make([]byte, 0, 16), v))
}

// appendDecimal renders f * 10^e plainly for 1e-3 <= |v| < 1e7 and in
// computerized scientific notation otherwise, always with a fraction digit.
func appendDecimal(out []byte, neg bool, f uint64, e int) []byte {
	for f%10 == 0 {
		f /= 10
		e++
	}

	var tmp [20]byte
	digits := strconv.AppendUint(tmp[:0], f, 10)
	n := len(digits)
	dp := e + n

	if neg {
		out = append(out, '-')
	}

	switch {
	case dp >= -2 && dp <= 0:
		out = append(out, '0', '.')
		for i := dp; i < 0; i++ {
			out = append(out, '0')
		}
		out = append(out, digits...)
	case dp > 0 && dp < n && dp <= 7:
		out = append(out, digits[:dp]...)
		out = append(out, '.')
		out = append(out, digits[dp:]...)
	case dp >= n && dp <= 7:
		out = append(out, digits...)
		for i := n; i < dp; i++ {
			out = append(out, '0')
		}
		out = append(out, '.', '0')
	default:
		out = append(out, digits[0], '.')
		if n > 1 {
			out = append(out, digits[1:]...)
		} else {
			out = append(out, '0')
		}
		out = append(out, 'E')
		out = strconv.AppendInt(out, int64(dp-1), 10)
	}

	return out
}
