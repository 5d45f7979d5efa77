package cbor

import (
	"math"
	"math/big"

	"github.com/x448/float16"
)

// argWidth classifies how many additional bytes a CBOR argument needs,
// used by both the decoder (to detect non-preferred encodings under
// OnlyPreferredNumbers) and the encoder (to pick the shortest legal form).
type argWidth int

const (
	widthImmediate argWidth = iota // value fits in the 5-bit additional-info field
	width8
	width16
	width32
	width64
)

// preferredWidth returns the shortest argWidth that can represent v.
func preferredWidth(v uint64) argWidth {
	switch {
	case v < 24:
		return widthImmediate
	case v <= math.MaxUint8:
		return width8
	case v <= math.MaxUint16:
		return width16
	case v <= math.MaxUint32:
		return width32
	default:
		return width64
	}
}

// encodedArgWidth inspects an already-decoded additional-info byte and
// reports which argWidth it used, independent of the value — used to
// compare "width actually used" against preferredWidth(value) when
// OnlyPreferredNumbers is configured.
func encodedArgWidth(ai byte) argWidth {
	switch AdditionalInfo(ai) {
	case AdditionalInfo8Bit:
		return width8
	case AdditionalInfo16Bit:
		return width16
	case AdditionalInfo32Bit:
		return width32
	case AdditionalInfo64Bit:
		return width64
	default:
		return widthImmediate
	}
}

// negativeBignumToInt converts the byte string content of a tag-3
// (negative bignum) into the spec's "-1-n" value. It returns the big.Int
// unconditionally; callers decide whether the magnitude also fits a
// native int64 (TypeNegativeBignum vs TypeNegativeBignumDirect).
func negativeBignumToInt(content []byte) *big.Int {
	n := new(big.Int).SetBytes(content)
	one := big.NewInt(1)
	return n.Add(n, one).Neg(n)
}

// fitsInt64 reports whether n is representable as an int64.
func fitsInt64(n *big.Int) (int64, bool) {
	if !n.IsInt64() {
		return 0, false
	}
	return n.Int64(), true
}

// reduceFloat64 widens or narrows v to the shortest of double/single/half
// precision that round-trips exactly, per spec.md's preferred-float rule
// and the OnlyReducedFloats configuration flag. It returns the encoded
// width and, for the half/single cases, the narrower bit pattern ready to
// write.
func reduceFloat64(v float64) (width argWidth, half uint16, single uint32, double uint64) {
	double = math.Float64bits(v)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return reduceNonFinite(v)
	}
	f32 := float32(v)
	if float64(f32) != v {
		return width64, 0, 0, double
	}
	single = math.Float32bits(f32)
	f16 := float16.Fromfloat32(f32)
	if !f16.IsInf(0) && float32(f16.Float32()) == f32 {
		return width16, uint16(f16), single, double
	}
	return width32, 0, single, double
}

// reduceNonFinite narrows Inf and NaN the same way reduceFloat64 narrows
// finite values: to the shortest width that reproduces the same bit
// pattern. For NaN that means the payload (mantissa), not just the value,
// must survive: a payload is preserved "modulo a right shift" when every
// bit it would lose by narrowing is already zero, so shifting it back up
// reproduces the original bits exactly. A payload with set bits in the
// dropped range would be truncated, so that NaN stays at double width.
func reduceNonFinite(v float64) (argWidth, uint16, uint32, uint64) {
	double := math.Float64bits(v)

	if math.IsInf(v, 0) {
		f32 := float32(v)
		f16 := float16.Fromfloat32(f32)
		return width16, uint16(f16), math.Float32bits(f32), double
	}

	sign := double >> 63
	mantissa64 := double & (1<<52 - 1)

	const dropToSingle = 52 - 23
	if mantissa64&(1<<dropToSingle-1) != 0 {
		return width64, 0, 0, double
	}
	mantissa32 := uint32(mantissa64 >> dropToSingle)
	single := uint32(sign)<<31 | 0xff<<23 | mantissa32

	const dropToHalf = 23 - 10
	if mantissa32&(1<<dropToHalf-1) != 0 {
		return width32, 0, single, double
	}
	mantissa16 := uint16(mantissa32 >> dropToHalf)
	half := uint16(sign)<<15 | 0x1f<<10 | mantissa16
	return width16, half, single, double
}

// widenHalf expands a half-precision bit pattern to float64, used by the
// decoder when it encounters a 2-byte float argument.
func widenHalf(bits uint16) float64 {
	return float64(float16.Frombits(bits).Float32())
}

// widenSingle expands a single-precision bit pattern to float64.
func widenSingle(bits uint32) float64 {
	return float64(math.Float32frombits(bits))
}
