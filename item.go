package cbor

import "time"

// Item is a single decoded CBOR data item: the value the decoder's
// traversal produces one of per call, and the unit bounded navigation
// operates on (spec.md section 3, "Decoded item").
//
// Only the fields relevant to Type are meaningful; the rest are left at
// their zero value. This mirrors the teacher's peek-then-read split
// collapsed into one eagerly-populated struct, per decoder.go's doc
// comment.
type Item struct {
	Type DataType

	// Label, populated when this item was read as a map value via the
	// label-aware decode path (GetByLabel and friends). LabelType ==
	// LabelTypeNone when the item was read positionally.
	LabelType   LabelType
	LabelInt64  int64
	LabelUint64 uint64
	LabelBytes  []byte
	LabelText   string

	// NestLevel is the container-nesting depth this item was found at;
	// NextNestLevel is the nesting depth of whatever follows it (used to
	// detect container closes without an explicit Exit call, per the
	// decoder's break look-ahead).
	NestLevel     int
	NextNestLevel int

	// Tags lists the tag numbers wrapping this item, innermost (closest
	// to the value) first, capped at MaxTagsPerItem. Tags the tag
	// dispatch table consumed and turned into a richer DataType (e.g.
	// TypeEpochDate) are removed from this list; tags left here under
	// AllowUnprocessedTagNumbers are ones the table didn't recognize.
	Tags []Tag

	// Scalar values. Exactly one of these is meaningful, selected by Type.
	Int64    int64
	Uint64   uint64
	Bytes    []byte
	Text     string
	Float32  float32
	Float64  float64
	Simple   byte // TypeUnknownSimple payload

	// Count is the declared element count of an array/map/bstr-wrapped
	// item, or -1 if it was encoded with an indefinite length.
	Count int

	// Time is populated for TypeDateString, TypeEpochDate, TypeEpochDays
	// and TypeDateOnlyString by the tag dispatch table.
	Time time.Time

	// Decimal-fraction / bigfloat fields (TypeDecimalFraction* and
	// TypeBigFloat* variants): value is MantissaSign * mantissa *
	// (base ** ExponentInt64), base 10 for decimal fractions and base 2
	// for bigfloats. Mantissa lives in MantissaInt64/MantissaUint64 for
	// the small-mantissa variants or MantissaBytes (big-endian magnitude)
	// for the big-mantissa ones; MantissaNegative mirrors the "Neg"
	// suffix on the DataType.
	ExponentInt64    int64
	MantissaInt64    int64
	MantissaUint64   uint64
	MantissaBytes    []byte
	MantissaNegative bool

	// allocated is true when Bytes/Text was produced by a
	// StringAllocator (indefinite-length concatenation) rather than
	// being a direct slice into the input; bounded navigation consults
	// this to know whether the memory must outlive the current frame.
	allocated bool
}

// IsTagged reports whether the item carries at least one unconsumed or
// recorded tag number.
func (it *Item) IsTagged() bool {
	return len(it.Tags) > 0
}

// HasTag reports whether t appears anywhere in the item's tag list.
func (it *Item) HasTag(t Tag) bool {
	for _, got := range it.Tags {
		if got == t {
			return true
		}
	}
	return false
}

// String returns a human-readable name for the DataType, for diagnostics
// and error messages (TypeMismatchError.Error, logging in the ambient
// layer).
func (t DataType) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeInt64:
		return "Int64"
	case TypeUint64:
		return "Uint64"
	case TypeNegativeBignumDirect:
		return "NegativeBignumDirect"
	case TypeByteString:
		return "ByteString"
	case TypeTextString:
		return "TextString"
	case TypeArray:
		return "Array"
	case TypeMap:
		return "Map"
	case TypeFalse:
		return "False"
	case TypeTrue:
		return "True"
	case TypeNull:
		return "Null"
	case TypeUndefined:
		return "Undefined"
	case TypeFloat:
		return "Float"
	case TypeDouble:
		return "Double"
	case TypeUnknownSimple:
		return "UnknownSimple"
	case TypeDateString:
		return "DateString"
	case TypeEpochDate:
		return "EpochDate"
	case TypeDateOnlyString:
		return "DateOnlyString"
	case TypeEpochDays:
		return "EpochDays"
	case TypePositiveBignum:
		return "PositiveBignum"
	case TypeNegativeBignum:
		return "NegativeBignum"
	case TypeDecimalFractionIntMantissa:
		return "DecimalFractionIntMantissa"
	case TypeDecimalFractionBigMantissa:
		return "DecimalFractionBigMantissa"
	case TypeDecimalFractionIntMantissaNeg:
		return "DecimalFractionIntMantissaNeg"
	case TypeDecimalFractionBigMantissaNeg:
		return "DecimalFractionBigMantissaNeg"
	case TypeBigFloatIntMantissa:
		return "BigFloatIntMantissa"
	case TypeBigFloatBigMantissa:
		return "BigFloatBigMantissa"
	case TypeBigFloatIntMantissaNeg:
		return "BigFloatIntMantissaNeg"
	case TypeBigFloatBigMantissaNeg:
		return "BigFloatBigMantissaNeg"
	case TypeURI:
		return "URI"
	case TypeBase64:
		return "Base64"
	case TypeBase64URL:
		return "Base64URL"
	case TypeRegex:
		return "Regex"
	case TypeMIME:
		return "MIME"
	case TypeBinaryMIME:
		return "BinaryMIME"
	case TypeUUID:
		return "UUID"
	case TypeWrappedCBOR:
		return "WrappedCBOR"
	case TypeWrappedCBORSequence:
		return "WrappedCBORSequence"
	default:
		return "Unknown"
	}
}
