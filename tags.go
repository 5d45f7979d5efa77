package cbor

import (
	"time"

	"github.com/google/uuid"
)

// tagHandler rewrites item into the richer DataType/value implied by the
// tag it was registered for. apply removes that tag (item.Tags[0], the
// innermost) before calling the handler; a non-nil error fails the
// decode. Handlers for tags wrapping a container
// (decimal fraction, bigfloat) read the container's elements themselves
// via dec.Next() and pop the now-exhausted frame.
type tagHandler func(dec *Decoder, item *Item) error

// tagTable is an installable tag-number dispatch table (spec.md section
// 4.6). Unrecognized tags are left on Item.Tags for the caller, subject
// to AllowUnprocessedTagNumbers.
type tagTable struct {
	handlers map[Tag]tagHandler
}

// NewTagTable returns an empty tag dispatch table.
func NewTagTable() *tagTable {
	return &tagTable{handlers: make(map[Tag]tagHandler)}
}

// Register installs h for tag t, replacing any existing handler.
func (t *tagTable) Register(tag Tag, h tagHandler) {
	t.handlers[tag] = h
}

// apply processes every tag on item, innermost first (the order they
// were recorded), stopping at the first tag with no registered handler.
func (t *tagTable) apply(dec *Decoder, item *Item) error {
	for len(item.Tags) > 0 {
		innermost := item.Tags[0]
		h, ok := t.handlers[innermost]
		if !ok {
			return nil
		}
		item.Tags = item.Tags[1:]
		if err := h(dec, item); err != nil {
			return err
		}
	}
	return nil
}

// DefaultTagTable recognizes every tag spec.md names explicitly.
var DefaultTagTable = buildDefaultTagTable()

func buildDefaultTagTable() *tagTable {
	t := NewTagTable()

	t.Register(TagSelfDescribedCBOR, func(dec *Decoder, item *Item) error {
		return nil // pure marker, no content rewrite
	})

	t.Register(TagDateTimeString, func(dec *Decoder, item *Item) error {
		if item.Type != TypeTextString {
			return ErrUnrecoverableTagContent
		}
		ts, err := time.Parse(time.RFC3339Nano, item.Text)
		if err != nil {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeDateString
		item.Time = ts
		return nil
	})

	t.Register(TagDateOnlyString, func(dec *Decoder, item *Item) error {
		if item.Type != TypeTextString {
			return ErrUnrecoverableTagContent
		}
		ts, err := time.Parse("2006-01-02", item.Text)
		if err != nil {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeDateOnlyString
		item.Time = ts
		return nil
	})

	t.Register(TagEpochDate, func(dec *Decoder, item *Item) error {
		switch item.Type {
		case TypeInt64:
			item.Time = time.Unix(item.Int64, 0).UTC()
		case TypeUint64:
			item.Time = time.Unix(int64(item.Uint64), 0).UTC()
		case TypeFloat, TypeDouble:
			secs := int64(item.Float64)
			nsec := int64((item.Float64 - float64(secs)) * 1e9)
			item.Time = time.Unix(secs, nsec).UTC()
		default:
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeEpochDate
		return nil
	})

	t.Register(TagEpochDays, func(dec *Decoder, item *Item) error {
		var days int64
		switch item.Type {
		case TypeInt64:
			days = item.Int64
		case TypeUint64:
			days = int64(item.Uint64)
		default:
			return ErrUnrecoverableTagContent
		}
		item.Time = time.Unix(days*86400, 0).UTC()
		item.Type = TypeEpochDays
		return nil
	})

	t.Register(TagPositiveBignum, func(dec *Decoder, item *Item) error {
		if item.Type != TypeByteString {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypePositiveBignum
		return nil
	})

	t.Register(TagNegativeBignum, func(dec *Decoder, item *Item) error {
		if item.Type != TypeByteString {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeNegativeBignum
		return nil
	})

	t.Register(TagDecimalFraction, func(dec *Decoder, item *Item) error {
		return decodeExponentMantissa(dec, item, false)
	})

	t.Register(TagBigFloat, func(dec *Decoder, item *Item) error {
		return decodeExponentMantissa(dec, item, true)
	})

	t.Register(TagEncodedCBOR, func(dec *Decoder, item *Item) error {
		if item.Type != TypeByteString {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeWrappedCBOR
		return nil
	})

	t.Register(TagEncodedCBORSeq, func(dec *Decoder, item *Item) error {
		if item.Type != TypeByteString {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeWrappedCBORSequence
		return nil
	})

	t.Register(TagURI, textTagHandler(TypeURI))
	t.Register(TagBase64URL, textTagHandler(TypeBase64URL))
	t.Register(TagBase64, textTagHandler(TypeBase64))
	t.Register(TagRegex, textTagHandler(TypeRegex))
	t.Register(TagMIME, textTagHandler(TypeMIME))
	t.Register(TagBinaryMIME, func(dec *Decoder, item *Item) error {
		if item.Type != TypeByteString {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeBinaryMIME
		return nil
	})

	t.Register(TagUUID, func(dec *Decoder, item *Item) error {
		if item.Type != TypeByteString {
			return ErrUnrecoverableTagContent
		}
		if _, err := uuid.FromBytes(item.Bytes); err != nil {
			return ErrUnrecoverableTagContent
		}
		item.Type = TypeUUID
		return nil
	})

	return t
}

func textTagHandler(dt DataType) tagHandler {
	return func(dec *Decoder, item *Item) error {
		if item.Type != TypeTextString {
			return ErrUnrecoverableTagContent
		}
		item.Type = dt
		return nil
	}
}

// decodeExponentMantissa handles tag 4 (decimal fraction) and tag 5
// (bigfloat): both wrap a two-element array [exponent, mantissa]. The
// array-open Item was already produced by decodeValue and pushed a
// frame; this reads the two elements directly and pops that frame, since
// the tag owns the whole array, not just its open marker.
func decodeExponentMantissa(dec *Decoder, item *Item, isBigFloat bool) error {
	if item.Type != TypeArray || item.Count != 2 {
		return ErrUnrecoverableTagContent
	}
	// The frame for this array was pushed by decodeContainerOpen just
	// before apply() runs; pop it once both elements are consumed.
	frameDepth := len(dec.frames)
	if frameDepth == 0 {
		return ErrUnrecoverableTagContent
	}

	expItem, err := dec.Next()
	if err != nil {
		return err
	}
	var exponent int64
	switch expItem.Type {
	case TypeInt64:
		exponent = expItem.Int64
	case TypeUint64:
		if expItem.Uint64 > 1<<62 {
			return ErrUnrecoverableTagContent
		}
		exponent = int64(expItem.Uint64)
	default:
		return ErrUnrecoverableTagContent
	}

	mantItem, err := dec.Next()
	if err != nil {
		return err
	}

	item.ExponentInt64 = exponent

	switch mantItem.Type {
	case TypeInt64:
		item.MantissaInt64 = mantItem.Int64
		if isBigFloat {
			item.Type = pick(mantItem.Int64 < 0, TypeBigFloatIntMantissaNeg, TypeBigFloatIntMantissa)
		} else {
			item.Type = pick(mantItem.Int64 < 0, TypeDecimalFractionIntMantissaNeg, TypeDecimalFractionIntMantissa)
		}
	case TypeUint64:
		item.MantissaUint64 = mantItem.Uint64
		if isBigFloat {
			item.Type = TypeBigFloatIntMantissa
		} else {
			item.Type = TypeDecimalFractionIntMantissa
		}
	case TypePositiveBignum, TypeNegativeBignum:
		item.MantissaBytes = mantItem.Bytes
		item.MantissaNegative = mantItem.Type == TypeNegativeBignum
		if isBigFloat {
			item.Type = pick(item.MantissaNegative, TypeBigFloatBigMantissaNeg, TypeBigFloatBigMantissa)
		} else {
			item.Type = pick(item.MantissaNegative, TypeDecimalFractionBigMantissaNeg, TypeDecimalFractionBigMantissa)
		}
	default:
		return ErrUnrecoverableTagContent
	}

	if len(dec.frames) != frameDepth {
		return ErrUnrecoverableTagContent
	}
	dec.frames = dec.frames[:frameDepth-1]
	item.Count = 0
	return nil
}

func pick(cond bool, a, b DataType) DataType {
	if cond {
		return a
	}
	return b
}
