package cbor

import (
	"math"
	"math/big"
	"sort"
	"time"
)

// Encoder builds a CBOR-encoded byte stream (spec.md section 4.7,
// "Encoder core"). Arrays and maps are opened with their element count
// known up front, same as the teacher's WriteStartArray/WriteStartMap.
// Byte-string wrapping (OpenBstrWrap/CloseBstrWrap) is the one container
// shape whose length genuinely isn't known until its content has been
// written — COSE's Sig_structure and CWT/hash-envelope payloads are
// built this way — so that path writes a worst-case-width placeholder
// header, encodes the content, then patches the header down to its
// shortest form in place via the sink's swap-by-three-reversals
// primitive instead of re-serializing the content at a new offset.
type Encoder struct {
	sink   *outputSink
	cfg    Config
	frames []encodeFrame
	err    error
}

type encodeFrame struct {
	kind       frameKind
	headerLen  int // bytes occupied by the placeholder/definite header
	contentPos int // offset where content begins (after the header)
	count      int // elements written so far (map: key+value == 1)
	mapKeyNow  bool
	indefinite bool
	keyOffsets []int // start offset of each encoded map key, for CDE sort
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncodeConfig sets the encode-time configuration flags.
func WithEncodeConfig(cfg Config) EncoderOption {
	return func(e *Encoder) { e.cfg = cfg }
}

// WithCapacityHint sets the initial output buffer capacity.
func WithCapacityHint(n int) EncoderOption {
	return func(e *Encoder) { e.sink = newOutputSink(n) }
}

// NewEncoder returns an empty Encoder.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{sink: newOutputSink(256)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Err returns the encoder's sticky error, if any.
func (e *Encoder) Err() error {
	if e.err != nil {
		return e.err
	}
	return e.sink.Err()
}

func (e *Encoder) fail(err error) error {
	if e.err == nil {
		e.err = err
	}
	return e.err
}

// Bytes returns the encoded output so far. The caller should check Err()
// first; Finish additionally verifies every opened container was closed.
func (e *Encoder) Bytes() []byte {
	return e.sink.Bytes()
}

// Finish returns the final encoded bytes, failing with
// ErrArrayOrMapStillOpen if any container is still open.
func (e *Encoder) Finish() ([]byte, error) {
	if err := e.Err(); err != nil {
		return nil, err
	}
	if len(e.frames) > 0 {
		return nil, e.fail(ErrArrayOrMapStillOpen)
	}
	return e.sink.finish()
}

func (e *Encoder) topFrame() *encodeFrame {
	if len(e.frames) == 0 {
		return nil
	}
	return &e.frames[len(e.frames)-1]
}

func (e *Encoder) advance() {
	f := e.topFrame()
	if f == nil {
		return
	}
	if f.kind == frameMap {
		if f.mapKeyNow {
			f.mapKeyNow = false
		} else {
			f.mapKeyNow = true
			f.count++
		}
	} else {
		f.count++
	}
}

func (e *Encoder) writeHeader(mt MajorType, v uint64) {
	w := preferredWidth(v)
	switch w {
	case widthImmediate:
		e.sink.appendByte(encodeInitialByte(mt, byte(v)))
	case width8:
		e.sink.append([]byte{encodeInitialByte(mt, byte(AdditionalInfo8Bit)), byte(v)})
	case width16:
		e.sink.append([]byte{encodeInitialByte(mt, byte(AdditionalInfo16Bit)), byte(v >> 8), byte(v)})
	case width32:
		e.sink.append([]byte{
			encodeInitialByte(mt, byte(AdditionalInfo32Bit)),
			byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
		})
	default:
		e.sink.append([]byte{
			encodeInitialByte(mt, byte(AdditionalInfo64Bit)),
			byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
			byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
		})
	}
}

// WriteUint64 encodes an unsigned integer.
func (e *Encoder) WriteUint64(v uint64) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	e.writeHeader(MajorTypeUnsignedInteger, v)
	e.advance()
	return e.Err()
}

// WriteInt64 encodes a signed integer using the shortest legal major type.
func (e *Encoder) WriteInt64(v int64) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	if v >= 0 {
		e.writeHeader(MajorTypeUnsignedInteger, uint64(v))
	} else {
		e.writeHeader(MajorTypeNegativeInteger, uint64(-1-v))
	}
	e.advance()
	return e.Err()
}

// WriteBigInt encodes a big.Int, using tag 2/3 bignum encoding only when
// the value doesn't fit a native 64-bit integer (the preferred form).
func (e *Encoder) WriteBigInt(v *big.Int) error {
	if v == nil {
		return e.WriteNull()
	}
	if v.IsInt64() {
		return e.WriteInt64(v.Int64())
	}
	if v.IsUint64() {
		return e.WriteUint64(v.Uint64())
	}
	tag := TagPositiveBignum
	abs := v
	if v.Sign() < 0 {
		tag = TagNegativeBignum
		abs = new(big.Int).Neg(v)
		abs.Sub(abs, big.NewInt(1))
	}
	if err := e.WriteTag(tag); err != nil {
		return err
	}
	return e.WriteByteString(abs.Bytes())
}

// WriteByteString encodes a definite-length byte string.
func (e *Encoder) WriteByteString(v []byte) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	e.writeHeader(MajorTypeByteString, uint64(len(v)))
	e.sink.append(v)
	e.advance()
	return e.Err()
}

// WriteTextString encodes a definite-length UTF-8 text string.
func (e *Encoder) WriteTextString(v string) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	e.writeHeader(MajorTypeTextString, uint64(len(v)))
	e.sink.append([]byte(v))
	e.advance()
	return e.Err()
}

// OpenArray begins a definite-length array of n elements.
func (e *Encoder) OpenArray(n int) error {
	return e.open(MajorTypeArray, frameArray, n)
}

// OpenMap begins a definite-length map of n pairs.
func (e *Encoder) OpenMap(n int) error {
	return e.open(MajorTypeMap, frameMap, n)
}

func (e *Encoder) open(mt MajorType, kind frameKind, n int) error {
	if e.Err() != nil {
		return e.Err()
	}
	if len(e.frames) >= MaxNestingDepth+MaxBstrWrapDepth {
		return e.fail(ErrNestingDepthExceeded)
	}
	start := e.sink.Len()
	e.writeHeader(mt, uint64(n))
	e.frames = append(e.frames, encodeFrame{
		kind:       kind,
		headerLen:  e.sink.Len() - start,
		contentPos: e.sink.Len(),
		mapKeyNow:  true,
	})
	return e.Err()
}

// OpenBstrWrap begins a byte string whose content length is not yet
// known: it reserves a 9-byte worst-case placeholder header (major type
// 2, 64-bit length) that CloseBstrWrap shrinks to the shortest legal
// form once the content length is known.
func (e *Encoder) OpenBstrWrap() error {
	if e.Err() != nil {
		return e.Err()
	}
	if len(e.frames) >= MaxNestingDepth+MaxBstrWrapDepth {
		return e.fail(ErrNestingDepthExceeded)
	}
	e.sink.append([]byte{encodeInitialByte(MajorTypeByteString, byte(AdditionalInfo64Bit)), 0, 0, 0, 0, 0, 0, 0, 0})
	e.frames = append(e.frames, encodeFrame{
		kind:       frameBstrWrap,
		headerLen:  9,
		contentPos: e.sink.Len(),
	})
	return e.Err()
}

// CloseBstrWrap finishes a byte-string wrap opened with OpenBstrWrap,
// patching the placeholder header down to the shortest encoding of the
// actual content length.
func (e *Encoder) CloseBstrWrap() error {
	if e.Err() != nil {
		return e.Err()
	}
	f := e.topFrame()
	if f == nil || f.kind != frameBstrWrap {
		return e.fail(ErrTooManyCloses)
	}
	contentLen := e.sink.Len() - f.contentPos
	headerStart := f.contentPos - f.headerLen

	// Build the shortest real header, append it after the content, then
	// swap it into place ahead of the content and drop the now-trailing
	// placeholder bytes.
	realHeaderStart := e.sink.Len()
	e.writeHeader(MajorTypeByteString, uint64(contentLen))
	realHeaderLen := e.sink.Len() - realHeaderStart

	// Layout right now: [placeholder][content][realHeader]
	// swap(a=headerStart, alen=9+contentLen, blen=realHeaderLen) turns
	// [placeholder+content][realHeader] into [realHeader][placeholder+content].
	e.sink.swap(headerStart, f.headerLen+contentLen, realHeaderLen)
	// The buffer is now [realHeader][placeholder][content]; slide the
	// content left over the placeholder by swapping those two in turn.
	e.sink.swap(headerStart+realHeaderLen, f.headerLen, contentLen)
	// Trim the now-duplicate placeholder bytes left at the tail.
	e.sink.buf = e.sink.buf[:headerStart+realHeaderLen+contentLen]

	e.frames = e.frames[:len(e.frames)-1]
	e.advance()
	return e.Err()
}

// CloseArray ends the most recently opened array.
func (e *Encoder) CloseArray() error {
	return e.close(frameArray)
}

// CloseMap ends the most recently opened map, sorting entries by
// serialized key bytes first when OnlySortedMaps is set (CDE/dCBOR).
func (e *Encoder) CloseMap() error {
	return e.close(frameMap)
}

func (e *Encoder) close(kind frameKind) error {
	if e.Err() != nil {
		return e.Err()
	}
	f := e.topFrame()
	if f == nil || f.kind != kind {
		return e.fail(ErrTooManyCloses)
	}
	if kind == frameMap && !f.mapKeyNow {
		return e.fail(ErrIncompleteContainer)
	}
	if e.cfg.Has(OnlySortedMaps) && kind == frameMap {
		e.sortMapEntries(f)
	}
	e.frames = e.frames[:len(e.frames)-1]
	e.advance()
	return e.Err()
}

// sortMapEntries reorders already-written key/value pairs by their
// serialized key bytes (bytewise, shorter-is-less-only-after-a-full-
// equal-prefix), the Core Deterministic Encoding rule, then rewrites the
// sorted pairs back over the map's content region in place.
func (e *Encoder) sortMapEntries(f *encodeFrame) {
	// Recording exact pair boundaries requires the encoder to track each
	// key/value span; this minimal implementation re-derives them by
	// re-walking the bytes between contentPos and the current length
	// using a throwaway Decoder, which is simple and correct even though
	// it duplicates parsing work the encoder already did once.
	dec, err := NewDecoder(e.sink.Bytes()[f.contentPos:])
	if err != nil {
		e.fail(err)
		return
	}
	type pair struct{ start, keyLen, totalLen int }
	var pairs []pair
	base := f.contentPos
	for !dec.Finished() {
		pairStart := base + int(dec.Pos())
		if err := dec.skipValue(); err != nil { // key
			e.fail(err)
			return
		}
		keyEnd := base + int(dec.Pos())
		if err := dec.skipValue(); err != nil { // value
			e.fail(err)
			return
		}
		pairEnd := base + int(dec.Pos())
		pairs = append(pairs, pair{start: pairStart, keyLen: keyEnd - pairStart, totalLen: pairEnd - pairStart})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return e.sink.compareRegions(pairs[i].start, pairs[i].keyLen, pairs[j].start, pairs[j].keyLen) < 0
	})

	reordered := make([]byte, 0, e.sink.Len()-base)
	for _, p := range pairs {
		reordered = append(reordered, e.sink.buf[p.start:p.start+p.totalLen]...)
	}
	copy(e.sink.buf[base:], reordered)
}

// WriteTag encodes a semantic tag number; the next item written is the
// tag's content.
func (e *Encoder) WriteTag(tag Tag) error {
	if e.Err() != nil {
		return e.Err()
	}
	e.writeHeader(MajorTypeTag, uint64(tag))
	return e.Err()
}

// WriteBool encodes a boolean.
func (e *Encoder) WriteBool(v bool) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	sv := SimpleValueFalse
	if v {
		sv = SimpleValueTrue
	}
	e.sink.appendByte(encodeInitialByte(MajorTypeSimpleOrFloat, byte(sv)))
	e.advance()
	return e.Err()
}

// WriteNull encodes the null simple value.
func (e *Encoder) WriteNull() error {
	return e.writeBareSimple(byte(SimpleValueNull))
}

// WriteUndefined encodes the undefined simple value.
func (e *Encoder) WriteUndefined() error {
	return e.writeBareSimple(byte(SimpleValueUndefined))
}

func (e *Encoder) writeBareSimple(v byte) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	e.sink.appendByte(encodeInitialByte(MajorTypeSimpleOrFloat, v))
	e.advance()
	return e.Err()
}

// WriteFloat encodes v using the shortest of half/single/double precision
// that round-trips exactly, whatever the configuration; WriteFloat64 is
// the fixed-width alternative.
func (e *Encoder) WriteFloat(v float64) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	width, half, single, double := reduceFloat64(v)
	switch width {
	case width16:
		e.sink.append([]byte{encodeInitialByte(MajorTypeSimpleOrFloat, 25), byte(half >> 8), byte(half)})
	case width32:
		e.sink.append([]byte{
			encodeInitialByte(MajorTypeSimpleOrFloat, 26),
			byte(single >> 24), byte(single >> 16), byte(single >> 8), byte(single),
		})
	default:
		e.sink.append([]byte{
			encodeInitialByte(MajorTypeSimpleOrFloat, 27),
			byte(double >> 56), byte(double >> 48), byte(double >> 40), byte(double >> 32),
			byte(double >> 24), byte(double >> 16), byte(double >> 8), byte(double),
		})
	}
	e.advance()
	return e.Err()
}

// WriteFloat64 encodes v at double precision, bypassing reduction, unless
// OnlyReducedFloats is configured, in which case it encodes like WriteFloat.
func (e *Encoder) WriteFloat64(v float64) error {
	if e.Err() != nil {
		return e.Err()
	}
	if e.cfg.Has(OnlyReducedFloats) {
		return e.WriteFloat(v)
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	bits := math.Float64bits(v)
	e.sink.append([]byte{
		encodeInitialByte(MajorTypeSimpleOrFloat, 27),
		byte(bits >> 56), byte(bits >> 48), byte(bits >> 40), byte(bits >> 32),
		byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits),
	})
	e.advance()
	return e.Err()
}

// WriteDateTimeString encodes t as a tag-0 RFC 3339 date/time string.
func (e *Encoder) WriteDateTimeString(t time.Time) error {
	if err := e.WriteTag(TagDateTimeString); err != nil {
		return err
	}
	return e.WriteTextString(t.UTC().Format(time.RFC3339Nano))
}

// WriteEpochDate encodes t as a tag-1 epoch-seconds value, using a float
// only when t carries sub-second precision.
func (e *Encoder) WriteEpochDate(t time.Time) error {
	if err := e.WriteTag(TagEpochDate); err != nil {
		return err
	}
	if t.Nanosecond() != 0 {
		return e.WriteFloat(float64(t.Unix()) + float64(t.Nanosecond())/1e9)
	}
	return e.WriteInt64(t.Unix())
}

// WriteSelfDescribed prefixes the next item with the self-described-CBOR
// marker (tag 55799).
func (e *Encoder) WriteSelfDescribed() error {
	return e.WriteTag(TagSelfDescribedCBOR)
}

// WriteRaw appends pre-encoded CBOR bytes verbatim, bypassing all
// well-formedness checks. The caller is responsible for correctness;
// the bytes count as one item of the enclosing container.
func (e *Encoder) WriteRaw(data []byte) error {
	if e.Err() != nil {
		return e.Err()
	}
	if keyStart := e.beginMapKeyIfNeeded(); keyStart >= 0 {
		defer e.endMapKey(keyStart)
	}
	e.sink.append(data)
	e.advance()
	return e.Err()
}

// beginMapKeyIfNeeded records the start offset of a map key about to be
// written, for the CDE key-sort pass; returns -1 when not writing a key.
func (e *Encoder) beginMapKeyIfNeeded() int {
	f := e.topFrame()
	if f == nil || f.kind != frameMap || !f.mapKeyNow {
		return -1
	}
	return e.sink.Len()
}

func (e *Encoder) endMapKey(start int) {
	f := e.topFrame()
	if f == nil {
		return
	}
	f.keyOffsets = append(f.keyOffsets, start)
}
