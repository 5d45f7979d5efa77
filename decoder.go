package cbor

import (
	"math"
	"unicode/utf8"
)

// Decoder performs a pre-order traversal of a CBOR-encoded byte slice,
// producing one Item per call to Next (spec.md section 4.3, "Decoder
// core"). It tracks a nesting-frame stack so bounded-navigation
// operations in nav.go can Enter/Exit containers and byte-string-wrapped
// items without the caller re-parsing anything.
//
// Once an error is recorded it is sticky: every subsequent call to Next
// (or any nav.go method) returns the same error without touching the
// cursor again (spec.md section 7).
type Decoder struct {
	cur    *inputCursor
	cfg    Config
	tags   *tagTable
	alloc  StringAllocator

	frames []decodeFrame
	err    error

	// pendingTags accumulates tag numbers seen immediately before the
	// item they wrap; Next clears it once attached to the returned Item.
	pendingTags []Tag

	// bstrStack holds the outer cursor to resume from when
	// ExitBstrWrapped returns from a nested byte-string-wrapped region
	// (see nav.go EnterBstrWrapped/ExitBstrWrapped).
	bstrStack []bstrSave
}

// bstrSave records what EnterBstrWrapped needs to resume the outer
// cursor once ExitBstrWrapped is called.
type bstrSave struct {
	outer     *inputCursor
	resumePos uint32
}

// decodeFrame is one entry of the nesting stack: an open array, map, or
// byte-string wrap.
type decodeFrame struct {
	kind      frameKind
	count     int  // declared element count, or -1 if indefinite
	index     int  // elements consumed so far (map: key+value == 1 element)
	mapKeyNow bool // for maps: true if the next item is a key
	startPos  uint32

	// Most-recently-read map key's raw encoded bytes, tracked only when
	// OnlySortedMaps is configured so each new key can be compared
	// against it (spec.md section 4.3, "map labels must be sorted").
	// Left at its zero value (hasLastKey == false) for container-typed
	// keys (an array or map used as a key), which are not checked: their
	// content spans frames of their own that this single-item bookkeeping
	// doesn't track, a known limitation for an edge case COSE/CWT maps
	// don't exercise.
	hasLastKey   bool
	lastKeyStart uint32
	lastKeyLen   uint32
}

type frameKind int

const (
	frameArray frameKind = iota
	frameMap
	frameBstrWrap
)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithConfig sets the decode-time configuration flags (spec.md section 6).
func WithConfig(cfg Config) DecoderOption {
	return func(d *Decoder) { d.cfg = cfg }
}

// WithTagTable installs a custom tag dispatch table. The default table
// (DefaultTagTable) handles every tag spec.md names explicitly.
func WithTagTable(t *tagTable) DecoderOption {
	return func(d *Decoder) { d.tags = t }
}

// WithStringAllocator installs a StringAllocator for indefinite-length
// string concatenation. Without one, indefinite-length strings fail with
// ErrNoStringAllocator (spec.md section 4.8).
func WithStringAllocator(a StringAllocator) DecoderOption {
	return func(d *Decoder) { d.alloc = a }
}

// NewDecoder returns a Decoder over data.
func NewDecoder(data []byte, opts ...DecoderOption) (*Decoder, error) {
	cur, err := newInputCursor(data)
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		cur:    cur,
		tags:   DefaultTagTable,
		frames: make([]decodeFrame, 0, MaxNestingDepth+MaxBstrWrapDepth),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Err returns the decoder's sticky error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Pos returns the current byte offset into the input.
func (d *Decoder) Pos() uint32 {
	return d.cur.Pos()
}

// Depth returns the current nesting depth (arrays/maps/bstr-wraps combined).
func (d *Decoder) Depth() int {
	return len(d.frames)
}

// AtTopLevel reports whether the decoder is not inside any container.
func (d *Decoder) AtTopLevel() bool {
	return len(d.frames) == 0
}

// Finished reports whether every byte of the (top-level) input has been
// consumed and no container remains open.
func (d *Decoder) Finished() bool {
	return d.err == nil && len(d.frames) == 0 && d.cur.atEnd()
}

func (d *Decoder) fail(err error) error {
	if d.err == nil {
		d.err = err
	}
	return d.err
}

func (d *Decoder) topFrame() *decodeFrame {
	if len(d.frames) == 0 {
		return nil
	}
	return &d.frames[len(d.frames)-1]
}

// atContainerEnd reports whether the current position is the end of the
// innermost open container (definite length exhausted, or the next byte
// is a break for an indefinite-length one).
func (d *Decoder) atContainerEnd() (bool, error) {
	f := d.topFrame()
	if f == nil {
		return false, nil
	}
	if f.kind == frameBstrWrap {
		return d.cur.atEnd(), nil
	}
	if f.count >= 0 {
		return f.index >= f.count, nil
	}
	b, ok := d.cur.peekByte()
	if !ok {
		return false, ErrUnexpectedEndOfData
	}
	return b == breakByte, nil
}

// checkSortedKey compares the map key just decoded, spanning
// [startPos, d.cur.Pos()) in the input, against the innermost map
// frame's most recently checked key, failing ErrDuplicateLabel on an
// exact repeat or ErrUnsorted if it sorts before the previous one
// (spec.md section 4.3, "map labels must be sorted").
func (d *Decoder) checkSortedKey(startPos uint32) error {
	f := d.topFrame()
	if f == nil || f.kind != frameMap {
		return nil
	}
	endPos := d.cur.Pos()
	if f.hasLastKey {
		prev := d.cur.sliceAt(f.lastKeyStart, f.lastKeyStart+f.lastKeyLen)
		cur := d.cur.sliceAt(startPos, endPos)
		switch {
		case bytesEqual(prev, cur):
			return ErrDuplicateLabel
		case bytesCompare(prev, cur) > 0:
			return ErrUnsorted
		}
	}
	f.hasLastKey = true
	f.lastKeyStart = startPos
	f.lastKeyLen = endPos - startPos
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// bytesCompare returns the sign of the bytewise total order between a and
// b, same rule as outputSink.compareRegions: a full equal prefix falls
// back to comparing lengths, so a strict prefix sorts first.
func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if d := int(a[i]) - int(b[i]); d != 0 {
			return d
		}
	}
	return len(a) - len(b)
}

// Next decodes and returns the next Item in pre-order: scalars and
// container-open markers are returned as encountered; a container's
// matching close is consumed implicitly by bounded navigation (nav.go)
// rather than surfaced as its own Item, matching spec.md section 4.3's
// "no explicit end-of-container item" design choice.
func (d *Decoder) Next() (Item, error) {
	if d.err != nil {
		return Item{}, d.err
	}

	atEnd, err := d.atContainerEnd()
	if err != nil {
		return Item{}, d.fail(err)
	}
	if atEnd {
		return Item{}, d.fail(ErrNoMoreItems)
	}
	if len(d.frames) == 0 && d.cur.atEnd() {
		return Item{}, d.fail(ErrNoMoreItems)
	}

	startPos := d.cur.Pos()
	isMapKey := false
	if f := d.topFrame(); f != nil && f.kind == frameMap && f.mapKeyNow {
		isMapKey = true
	}

	it, err := d.decodeOne()
	if err != nil {
		return Item{}, d.fail(err)
	}

	if isMapKey && d.cfg.Has(OnlySortedMaps) && it.Type != TypeArray && it.Type != TypeMap {
		if err := d.checkSortedKey(startPos); err != nil {
			return Item{}, d.fail(err)
		}
	}

	it.NestLevel = len(d.frames)
	// A container item has just pushed its own frame; its parent is
	// advanced when that container is exited (advanceParentAfterExit).
	if f := d.topFrame(); f != nil && it.Type != TypeArray && it.Type != TypeMap {
		switch f.kind {
		case frameMap:
			if f.mapKeyNow {
				f.mapKeyNow = false
			} else {
				f.mapKeyNow = true
				f.index++
			}
		default:
			f.index++
		}
	}

	nextEnd, err := d.atContainerEnd()
	if err != nil {
		return Item{}, d.fail(err)
	}
	switch {
	case it.Type == TypeArray || it.Type == TypeMap:
		it.NextNestLevel = it.NestLevel + 1
	case nextEnd:
		it.NextNestLevel = len(d.frames) - 1
	default:
		it.NextNestLevel = len(d.frames)
	}

	return it, nil
}

// decodeOne reads exactly one data item (following any tag numbers)
// without touching the nesting stack's index bookkeeping; callers
// (Next, and the skip/navigation helpers) manage that.
func (d *Decoder) decodeOne() (Item, error) {
	d.pendingTags = d.pendingTags[:0]

	for {
		b, ok := d.cur.peekByte()
		if !ok {
			return Item{}, ErrUnexpectedEndOfData
		}
		mt, _ := decodeInitialByte(b)
		if mt != MajorTypeTag {
			break
		}
		if len(d.pendingTags) >= MaxTagsPerItem {
			return Item{}, ErrTooManyTags
		}
		val, err := d.readArgument(MajorTypeTag)
		if err != nil {
			return Item{}, err
		}
		d.pendingTags = append(d.pendingTags, Tag(val))
	}

	item, err := d.decodeValue()
	if err != nil {
		return Item{}, err
	}
	if len(d.pendingTags) > 0 {
		// pendingTags was accumulated outermost-first as tag bytes were
		// read in encoding order; Item.Tags documents innermost-first,
		// so reverse it here.
		item.Tags = make([]Tag, len(d.pendingTags))
		for i, tg := range d.pendingTags {
			item.Tags[len(d.pendingTags)-1-i] = tg
		}
		if d.tags != nil {
			if err := d.tags.apply(d, &item); err != nil {
				return Item{}, err
			}
		}
		if len(item.Tags) > 0 && !d.cfg.Has(AllowUnprocessedTagNumbers) {
			return Item{}, ErrUnprocessedTagNumber
		}
	}
	return item, nil
}

func (d *Decoder) decodeValue() (Item, error) {
	b, ok := d.cur.peekByte()
	if !ok {
		return Item{}, ErrUnexpectedEndOfData
	}

	if b == breakByte {
		return Item{}, ErrUnexpectedBreak
	}

	mt, ai := decodeInitialByte(b)

	switch mt {
	case MajorTypeUnsignedInteger:
		d.cur.consumeByte()
		v, err := d.readArgumentFrom(mt, ai)
		if err != nil {
			return Item{}, err
		}
		if d.cfg.Has(OnlyPreferredNumbers) && encodedArgWidth(ai) != preferredWidth(v) {
			return Item{}, ErrNotPreferred
		}
		if v <= uint64(1<<63-1) {
			return Item{Type: TypeInt64, Int64: int64(v)}, nil
		}
		return Item{Type: TypeUint64, Uint64: v}, nil

	case MajorTypeNegativeInteger:
		d.cur.consumeByte()
		v, err := d.readArgumentFrom(mt, ai)
		if err != nil {
			return Item{}, err
		}
		if d.cfg.Has(OnlyPreferredNumbers) && encodedArgWidth(ai) != preferredWidth(v) {
			return Item{}, ErrNotPreferred
		}
		if v > uint64(1<<63-1) {
			return Item{Type: TypeNegativeBignumDirect, Uint64: v}, nil
		}
		return Item{Type: TypeInt64, Int64: -1 - int64(v)}, nil

	case MajorTypeByteString:
		return d.decodeString(mt, ai, TypeByteString)

	case MajorTypeTextString:
		return d.decodeString(mt, ai, TypeTextString)

	case MajorTypeArray:
		return d.decodeContainerOpen(mt, ai, frameArray, TypeArray)

	case MajorTypeMap:
		return d.decodeContainerOpen(mt, ai, frameMap, TypeMap)

	case MajorTypeSimpleOrFloat:
		return d.decodeSimpleOrFloat(ai)

	default:
		return Item{}, ErrInvalidMajorType
	}
}

func (d *Decoder) decodeContainerOpen(mt MajorType, ai byte, kind frameKind, dt DataType) (Item, error) {
	d.cur.consumeByte()
	if ai == byte(AdditionalInfoIndefiniteLength) {
		if d.cfg.Has(NoIndefLength) {
			return Item{}, ErrIndefiniteLengthNotAllowed
		}
		if len(d.frames) >= MaxNestingDepth+MaxBstrWrapDepth {
			return Item{}, ErrNestingDepthExceeded
		}
		d.frames = append(d.frames, decodeFrame{kind: kind, count: -1, startPos: d.cur.Pos(), mapKeyNow: true})
		return Item{Type: dt, Count: -1}, nil
	}

	n, err := d.readArgumentFrom(mt, ai)
	if err != nil {
		return Item{}, err
	}
	if n > MaxContainerCount {
		return Item{}, ErrArrayDecodeTooLong
	}
	if len(d.frames) >= MaxNestingDepth+MaxBstrWrapDepth {
		return Item{}, ErrNestingDepthExceeded
	}
	count := int(n)
	d.frames = append(d.frames, decodeFrame{kind: kind, count: count, startPos: d.cur.Pos(), mapKeyNow: true})
	return Item{Type: dt, Count: int(n)}, nil
}

func (d *Decoder) decodeString(mt MajorType, ai byte, dt DataType) (Item, error) {
	if ai == byte(AdditionalInfoIndefiniteLength) {
		return d.decodeIndefiniteString(mt, dt)
	}
	d.cur.consumeByte()
	n, err := d.readArgumentFrom(mt, ai)
	if err != nil {
		return Item{}, err
	}
	if d.cfg.Has(OnlyPreferredNumbers) && encodedArgWidth(ai) != preferredWidth(n) {
		return Item{}, ErrNotPreferred
	}
	raw := d.cur.consume(int(n))
	if raw == nil {
		return Item{}, ErrUnexpectedEndOfData
	}
	if dt == TypeTextString && !utf8.Valid(raw) {
		return Item{}, ErrInvalidUtf8
	}
	if dt == TypeTextString {
		return Item{Type: dt, Text: string(raw)}, nil
	}
	return Item{Type: dt, Bytes: raw}, nil
}

func (d *Decoder) decodeIndefiniteString(mt MajorType, dt DataType) (Item, error) {
	if d.cfg.Has(NoIndefLength) {
		return Item{}, ErrIndefiniteLengthNotAllowed
	}
	if d.alloc == nil {
		return Item{}, ErrNoStringAllocator
	}
	d.cur.consumeByte()

	var out []byte
	for {
		b, ok := d.cur.peekByte()
		if !ok {
			return Item{}, ErrUnexpectedEndOfData
		}
		if b == breakByte {
			d.cur.consumeByte()
			break
		}
		chunkMT, chunkAI := decodeInitialByte(b)
		if chunkMT != mt || chunkAI == byte(AdditionalInfoIndefiniteLength) {
			return Item{}, ErrIndefiniteStringChunk
		}
		d.cur.consumeByte()
		n, err := d.readArgumentFrom(chunkMT, chunkAI)
		if err != nil {
			return Item{}, err
		}
		chunk := d.cur.consume(int(n))
		if chunk == nil {
			return Item{}, ErrUnexpectedEndOfData
		}
		buf := d.alloc.Reallocate(out, len(out)+len(chunk))
		copy(buf[len(out):], chunk)
		out = buf
	}

	if dt == TypeTextString && !utf8.Valid(out) {
		return Item{}, ErrInvalidUtf8
	}
	item := Item{Type: dt, allocated: true}
	if dt == TypeTextString {
		item.Text = string(out)
	} else {
		item.Bytes = out
	}
	return item, nil
}

func (d *Decoder) decodeSimpleOrFloat(ai byte) (Item, error) {
	d.cur.consumeByte()
	switch ai {
	case byte(SimpleValueFalse):
		return Item{Type: TypeFalse}, nil
	case byte(SimpleValueTrue):
		return Item{Type: TypeTrue}, nil
	case byte(SimpleValueNull):
		return Item{Type: TypeNull}, nil
	case byte(SimpleValueUndefined):
		return Item{Type: TypeUndefined}, nil
	case 24:
		v, ok := d.cur.consumeByte()
		if !ok {
			return Item{}, ErrUnexpectedEndOfData
		}
		if v < 32 {
			return Item{}, ErrBadType7
		}
		return Item{Type: TypeUnknownSimple, Simple: v}, nil
	case 25:
		raw := d.cur.consume(2)
		if raw == nil {
			return Item{}, ErrUnexpectedEndOfData
		}
		bits := uint16(raw[0])<<8 | uint16(raw[1])
		return Item{Type: TypeFloat, Float32: float32(widenHalf(bits)), Float64: widenHalf(bits)}, nil
	case 26:
		raw := d.cur.consume(4)
		if raw == nil {
			return Item{}, ErrUnexpectedEndOfData
		}
		bits := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		return Item{Type: TypeFloat, Float32: float32(widenSingle(bits)), Float64: widenSingle(bits)}, nil
	case 27:
		raw := d.cur.consume(8)
		if raw == nil {
			return Item{}, ErrUnexpectedEndOfData
		}
		var bits uint64
		for _, b := range raw {
			bits = bits<<8 | uint64(b)
		}
		v := math.Float64frombits(bits)
		return Item{Type: TypeDouble, Float64: v}, nil
	default:
		if ai < 20 {
			return Item{Type: TypeUnknownSimple, Simple: ai}, nil
		}
		return Item{}, ErrInvalidSimpleValue
	}
}

// readArgument consumes the initial byte of mt itself, then reads the
// argument; used by the tag-number loop which already knows it wants a
// tag argument and hasn't peeked ai yet.
func (d *Decoder) readArgument(mt MajorType) (uint64, error) {
	b, ok := d.cur.consumeByte()
	if !ok {
		return 0, ErrUnexpectedEndOfData
	}
	_, ai := decodeInitialByte(b)
	return d.readArgumentFrom(mt, ai)
}

// readArgumentFrom reads the argument value given an already-decoded
// major type / additional-info pair, with the initial byte already
// consumed by the caller (mt is used only for documentation/symmetry
// with readArgument; the cursor has no notion of major type).
func (d *Decoder) readArgumentFrom(mt MajorType, ai byte) (uint64, error) {
	switch {
	case ai < 24:
		return uint64(ai), nil
	case ai == 24:
		v, ok := d.cur.consumeByte()
		if !ok {
			return 0, ErrUnexpectedEndOfData
		}
		return uint64(v), nil
	case ai == 25:
		raw := d.cur.consume(2)
		if raw == nil {
			return 0, ErrUnexpectedEndOfData
		}
		return uint64(raw[0])<<8 | uint64(raw[1]), nil
	case ai == 26:
		raw := d.cur.consume(4)
		if raw == nil {
			return 0, ErrUnexpectedEndOfData
		}
		var v uint64
		for _, b := range raw {
			v = v<<8 | uint64(b)
		}
		return v, nil
	case ai == 27:
		raw := d.cur.consume(8)
		if raw == nil {
			return 0, ErrUnexpectedEndOfData
		}
		var v uint64
		for _, b := range raw {
			v = v<<8 | uint64(b)
		}
		return v, nil
	default:
		return 0, ErrBadInt
	}
}
