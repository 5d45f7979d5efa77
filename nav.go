package cbor

// This file implements spec.md section 4.5's bounded navigation: entering
// and exiting arrays, maps, and byte-string-wrapped CBOR without the
// caller tracking offsets itself, plus label-based map lookup.
//
// GetByLabel's cursor behavior is asymmetric by design, not by oversight:
// a scalar result leaves the cursor exactly where it was before the call
// (the binding "cursor unchanged on a scalar read" rule), while a
// container result leaves the cursor positioned on that container's
// first element, exactly like a plain EnterMap/EnterArray call, so
// EnterMapByLabel finds that map already entered. Every call
// also scans the whole map once to rule out a duplicate label before
// returning a match.

// navFrame augments decodeFrame bookkeeping with the byte offset range
// bounded navigation needs to support Rewind.
type navMark struct {
	pos    uint32
	frames int
	top    decodeFrame
}

// Mark captures the current position so a later Rewind can restore it
// exactly. Marks are only valid while the decoder has not moved to a
// shallower nesting depth than when the mark was taken.
func (d *Decoder) Mark() navMark {
	m := navMark{pos: d.cur.Pos(), frames: len(d.frames)}
	if f := d.topFrame(); f != nil {
		m.top = *f
	}
	return m
}

// Rewind restores the decoder to a previously captured Mark, clearing
// any sticky error (spec.md section 4.5, "Rewind").
func (d *Decoder) Rewind(m navMark) error {
	if len(d.frames) < m.frames {
		return ErrInvalidState
	}
	d.frames = d.frames[:m.frames]
	if m.frames > 0 {
		d.frames[m.frames-1] = m.top
	}
	d.cur.rewindTo(m.pos)
	d.err = nil
	return nil
}

// EnterArray consumes an array-open item and descends into it; it is an
// error to call this when the next item is not an array.
func (d *Decoder) EnterArray() (count int, err error) {
	return d.enterContainer(TypeArray)
}

// EnterMap consumes a map-open item and descends into it.
func (d *Decoder) EnterMap() (count int, err error) {
	return d.enterContainer(TypeMap)
}

func (d *Decoder) enterContainer(want DataType) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	it, err := d.Next()
	if err != nil {
		return 0, err
	}
	if it.Type != want {
		return 0, d.fail(&TypeMismatchError{Expected: want, Actual: it.Type})
	}
	return it.Count, nil
}

// ExitArray consumes any remaining elements of the innermost array and
// pops its frame, matching QCBOR's "exit closes out whatever is left"
// convenience so callers don't have to drain a container by hand.
func (d *Decoder) ExitArray() error {
	return d.exitContainer(frameArray)
}

// ExitMap consumes any remaining pairs of the innermost map and pops its
// frame.
func (d *Decoder) ExitMap() error {
	return d.exitContainer(frameMap)
}

func (d *Decoder) exitContainer(kind frameKind) error {
	if d.err != nil {
		return d.err
	}
	f := d.topFrame()
	if f == nil || f.kind != kind {
		return d.fail(ErrInvalidState)
	}
	for {
		end, err := d.atContainerEnd()
		if err != nil {
			return d.fail(err)
		}
		if end {
			break
		}
		if err := d.skipValue(); err != nil {
			return err
		}
	}
	if f.count >= 0 {
		if f.index != f.count {
			return d.fail(ErrIncompleteContainer)
		}
	} else {
		b, ok := d.cur.consumeByte()
		if !ok || b != breakByte {
			return d.fail(ErrMissingBreak)
		}
	}
	d.frames = d.frames[:len(d.frames)-1]
	d.advanceParentAfterExit()
	return nil
}

// advanceParentAfterExit applies the same per-item bookkeeping Next does,
// but for the just-closed container as a whole, against whatever frame
// is now on top (if any).
func (d *Decoder) advanceParentAfterExit() {
	f := d.topFrame()
	if f == nil {
		return
	}
	if f.kind == frameMap {
		if f.mapKeyNow {
			f.mapKeyNow = false
		} else {
			f.mapKeyNow = true
			f.index++
		}
	} else {
		f.index++
	}
}

// EnterBstrWrapped consumes a byte string and treats its content as a
// nested CBOR-encoded item stream: subsequent Next/Enter/Exit calls
// operate on the wrapped bytes until ExitBstrWrapped returns to the
// outer stream. This does not require the byte string to carry tag 24 —
// any byte string can be entered this way, matching QCBOR's
// EnterBstrWrapped (the tag only changes how a bare Next call surfaces
// the item's type, not whether it can be entered).
func (d *Decoder) EnterBstrWrapped() error {
	if d.err != nil {
		return d.err
	}
	it, err := d.Next()
	if err != nil {
		return err
	}
	if it.Type != TypeByteString && it.Type != TypeWrappedCBOR && it.Type != TypeWrappedCBORSequence {
		return d.fail(&TypeMismatchError{Expected: TypeWrappedCBOR, Actual: it.Type})
	}
	wrapped := it.Bytes
	outerCur := d.cur
	outerPos := outerCur.Pos()
	inner, err := newInputCursor(wrapped)
	if err != nil {
		return d.fail(err)
	}
	d.frames = append(d.frames, decodeFrame{kind: frameBstrWrap, count: -1, startPos: outerPos})
	d.bstrStack = append(d.bstrStack, bstrSave{outer: outerCur, resumePos: outerPos})
	d.cur = inner
	return nil
}

// ExitBstrWrapped returns to the enclosing byte stream at the position
// just after the byte string that was entered.
func (d *Decoder) ExitBstrWrapped() error {
	if d.err != nil {
		return d.err
	}
	f := d.topFrame()
	if f == nil || f.kind != frameBstrWrap || len(d.bstrStack) == 0 {
		return d.fail(ErrInvalidState)
	}
	save := d.bstrStack[len(d.bstrStack)-1]
	d.bstrStack = d.bstrStack[:len(d.bstrStack)-1]
	d.frames = d.frames[:len(d.frames)-1]
	d.cur = save.outer
	return nil
}

// GetByLabel searches the currently-open map, from its current position
// to its end, for an entry whose key is a text-string label equal to
// name (it does not rewind to the start first — repeated calls scan
// forward only). It first scans the full remainder of the map to make
// sure name appears at most once, failing ErrDuplicateLabel if it finds
// a second occurrence (spec.md section 4.5, "duplicate label"). On a
// single match: if the value is a scalar, the cursor is rewound to
// exactly where it was when GetByLabel was called ("the traversal
// cursor is unchanged"); if the value is an array or map, the cursor is
// left on that container's first element, as EnterMapByLabel expects.
func (d *Decoder) GetByLabel(name string) (Item, bool, error) {
	if d.err != nil {
		return Item{}, false, d.err
	}
	f := d.topFrame()
	if f == nil || f.kind != frameMap {
		return Item{}, false, d.fail(ErrInvalidState)
	}
	start := d.Mark()

	count, err := d.countLabelOccurrences(name)
	if err != nil {
		return Item{}, false, err
	}
	if err := d.Rewind(start); err != nil {
		return Item{}, false, err
	}
	if count == 0 {
		return Item{}, false, nil
	}
	if count > 1 {
		return Item{}, false, d.fail(ErrDuplicateLabel)
	}

	for {
		end, err := d.atContainerEnd()
		if err != nil {
			return Item{}, false, d.fail(err)
		}
		if end {
			// Unreachable: countLabelOccurrences already found exactly
			// one match in this same map content.
			return Item{}, false, d.fail(ErrInvalidState)
		}
		key, err := d.Next()
		if err != nil {
			return Item{}, false, err
		}
		if key.Type != TypeTextString || key.Text != name {
			if err := d.skipValue(); err != nil {
				return Item{}, false, err
			}
			continue
		}
		val, err := d.Next()
		if err != nil {
			return Item{}, false, err
		}
		if val.Type != TypeArray && val.Type != TypeMap {
			if err := d.Rewind(start); err != nil {
				return Item{}, false, err
			}
		}
		return val, true, nil
	}
}

// countLabelOccurrences scans the remainder of the currently-open map
// counting entries whose key is the text-string label name. Callers
// take a Mark beforehand and Rewind to it afterward; this never leaves
// the cursor somewhere a caller might rely on.
func (d *Decoder) countLabelOccurrences(name string) (int, error) {
	n := 0
	for {
		end, err := d.atContainerEnd()
		if err != nil {
			return 0, d.fail(err)
		}
		if end {
			return n, nil
		}
		key, err := d.Next()
		if err != nil {
			return 0, err
		}
		if key.Type == TypeTextString && key.Text == name {
			n++
		}
		if err := d.skipValue(); err != nil {
			return 0, err
		}
	}
}

// EnterMapByLabel finds the map-valued entry with the given label and
// enters it, leaving the cursor at the nested map's first element, the
// container half of GetByLabel's cursor contract.
func (d *Decoder) EnterMapByLabel(name string) (count int, err error) {
	val, ok, err := d.GetByLabel(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, d.fail(ErrNoMoreItems)
	}
	if val.Type != TypeMap {
		return 0, d.fail(&TypeMismatchError{Expected: TypeMap, Actual: val.Type})
	}
	return val.Count, nil
}

func multiplyCount(n int) int {
	if n < 0 {
		return -1
	}
	return n * 2
}

// skipValue discards the next item, including every element of a
// container it opens.
func (d *Decoder) skipValue() error {
	it, err := d.Next()
	if err != nil {
		return err
	}
	switch it.Type {
	case TypeArray:
		return d.exitContainer(frameArray)
	case TypeMap:
		return d.exitContainer(frameMap)
	default:
		return nil
	}
}

// LabelsBatch looks up every name in names in a single forward pass over
// the currently open map, returning a parallel slice of (Item, found)
// results. This is more efficient than calling GetByLabel once per name
// when several labels are wanted from the same map, since the map is
// only scanned once (spec.md section 4.5, "batch label search").
func (d *Decoder) LabelsBatch(names []string) ([]Item, []bool, error) {
	items := make([]Item, len(names))
	found := make([]bool, len(names))
	remaining := len(names)

	f := d.topFrame()
	if f == nil || f.kind != frameMap {
		return nil, nil, d.fail(ErrInvalidState)
	}

	for remaining > 0 {
		end, err := d.atContainerEnd()
		if err != nil {
			return nil, nil, d.fail(err)
		}
		if end {
			break
		}
		key, err := d.Next()
		if err != nil {
			return nil, nil, err
		}
		matched := -1
		if key.Type == TypeTextString {
			for i, name := range names {
				if !found[i] && name == key.Text {
					matched = i
					break
				}
			}
		}
		if matched < 0 {
			if err := d.skipValue(); err != nil {
				return nil, nil, err
			}
			continue
		}
		val, err := d.Next()
		if err != nil {
			return nil, nil, err
		}
		if err := d.exitIfContainer(val); err != nil {
			return nil, nil, err
		}
		items[matched] = val
		found[matched] = true
		remaining--
	}
	return items, found, nil
}

// MoreInContainer reports whether the innermost open container (array or
// map) has at least one more element to read. It lets a caller walk a
// container generically — by label type other than text string, as the
// cose package's header maps need (integer-labeled) — instead of going
// through GetByLabel's text-string-keyed search.
func (d *Decoder) MoreInContainer() (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	end, err := d.atContainerEnd()
	if err != nil {
		return false, d.fail(err)
	}
	return !end, nil
}

// LabelCallback scans every remaining entry of the currently-open map,
// invoking fn with each text-string-keyed label and its value; fn
// returns false to stop the scan early (spec.md section 4.5, "callback
// search"). Non-text-string keys are skipped without invoking fn.
func (d *Decoder) LabelCallback(fn func(label string, value Item) (keepGoing bool, err error)) error {
	f := d.topFrame()
	if f == nil || f.kind != frameMap {
		return d.fail(ErrInvalidState)
	}
	for {
		end, err := d.atContainerEnd()
		if err != nil {
			return d.fail(err)
		}
		if end {
			return nil
		}
		key, err := d.Next()
		if err != nil {
			return err
		}
		if key.Type != TypeTextString {
			if err := d.skipValue(); err != nil {
				return err
			}
			continue
		}
		val, err := d.Next()
		if err != nil {
			return err
		}
		keepGoing, err := fn(key.Text, val)
		if err != nil {
			return d.fail(err)
		}
		if err := d.exitIfContainer(val); err != nil {
			return err
		}
		if !keepGoing {
			return nil
		}
	}
}

// exitIfContainer consumes the rest of val when it opened an array or
// map, so a label scan continues with the next key of the outer map.
func (d *Decoder) exitIfContainer(val Item) error {
	switch val.Type {
	case TypeArray:
		return d.exitContainer(frameArray)
	case TypeMap:
		return d.exitContainer(frameMap)
	}
	return nil
}
