package cbor

// inputCursor is a bounds-checked read-only view over an input byte slice,
// with a sticky error: once set, every further read is a no-op that keeps
// returning the same error. This is the leaf primitive decoder.go builds
// its traversal on top of (spec.md section 4.1, "Input cursor").
type inputCursor struct {
	data []byte
	pos  uint32
	err  error
}

func newInputCursor(data []byte) (*inputCursor, error) {
	if uint64(len(data)) > uint64(MaxInputSize) {
		return nil, ErrInputTooLarge
	}
	return &inputCursor{data: data}, nil
}

// setError records err as sticky if no error has been recorded yet.
func (c *inputCursor) setError(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the sticky error, if any.
func (c *inputCursor) Err() error {
	return c.err
}

// Pos returns the current byte offset.
func (c *inputCursor) Pos() uint32 {
	return c.pos
}

// Len returns the number of unconsumed bytes.
func (c *inputCursor) Len() int {
	return len(c.data) - int(c.pos)
}

// Remainder returns every byte from the current position to the end,
// without consuming it.
func (c *inputCursor) Remainder() []byte {
	return c.data[c.pos:]
}

// sliceAt returns the raw input bytes [start, end), for comparisons over
// already-decoded spans (e.g. the OnlySortedMaps label-ordering check).
func (c *inputCursor) sliceAt(start, end uint32) []byte {
	return c.data[start:end]
}

// peek returns the next n bytes without advancing the cursor. It sets
// ErrUnexpectedEndOfData and returns nil if fewer than n bytes remain.
func (c *inputCursor) peek(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.Len() < n {
		c.setError(ErrUnexpectedEndOfData)
		return nil
	}
	return c.data[c.pos : int(c.pos)+n]
}

// peekByte returns the next byte without advancing, or (0, false) at end
// of input or on a sticky error.
func (c *inputCursor) peekByte() (byte, bool) {
	b := c.peek(1)
	if b == nil {
		return 0, false
	}
	return b[0], true
}

// consume returns the next n bytes and advances the cursor past them.
func (c *inputCursor) consume(n int) []byte {
	b := c.peek(n)
	if b == nil {
		return nil
	}
	c.pos += uint32(n)
	return b
}

// consumeByte reads and advances past a single byte.
func (c *inputCursor) consumeByte() (byte, bool) {
	b := c.consume(1)
	if b == nil {
		return 0, false
	}
	return b[0], true
}

// skip advances the cursor by n bytes without returning them, still
// bounds-checked against the remaining input.
func (c *inputCursor) skip(n int) {
	c.consume(n)
}

// atEnd reports whether every input byte has been consumed.
func (c *inputCursor) atEnd() bool {
	return c.err == nil && c.Len() == 0
}

// compareSubstring reports whether the next len(want) bytes equal want,
// without consuming them. The decoder and the tag handlers do not call
// it.
func (c *inputCursor) compareSubstring(want []byte) bool {
	got := c.peek(len(want))
	if got == nil {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// rewindTo resets the cursor to a previously observed position, clearing
// any sticky error. Used by bounded-navigation Rewind (spec.md section 4.5).
func (c *inputCursor) rewindTo(pos uint32) {
	c.pos = pos
	c.err = nil
}
