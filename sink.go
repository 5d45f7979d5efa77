package cbor

// outputSink is the encoder's mutable output buffer. It supports plain
// appends plus the "open a container before you know its length, patch the
// header in later" pattern encoder.go needs for streaming nested
// maps/arrays and bstr-wrapping (spec.md section 4.2, 4.7, and the
// "cyclic references and back-patching" design note in section 9).
//
// magic guards against use of a zero-value outputSink: Err, append,
// insertAt, swap and finish check it and report ErrBadState if the sink
// was never initialized via newOutputSink; Len, Bytes and compareRegions
// do not check it.
type outputSink struct {
	buf       []byte
	magic     uint32
	err       error
	streaming bool
	flush     func([]byte) error
}

const sinkMagic uint32 = 0x51434252 // "QCBR"

func newOutputSink(capacityHint int) *outputSink {
	return &outputSink{
		buf:   make([]byte, 0, capacityHint),
		magic: sinkMagic,
	}
}

// newStreamingSink builds a sink that hands its output to flush. flush
// is called once, from finish, with the whole buffer; until then every
// byte stays in buf, so back-patching can reach any offset.
func newStreamingSink(capacityHint int, flush func([]byte) error) *outputSink {
	s := newOutputSink(capacityHint)
	s.streaming = true
	s.flush = flush
	return s
}

func (s *outputSink) setError(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *outputSink) Err() error {
	if s.magic != sinkMagic {
		return ErrBadState
	}
	return s.err
}

// Len returns the number of bytes written so far, all of which are held
// in buf (a streaming sink flushes only in finish).
func (s *outputSink) Len() int {
	return len(s.buf)
}

// Bytes returns the accumulated output. A streaming sink flushes only in
// finish and keeps its buffer afterwards, so this is always the full
// output written so far.
func (s *outputSink) Bytes() []byte {
	return s.buf
}

// append adds p to the end of the buffer.
func (s *outputSink) append(p []byte) {
	if s.magic != sinkMagic {
		s.setError(ErrBadState)
		return
	}
	if s.err != nil {
		return
	}
	s.buf = append(s.buf, p...)
}

func (s *outputSink) appendByte(b byte) {
	s.append([]byte{b})
}

// insertAt splices p into the buffer at offset, shifting the tail right.
// offset must be within [0, len(buf)]; anything else is ErrInsertPoint.
func (s *outputSink) insertAt(offset int, p []byte) {
	if s.magic != sinkMagic {
		s.setError(ErrBadState)
		return
	}
	if s.err != nil {
		return
	}
	if offset < 0 || offset > len(s.buf) {
		s.setError(ErrInsertPoint)
		return
	}
	s.buf = append(s.buf, make([]byte, len(p))...)
	copy(s.buf[offset+len(p):], s.buf[offset:len(s.buf)-len(p)])
	copy(s.buf[offset:offset+len(p)], p)
}

// swap exchanges the byte ranges [a, a+alen) and [a+alen, a+alen+blen)
// in place using the classic "reverse, reverse, reverse" rotation, so a
// header written as a placeholder at the open of a container can be
// replaced by a differently-sized real header once the length is known:
// the real header is appended after the content, then swapped into place
// ahead of it.
func (s *outputSink) swap(a, alen, blen int) {
	if s.magic != sinkMagic {
		s.setError(ErrBadState)
		return
	}
	if s.err != nil {
		return
	}
	end := a + alen + blen
	if a < 0 || alen < 0 || blen < 0 || end > len(s.buf) {
		s.setError(ErrInsertPoint)
		return
	}
	reverse(s.buf[a : a+alen])
	reverse(s.buf[a+alen : end])
	reverse(s.buf[a:end])
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// compareRegions returns the sign of the bytewise total order between
// buf[a:a+l1] and buf[b:b+l2]: negative if the first region sorts before
// the second, positive if after, zero if they're identical. The two
// regions may have different lengths; a region that is a strict prefix
// of the other sorts first (the "shorter is smaller only after a full
// equal prefix" rule spec.md section 4.2 requires for map-key and
// Core Deterministic Encoding ordering). Used by the deterministic-
// encoding map-key sort to compare already-written serialized keys
// without re-allocating them.
func (s *outputSink) compareRegions(a, l1, b, l2 int) int {
	if a < 0 || b < 0 || l1 < 0 || l2 < 0 || a+l1 > len(s.buf) || b+l2 > len(s.buf) {
		s.setError(ErrInsertPoint)
		return 0
	}
	n := l1
	if l2 < n {
		n = l2
	}
	for i := 0; i < n; i++ {
		if d := int(s.buf[a+i]) - int(s.buf[b+i]); d != 0 {
			return d
		}
	}
	return l1 - l2
}

// finish returns the completed output. For a streaming sink it flushes
// any remaining buffered bytes first; flush failures surface as
// ErrFlushWrite.
func (s *outputSink) finish() ([]byte, error) {
	if s.magic != sinkMagic {
		return nil, ErrBadState
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.streaming {
		if err := s.flush(s.buf); err != nil {
			s.setError(ErrFlushWrite)
			return nil, ErrFlushWrite
		}
	}
	return s.buf, nil
}
