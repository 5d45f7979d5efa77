package cbor

// StringAllocator lets a caller supply the memory backing indefinite-length
// byte/text strings, instead of the decoder heap-allocating a fresh copy
// per chunk concatenation (spec.md section 4.8, "Ownership of strings").
//
// Decoding a definite-length string never calls the allocator: it is
// returned as a direct slice into the input. Only indefinite-length
// strings, which must be concatenated chunk by chunk, go through it.
type StringAllocator interface {
	// Allocate returns a buffer of at least size bytes that the decoder
	// may write into and hand back to the caller as an Item's
	// Bytes/Text field.
	Allocate(size int) []byte

	// Reallocate grows a buffer previously returned by Allocate or
	// Reallocate to at least newSize bytes, preserving its prefix. It is
	// only ever called with the most recently allocated buffer — the
	// decoder concatenates one indefinite-length string's chunks before
	// moving on to anything else that might also need memory.
	Reallocate(oldBuf []byte, newSize int) []byte

	// Free releases a buffer the caller is done with. The decoder does
	// not call it itself.
	Free(buf []byte)

	// Destruct releases every resource the allocator holds. The decoder
	// does not call it itself.
	Destruct()
}

// poolAllocator is a simple bump allocator over a fixed-capacity slice
// pool: it hands out successive slices from a shared backing array and
// only actually reclaims space when the most recent allocation is freed
// or reallocated, matching the "free/realloc only the most recent
// allocation" contract QCBOR's allocator documents.
//
// Known limitation, deliberately left as specified rather than fixed
// (see DESIGN.md Open Questions): GetByLabel / EnterMapByLabel skip past
// non-matching map values by decoding them, which means an indefinite-
// length string value that isn't the one being searched for still gets
// fully concatenated and allocated before being discarded. A caller
// doing many label searches over a map containing large indefinite-length
// strings will see more allocator churn than the final returned Item
// count would suggest.
type poolAllocator struct {
	pool []byte
	used int
}

// NewPoolAllocator returns a StringAllocator backed by a single
// preallocated buffer of the given capacity.
func NewPoolAllocator(capacity int) StringAllocator {
	return &poolAllocator{pool: make([]byte, capacity)}
}

func (p *poolAllocator) Allocate(size int) []byte {
	if p.used+size > len(p.pool) {
		return make([]byte, size)
	}
	buf := p.pool[p.used : p.used+size : p.used+size]
	p.used += size
	return buf
}

func (p *poolAllocator) Reallocate(oldBuf []byte, newSize int) []byte {
	// Only reclaim in place when oldBuf is exactly the most recent
	// allocation from the pool; anything else (already spilled to the
	// heap, or not the most recent) falls back to a fresh copy.
	oldLen := len(oldBuf)
	if oldLen == 0 || len(p.pool) == 0 {
		fresh := make([]byte, newSize)
		copy(fresh, oldBuf)
		return fresh
	}
	tail := p.used - oldLen
	if tail < 0 || tail+oldLen > len(p.pool) || &p.pool[tail] != &oldBuf[0] {
		fresh := make([]byte, newSize)
		copy(fresh, oldBuf)
		return fresh
	}
	if tail+newSize > len(p.pool) {
		fresh := make([]byte, newSize)
		copy(fresh, oldBuf)
		p.used = tail
		return fresh
	}
	p.used = tail + newSize
	return p.pool[tail : tail+newSize : tail+newSize]
}

func (p *poolAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	tail := p.used - len(buf)
	if tail >= 0 && tail+len(buf) <= len(p.pool) && &p.pool[tail] == &buf[0] {
		p.used = tail
	}
}

func (p *poolAllocator) Destruct() {
	p.pool = nil
	p.used = 0
}
