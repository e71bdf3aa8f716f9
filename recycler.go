package cirjson

// BufferSlot names one of the scratch buffers a BufferRecycler holds.
type BufferSlot int

const (
	// ByteReadIOBuffer holds raw input read from an io.Reader.
	ByteReadIOBuffer BufferSlot = iota
	// ByteWriteEncodingBuffer holds encoded output before it reaches the io.Writer.
	ByteWriteEncodingBuffer
	// ByteBase64CodecBuffer is scratch for base64 encoding and decoding.
	ByteBase64CodecBuffer
	// CharTokenBuffer is the first segment of a TextBuffer.
	CharTokenBuffer
	// CharConcatBuffer is generator scratch for escaping and number formatting.
	CharConcatBuffer
	// CharNameCopyBuffer accumulates property names that can't be sliced from input.
	CharNameCopyBuffer

	numBufferSlots
)

var slotMinSizes = [numBufferSlots]int{
	ByteReadIOBuffer:        8000,
	ByteWriteEncodingBuffer: 8000,
	ByteBase64CodecBuffer:   2000,
	CharTokenBuffer:         2000,
	CharConcatBuffer:        2000,
	CharNameCopyBuffer:      200,
}

var slotNames = [numBufferSlots]string{
	ByteReadIOBuffer:        "ByteReadIOBuffer",
	ByteWriteEncodingBuffer: "ByteWriteEncodingBuffer",
	ByteBase64CodecBuffer:   "ByteBase64CodecBuffer",
	CharTokenBuffer:         "CharTokenBuffer",
	CharConcatBuffer:        "CharConcatBuffer",
	CharNameCopyBuffer:      "CharNameCopyBuffer",
}

func (s BufferSlot) String() string {
	if s >= 0 && s < numBufferSlots {
		return slotNames[s]
	}
	return "UnknownSlot"
}

// BufferRecycler keeps scratch buffers across sessions. It is owned by exactly
// one parser or generator at a time and remembers the pool it came from so
// that it can be returned on close.
type BufferRecycler struct {
	buffers [numBufferSlots][]byte
	// handed out buffer per slot, nil when the slot is free
	inUse [numBufferSlots][]byte
	used  [numBufferSlots]bool

	pool RecyclerPool
}

func NewBufferRecycler() *BufferRecycler {
	return &BufferRecycler{}
}

// Allocate hands out the buffer of the slot, at least minSize long.
// Allocating a slot twice without releasing it panics.
func (r *BufferRecycler) Allocate(slot BufferSlot, minSize int) []byte {
	if r.used[slot] {
		panicIllegalState("trying to allocate %s a second time without releasing it", slot)
	}
	if minSize < slotMinSizes[slot] {
		minSize = slotMinSizes[slot]
	}

	buf := r.buffers[slot]
	r.buffers[slot] = nil
	if len(buf) < minSize {
		buf = make([]byte, minSize)
	}

	r.used[slot] = true
	r.inUse[slot] = buf

	return buf
}

// Release gives a buffer back to its slot. A buffer smaller than the one
// handed out is refused so that pooled capacity never silently shrinks.
func (r *BufferRecycler) Release(slot BufferSlot, buf []byte) {
	if buf == nil {
		return
	}
	orig := r.inUse[slot]
	if orig != nil && len(buf) < len(orig) && !sameBuffer(buf, orig) {
		panicIllegalArgument("trying to release %s buffer smaller (%d) than the original (%d)", slot, len(buf), len(orig))
	}

	r.used[slot] = false
	r.inUse[slot] = nil
	r.buffers[slot] = buf[:cap(buf)]
}

// InUse reports whether the slot is currently handed out.
func (r *BufferRecycler) InUse(slot BufferSlot) bool {
	return r.used[slot]
}

// ReleaseToPool returns the recycler to the pool it was acquired from. It is a
// no-op for recyclers that aren't bound to a pool.
func (r *BufferRecycler) ReleaseToPool() {
	if r == nil || r.pool == nil {
		return
	}
	p := r.pool
	p.Release(r)
}

func (r *BufferRecycler) bind(p RecyclerPool) *BufferRecycler {
	if r.pool != nil && r.pool != p {
		panicIllegalState("BufferRecycler already linked to another pool")
	}
	r.pool = p
	return r
}

// unbind detaches the recycler from its pool, returns false if it wasn't bound.
func (r *BufferRecycler) unbind() bool {
	if r.pool == nil {
		return false
	}
	r.pool = nil
	for slot := range r.used {
		if r.used[slot] {
			log().WithField("slot", BufferSlot(slot).String()).Debug("cirjson: recycler returned with a buffer still in use")
			r.used[slot] = false
			r.inUse[slot] = nil
		}
	}
	return true
}

func sameBuffer(a, b []byte) bool {
	return cap(a) > 0 && cap(b) > 0 && &a[:cap(a)][0] == &b[:cap(b)][0]
}
