package mempool

import (
	"errors"

	"github.com/mcpwatch/mcpwatch/internal/memview"
)

// CheckInvariants controls whether representation invariants are checked in
// buffer.repOk. When enabled, a panic occurs when an invariant is found to
// be violated. It is off by default to avoid paying for the checks on every
// write.
var CheckInvariants = false

// Buffer is a variable-sized, append-only accumulator whose backing storage
// is drawn from a fixed-size Pool. Bodies arrive from the packet parser as a
// sequence of Write calls (one per TCP segment's worth of payload) and are
// read back once, in full, when the message completes; Buffer never needs
// to support random access or truncation, unlike bytes.Buffer.
//
// Callers must return the backing storage by calling Release once the
// buffer's contents have been consumed.
type Buffer interface {
	// Bytes returns a MemView of length Len() holding everything written so
	// far. The MemView aliases the buffer's storage, so it is only valid
	// until the next call to Write, Reset, or Release.
	Bytes() memview.MemView

	// Len reports the number of bytes written so far; Len() == Bytes().Len().
	Len() int

	// Reset empties the buffer. An alias for Release.
	Reset()

	// Release empties the buffer and returns its chunks to the pool they
	// came from.
	Release()

	// Write appends p to the buffer, drawing additional chunks from the pool
	// as needed. It returns the number of bytes actually written and
	// ErrPoolExhausted if the pool ran out of chunks partway through; the
	// write is truncated rather than buffered beyond the pool's capacity.
	Write(p []byte) (n int, err error)
}

// ErrPoolExhausted is returned by Buffer.Write when the pool backing it has
// no more chunks to hand out.
var ErrPoolExhausted = errors.New("mempool: pool exhausted")

type buffer struct {
	pool pool

	// Bytes are stored in chunks[0][readOffset:] ... chunks[last][:writeOffset],
	// one pool-sized chunk at a time.
	//
	// Invariants, checked by repOk when CheckInvariants is set:
	//   - chunks is nil/empty exactly when the buffer holds nothing.
	//   - every chunk has length and capacity pool.chunkBytes.
	chunks      [][]byte
	readOffset  int
	writeOffset int
}

func newBuffer(p pool) Buffer {
	return &buffer{pool: p}
}

var _ Buffer = (*buffer)(nil)

// repOk panics if a representation invariant is broken. A no-op unless
// CheckInvariants is set.
func (b *buffer) repOk() {
	if !CheckInvariants {
		return
	}

	assert := func(ok bool, msg string) {
		if !ok {
			panic("mempool: broken invariant: " + msg)
		}
	}

	for _, chunk := range b.chunks {
		assert(len(chunk) == b.pool.chunkBytes, "chunk length mismatch")
		assert(cap(chunk) == b.pool.chunkBytes, "chunk capacity mismatch")
	}
	if len(b.chunks) == 0 {
		assert(b.readOffset == 0, "readOffset set on an empty buffer")
	}
	if len(b.chunks) > 0 {
		assert(b.readOffset < b.pool.chunkBytes, "readOffset past chunk end")
		assert(b.writeOffset > 0, "writeOffset not advanced on a non-empty buffer")
	}
	if len(b.chunks) == 1 {
		assert(b.readOffset < b.writeOffset, "readOffset past writeOffset in single chunk")
	}
}

func (b *buffer) Bytes() memview.MemView {
	var result memview.MemView
	last := len(b.chunks) - 1
	for i, chunk := range b.chunks {
		switch {
		case len(b.chunks) == 1:
			result.Append(memview.New(chunk[b.readOffset:b.writeOffset]))
		case i == 0:
			result.Append(memview.New(chunk[b.readOffset:]))
		case i == last:
			result.Append(memview.New(chunk[:b.writeOffset]))
		default:
			result.Append(memview.New(chunk))
		}
	}
	return result
}

func (b *buffer) Len() int {
	n := len(b.chunks)
	if n == 0 {
		return 0
	}
	allocated := b.pool.chunkBytes * n
	unread := b.readOffset
	unwritten := b.pool.chunkBytes - b.writeOffset
	return allocated - unread - unwritten
}

func (b *buffer) Reset() { b.Release() }

func (b *buffer) Release() {
	if b == nil {
		return
	}
	b.repOk()
	b.pool.release(b.chunks)
	b.chunks = nil
	b.readOffset = 0
	b.repOk()
}

// grow ensures room for up to n more bytes, drawing chunks from the pool as
// needed. It returns where the next write should land and how much space is
// actually available, which may be less than n if the pool ran dry. The
// buffer is left in an inconsistent state (writeOffset is not updated);
// callers must fix that up themselves.
func (b *buffer) grow(n int) (chunkIdx, offset, available int) {
	if len(b.chunks) > 0 {
		chunkIdx = len(b.chunks) - 1
		offset = b.writeOffset
		available = b.pool.chunkBytes - b.writeOffset
	}

	needed := n - available
	if needed <= 0 {
		return chunkIdx, offset, available
	}

	chunksNeeded := (needed + b.pool.chunkBytes - 1) / b.pool.chunkBytes
	obtained := 0
	for ; obtained < chunksNeeded; obtained++ {
		chunk := b.pool.getChunk()
		if chunk == nil {
			break
		}
		b.chunks = append(b.chunks, chunk)
	}

	if offset == b.pool.chunkBytes {
		chunkIdx++
		offset = 0
	}
	available += obtained * b.pool.chunkBytes
	return chunkIdx, offset, available
}

func (b *buffer) Write(p []byte) (n int, err error) {
	defer b.repOk()

	if len(p) == 0 {
		return 0, nil
	}

	chunkIdx, offset, available := b.grow(len(p))
	if available < len(p) {
		err = ErrPoolExhausted
	}
	if available == 0 {
		return 0, err
	}

	written := 0
	for {
		copied := copy(b.chunks[chunkIdx][offset:], p[written:])
		written += copied
		chunkIdx++

		if chunkIdx == len(b.chunks) {
			b.writeOffset = offset + copied
			return written, err
		}
		offset = 0
	}
}
