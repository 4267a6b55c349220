// Package mempool provides a fixed-capacity pool of byte chunks used to
// accumulate HTTP/SSE body bytes off captured packets without letting a
// single slow or malicious stream grow the process's heap unboundedly: once
// the pool is exhausted, further writes to a Buffer are truncated rather
// than triggering new allocations.
package mempool

import "fmt"

// Pool is a factory of Buffers whose backing storage is drawn from a
// fixed-size set of chunks. Buffers obtained from a Pool must have Release
// called on them to return their chunks.
type Pool interface {
	NewBuffer() Buffer
}

// NewPool creates a Pool holding up to maxBytes worth of chunkBytes-sized
// chunks. maxBytes is rounded down to a whole number of chunks.
func NewPool(maxBytes, chunkBytes int64) (Pool, error) {
	if chunkBytes < 1 {
		return nil, fmt.Errorf("mempool: invalid chunkBytes %d", chunkBytes)
	}
	if maxBytes < chunkBytes {
		return nil, fmt.Errorf("mempool: invalid maxBytes %d (smaller than chunkBytes %d)", maxBytes, chunkBytes)
	}

	numChunks := maxBytes / chunkBytes
	chunks := make(chan []byte, numChunks)
	for i := int64(0); i < numChunks; i++ {
		chunks <- make([]byte, chunkBytes)
	}

	return pool{chunks: chunks, chunkBytes: int(chunkBytes)}, nil
}

type pool struct {
	chunks     chan []byte
	chunkBytes int
}

var _ Pool = (*pool)(nil)

func (p pool) NewBuffer() Buffer {
	return newBuffer(p)
}

// getChunk returns a zeroed chunk from the pool, or nil if none remain.
func (p pool) getChunk() []byte {
	select {
	case chunk := <-p.chunks:
		for i := range chunk {
			chunk[i] = 0
		}
		return chunk
	default:
		return nil
	}
}

// release returns chunks to the pool, dropping any that don't fit (which
// would only happen if more chunks were released than the pool ever handed
// out, a bug in the caller).
func (p pool) release(chunks [][]byte) {
	for _, chunk := range chunks {
		select {
		case p.chunks <- chunk:
		default:
			return
		}
	}
}
