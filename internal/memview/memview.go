// Package memview gives the packet reassembler a zero-copy view over the
// byte slices gopacket/reassembly hands it. An HTTP request line, a header
// block, or an SSE event commonly straddles more than one TCP segment;
// rather than concatenating segments into a fresh []byte on every Feed
// call, the parser keeps appending segments to a MemView and only
// materializes a real []byte (via String) for the handful of bytes it
// actually needs to hand off as a parsed value.
package memview

import (
	"bytes"
	"encoding/binary"
	"io"
)

// MemView is a view over a sequence of byte slices, presented as though it
// were one contiguous slice. Appending to a MemView never copies the
// appended data; it only records a pointer to it, so callers must keep the
// underlying slices alive and unmodified for as long as the MemView (or any
// view derived from it) is in use.
//
// A MemView is copied by value like a Go slice: the copy shares storage
// with the original, so mutating one through Append affects both. DeepCopy
// breaks that sharing when independence is required.
//
// The zero value is an empty, ready-to-use MemView.
type MemView struct {
	buf    [][]byte
	length int64
}

// New wraps data in a MemView without copying it. The caller must not
// modify data for as long as the returned MemView (or anything derived from
// it) remains in use.
func New(data []byte) MemView {
	return MemView{buf: [][]byte{data}, length: int64(len(data))}
}

// Empty returns a MemView with no data.
func Empty() MemView {
	return MemView{buf: [][]byte{}}
}

// Append records src's segments onto dst without copying their contents.
func (dst *MemView) Append(src MemView) {
	dst.buf = append(dst.buf, src.buf...)
	dst.length += src.length
}

// DeepCopy returns a MemView with its own copy of mv's segment list:
// appends to either afterward do not affect the other. The segments' bytes
// are not copied and stay shared with mv.
func (mv MemView) DeepCopy() MemView {
	segments := make([][]byte, len(mv.buf))
	copy(segments, mv.buf)
	return MemView{buf: segments, length: mv.length}
}

// CreateReader returns a Reader over mv starting at offset 0. The Reader
// observes subsequent Appends to mv.
func (mv *MemView) CreateReader() *Reader {
	return &Reader{mv: mv}
}

// Clear empties mv without releasing the backing array for its segment
// list.
func (mv *MemView) Clear() {
	mv.buf = mv.buf[:0]
	mv.length = 0
}

// Len returns the number of bytes in mv.
func (mv MemView) Len() int64 {
	return mv.length
}

// GetByte returns the byte at index, or 0 if index is out of bounds.
func (mv MemView) GetByte(index int64) byte {
	if index < 0 {
		return 0
	}

	remaining := index
	for _, segment := range mv.buf {
		segLen := int64(len(segment))
		if remaining < segLen {
			return segment[remaining]
		}
		remaining -= segLen
	}
	return 0
}

// getBytes copies mv[start:end] into a new slice. It returns nil if the
// range is invalid (start negative, start > end, or end past mv.Len()).
func (mv MemView) getBytes(start, end int64) []byte {
	if !(0 <= start && start <= end && end <= mv.Len()) {
		return nil
	}

	out := make([]byte, end-start)
	written := int64(0)

	for _, segment := range mv.buf {
		if start >= end {
			break
		}

		segLen := int64(len(segment))
		if start >= segLen {
			start -= segLen
			end -= segLen
			continue
		}

		copyEnd := segLen
		if end < copyEnd {
			copyEnd = end
		}
		n := copy(out[written:], segment[start:copyEnd])
		written += int64(n)

		end -= segLen
		start = 0
	}

	return out
}

// GetUint16 reads mv[offset:offset+2] as a big-endian uint16, returning 0
// if that range is out of bounds.
func (mv MemView) GetUint16(offset int64) uint16 {
	b := mv.getBytes(offset, offset+2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// GetUint24 reads mv[offset:offset+3] as a big-endian 24-bit unsigned
// integer, returning 0 if that range is out of bounds.
func (mv MemView) GetUint24(offset int64) uint32 {
	b := mv.getBytes(offset, offset+3)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(append([]byte{0}, b...))
}

// GetUint32 reads mv[offset:offset+4] as a big-endian uint32, returning 0
// if that range is out of bounds.
func (mv MemView) GetUint32(offset int64) uint32 {
	b := mv.getBytes(offset, offset+4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// SubView returns mv[start:end) as a new MemView sharing storage with mv.
// An invalid range (start >= end, or either bound out of mv) yields an
// empty MemView.
func (mv MemView) SubView(start, end int64) MemView {
	if start >= end {
		return MemView{}
	}

	startSeg, endSeg := -1, -1
	var startOff, endOff int

	var pos int64
	for i, seg := range mv.buf {
		segLen := int64(len(seg))
		if startSeg == -1 && pos+segLen > start {
			startSeg = i
			startOff = int(start - pos)
		}
		if endSeg == -1 && pos+segLen >= end {
			endSeg = i
			endOff = int(end - pos)
			break
		}
		pos += segLen
	}

	if startSeg == -1 || endSeg == -1 {
		return MemView{}
	}

	segments := make([][]byte, endSeg+1-startSeg)
	copy(segments, mv.buf[startSeg:endSeg+1])
	result := MemView{buf: segments, length: end - start}

	if len(result.buf) == 1 {
		result.buf[0] = result.buf[0][startOff:endOff]
	} else {
		result.buf[0] = result.buf[0][startOff:]
		result.buf[len(result.buf)-1] = result.buf[len(result.buf)-1][:endOff]
	}
	return result
}

// Index returns the offset of the first occurrence of sep in mv at or after
// start, or -1 if sep does not occur.
//
// The search needle is assumed to have no repeated prefix (true of every
// token this parser searches for: HTTP methods, "HTTP/1.0"/"HTTP/1.1", and
// newlines) — a partial match at a segment boundary is never backed up to
// retry from a later starting point within the same needle.
func (mv MemView) Index(start int64, sep []byte) int64 {
	startSeg := -1
	startOff := 0
	var pos int64
	for i, seg := range mv.buf {
		segLen := int64(len(seg))
		if pos+segLen-1 < start {
			pos += segLen
			continue
		}
		startSeg = i
		startOff = int(start - pos)
		pos += int64(startOff)
		break
	}

	if startSeg == -1 {
		return -1
	} else if len(sep) == 0 {
		return start
	}

	needle := sep
	needleAt := 0
	for seg := startSeg; seg < len(mv.buf); seg++ {
		hay := mv.buf[seg]

		i := 0
		for i = startOff; i < len(hay) && needleAt > 0; i++ {
			if hay[i] == needle[needleAt] {
				needleAt++
				if needleAt == len(needle) {
					return pos + int64(i-startOff) - int64(len(needle)-1)
				}
			} else {
				needleAt = 0
				break
			}
		}

		if i < len(hay) {
			if found := bytes.Index(hay[i:], needle); found != -1 {
				return pos + int64(i-startOff) + int64(found)
			}

			tailStart := len(hay) - len(needle) + 1
			if i < tailStart {
				i = tailStart
			}
			for ; i < len(hay); i++ {
				if hay[i] == needle[needleAt] {
					needleAt++
				} else {
					needleAt = 0
					if hay[i] == needle[0] {
						needleAt = 1
					}
				}
			}
		}

		pos += int64(len(hay) - startOff)
		startOff = 0
	}

	return -1
}

// String copies every byte referenced by mv into a new string.
func (mv MemView) String() string {
	var buf bytes.Buffer
	io.Copy(&buf, mv.CreateReader())
	return buf.String()
}

// Equal reports whether left and right reference identical byte sequences,
// independent of how each is segmented internally.
func (left MemView) Equal(right MemView) bool {
	if left.length != right.length {
		return false
	}

	li, lo, ri, ro := 0, 0, 0, 0
	for n := int64(0); n < left.length; n++ {
		for lo >= len(left.buf[li]) {
			li++
			lo = 0
		}
		for ro >= len(right.buf[ri]) {
			ri++
			ro = 0
		}
		if left.buf[li][lo] != right.buf[ri][ro] {
			return false
		}
		lo++
		ro++
	}

	return true
}
