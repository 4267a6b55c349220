package memview

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Reader reads sequentially through a MemView, implementing io.ReadSeeker
// plus a handful of fixed/length-prefixed field helpers used by binary
// protocol parsers built on top of memview.
type Reader struct {
	mv *MemView

	// rIndex, rOffset identify the next byte to read: mv.buf[rIndex][rOffset].
	rIndex  int
	rOffset int

	// gOffset is the reader's position relative to the start of mv.
	gOffset int64
}

var _ io.ReadSeeker = (*Reader)(nil)

// ReadByte reads and returns the next byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.rIndex >= len(r.mv.buf) {
		return 0, io.EOF
	}

	for i := r.rIndex; i < len(r.mv.buf); i++ {
		cur := r.mv.buf[r.rIndex]
		if r.rOffset < len(cur) {
			b := cur[r.rOffset]
			r.rOffset++
			r.gOffset++
			return b, nil
		}
		r.rIndex++
		r.rOffset = 0
	}

	return 0, io.EOF
}

// ReadByteAndSeek reads a length byte and skips over that many subsequent
// bytes, a pattern TLV-style binary formats use for variable-length fields.
func (r *Reader) ReadByteAndSeek() error {
	n, err := r.ReadByte()
	if err != nil {
		return err
	}
	_, err = r.Seek(int64(n), io.SeekCurrent)
	return err
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	buf := make([]byte, 2)
	n, err := r.Read(buf)
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, io.EOF
	}
	return binary.BigEndian.Uint16(buf), nil
}

// ReadUint16AndSeek reads a uint16 length and skips over that many
// subsequent bytes.
func (r *Reader) ReadUint16AndSeek() error {
	n, err := r.ReadUint16()
	if err != nil {
		return err
	}
	_, err = r.Seek(int64(n), io.SeekCurrent)
	return err
}

// ReadUint16AndTruncate reads a uint16 length prefix and returns a Reader
// truncated to exactly that many following bytes, advancing r past both the
// prefix and the field.
func (r *Reader) ReadUint16AndTruncate() (length uint16, field *Reader, err error) {
	length, err = r.ReadUint16()
	if err != nil {
		return 0, nil, err
	}
	field, err = r.Truncate(int64(length))
	return length, field, err
}

// ReadUint24 reads a big-endian 24-bit unsigned integer.
func (r *Reader) ReadUint24() (uint32, error) {
	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, io.EOF
	}
	return binary.BigEndian.Uint32(append([]byte{0}, buf...)), nil
}

// ReadUint24AndTruncate reads a uint24 length prefix and returns a Reader
// truncated to exactly that many following bytes, advancing r past both the
// prefix and the field.
func (r *Reader) ReadUint24AndTruncate() (length uint32, field *Reader, err error) {
	length, err = r.ReadUint24()
	if err != nil {
		return 0, nil, err
	}
	field, err = r.Truncate(int64(length))
	return length, field, err
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, io.EOF
	}
	return binary.BigEndian.Uint32(buf), nil
}

// ReadString reads exactly length bytes and returns them as a string.
func (r *Reader) ReadString(length int) (string, error) {
	buf := make([]byte, length)
	n, err := r.Read(buf)
	if err != nil {
		return "", err
	}
	if n != length {
		return "", io.EOF
	}
	return string(buf), nil
}

// ReadString_byte reads a one-byte length prefix followed by that many
// bytes of string data.
func (r *Reader) ReadString_byte() (string, error) {
	length, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	return r.ReadString(int(length))
}

// ReadString_uint16 reads a two-byte length prefix followed by that many
// bytes of string data.
func (r *Reader) ReadString_uint16() (string, error) {
	length, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	return r.ReadString(int(length))
}

// Read implements io.Reader. Matching bytes.Buffer, it reports io.EOF only
// when len(out) > 0 and there is nothing left to read.
func (r *Reader) Read(out []byte) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	if r.rIndex >= len(r.mv.buf) {
		return 0, io.EOF
	}

	read := 0
	for i := r.rIndex; i < len(r.mv.buf); i++ {
		remaining := r.mv.buf[i][r.rOffset:]
		n := copy(out[read:], remaining)
		read += n
		if n == len(remaining) {
			r.rIndex++
			r.rOffset = 0
			r.gOffset += int64(n)
		} else {
			r.rOffset += n
			r.gOffset += int64(n)
			return read, nil
		}
	}

	// A MemView may grow via Append after this point, so don't report EOF
	// for a read that made progress.
	return read, nil
}

// Seek implements io.Seeker.
func (r *Reader) Seek(offset int64, whence int) (absolute int64, err error) {
	rIndex, rOffset, gOffset := r.rIndex, r.rOffset, r.gOffset
	defer func() {
		if err != nil {
			r.rIndex, r.rOffset, r.gOffset = rIndex, rOffset, gOffset
		}
	}()

	switch whence {
	case io.SeekStart:
		r.rIndex, r.rOffset, r.gOffset = 0, 0, 0
		return r.Seek(offset, io.SeekCurrent)

	case io.SeekEnd:
		r.rIndex, r.rOffset, r.gOffset = len(r.mv.buf), 0, r.mv.length
		return r.Seek(offset, io.SeekCurrent)

	case io.SeekCurrent:
		for {
			if offset == 0 {
				return r.gOffset, nil
			}

			if r.rIndex < len(r.mv.buf) {
				newOff := int64(r.rOffset) + offset
				if 0 <= newOff && newOff < int64(len(r.mv.buf[r.rIndex])) {
					r.rOffset += int(offset)
					r.gOffset += offset
					return r.gOffset, nil
				}
			}

			if offset < 0 {
				offset += int64(r.rOffset)
				r.gOffset -= int64(r.rOffset)
				r.rIndex--
				if r.rIndex < 0 {
					return 0, errors.New("memview.Reader.Seek: negative position")
				}
				r.rOffset = len(r.mv.buf[r.rIndex])
			} else if r.rIndex < len(r.mv.buf) {
				cur := r.mv.buf[r.rIndex]
				skipped := len(cur) - r.rOffset
				offset -= int64(skipped)
				r.gOffset += int64(skipped)
				r.rIndex++
				r.rOffset = 0
			} else {
				return r.gOffset, nil
			}
		}

	default:
		return 0, errors.New("memview.Reader.Seek: invalid whence")
	}
}

// Truncate returns a Reader over the subview from the current position to
// offset bytes past it, without advancing r itself. It errors if offset is
// negative or would reach past the end of the underlying MemView.
func (r *Reader) Truncate(offset int64) (*Reader, error) {
	end := r.gOffset + offset
	if offset < 0 || end > r.mv.length {
		return nil, errors.Errorf("memview.Reader.Truncate: invalid offset %d", offset)
	}
	sub := r.mv.SubView(r.gOffset, end)
	return sub.CreateReader(), nil
}

// WriteTo implements io.WriterTo, writing out mv's segments directly
// instead of going through Read's byte-at-a-time bookkeeping.
func (r *Reader) WriteTo(dst io.Writer) (int64, error) {
	var written int64
	for _, seg := range r.mv.buf {
		n, err := dst.Write(seg)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
