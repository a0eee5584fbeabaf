package buffer

import (
	"encoding/binary"

	"github.com/name1e5s/uniffi-go/errors"
)

// Reader is the mirror cursor over a finalized Buffer: it reads the
// logical Len bytes back in the same big-endian order the Writer produced
// them. It does not own the buffer; the owner still frees it.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	br  *Bridge
	buf Buffer
	pos uint32
}

// NewReader creates a Reader over buf.
func NewReader(br *Bridge, buf Buffer) *Reader {
	return &Reader{br: br, buf: buf}
}

// Remaining returns the unread byte count.
func (r *Reader) Remaining() uint32 {
	return r.buf.Len - r.pos
}

func (r *Reader) take(n uint32) (uint32, error) {
	if uint64(r.pos)+uint64(n) > uint64(r.buf.Len) {
		return 0, errors.OutOfBounds(errors.PhaseRead, r.buf.Data+r.pos, n, r.buf.Len)
	}
	ptr := r.buf.Data + r.pos
	r.pos += n
	return ptr, nil
}

// ReadFixed reads width big-endian bytes into the low bits of a uint64.
// Width must be 1, 2, 4 or 8.
func (r *Reader) ReadFixed(width uint32) (uint64, error) {
	switch width {
	case 1, 2, 4, 8:
	default:
		panic(errors.Protocol(errors.PhaseRead, "fixed read of width %d", width))
	}

	ptr, err := r.take(width)
	if err != nil {
		return 0, err
	}
	data, err := r.br.mem.Read(ptr, width)
	if err != nil {
		return 0, escalate(err)
	}

	var scratch [8]byte
	copy(scratch[8-width:], data)
	return binary.BigEndian.Uint64(scratch[:]), nil
}

// ReadBytes reads the next n bytes verbatim.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}

	ptr, err := r.take(n)
	if err != nil {
		return nil, err
	}
	data, err := r.br.mem.Read(ptr, n)
	if err != nil {
		return nil, escalate(err)
	}
	return data, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	v, err := r.ReadFixed(1)
	return uint8(v), err
}

func (r *Reader) ReadU16() (uint16, error) {
	v, err := r.ReadFixed(2)
	return uint16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.ReadFixed(4)
	return uint32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	return r.ReadFixed(8)
}
