package buffer

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/name1e5s/uniffi-go/errors"
)

// Writer is a cursor-based serializer over an owned Buffer. It grows the
// buffer lazily through the bridge, one reserve per write that does not
// fit, and commits the cursor as the buffer's length on Finalize. All
// multi-byte values are written big-endian.
//
// A Writer is not safe for concurrent use. After Finalize or Discard it is
// empty and may be reused.
type Writer struct {
	br      *Bridge
	buf     Buffer
	pos     uint32
	scratch [8]byte
}

// NewWriter creates a Writer holding a fresh initial buffer.
func NewWriter(br *Bridge) (*Writer, error) {
	buf, err := br.allocate(minCapacity)
	if err != nil {
		return nil, err
	}
	return &Writer{br: br, buf: buf}, nil
}

// Pos returns the cursor, which is the length Finalize will commit.
func (w *Writer) Pos() uint32 {
	return w.pos
}

// Cap returns the current capacity of the underlying buffer.
func (w *Writer) Cap() uint32 {
	return w.buf.Cap
}

// ensure makes room for n more bytes. On failure the Writer's buffer is
// unchanged and still owned.
func (w *Writer) ensure(n uint32) error {
	if uint64(w.pos)+uint64(n) <= uint64(w.buf.Cap) {
		return nil
	}

	w.buf.Len = w.pos
	grown, err := w.br.reserve(w.buf, n)
	if err != nil {
		return err
	}
	w.buf = grown
	return nil
}

// WriteFixed writes the low width bytes of value in big-endian order.
// Width must be 1, 2, 4 or 8; anything else is a defect in the generated
// caller, not an input error.
func (w *Writer) WriteFixed(width uint32, value uint64) error {
	switch width {
	case 1, 2, 4, 8:
	default:
		panic(errors.Protocol(errors.PhaseWrite, "fixed write of width %d", width))
	}

	if err := w.ensure(width); err != nil {
		return err
	}

	binary.BigEndian.PutUint64(w.scratch[:], value)
	if err := w.br.mem.Write(w.buf.Data+w.pos, w.scratch[8-width:]); err != nil {
		return escalate(err)
	}
	w.pos += width
	return nil
}

// WriteBytes writes p verbatim.
func (w *Writer) WriteBytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	if err := w.ensure(uint32(len(p))); err != nil {
		return err
	}
	if err := w.br.mem.Write(w.buf.Data+w.pos, p); err != nil {
		return escalate(err)
	}
	w.pos += uint32(len(p))
	return nil
}

func (w *Writer) WriteU8(v uint8) error   { return w.WriteFixed(1, uint64(v)) }
func (w *Writer) WriteU16(v uint16) error { return w.WriteFixed(2, uint64(v)) }
func (w *Writer) WriteU32(v uint32) error { return w.WriteFixed(4, uint64(v)) }
func (w *Writer) WriteU64(v uint64) error { return w.WriteFixed(8, v) }

// Finalize commits the cursor as the buffer's length, hands the buffer to
// the caller, and resets the Writer to empty. Finalizing an empty Writer
// returns the unowned-empty Buffer, so a handle can never escape twice.
func (w *Writer) Finalize() Buffer {
	buf := w.buf
	buf.Len = w.pos
	w.buf = Buffer{}
	w.pos = 0
	return buf
}

// Discard finalizes and immediately frees, for abandoning a partially
// built buffer on an error path without leaking it.
func (w *Writer) Discard() {
	buf := w.Finalize()
	if err := w.br.free(buf); err != nil {
		Logger().Warn("discard failed to free buffer", zap.Error(err))
	}
}

// Reset rewinds the cursor while keeping the buffer and its capacity, for
// pooled reuse.
func (w *Writer) Reset() {
	w.pos = 0
}
