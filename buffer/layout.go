package buffer

import (
	"encoding/binary"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
)

// Layout describes how Buffer and View headers are packed into memory on
// one side of the boundary. The only variable is the width of the data
// handle field; every other field has a fixed size and order:
//
//	Buffer: cap u32, len u32, data word, pad u64
//	View:   len u32, data word, pad u64, pad u32
//	Status: code u8, 7 reserved bytes, error Buffer header
//
// Header fields are little-endian. Padding is written as zero and ignored
// on read. This is distinct from buffer contents, which are big-endian.
type Layout struct {
	Word uint32
}

var (
	// LayoutHost packs headers with 8-byte data handles.
	LayoutHost = Layout{Word: 8}

	// LayoutWasm32 packs headers with 4-byte data handles, the shape wasm32
	// guests see.
	LayoutWasm32 = Layout{Word: 4}
)

// BufferSize is the packed size of a Buffer header.
func (l Layout) BufferSize() uint32 {
	return 4 + 4 + l.Word + 8
}

// ViewSize is the packed size of a View header.
func (l Layout) ViewSize() uint32 {
	return 4 + l.Word + 8 + 4
}

// StatusSize is the packed size of a Status block.
func (l Layout) StatusSize() uint32 {
	return 8 + l.BufferSize()
}

// PutBuffer packs buf into p.
func (l Layout) PutBuffer(p []byte, buf Buffer) error {
	if uint32(len(p)) < l.BufferSize() {
		return errors.OutOfBounds(errors.PhaseWrite, 0, l.BufferSize(), uint32(len(p)))
	}

	binary.LittleEndian.PutUint32(p[0:], buf.Cap)
	binary.LittleEndian.PutUint32(p[4:], buf.Len)
	if err := l.putWord(p[8:], buf.Data); err != nil {
		return err
	}
	zero(p[8+l.Word : 8+l.Word+8])
	return nil
}

// GetBuffer unpacks a Buffer header from p. A header whose invariants do
// not hold is a protocol violation.
func (l Layout) GetBuffer(p []byte) (Buffer, error) {
	if uint32(len(p)) < l.BufferSize() {
		return Buffer{}, errors.OutOfBounds(errors.PhaseRead, 0, l.BufferSize(), uint32(len(p)))
	}

	buf := Buffer{
		Cap: binary.LittleEndian.Uint32(p[0:]),
		Len: binary.LittleEndian.Uint32(p[4:]),
	}
	data, err := l.getWord(p[8:])
	if err != nil {
		return Buffer{}, err
	}
	buf.Data = data

	if !buf.wellFormed() {
		return Buffer{}, errors.Protocol(errors.PhaseRead,
			"malformed buffer header: cap=%d len=%d data=%d", buf.Cap, buf.Len, buf.Data)
	}
	return buf, nil
}

// PutView packs a borrowed (length, data) pair into p.
func (l Layout) PutView(p []byte, length, data uint32) error {
	if uint32(len(p)) < l.ViewSize() {
		return errors.OutOfBounds(errors.PhaseWrite, 0, l.ViewSize(), uint32(len(p)))
	}

	binary.LittleEndian.PutUint32(p[0:], length)
	if err := l.putWord(p[4:], data); err != nil {
		return err
	}
	zero(p[4+l.Word : 4+l.Word+12])
	return nil
}

// GetView unpacks a borrowed (length, data) pair from p.
func (l Layout) GetView(p []byte) (length, data uint32, err error) {
	if uint32(len(p)) < l.ViewSize() {
		return 0, 0, errors.OutOfBounds(errors.PhaseRead, 0, l.ViewSize(), uint32(len(p)))
	}

	length = binary.LittleEndian.Uint32(p[0:])
	data, err = l.getWord(p[4:])
	if err != nil {
		return 0, 0, err
	}
	if length > 0 && data == 0 {
		return 0, 0, errors.Protocol(errors.PhaseRead,
			"malformed view header: len=%d with null data", length)
	}
	return length, data, nil
}

// PutStatus packs a Status block into p.
func (l Layout) PutStatus(p []byte, st Status) error {
	if uint32(len(p)) < l.StatusSize() {
		return errors.OutOfBounds(errors.PhaseWrite, 0, l.StatusSize(), uint32(len(p)))
	}

	p[0] = byte(st.Code)
	zero(p[1:8])
	return l.PutBuffer(p[8:], st.ErrBuf)
}

// GetStatus unpacks a Status block from p. A code outside the envelope's
// range is a protocol violation.
func (l Layout) GetStatus(p []byte) (Status, error) {
	if uint32(len(p)) < l.StatusSize() {
		return Status{}, errors.OutOfBounds(errors.PhaseRead, 0, l.StatusSize(), uint32(len(p)))
	}

	code := Code(p[0])
	if code != CodeSuccess && code != CodeError && code != CodePanic {
		return Status{}, errors.Protocol(errors.PhaseRead, "unknown status code %d", code)
	}
	errBuf, err := l.GetBuffer(p[8:])
	if err != nil {
		return Status{}, err
	}
	return Status{Code: code, ErrBuf: errBuf}, nil
}

// WriteBuffer packs buf into mem at ptr.
func (l Layout) WriteBuffer(mem uniffi.Memory, ptr uint32, buf Buffer) error {
	p := make([]byte, l.BufferSize())
	if err := l.PutBuffer(p, buf); err != nil {
		return err
	}
	return mem.Write(ptr, p)
}

// ReadBuffer unpacks a Buffer header from mem at ptr.
func (l Layout) ReadBuffer(mem uniffi.Memory, ptr uint32) (Buffer, error) {
	p, err := mem.Read(ptr, l.BufferSize())
	if err != nil {
		return Buffer{}, err
	}
	return l.GetBuffer(p)
}

// WriteStatus packs st into mem at ptr.
func (l Layout) WriteStatus(mem uniffi.Memory, ptr uint32, st Status) error {
	p := make([]byte, l.StatusSize())
	if err := l.PutStatus(p, st); err != nil {
		return err
	}
	return mem.Write(ptr, p)
}

// ReadStatus unpacks a Status block from mem at ptr.
func (l Layout) ReadStatus(mem uniffi.Memory, ptr uint32) (Status, error) {
	p, err := mem.Read(ptr, l.StatusSize())
	if err != nil {
		return Status{}, err
	}
	return l.GetStatus(p)
}

func (l Layout) putWord(p []byte, v uint32) error {
	switch l.Word {
	case 4:
		binary.LittleEndian.PutUint32(p, v)
	case 8:
		binary.LittleEndian.PutUint64(p, uint64(v))
	default:
		return errors.Protocol(errors.PhaseWrite, "unsupported word size %d", l.Word)
	}
	return nil
}

func (l Layout) getWord(p []byte) (uint32, error) {
	switch l.Word {
	case 4:
		return binary.LittleEndian.Uint32(p), nil
	case 8:
		v := binary.LittleEndian.Uint64(p)
		if v > 0xFFFFFFFF {
			return 0, errors.Protocol(errors.PhaseRead, "data handle %d exceeds 32-bit range", v)
		}
		return uint32(v), nil
	default:
		return 0, errors.Protocol(errors.PhaseRead, "unsupported word size %d", l.Word)
	}
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
