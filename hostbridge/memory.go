package hostbridge

import (
	"github.com/tetratelabs/wazero/api"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
)

// wasmMemory is the slice of api.Memory the bridge actually touches.
type wasmMemory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	ReadUint32Le(offset uint32) (uint32, bool)
	ReadUint64Le(offset uint32) (uint64, bool)
	WriteUint32Le(offset uint32, v uint32) bool
	WriteUint64Le(offset uint32, v uint64) bool
}

// GuestMemory adapts a guest linear memory to the bridge's Memory
// interface. Reads copy: wazero hands out views into the live memory,
// which a later guest call may grow or overwrite.
type GuestMemory struct {
	mem wasmMemory
}

// NewGuestMemory wraps a guest module's linear memory.
func NewGuestMemory(mem api.Memory) *GuestMemory {
	return &GuestMemory{mem: mem}
}

func (m *GuestMemory) Read(ptr uint32, n uint32) ([]byte, error) {
	data, ok := m.mem.Read(ptr, n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseRead, ptr, n, m.mem.Size())
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

func (m *GuestMemory) Write(ptr uint32, data []byte) error {
	if !m.mem.Write(ptr, data) {
		return errors.OutOfBounds(errors.PhaseWrite, ptr, uint32(len(data)), m.mem.Size())
	}
	return nil
}

func (m *GuestMemory) ReadU32(ptr uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(ptr)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseRead, ptr, 4, m.mem.Size())
	}
	return v, nil
}

func (m *GuestMemory) ReadU64(ptr uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(ptr)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseRead, ptr, 8, m.mem.Size())
	}
	return v, nil
}

func (m *GuestMemory) WriteU32(ptr uint32, value uint32) error {
	if !m.mem.WriteUint32Le(ptr, value) {
		return errors.OutOfBounds(errors.PhaseWrite, ptr, 4, m.mem.Size())
	}
	return nil
}

func (m *GuestMemory) WriteU64(ptr uint32, value uint64) error {
	if !m.mem.WriteUint64Le(ptr, value) {
		return errors.OutOfBounds(errors.PhaseWrite, ptr, 8, m.mem.Size())
	}
	return nil
}

func (m *GuestMemory) Size() uint32 {
	return m.mem.Size()
}

var _ uniffi.Memory = (*GuestMemory)(nil)
