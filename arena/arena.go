package arena

import (
	"encoding/binary"
	"sort"
	"sync"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
)

const (
	// base keeps address 0 (and a small guard band) out of circulation so
	// a zero pointer always means "no allocation".
	base = 8

	// DefaultLimit caps the flat space at 256 MiB unless overridden.
	DefaultLimit = 256 << 20
)

// Allocation is one live ledger entry.
type Allocation struct {
	Ptr  uint32
	Size uint32
}

// Stats is a point-in-time snapshot of arena usage.
type Stats struct {
	LiveAllocs  int
	LiveBytes   uint64
	TotalAllocs uint64
	TotalFrees  uint64
	SpaceSize   uint32
	HighWater   uint32
}

// Arena is an in-process allocator over a flat, growable byte space. It
// implements the root package's Arena, Reallocator and Memory interfaces,
// and keeps an exact ledger of live allocations so double free and free of
// a foreign pointer are detected instead of corrupting the space.
//
// Freed regions are recycled through exact-size buckets; the space itself
// only grows.
type Arena struct {
	mu    sync.Mutex
	space []byte
	next  uint32
	live  map[uint32]uint32   // ptr -> size
	freed map[uint32][]uint32 // size -> reusable ptrs
	limit uint32

	totalAllocs uint64
	totalFrees  uint64
}

// Option configures an Arena.
type Option func(*Arena)

// WithLimit caps the total flat space size in bytes.
func WithLimit(limit uint32) Option {
	return func(a *Arena) {
		a.limit = limit
	}
}

// New creates an empty arena.
func New(opts ...Option) *Arena {
	a := &Arena{
		space: make([]byte, base, 1024),
		next:  base,
		live:  make(map[uint32]uint32),
		freed: make(map[uint32][]uint32),
		limit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Alloc returns the address of a fresh region of exactly size bytes. Size 0
// returns address 0 without touching the ledger.
func (a *Arena) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alloc(size)
}

func (a *Arena) alloc(size uint32) (uint32, error) {
	if ptrs := a.freed[size]; len(ptrs) > 0 {
		ptr := ptrs[len(ptrs)-1]
		a.freed[size] = ptrs[:len(ptrs)-1]
		a.live[ptr] = size
		a.totalAllocs++
		clear(a.space[ptr : ptr+size])
		return ptr, nil
	}

	end := uint64(a.next) + uint64(size)
	if end > uint64(a.limit) {
		return 0, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Value(size).
			Detail("arena limit %d exceeded allocating %d bytes", a.limit, size).
			Build()
	}

	for uint64(len(a.space)) < end {
		a.space = append(a.space, make([]byte, len(a.space))...)
	}
	if uint64(len(a.space)) > uint64(a.limit) {
		a.space = a.space[:a.limit]
	}

	ptr := a.next
	a.next = uint32(end)
	a.live[ptr] = size
	a.totalAllocs++
	return ptr, nil
}

// Free retires a region previously returned by Alloc. Freeing address 0
// with size 0 is a no-op. Freeing an unknown pointer, or a known pointer
// with the wrong size, is a protocol violation reported as an error; the
// bridge escalates it to a panic.
func (a *Arena) Free(ptr, size uint32) error {
	if ptr == 0 && size == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.free(ptr, size)
}

func (a *Arena) free(ptr, size uint32) error {
	recorded, ok := a.live[ptr]
	if !ok {
		return errors.Protocol(errors.PhaseAlloc,
			"free of 0x%x which is not a live allocation (double free or foreign pointer)", ptr)
	}
	if recorded != size {
		return errors.Protocol(errors.PhaseAlloc,
			"free of 0x%x with size %d, allocated as %d", ptr, size, recorded)
	}

	delete(a.live, ptr)
	a.freed[size] = append(a.freed[size], ptr)
	a.totalFrees++
	return nil
}

// Realloc moves a region of oldSize bytes at ptr into a fresh region of
// newSize bytes, preserving min(oldSize, newSize) bytes. The old region is
// retired. Realloc(0, 0, n) allocates and Realloc(ptr, size, 0) frees. A
// failed Realloc leaves the old region untouched and live. An unknown
// pointer, or a known pointer with the wrong size, is a protocol violation
// reported as an error.
func (a *Arena) Realloc(ptr, oldSize, newSize uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ptr != 0 {
		recorded, ok := a.live[ptr]
		if !ok {
			return 0, errors.Protocol(errors.PhaseAlloc,
				"realloc of 0x%x which is not a live allocation", ptr)
		}
		if recorded != oldSize {
			return 0, errors.Protocol(errors.PhaseAlloc,
				"realloc of 0x%x with size %d, allocated as %d", ptr, oldSize, recorded)
		}
	} else if oldSize > 0 {
		return 0, errors.Protocol(errors.PhaseAlloc, "realloc of null pointer with size %d", oldSize)
	}

	if newSize == 0 {
		if ptr != 0 {
			return 0, a.free(ptr, oldSize)
		}
		return 0, nil
	}

	newPtr, err := a.alloc(newSize)
	if err != nil {
		return 0, err
	}
	if ptr != 0 {
		n := oldSize
		if n > newSize {
			n = newSize
		}
		copy(a.space[newPtr:newPtr+n], a.space[ptr:ptr+n])
		if err := a.free(ptr, oldSize); err != nil {
			return 0, err
		}
	}
	return newPtr, nil
}

// bounds validates an access of n bytes at ptr. Callers hold the lock.
func (a *Arena) bounds(phase errors.Phase, ptr, n uint32) error {
	end := uint64(ptr) + uint64(n)
	if ptr < base || end > uint64(len(a.space)) {
		return errors.OutOfBounds(phase, ptr, n, uint32(len(a.space)))
	}
	return nil
}

// Read copies n bytes starting at ptr out of the space.
func (a *Arena) Read(ptr uint32, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.bounds(errors.PhaseRead, ptr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, a.space[ptr:ptr+n])
	return out, nil
}

// Write copies data into the space at ptr.
func (a *Arena) Write(ptr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.bounds(errors.PhaseWrite, ptr, uint32(len(data))); err != nil {
		return err
	}
	copy(a.space[ptr:], data)
	return nil
}

// ReadU32 reads a little-endian uint32 at ptr.
func (a *Arena) ReadU32(ptr uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.bounds(errors.PhaseRead, ptr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(a.space[ptr:]), nil
}

// ReadU64 reads a little-endian uint64 at ptr.
func (a *Arena) ReadU64(ptr uint32) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.bounds(errors.PhaseRead, ptr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(a.space[ptr:]), nil
}

// WriteU32 writes a little-endian uint32 at ptr.
func (a *Arena) WriteU32(ptr uint32, value uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.bounds(errors.PhaseWrite, ptr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(a.space[ptr:], value)
	return nil
}

// WriteU64 writes a little-endian uint64 at ptr.
func (a *Arena) WriteU64(ptr uint32, value uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.bounds(errors.PhaseWrite, ptr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(a.space[ptr:], value)
	return nil
}

// Size returns the current size of the flat space in bytes.
func (a *Arena) Size() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint32(len(a.space))
}

// Live returns the ledger as a snapshot, lowest address first.
func (a *Arena) Live() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Allocation, 0, len(a.live))
	for ptr, size := range a.live {
		out = append(out, Allocation{Ptr: ptr, Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ptr < out[j].Ptr })
	return out
}

// Stats returns a usage snapshot.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	var liveBytes uint64
	for _, size := range a.live {
		liveBytes += uint64(size)
	}
	return Stats{
		LiveAllocs:  len(a.live),
		LiveBytes:   liveBytes,
		TotalAllocs: a.totalAllocs,
		TotalFrees:  a.totalFrees,
		SpaceSize:   uint32(len(a.space)),
		HighWater:   a.next,
	}
}

var _ uniffi.Arena = (*Arena)(nil)
var _ uniffi.Reallocator = (*Arena)(nil)
var _ uniffi.Memory = (*Arena)(nil)
