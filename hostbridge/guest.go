package hostbridge

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
)

const (
	// Guest export names the arena binds to. cabi_realloc is preferred;
	// the allocate/free pair is honored for guests without a canonical
	// realloc.
	exportRealloc  = "cabi_realloc"
	exportAllocate = "uniffi_allocate"
	exportFree     = "uniffi_free"

	// All bridge regions are 8-byte aligned on both sides.
	guestAlign = 8
)

// GuestArena drives a wasm guest's exported allocator so the bridge can
// place buffers inside guest linear memory. It implements both Arena and
// Reallocator; without a cabi_realloc export, realloc degrades to
// alloc+copy+free through the guest memory.
//
// Calls reuse one small stack buffer under a mutex, so the arena is safe
// for concurrent use but serializes guest allocator calls.
type GuestArena struct {
	mu       sync.Mutex
	ctx      context.Context
	realloc  api.Function
	allocFn  api.Function
	freeFn   api.Function
	mem      uniffi.Memory
	stackBuf []uint64
}

// NewGuestArena binds to mod's allocator exports. It requires either
// cabi_realloc or the uniffi_allocate/uniffi_free pair.
func NewGuestArena(mod api.Module) (*GuestArena, error) {
	realloc := mod.ExportedFunction(exportRealloc)
	allocFn := mod.ExportedFunction(exportAllocate)
	freeFn := mod.ExportedFunction(exportFree)

	if realloc == nil && allocFn == nil {
		return nil, errors.MissingExport(exportRealloc)
	}
	if realloc == nil && freeFn == nil {
		return nil, errors.MissingExport(exportFree)
	}

	mem := mod.Memory()
	if mem == nil {
		return nil, errors.MissingExport("memory")
	}

	return newGuestArena(realloc, allocFn, freeFn, NewGuestMemory(mem)), nil
}

func newGuestArena(realloc, allocFn, freeFn api.Function, mem uniffi.Memory) *GuestArena {
	return &GuestArena{
		ctx:      context.Background(),
		realloc:  realloc,
		allocFn:  allocFn,
		freeFn:   freeFn,
		mem:      mem,
		stackBuf: make([]uint64, 4),
	}
}

// SetContext sets the context passed to guest allocator calls.
func (a *GuestArena) SetContext(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx = ctx
}

// Memory returns the guest linear memory the issued addresses point into.
func (a *GuestArena) Memory() uniffi.Memory {
	return a.mem
}

func (a *GuestArena) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ptr, err := a.allocLocked(size)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, err)
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, nil)
	}
	return ptr, nil
}

func (a *GuestArena) allocLocked(size uint32) (uint32, error) {
	if a.realloc != nil {
		a.stackBuf[0] = 0
		a.stackBuf[1] = 0
		a.stackBuf[2] = guestAlign
		a.stackBuf[3] = uint64(size)
		if err := a.realloc.CallWithStack(a.ctx, a.stackBuf[:4]); err != nil {
			return 0, err
		}
		return uint32(a.stackBuf[0]), nil
	}

	a.stackBuf[0] = uint64(size)
	if err := a.allocFn.CallWithStack(a.ctx, a.stackBuf[:1]); err != nil {
		return 0, err
	}
	return uint32(a.stackBuf[0]), nil
}

func (a *GuestArena) Free(ptr, size uint32) error {
	if ptr == 0 && size == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeLocked(ptr, size)
}

func (a *GuestArena) freeLocked(ptr, size uint32) error {
	if a.freeFn != nil {
		a.stackBuf[0] = uint64(ptr)
		a.stackBuf[1] = uint64(size)
		if err := a.freeFn.CallWithStack(a.ctx, a.stackBuf[:2]); err != nil {
			return errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "guest free failed")
		}
		return nil
	}

	// Shrink to zero through cabi_realloc.
	a.stackBuf[0] = uint64(ptr)
	a.stackBuf[1] = uint64(size)
	a.stackBuf[2] = guestAlign
	a.stackBuf[3] = 0
	if err := a.realloc.CallWithStack(a.ctx, a.stackBuf[:4]); err != nil {
		return errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "guest free failed")
	}
	return nil
}

// Realloc moves a region of oldSize bytes to one of newSize bytes,
// preserving min(oldSize, newSize) bytes.
func (a *GuestArena) Realloc(ptr, oldSize, newSize uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.realloc != nil {
		a.stackBuf[0] = uint64(ptr)
		a.stackBuf[1] = uint64(oldSize)
		a.stackBuf[2] = guestAlign
		a.stackBuf[3] = uint64(newSize)
		if err := a.realloc.CallWithStack(a.ctx, a.stackBuf[:4]); err != nil {
			return 0, errors.AllocationFailed(errors.PhaseAlloc, newSize, err)
		}
		out := uint32(a.stackBuf[0])
		if out == 0 && newSize > 0 {
			return 0, errors.AllocationFailed(errors.PhaseAlloc, newSize, nil)
		}
		return out, nil
	}

	// No canonical realloc: move by hand.
	if newSize == 0 {
		if ptr != 0 {
			return 0, a.freeLocked(ptr, oldSize)
		}
		return 0, nil
	}
	out, err := a.allocLocked(newSize)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, newSize, err)
	}
	if out == 0 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, newSize, nil)
	}
	if n := min(oldSize, newSize); n > 0 {
		data, err := a.mem.Read(ptr, n)
		if err != nil {
			return 0, err
		}
		if err := a.mem.Write(out, data); err != nil {
			return 0, err
		}
	}
	if ptr != 0 {
		if err := a.freeLocked(ptr, oldSize); err != nil {
			Logger().Warn("guest realloc could not retire the old region", zap.Error(err))
		}
	}
	return out, nil
}

var (
	_ uniffi.Arena       = (*GuestArena)(nil)
	_ uniffi.Reallocator = (*GuestArena)(nil)
)
