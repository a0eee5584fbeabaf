package buffer

import (
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
)

const (
	// minCapacity is the smallest capacity reserve will request, so tiny
	// writers do not reallocate on every write.
	minCapacity = 16
)

// Stats counts bridge entry point invocations.
type Stats struct {
	Allocates uint64
	Reserves  uint64
	Frees     uint64
}

// Bridge mediates all Buffer memory through an Arena and exposes the three
// entry points of the allocator contract. Entry points are individually
// safe for concurrent use; the buffers they hand out are single-owner.
type Bridge struct {
	arena uniffi.Arena
	mem   uniffi.Memory

	allocates atomic.Uint64
	reserves  atomic.Uint64
	frees     atomic.Uint64
}

// NewBridge creates a bridge over an arena and the memory its addresses
// point into. The local arena serves as both.
func NewBridge(a uniffi.Arena, mem uniffi.Memory) *Bridge {
	return &Bridge{arena: a, mem: mem}
}

// Memory returns the address space this bridge's buffers live in.
func (br *Bridge) Memory() uniffi.Memory {
	return br.mem
}

// Stats returns entry point invocation counts.
func (br *Bridge) Stats() Stats {
	return Stats{
		Allocates: br.allocates.Load(),
		Reserves:  br.reserves.Load(),
		Frees:     br.frees.Load(),
	}
}

// Allocate returns an owned Buffer with capacity exactly size. Size 0
// yields the unowned-empty Buffer. Failure is reported through st.
func (br *Bridge) Allocate(size uint32, st *Status) Buffer {
	return Complete(br, st, func() (Buffer, error) {
		return br.allocate(size)
	})
}

// Reserve returns an owned Buffer with capacity at least buf.Len+additional
// and the first buf.Len bytes of buf preserved. The input descriptor is
// invalidated: only the returned one may be used afterwards. Failure is
// reported through st and leaves buf untouched and still owned.
func (br *Bridge) Reserve(buf Buffer, additional uint32, st *Status) Buffer {
	return Complete(br, st, func() (Buffer, error) {
		return br.reserve(buf, additional)
	})
}

// Free releases an owned Buffer. Freeing the unowned-empty Buffer is a
// no-op. Double free and freeing a buffer this bridge never issued are
// fatal protocol violations, not reportable errors.
func (br *Bridge) Free(buf Buffer, st *Status) {
	Complete(br, st, func() (Buffer, error) {
		return Buffer{}, br.free(buf)
	})
}

// BeginCall opens a Scope for one native call. The caller must End it.
func (br *Bridge) BeginCall() *Scope {
	return &Scope{br: br}
}

// allocate is the entry point core shared with the Writer.
func (br *Bridge) allocate(size uint32) (Buffer, error) {
	br.allocates.Add(1)
	if size == 0 {
		return Buffer{}, nil
	}

	ptr, err := br.arena.Alloc(size)
	if err != nil {
		return Buffer{}, escalate(err)
	}
	if ptr == 0 {
		panic(errors.Protocol(errors.PhaseAlloc, "arena returned null for %d bytes", size))
	}

	Logger().Debug("allocate",
		zap.Uint32("size", size),
		zap.Uint32("ptr", ptr))
	return Buffer{Cap: size, Len: 0, Data: ptr}, nil
}

func (br *Bridge) reserve(buf Buffer, additional uint32) (Buffer, error) {
	br.reserves.Add(1)
	br.check(buf)

	need := uint64(buf.Len) + uint64(additional)
	if need > math.MaxUint32 {
		return Buffer{}, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Detail("reserve of %d additional bytes overflows the address space", additional).
			Build()
	}
	if uint64(buf.Cap) >= need {
		return buf, nil
	}

	newCap := need
	if d := uint64(buf.Cap) * 2; d > newCap {
		newCap = d
	}
	if newCap < minCapacity {
		newCap = minCapacity
	}
	if newCap > math.MaxUint32 {
		newCap = need
	}

	out, err := br.regrow(buf, uint32(newCap))
	if err != nil {
		return Buffer{}, err
	}

	Logger().Debug("reserve",
		zap.Uint32("len", buf.Len),
		zap.Uint32("additional", additional),
		zap.Uint32("old_cap", buf.Cap),
		zap.Uint32("new_cap", out.Cap))
	return out, nil
}

// regrow moves buf into a fresh region of newCap bytes, preserving Len
// bytes. It prefers the arena's realloc when available.
func (br *Bridge) regrow(buf Buffer, newCap uint32) (Buffer, error) {
	if ra, ok := br.arena.(uniffi.Reallocator); ok {
		ptr, err := ra.Realloc(buf.Data, buf.Cap, newCap)
		if err != nil {
			return Buffer{}, escalate(err)
		}
		if ptr == 0 {
			panic(errors.Protocol(errors.PhaseAlloc, "arena returned null reallocating %d bytes", newCap))
		}
		return Buffer{Cap: newCap, Len: buf.Len, Data: ptr}, nil
	}

	out, err := br.allocate(newCap)
	if err != nil {
		return Buffer{}, err
	}
	if buf.Len > 0 {
		data, err := br.mem.Read(buf.Data, buf.Len)
		if err != nil {
			// out is ours and unseen by the caller; do not leak it.
			if ferr := br.free(out); ferr != nil {
				Logger().Warn("regrow failed to free fresh buffer", zap.Error(ferr))
			}
			return Buffer{}, escalate(err)
		}
		if err := br.mem.Write(out.Data, data); err != nil {
			if ferr := br.free(out); ferr != nil {
				Logger().Warn("regrow failed to free fresh buffer", zap.Error(ferr))
			}
			return Buffer{}, escalate(err)
		}
	}
	if !buf.Empty() {
		if err := br.free(buf); err != nil {
			return Buffer{}, err
		}
	}
	out.Len = buf.Len
	return out, nil
}

func (br *Bridge) free(buf Buffer) error {
	br.frees.Add(1)
	br.check(buf)
	if buf.Empty() {
		return nil
	}

	if err := br.arena.Free(buf.Data, buf.Cap); err != nil {
		return escalate(err)
	}
	Logger().Debug("free",
		zap.Uint32("cap", buf.Cap),
		zap.Uint32("ptr", buf.Data))
	return nil
}

// check panics on a structurally corrupt descriptor. Such a descriptor can
// only come from a binding defect, never from well-formed use.
func (br *Bridge) check(buf Buffer) {
	if !buf.wellFormed() {
		panic(errors.Protocol(errors.PhaseAlloc,
			"corrupt buffer descriptor cap=%d len=%d data=0x%x", buf.Cap, buf.Len, buf.Data))
	}
}

// escalate re-raises protocol violations as panics and passes everything
// else through as an ordinary error.
func escalate(err error) error {
	if err != nil && errors.IsProtocol(err) {
		panic(err)
	}
	return err
}
