package delegate

import (
	"sync"

	"github.com/name1e5s/uniffi-go/errors"
)

const (
	// Handles pack a 1-based slot index in the low bits and a reuse
	// generation in the high bits, so a handle kept across an unregister
	// is recognized as stale instead of silently hitting the new tenant.
	indexBits = 20
	indexMask = 1<<indexBits - 1
	genMask   = 1<<(32-indexBits) - 1
)

// Handle names a registered delegate across the boundary. The zero Handle
// is never issued and never valid.
type Handle uint32

func (h Handle) index() uint32 {
	return uint32(h) & indexMask
}

func (h Handle) generation() uint32 {
	return uint32(h) >> indexBits
}

type entry[D any] struct {
	value D
	gen   uint32
	valid bool
}

// Table stores the delegate instances foreign objects bind to. Binding is
// non-owning: any number of objects may hold the same Handle, and the
// delegate lives until Unregister regardless of how many still do.
//
// All methods are safe for concurrent use.
type Table[D any] struct {
	mu       sync.RWMutex
	entries  []entry[D]
	freeList []uint32
}

// NewTable creates an empty delegate table.
func NewTable[D any]() *Table[D] {
	return &Table[D]{
		entries:  make([]entry[D], 0, 16),
		freeList: make([]uint32, 0, 4),
	}
}

// Register stores d and returns its Handle.
func (t *Table[D]) Register(d D) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		e := &t.entries[idx-1]
		e.value = d
		e.valid = true
		return makeHandle(idx, e.gen)
	}

	if len(t.entries) >= indexMask {
		panic(errors.Protocol(errors.PhaseBind, "delegate table exhausted at %d entries", len(t.entries)))
	}
	t.entries = append(t.entries, entry[D]{value: d, valid: true})
	return makeHandle(uint32(len(t.entries)), 0)
}

// Get returns the delegate h names. A zero, foreign or stale handle is a
// protocol violation: the caller's binding no longer points at anything.
func (t *Table[D]) Get(h Handle) D {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e := t.lookup(h)
	return e.value
}

// Unregister removes the delegate h names and returns it. Handles held by
// objects still bound to it become stale.
func (t *Table[D]) Unregister(h Handle) D {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.lookup(h)
	value := e.value

	var zero D
	e.value = zero
	e.valid = false
	e.gen = (e.gen + 1) & genMask
	t.freeList = append(t.freeList, h.index())

	return value
}

// Len returns the number of registered delegates.
func (t *Table[D]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for i := range t.entries {
		if t.entries[i].valid {
			count++
		}
	}
	return count
}

// lookup resolves h to its live entry or panics. Callers hold t.mu.
func (t *Table[D]) lookup(h Handle) *entry[D] {
	if h == 0 {
		panic(errors.Protocol(errors.PhaseBind, "zero delegate handle"))
	}

	idx := h.index()
	if idx == 0 || int(idx) > len(t.entries) {
		panic(errors.Protocol(errors.PhaseBind, "delegate handle %#x was never issued", uint32(h)))
	}

	e := &t.entries[idx-1]
	if !e.valid || e.gen != h.generation() {
		panic(errors.Protocol(errors.PhaseBind, "stale delegate handle %#x", uint32(h)))
	}
	return e
}

func makeHandle(idx, gen uint32) Handle {
	return Handle(gen<<indexBits | idx)
}
