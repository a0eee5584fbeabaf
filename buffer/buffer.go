package buffer

import (
	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
)

// Buffer is the transferable unit of the bridge: a descriptor for a region
// of bridge memory holding Len logical bytes out of Cap allocated ones.
//
// A Buffer is either unowned-empty (the zero value) or owned, in which case
// Data is a non-zero address obtained from the bridge for exactly Cap
// bytes. Buffers move: handing one to another owner invalidates the
// sender's copy, and using the stale copy afterwards is a protocol
// violation the bridge detects through its allocation ledger.
type Buffer struct {
	Cap  uint32
	Len  uint32
	Data uint32
}

// Empty reports whether b is the unowned-empty buffer.
func (b Buffer) Empty() bool {
	return b.Cap == 0 && b.Len == 0 && b.Data == 0
}

// wellFormed reports whether the descriptor satisfies the structural
// invariants. It says nothing about ownership; the ledger decides that.
func (b Buffer) wellFormed() bool {
	return b.Len <= b.Cap && (b.Data == 0) == (b.Cap == 0)
}

// View is a read-only, non-owned byte range passed into native code for
// the duration of a single call. It is never freed by the receiver, and it
// dies with the Scope of the call that produced it: reading through it
// afterwards is a protocol violation.
type View struct {
	Len  uint32
	Data uint32

	mem   uniffi.Memory
	scope *Scope
}

// Bytes copies the viewed range out of bridge memory. It panics with a
// protocol violation when the owning call has already returned.
func (v View) Bytes() ([]byte, error) {
	if v.scope != nil && v.scope.ended {
		panic(errors.Protocol(errors.PhaseRead,
			"view of %d bytes at 0x%x used after its call returned", v.Len, v.Data))
	}
	if v.Len == 0 {
		return nil, nil
	}
	if v.mem == nil {
		panic(errors.Protocol(errors.PhaseRead, "view is not bound to a bridge"))
	}
	return v.mem.Read(v.Data, v.Len)
}
