// Package buffer implements the owned byte buffer that crosses the
// native/foreign boundary, the bridge that allocates it, and the call
// envelope that reports how a boundary call ended.
//
// # Ownership Model
//
// A Buffer is a (cap, len, data) triple over arena memory. At any moment
// it has exactly one owner, and every operation that hands a Buffer across
// the boundary moves ownership with it:
//
//	Bridge.Allocate → caller owns the result
//	Bridge.Reserve  → consumes its input, caller owns the result
//	Bridge.Free     → consumes its input
//	Writer.Finalize → writer gives its buffer up, caller owns it
//
// The zero Buffer is the unowned empty buffer: freeing it is a no-op and
// writing to it allocates first. An owned buffer whose invariants are
// broken (len > cap, null data with nonzero cap) is evidence of a
// double-free or a foreign pointer and is treated as a protocol violation.
//
// # Key Types
//
//	Bridge  - allocate/reserve/free entry points over an Arena
//	Buffer  - owned (cap, len, data) triple
//	View    - borrowed (len, data) pair, valid for one call scope
//	Writer  - appends big-endian values, grows lazily, Finalize moves out
//	Reader  - mirror cursor over a finalized buffer
//	Status  - call envelope out-parameter (success / error / panic)
//	Layout  - packs headers into memory on either side of the boundary
//	Pool    - recycles Writers on hot call paths
//
// # Call Envelope
//
// Every fallible entry point takes a *Status as its final parameter.
// Complete runs the operation and fills it in:
//
//	CodeSuccess - result is valid, ErrBuf is empty
//	CodeError   - expected failure, ErrBuf carries kind + message
//	CodePanic   - native panic, ErrBuf carries the panic text
//
// Protocol violations never travel through the envelope: they panic
// through Complete so a corrupted boundary stops the program instead of
// masquerading as a catchable error.
//
// # Byte Order
//
// Buffer contents are big-endian. Header fields packed by Layout are
// little-endian, matching in-memory struct layout on both sides.
//
// # Thread Safety
//
// Bridge is safe for concurrent use; distinct goroutines may allocate,
// reserve and free simultaneously as long as no Buffer has two owners.
// Writer, Reader and Scope maintain cursor state and are NOT thread-safe.
// Use one instance per call.
package buffer
