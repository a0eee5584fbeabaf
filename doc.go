// Package uniffi provides the runtime substrate of a foreign-function
// bridge: ownership-transferring byte buffers, the call envelope error
// convention, and handle-based delegate dispatch between a native Go core
// and a foreign caller (in-process code or a WebAssembly guest).
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	uniffi/              Root package with Memory and Arena interfaces
//	├── arena/           In-process allocator with a live-allocation ledger
//	├── buffer/          Buffer, Writer, Reader, View, Bridge and envelope
//	├── delegate/        Delegate handle table and return coercion
//	├── shape/           Return-shape selection (Concrete/Generic/Void)
//	├── bindgen/         Go scaffolding generator for declared interfaces
//	├── hostbridge/      wazero-backed arena and guest-facing entry points
//	├── errors/          Structured error types for debugging
//	└── cmd/uniffi/      Generator CLI and interactive bridge inspector
//
// # Quick Start
//
// Allocate a bridge over the in-process arena, serialize through a writer,
// and hand the buffer off:
//
//	br := buffer.NewBridge(arena.New(), arena.New().Memory()) // or share one arena
//	w := buffer.NewWriter(br)
//	w.WriteU32(42)
//	w.WriteBytes([]byte("payload"))
//	buf := w.Finalize()
//
//	// ... transfer buf to the consumer, who reads it and frees it:
//	var st buffer.Status
//	br.Free(buf, &st)
//
// # Ownership Model
//
// A Buffer has exactly one live owner. Passing it across a boundary
// transfers ownership; the sender's copy is dead and must not be reused or
// freed. Double free, freeing a handle the bridge never issued, and reading
// a borrowed view after its call returned are protocol violations: they
// panic and are never converted into error values. Allocation failures, by
// contrast, travel through the envelope Status out-parameter and are
// ordinary errors for the caller.
//
// # Byte Order
//
// Buffer contents written through a Writer are big-endian. Buffer and view
// headers placed in memory by the layout codec are little-endian, matching
// the in-memory struct convention of the canonical ABI.
//
// # Thread Safety
//
// Bridge operations (Allocate, Reserve, Free) and delegate tables are safe
// for concurrent use. A Writer, a Reader, a Scope, and any single delegate
// instance are not; confine each to one call at a time.
package uniffi
