// Package arena implements the in-process allocator backing a local bridge.
//
// The arena is a flat byte space addressed by uint32 offsets, so the same
// pointer-and-length conventions work whether a buffer lives here or in a
// wasm guest's linear memory. A ledger of live allocations gives exact
// detection of double free and free-of-foreign-pointer, which the buffer
// package escalates to protocol violations.
package arena
