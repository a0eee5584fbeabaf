// Package hostbridge connects the allocator bridge to a wazero guest.
//
// # Pieces
//
// GuestMemory adapts a wazero api.Memory to the uniffi.Memory interface
// with bounds-classified errors. GuestArena drives the guest's exported
// allocator (cabi_realloc, or the simpler uniffi_allocate/uniffi_free
// pair) so buffers live in guest linear memory. Binding goes the other
// direction: it exports the bridge operations as a host module the guest
// imports.
//
// # Bind Order
//
// Host modules must be registered before the guest instantiates, but the
// bridge cannot exist until the guest's memory does:
//
//	binding := hostbridge.NewBinding()
//	binding.Register(ctx, runtime)        // before guest instantiation
//	mod, _ := runtime.Instantiate(ctx, wasm)
//	arena, _ := hostbridge.NewGuestArena(mod)
//	binding.Bind(buffer.NewBridge(arena, arena.Memory()))
//
// A guest that calls a bridge export between Register and Bind has broken
// the protocol and traps.
//
// # Contract Checks
//
// VerifyContract and VerifyChecksum validate optional guest exports after
// instantiation. Guests that do not carry the exports pass both checks.
package hostbridge
