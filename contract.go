package uniffi

import "hash/fnv"

// ContractVersion is the bridge ABI version. Generated scaffolding bakes it
// in as a constant and verifies it against the runtime at init; a wasm guest
// may export uniffi_contract_version for the same check at bind time.
const ContractVersion uint32 = 1

// Checksum returns the compatibility checksum for one declared method.
// Both the generator and the runtime derive it from the same two names, so
// scaffolding generated against a stale definition fails fast instead of
// dispatching to the wrong method.
func Checksum(iface, method string) uint16 {
	h := fnv.New32a()
	h.Write([]byte(iface))
	h.Write([]byte{0})
	h.Write([]byte(method))
	s := h.Sum32()
	return uint16(s>>16) ^ uint16(s)
}
