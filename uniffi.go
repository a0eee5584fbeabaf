package uniffi

// Memory is a bounds-checked window onto the flat address space that backs a
// bridge. Reads copy out of the space; callers own the returned slice.
type Memory interface {
	Read(ptr uint32, n uint32) ([]byte, error)
	Write(ptr uint32, data []byte) error
	ReadU32(ptr uint32) (uint32, error)
	ReadU64(ptr uint32) (uint64, error)
	WriteU32(ptr uint32, value uint32) error
	WriteU64(ptr uint32, value uint64) error
	Size() uint32
}

// Arena hands out raw regions inside a Memory. Address 0 is never a valid
// allocation; arenas reserve it so an empty buffer is distinguishable from
// an owned one.
type Arena interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr, size uint32) error
}

// Reallocator is an optional Arena upgrade. Realloc moves a region of
// oldSize bytes to one of newSize bytes, preserving min(oldSize, newSize)
// bytes; the old region is retired. Arenas that cannot grow in place
// implement it as alloc+copy+free, which is also what the bridge falls
// back to when the arena does not implement this interface at all.
type Reallocator interface {
	Realloc(ptr, oldSize, newSize uint32) (uint32, error)
}
