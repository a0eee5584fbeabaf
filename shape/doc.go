// Package shape resolves what a wrapped method returns: a concrete
// declared type, the erased generic placeholder, or nothing.
//
// The resolution happens once per method at generation time. Generated
// call sites are specialized by the result, so the three shapes never
// meet a runtime branch:
//
//	shape.Select("i32")  // Concrete{"i32"}  -> M(call func() int32) int32
//	shape.Select("any")  // Generic{}        -> M(call func() any) any
//	shape.Select("")     // Void{}           -> M(call func())
//
// FromWIT performs the same resolution from an already-parsed WIT type,
// and TypeRenderer hands the target language its spelling of each
// concrete name.
package shape
