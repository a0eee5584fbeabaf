// Package errors provides structured error types for the uniffi-go bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: element path, wanted and
// actual type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindCoercion).
//		Path("EchoDelegate", "withReturn").
//		Want("string").
//		Got("int64").
//		Detail("thunk result does not match declared return").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(errors.PhaseAlloc, 4096, cause)
//	err := errors.OutOfBounds(errors.PhaseRead, ptr, n, memSize)
//
// Protocol violations are special: they are created with errors.Protocol,
// raised with panic, and must never be caught and converted into values.
// errors.IsProtocol lets envelope recovery tell them apart from ordinary
// panics. Each Kind also carries a stable numeric Code used when an error
// is serialized into an envelope payload.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
