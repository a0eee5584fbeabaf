// Package delegate manages the shared collaborator instances that foreign
// objects call back into.
//
// A delegate is a single mutable instance that any number of generated
// objects bind to by Handle. The binding is non-owning: objects come and
// go, the delegate stays registered until whoever registered it calls
// Unregister.
//
// # Handle Table
//
// The Table maps integer handles to delegate instances:
//
//	table := delegate.NewTable[EchoDelegate]()
//
//	// Register a delegate, get a handle for object constructors
//	handle := table.Register(myDelegate)
//
//	// Dispatch resolves the handle on every call
//	d := table.Get(handle)
//
//	// Tear down; handles still held become stale
//	table.Unregister(handle)
//
// The zero Handle is never issued. Resolving a zero, foreign or stale
// handle panics with a protocol violation: a binding that points at
// nothing is a defect in the generated code or its caller, not a
// condition to report and continue from.
//
// # Coercion
//
// Dynamically typed delegate results narrow to their declared concrete
// types through Coerce, which returns a reportable coercion failure
// instead of panicking, since a delegate returning the wrong type is an
// expected runtime condition.
package delegate
