// Package bindgen generates Go scaffolding from a TOML definition.
//
// A definition names delegates (callback capabilities foreign code
// implements) and objects (native types whose every method call routes
// through a delegate method):
//
//	module = "echo"
//	go_module = "example.com/gen/echo"
//
//	[[delegate]]
//	name = "EchoDelegate"
//	  [[delegate.method]]
//	  name = "withReturn"
//	  returns = "any"
//
//	[[object]]
//	name = "Echo"
//	delegate = "EchoDelegate"
//	  [[object.method]]
//	  name = "len"
//	  params = ["string"]
//	  returns = "u32"
//	  call_with = "withReturn"
//
// The pipeline is parse, validate, select a return shape per delegate
// method, emit, gofmt. Generated output contains the delegate interface,
// its handle table with register/unregister functions, the object struct
// and its dispatch methods, envelope entry points taking *buffer.Status,
// and an init that verifies the runtime's contract version and method
// checksums against the values baked in at generation time.
//
// Routing is proven at generation time: a method may only route through a
// delegate method whose shape can carry its return. Generic routing inserts
// a checked coercion at the call site; concrete routing requires the types
// to agree exactly and emits no cast.
package bindgen
