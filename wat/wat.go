// Package wat compiles WebAssembly text format into binary modules.
//
// It covers the subset of the text format that test guests need: a single
// (module ...) form with func, memory, global, import, export and data
// fields, folded instructions only. Integration tests use it to build small
// guest modules inline instead of checking in .wasm fixtures:
//
//	wasmBytes, err := wat.Compile(`
//	    (module
//	        (memory (export "memory") 1)
//	        (func (export "answer") (result i32) (i32.const 42)))
//	`)
package wat

// Compile translates WebAssembly text format source into a binary module.
func Compile(source string) ([]byte, error) {
	root, err := parseSource(source)
	if err != nil {
		return nil, err
	}
	mod, err := build(root)
	if err != nil {
		return nil, err
	}
	return mod.encode(), nil
}
