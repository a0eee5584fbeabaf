package wat

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []byte
	}{
		{
			name: "empty_module",
			src:  `(module)`,
			want: []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00},
		},
		{
			name: "const_function",
			src:  `(module (func (export "answer") (result i32) (i32.const 42)))`,
			want: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				// type: () -> i32
				0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7F,
				// func
				0x03, 0x02, 0x01, 0x00,
				// export "answer"
				0x07, 0x0A, 0x01, 0x06, 'a', 'n', 's', 'w', 'e', 'r', 0x00, 0x00,
				// code: i32.const 42
				0x0A, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2A, 0x0B,
			},
		},
		{
			name: "import_call",
			src: `(module
				(import "env" "log" (func $log (param i32)))
				(func (export "run") (call $log (i32.const 7))))`,
			want: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				// types: (i32) -> () and () -> ()
				0x01, 0x08, 0x02, 0x60, 0x01, 0x7F, 0x00, 0x60, 0x00, 0x00,
				// import "env" "log" func 0
				0x02, 0x0B, 0x01, 0x03, 'e', 'n', 'v', 0x03, 'l', 'o', 'g', 0x00, 0x00,
				// func
				0x03, 0x02, 0x01, 0x01,
				// export "run" is the second function
				0x07, 0x07, 0x01, 0x03, 'r', 'u', 'n', 0x00, 0x01,
				// code: i32.const 7, call 0
				0x0A, 0x08, 0x01, 0x06, 0x00, 0x41, 0x07, 0x10, 0x00, 0x0B,
			},
		},
		{
			name: "memory_data",
			src:  `(module (memory 1) (data (i32.const 8) "hi"))`,
			want: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				// memory: min 1, no max
				0x05, 0x03, 0x01, 0x00, 0x01,
				// data: active at offset 8
				0x0B, 0x08, 0x01, 0x00, 0x41, 0x08, 0x0B, 0x02, 'h', 'i',
			},
		},
		{
			name: "mutable_global",
			src: `(module
				(global $n (mut i32) (i32.const 16))
				(func (export "bump") (result i32)
					(global.set $n (i32.add (global.get $n) (i32.const 8)))
					(global.get $n)))`,
			want: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				// type: () -> i32
				0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7F,
				// func
				0x03, 0x02, 0x01, 0x00,
				// global: mut i32 = 16
				0x06, 0x06, 0x01, 0x7F, 0x01, 0x41, 0x10, 0x0B,
				// export "bump"
				0x07, 0x08, 0x01, 0x04, 'b', 'u', 'm', 'p', 0x00, 0x00,
				// code: global.get 0, i32.const 8, i32.add, global.set 0, global.get 0
				0x0A, 0x0D, 0x01, 0x0B, 0x00, 0x23, 0x00, 0x41, 0x08, 0x6A, 0x24, 0x00, 0x23, 0x00, 0x0B,
			},
		},
		{
			name: "if_else",
			src: `(module
				(func (export "pick") (param i32) (result i32)
					(if (result i32) (local.get 0)
						(then (i32.const 1))
						(else (i32.const 2)))))`,
			want: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				// type: (i32) -> i32
				0x01, 0x06, 0x01, 0x60, 0x01, 0x7F, 0x01, 0x7F,
				// func
				0x03, 0x02, 0x01, 0x00,
				// export "pick"
				0x07, 0x08, 0x01, 0x04, 'p', 'i', 'c', 'k', 0x00, 0x00,
				// code: local.get 0, if (result i32), i32.const 1, else, i32.const 2, end
				0x0A, 0x0E, 0x01, 0x0C, 0x00, 0x20, 0x00, 0x04, 0x7F, 0x41, 0x01, 0x05, 0x41, 0x02, 0x0B, 0x0B,
			},
		},
		{
			name: "store_offset",
			src: `(module
				(memory 1)
				(func (export "put") (i32.store offset=4 (i32.const 0) (i32.const 9))))`,
			want: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				// type: () -> ()
				0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
				// func
				0x03, 0x02, 0x01, 0x00,
				// memory: min 1, no max
				0x05, 0x03, 0x01, 0x00, 0x01,
				// export "put"
				0x07, 0x07, 0x01, 0x03, 'p', 'u', 't', 0x00, 0x00,
				// code: i32.const 0, i32.const 9, i32.store align=2 offset=4
				0x0A, 0x0B, 0x01, 0x09, 0x00, 0x41, 0x00, 0x41, 0x09, 0x36, 0x02, 0x04, 0x0B,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.src)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Compile() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestCompileGuestModule(t *testing.T) {
	src := `
(module
  (import "host" "notify" (func $notify (param i32)))
  (memory (export "memory") 2)
  (global $next (mut i32) (i32.const 16))

  ;; Bump allocator with 8-byte alignment. Grows only, never frees.
  (func (export "cabi_realloc") (param $ptr i32) (param $old i32) (param $align i32) (param $new i32) (result i32)
    (local $out i32)
    (if (i32.eqz (local.get $new))
      (then (return (i32.const 0))))
    (local.set $out (global.get $next))
    (global.set $next
      (i32.and
        (i32.add (i32.add (global.get $next) (local.get $new)) (i32.const 7))
        (i32.const -8)))
    (if (local.get $ptr)
      (then
        (memory.copy
          (local.get $out)
          (local.get $ptr)
          (select (local.get $old) (local.get $new) (i32.lt_u (local.get $old) (local.get $new))))))
    (call $notify (local.get $out))
    (local.get $out))

  (func (export "uniffi_contract_version") (result i32) (i32.const 1)))
`
	got, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !bytes.HasPrefix(got, []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}) {
		t.Fatalf("Compile() output does not start with the wasm magic: % x", got[:8])
	}
	for _, name := range []string{"memory", "cabi_realloc", "uniffi_contract_version", "notify"} {
		if !bytes.Contains(got, []byte(name)) {
			t.Errorf("Compile() output is missing the name %q", name)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unclosed_list", `(module (func`, "unclosed list"},
		{"stray_paren", `(module))`, "unexpected )"},
		{"not_a_module", `(memory 1)`, "must be (module ...)"},
		{"two_forms", `(module) (module)`, "exactly one"},
		{"unsupported_field", `(module (table 1 funcref))`, "unsupported module field"},
		{"unsupported_instruction", `(module (func (drop (f32.const 1))))`, "unsupported instruction"},
		{"unknown_local", `(module (func (drop (local.get $missing))))`, `unknown local "$missing"`},
		{"unknown_function", `(module (export "f" (func $missing)))`, `unknown function "$missing"`},
		{"if_without_then", `(module (func (if (i32.const 1))))`, "if without a then clause"},
		{"import_after_func", `(module (func) (import "a" "b" (func)))`, "imports must precede"},
		{"bad_escape", `(module (data (i32.const 0) "\q"))`, "bad escape"},
		{"bad_alignment", `(module (memory 1) (func (i32.load align=3 (i32.const 0))))`, "power of two"},
		{"unterminated_string", `(module (data (i32.const 0) "hi`, "unterminated string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if err == nil {
				t.Fatalf("Compile() error = nil, want substring %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Compile() error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestCompileErrorLine(t *testing.T) {
	src := "(module\n  (func\n    (bogus)))"
	_, err := Compile(src)
	if err == nil {
		t.Fatal("Compile() error = nil, want line-tagged error")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("Compile() error = %q, want it to name line 3", err)
	}
}

func TestAppendU32(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xE5, 0x8E, 0x26}},
		{math.MaxUint32, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, tt := range tests {
		if got := appendU32(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("appendU32(%d) = % x, want % x", tt.v, got, tt.want)
		}
	}
}

func TestAppendI64(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7F}},
		{63, []byte{0x3F}},
		{64, []byte{0xC0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xBF, 0x7F}},
		{-8, []byte{0x78}},
	}
	for _, tt := range tests {
		if got := appendI64(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("appendI64(%d) = % x, want % x", tt.v, got, tt.want)
		}
	}
}

func TestGroupLocals(t *testing.T) {
	got := groupLocals([]byte{valI32, valI32, valI64, valI32})
	want := []localGroup{
		{count: 2, valType: valI32},
		{count: 1, valType: valI64},
		{count: 1, valType: valI32},
	}
	if len(got) != len(want) {
		t.Fatalf("groupLocals() produced %d groups, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("groupLocals()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
