package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseCall,
				Kind:   KindCoercion,
				Path:   []string{"EchoDelegate", "withReturn"},
				Want:   "string",
				Got:    "int64",
				Detail: "cannot coerce",
			},
			contains: []string{"[call]", "coercion_failed", "EchoDelegate.withReturn", "want string", "got int64", "cannot coerce"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRead,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[read]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindAllocation,
				Detail: "arena full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "allocation_failed", "arena full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseAlloc,
		Kind:  KindAllocation,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseCall,
		Kind:  KindCoercion,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseCall, Kind: KindCoercion}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseRead, Kind: KindCoercion}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseCall, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseCall, Kind: KindCoercion}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCall, KindCoercion).
		Path("Echo", "len").
		Want("uint32").
		Got("string").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "uint32", "string").
		Build()

	if err.Phase != PhaseCall {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseCall)
	}
	if err.Kind != KindCoercion {
		t.Errorf("Kind = %v, want %v", err.Kind, KindCoercion)
	}
	if len(err.Path) != 2 || err.Path[0] != "Echo" || err.Path[1] != "len" {
		t.Errorf("Path = %v, want [Echo len]", err.Path)
	}
	if err.Want != "uint32" {
		t.Errorf("Want = %v, want 'uint32'", err.Want)
	}
	if err.Got != "string" {
		t.Errorf("Got = %v, want 'string'", err.Got)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected uint32, got string" {
		t.Errorf("Detail = %v, want 'expected uint32, got string'", err.Detail)
	}
}

func TestKindCodes(t *testing.T) {
	kinds := []Kind{
		KindAllocation,
		KindOutOfBounds,
		KindProtocol,
		KindCoercion,
		KindInvalidDefinition,
		KindMissingExport,
		KindVersionMismatch,
		KindChecksumMismatch,
		KindPanic,
	}

	seen := make(map[uint32]Kind)
	for _, k := range kinds {
		code := k.Code()
		if code == 0 {
			t.Errorf("kind %q has no code", k)
		}
		if prev, dup := seen[code]; dup {
			t.Errorf("kinds %q and %q share code %d", prev, k, code)
		}
		seen[code] = k

		if back := KindForCode(code); back != k {
			t.Errorf("KindForCode(%d) = %q, want %q", code, back, k)
		}
	}

	if KindForCode(9999) != "" {
		t.Error("unknown code should map to empty kind")
	}
	if Kind("nonsense").Code() != 0 {
		t.Error("unknown kind should have code 0")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("AllocationFailed", func(t *testing.T) {
		cause := errors.New("limit")
		err := AllocationFailed(PhaseAlloc, 1024, cause)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
		if !errors.Is(err, &Error{Phase: PhaseAlloc, Kind: KindAllocation}) {
			t.Error("errors.Is should match")
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseRead, 0x100, 8, 64)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint32(0x100) {
			t.Errorf("Value = %v, want 0x100", err.Value)
		}
	})

	t.Run("Protocol", func(t *testing.T) {
		err := Protocol(PhaseAlloc, "double free of 0x%x", 0x40)
		if err.Kind != KindProtocol {
			t.Errorf("Kind = %v, want %v", err.Kind, KindProtocol)
		}
		if !strings.Contains(err.Detail, "0x40") {
			t.Errorf("Detail = %v, should contain pointer", err.Detail)
		}
	})

	t.Run("CoercionFailed", func(t *testing.T) {
		err := CoercionFailed([]string{"Echo", "len"}, "uint32", "string")
		if err.Kind != KindCoercion {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCoercion)
		}
		if err.Want != "uint32" || err.Got != "string" {
			t.Errorf("Want=%v Got=%v", err.Want, err.Got)
		}
	})

	t.Run("InvalidDefinition", func(t *testing.T) {
		err := InvalidDefinition([]string{"Echo"}, "duplicate method %q", "len")
		if err.Kind != KindInvalidDefinition {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidDefinition)
		}
		if !strings.Contains(err.Detail, "len") {
			t.Errorf("Detail = %v, should contain method name", err.Detail)
		}
	})

	t.Run("MissingExport", func(t *testing.T) {
		err := MissingExport("cabi_realloc")
		if err.Kind != KindMissingExport {
			t.Errorf("Kind = %v, want %v", err.Kind, KindMissingExport)
		}
	})

	t.Run("VersionMismatch", func(t *testing.T) {
		err := VersionMismatch(1, 2)
		if err.Kind != KindVersionMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindVersionMismatch)
		}
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		err := ChecksumMismatch("EchoDelegate", "withCounter", 0x1234, 0x4321)
		if err.Kind != KindChecksumMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindChecksumMismatch)
		}
		if !strings.Contains(err.Error(), "EchoDelegate.withCounter") {
			t.Errorf("Error = %v, should contain path", err.Error())
		}
	})
}

func TestIsProtocol(t *testing.T) {
	if !IsProtocol(Protocol(PhaseAlloc, "double free")) {
		t.Error("IsProtocol should recognize protocol violations")
	}
	if IsProtocol(AllocationFailed(PhaseAlloc, 16, nil)) {
		t.Error("IsProtocol should not match allocation errors")
	}
	if IsProtocol("some panic string") {
		t.Error("IsProtocol should not match non-Error values")
	}
	if IsProtocol(nil) {
		t.Error("IsProtocol should not match nil")
	}
}

func TestDefinitionError(t *testing.T) {
	t.Run("nil on empty", func(t *testing.T) {
		if err := NewDefinitionError(nil); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("grouped by owner", func(t *testing.T) {
		err := NewDefinitionError([]*Error{
			InvalidDefinition([]string{"Echo", "len"}, "unknown call_with %q", "missing"),
			InvalidDefinition([]string{"EchoDelegate", "withCounter"}, "duplicate method"),
			InvalidDefinition([]string{"Echo"}, "unknown delegate"),
		})
		if err == nil {
			t.Fatal("expected error")
		}
		msg := err.Error()
		if !strings.Contains(msg, "3 problem(s)") {
			t.Errorf("error should contain count, got: %s", msg)
		}
		if !strings.Contains(msg, "Echo:") {
			t.Errorf("error should group by owner, got: %s", msg)
		}
		if !strings.Contains(msg, "EchoDelegate:") {
			t.Errorf("error should contain second owner, got: %s", msg)
		}
		if !strings.Contains(msg, "len: ") {
			t.Errorf("error should include sub-path, got: %s", msg)
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewDefinitionError([]*Error{InvalidDefinition(nil, "x")})
		if !errors.Is(err, &DefinitionError{}) {
			t.Error("errors.Is should match DefinitionError")
		}
	})
}
