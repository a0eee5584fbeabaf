package buffer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	uniffierrors "github.com/name1e5s/uniffi-go/errors"
)

func TestCompleteSuccess(t *testing.T) {
	br, _ := newTestBridge(t)

	var st Status
	got := Complete(br, &st, func() (int, error) {
		return 42, nil
	})
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if st.Code != CodeSuccess {
		t.Errorf("status = %d, want success", st.Code)
	}
	if !st.ErrBuf.Empty() {
		t.Errorf("ErrBuf = %+v, want empty", st.ErrBuf)
	}
	if err := Check(br, &st); err != nil {
		t.Errorf("Check = %v, want nil", err)
	}
}

func TestCompleteError(t *testing.T) {
	br, a := newTestBridge(t)

	var st Status
	got := Complete(br, &st, func() (int, error) {
		return 0, uniffierrors.CoercionFailed([]string{"echo", "len"}, "string", "int64")
	})
	if got != 0 {
		t.Errorf("result = %d, want zero value", got)
	}
	if st.Code != CodeError {
		t.Fatalf("status = %d, want error", st.Code)
	}
	if st.ErrBuf.Empty() {
		t.Fatal("ErrBuf is empty, want encoded detail")
	}

	err := Check(br, &st)
	if err == nil {
		t.Fatal("Check = nil, want error")
	}
	var e *uniffierrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("Check error type = %T", err)
	}
	if e.Kind != uniffierrors.KindCoercion {
		t.Errorf("kind = %s, want %s", e.Kind, uniffierrors.KindCoercion)
	}
	if !strings.Contains(e.Error(), "string") || !strings.Contains(e.Error(), "int64") {
		t.Errorf("detail lost in transit: %v", e)
	}

	// Check consumed and freed the detail buffer.
	if !st.ErrBuf.Empty() {
		t.Errorf("ErrBuf = %+v after Check, want empty", st.ErrBuf)
	}
	if got := a.Stats().LiveAllocs; got != 0 {
		t.Errorf("LiveAllocs = %d after Check, want 0", got)
	}
}

func TestCompletePlainErrorDecodesAsUnknown(t *testing.T) {
	br, _ := newTestBridge(t)

	var st Status
	Complete(br, &st, func() (struct{}, error) {
		return struct{}{}, fmt.Errorf("plain failure")
	})
	if st.Code != CodeError {
		t.Fatalf("status = %d, want error", st.Code)
	}

	err := Check(br, &st)
	var e *uniffierrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("Check error type = %T", err)
	}
	if e.Kind != uniffierrors.KindUnknown {
		t.Errorf("kind = %s, want %s", e.Kind, uniffierrors.KindUnknown)
	}
	if !strings.Contains(e.Error(), "plain failure") {
		t.Errorf("message lost in transit: %v", e)
	}
}

func TestCompletePanic(t *testing.T) {
	br, a := newTestBridge(t)

	var st Status
	got := Complete(br, &st, func() (string, error) {
		panic("native defect")
	})
	if got != "" {
		t.Errorf("result = %q, want zero value", got)
	}
	if st.Code != CodePanic {
		t.Fatalf("status = %d, want panic", st.Code)
	}
	if st.ErrBuf.Empty() {
		t.Fatal("ErrBuf is empty, want panic detail")
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Check did not escalate the panic status")
		}
		e, ok := r.(*uniffierrors.Error)
		if !ok || e.Kind != uniffierrors.KindPanic {
			t.Fatalf("panic value = %v, want native_panic error", r)
		}
		if !strings.Contains(e.Error(), "native defect") {
			t.Errorf("panic message lost in transit: %v", e)
		}
		if got := a.Stats().LiveAllocs; got != 0 {
			t.Errorf("LiveAllocs = %d after Check, want 0", got)
		}
	}()
	_ = Check(br, &st)
}

func TestCompleteProtocolViolationPassesThrough(t *testing.T) {
	br, _ := newTestBridge(t)

	t.Run("panicked", func(t *testing.T) {
		assertProtocolPanic(t, func() {
			var st Status
			Complete(br, &st, func() (int, error) {
				panic(uniffierrors.Protocol(uniffierrors.PhaseAlloc, "double free"))
			})
		})
	})

	t.Run("returned", func(t *testing.T) {
		assertProtocolPanic(t, func() {
			var st Status
			Complete(br, &st, func() (int, error) {
				return 0, uniffierrors.Protocol(uniffierrors.PhaseAlloc, "double free")
			})
		})
	})
}

func TestCheckUnknownCodePanics(t *testing.T) {
	br, _ := newTestBridge(t)

	assertProtocolPanic(t, func() {
		st := Status{Code: Code(9)}
		_ = Check(br, &st)
	})
}

func TestDo(t *testing.T) {
	br, _ := newTestBridge(t)

	t.Run("success", func(t *testing.T) {
		got, err := Do(br, func(st *Status) int {
			return Complete(br, st, func() (int, error) { return 7, nil })
		})
		if err != nil {
			t.Fatalf("Do = %v, want nil", err)
		}
		if got != 7 {
			t.Errorf("result = %d, want 7", got)
		}
	})

	t.Run("failure", func(t *testing.T) {
		got, err := Do(br, func(st *Status) int {
			return Complete(br, st, func() (int, error) {
				return 99, fmt.Errorf("nope")
			})
		})
		if err == nil {
			t.Fatal("Do = nil, want error")
		}
		if got != 0 {
			t.Errorf("result = %d, want zero value on failure", got)
		}
	})
}

func TestDetailRoundTripExactBytes(t *testing.T) {
	br, _ := newTestBridge(t)

	buf := encodeDetail(br, 4, "bad value")
	if buf.Empty() {
		t.Fatal("encodeDetail returned the empty buffer")
	}

	r := NewReader(br, buf)
	kind, err := r.ReadU32()
	if err != nil || kind != 4 {
		t.Errorf("kind = %d, %v; want 4", kind, err)
	}
	n, err := r.ReadU32()
	if err != nil || n != 9 {
		t.Errorf("length = %d, %v; want 9", n, err)
	}
	msg, err := r.ReadBytes(n)
	if err != nil || string(msg) != "bad value" {
		t.Errorf("message = %q, %v; want %q", msg, err, "bad value")
	}

	if err := br.free(buf); err != nil {
		t.Fatalf("free failed: %v", err)
	}
}
