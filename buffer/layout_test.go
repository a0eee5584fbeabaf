package buffer

import (
	"bytes"
	"errors"
	"testing"

	uniffierrors "github.com/name1e5s/uniffi-go/errors"
)

func TestLayoutSizes(t *testing.T) {
	tests := []struct {
		name   string
		l      Layout
		buffer uint32
		view   uint32
		status uint32
	}{
		{"wasm32", LayoutWasm32, 20, 20, 28},
		{"host", LayoutHost, 24, 24, 32},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.l.BufferSize(); got != tc.buffer {
				t.Errorf("BufferSize = %d, want %d", got, tc.buffer)
			}
			if got := tc.l.ViewSize(); got != tc.view {
				t.Errorf("ViewSize = %d, want %d", got, tc.view)
			}
			if got := tc.l.StatusSize(); got != tc.status {
				t.Errorf("StatusSize = %d, want %d", got, tc.status)
			}
		})
	}
}

func TestBufferHeaderBytes(t *testing.T) {
	buf := Buffer{Cap: 0x00000102, Len: 0x00000001, Data: 0xDEADBEEF}

	t.Run("wasm32", func(t *testing.T) {
		p := make([]byte, LayoutWasm32.BufferSize())
		if err := LayoutWasm32.PutBuffer(p, buf); err != nil {
			t.Fatalf("PutBuffer failed: %v", err)
		}
		want := []byte{
			0x02, 0x01, 0x00, 0x00, // cap
			0x01, 0x00, 0x00, 0x00, // len
			0xEF, 0xBE, 0xAD, 0xDE, // data
			0, 0, 0, 0, 0, 0, 0, 0, // pad
		}
		if !bytes.Equal(p, want) {
			t.Errorf("packed = % x, want % x", p, want)
		}
	})

	t.Run("host", func(t *testing.T) {
		p := make([]byte, LayoutHost.BufferSize())
		if err := LayoutHost.PutBuffer(p, buf); err != nil {
			t.Fatalf("PutBuffer failed: %v", err)
		}
		want := []byte{
			0x02, 0x01, 0x00, 0x00, // cap
			0x01, 0x00, 0x00, 0x00, // len
			0xEF, 0xBE, 0xAD, 0xDE, 0x00, 0x00, 0x00, 0x00, // data
			0, 0, 0, 0, 0, 0, 0, 0, // pad
		}
		if !bytes.Equal(p, want) {
			t.Errorf("packed = % x, want % x", p, want)
		}
	})
}

func TestBufferHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		l    Layout
		buf  Buffer
	}{
		{"wasm32_empty", LayoutWasm32, Buffer{}},
		{"wasm32_live", LayoutWasm32, Buffer{Cap: 64, Len: 12, Data: 0x1000}},
		{"host_live", LayoutHost, Buffer{Cap: 64, Len: 12, Data: 0x1000}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := make([]byte, tc.l.BufferSize())
			if err := tc.l.PutBuffer(p, tc.buf); err != nil {
				t.Fatalf("PutBuffer failed: %v", err)
			}
			got, err := tc.l.GetBuffer(p)
			if err != nil {
				t.Fatalf("GetBuffer failed: %v", err)
			}
			if got != tc.buf {
				t.Errorf("round trip = %+v, want %+v", got, tc.buf)
			}
		})
	}
}

func TestGetBufferMalformed(t *testing.T) {
	mk := func(buf Buffer) []byte {
		p := make([]byte, LayoutWasm32.BufferSize())
		// Pack without validation by writing the fields directly.
		p[0], p[1], p[2], p[3] = byte(buf.Cap), byte(buf.Cap>>8), byte(buf.Cap>>16), byte(buf.Cap>>24)
		p[4], p[5], p[6], p[7] = byte(buf.Len), byte(buf.Len>>8), byte(buf.Len>>16), byte(buf.Len>>24)
		p[8], p[9], p[10], p[11] = byte(buf.Data), byte(buf.Data>>8), byte(buf.Data>>16), byte(buf.Data>>24)
		return p
	}

	tests := []struct {
		name string
		buf  Buffer
	}{
		{"len_exceeds_cap", Buffer{Cap: 4, Len: 8, Data: 0x100}},
		{"null_data_nonzero_cap", Buffer{Cap: 4, Len: 0, Data: 0}},
		{"data_without_cap", Buffer{Cap: 0, Len: 0, Data: 0x100}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LayoutWasm32.GetBuffer(mk(tc.buf))
			if err == nil {
				t.Fatal("GetBuffer accepted a malformed header")
			}
			var e *uniffierrors.Error
			if !errors.As(err, &e) || e.Kind != uniffierrors.KindProtocol {
				t.Fatalf("error = %v, want protocol_violation", err)
			}
		})
	}
}

func TestGetBufferWideHandle(t *testing.T) {
	p := make([]byte, LayoutHost.BufferSize())
	if err := LayoutHost.PutBuffer(p, Buffer{Cap: 8, Len: 0, Data: 0x1000}); err != nil {
		t.Fatalf("PutBuffer failed: %v", err)
	}
	// Poke a bit above the 32-bit range into the data word.
	p[12] = 0x01

	_, err := LayoutHost.GetBuffer(p)
	if err == nil {
		t.Fatal("GetBuffer accepted a handle above the 32-bit range")
	}
	var e *uniffierrors.Error
	if !errors.As(err, &e) || e.Kind != uniffierrors.KindProtocol {
		t.Fatalf("error = %v, want protocol_violation", err)
	}
}

func TestViewHeaderBytes(t *testing.T) {
	p := make([]byte, LayoutWasm32.ViewSize())
	if err := LayoutWasm32.PutView(p, 0x00000304, 0xCAFED00D); err != nil {
		t.Fatalf("PutView failed: %v", err)
	}
	want := []byte{
		0x04, 0x03, 0x00, 0x00, // len
		0x0D, 0xD0, 0xFE, 0xCA, // data
		0, 0, 0, 0, 0, 0, 0, 0, // pad
		0, 0, 0, 0, // pad
	}
	if !bytes.Equal(p, want) {
		t.Errorf("packed = % x, want % x", p, want)
	}

	length, data, err := LayoutWasm32.GetView(p)
	if err != nil {
		t.Fatalf("GetView failed: %v", err)
	}
	if length != 0x304 || data != 0xCAFED00D {
		t.Errorf("round trip = (%#x, %#x), want (0x304, 0xcafed00d)", length, data)
	}
}

func TestGetViewNullData(t *testing.T) {
	p := make([]byte, LayoutWasm32.ViewSize())
	p[0] = 4 // len 4, data 0

	_, _, err := LayoutWasm32.GetView(p)
	if err == nil {
		t.Fatal("GetView accepted len > 0 with null data")
	}
	var e *uniffierrors.Error
	if !errors.As(err, &e) || e.Kind != uniffierrors.KindProtocol {
		t.Fatalf("error = %v, want protocol_violation", err)
	}
}

func TestStatusBlock(t *testing.T) {
	st := Status{Code: CodeError, ErrBuf: Buffer{Cap: 32, Len: 17, Data: 0x2000}}

	p := make([]byte, LayoutWasm32.StatusSize())
	if err := LayoutWasm32.PutStatus(p, st); err != nil {
		t.Fatalf("PutStatus failed: %v", err)
	}
	if p[0] != 1 {
		t.Errorf("code byte = %d, want 1", p[0])
	}

	got, err := LayoutWasm32.GetStatus(p)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if got != st {
		t.Errorf("round trip = %+v, want %+v", got, st)
	}
}

func TestGetStatusBadCode(t *testing.T) {
	p := make([]byte, LayoutWasm32.StatusSize())
	p[0] = 7

	_, err := LayoutWasm32.GetStatus(p)
	if err == nil {
		t.Fatal("GetStatus accepted an unknown code")
	}
	var e *uniffierrors.Error
	if !errors.As(err, &e) || e.Kind != uniffierrors.KindProtocol {
		t.Fatalf("error = %v, want protocol_violation", err)
	}
}

func TestStatusThroughMemory(t *testing.T) {
	br, a := newTestBridge(t)

	ptr, err := a.Alloc(LayoutHost.StatusSize())
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	want := Status{Code: CodePanic, ErrBuf: Buffer{Cap: 16, Len: 5, Data: 0x3000}}
	if err := LayoutHost.WriteStatus(br.Memory(), ptr, want); err != nil {
		t.Fatalf("WriteStatus failed: %v", err)
	}
	got, err := LayoutHost.ReadStatus(br.Memory(), ptr)
	if err != nil {
		t.Fatalf("ReadStatus failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestShortSlice(t *testing.T) {
	var e *uniffierrors.Error

	if err := LayoutWasm32.PutBuffer(make([]byte, 4), Buffer{}); err == nil {
		t.Error("PutBuffer accepted a short slice")
	} else if !errors.As(err, &e) || e.Kind != uniffierrors.KindOutOfBounds {
		t.Errorf("PutBuffer error = %v, want out_of_bounds", err)
	}

	if _, err := LayoutWasm32.GetStatus(make([]byte, 4)); err == nil {
		t.Error("GetStatus accepted a short slice")
	} else if !errors.As(err, &e) || e.Kind != uniffierrors.KindOutOfBounds {
		t.Errorf("GetStatus error = %v, want out_of_bounds", err)
	}
}
