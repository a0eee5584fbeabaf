package buffer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/name1e5s/uniffi-go/errors"
)

// Code is the envelope status code reported through the out-parameter.
type Code int8

const (
	CodeSuccess Code = 0
	CodeError   Code = 1
	CodePanic   Code = 2
)

// Status is the out-parameter every fallible entry point takes as its
// final argument. The caller must Check it before touching the entry
// point's return value; on any non-success code that value is meaningless
// and must not be freed as if it were a live Buffer.
//
// On CodeError, ErrBuf is an owned Buffer holding structured detail (kind
// code, message length, message, big-endian) that Check lifts and frees.
// On CodePanic it holds the panic message in the same encoding.
type Status struct {
	Code   Code
	ErrBuf Buffer
}

// Complete runs one entry point body under the envelope convention: the
// body's error lands in st as CodeError, an ordinary panic as CodePanic,
// and a protocol violation is re-panicked untouched. The zero R is
// returned on any failure.
func Complete[R any](br *Bridge, st *Status, fn func() (R, error)) (result R) {
	defer func() {
		if r := recover(); r != nil {
			if errors.IsProtocol(r) {
				panic(r)
			}
			Logger().Debug("entry point panicked", zap.Any("value", r))
			st.Code = CodePanic
			st.ErrBuf = encodeDetail(br, errors.KindPanic.Code(), fmt.Sprint(r))
		}
	}()

	r, err := fn()
	if err != nil {
		if errors.IsProtocol(err) {
			panic(err)
		}
		st.Code = CodeError
		st.ErrBuf = encodeFailure(br, err)
		var zero R
		return zero
	}

	st.Code = CodeSuccess
	st.ErrBuf = Buffer{}
	return r
}

// Check inspects st after an entry point returns. CodeSuccess yields nil;
// CodeError lifts and frees the detail buffer into a structured error;
// CodePanic means the native side hit an internal defect, which is fatal
// for the caller as well.
func Check(br *Bridge, st *Status) error {
	switch st.Code {
	case CodeSuccess:
		return nil

	case CodeError:
		kind, msg := decodeDetail(br, st.ErrBuf)
		st.ErrBuf = Buffer{}
		k := errors.KindForCode(kind)
		if k == "" {
			k = errors.KindUnknown
		}
		return errors.New(errors.PhaseCall, k).Detail(msg).Build()

	case CodePanic:
		_, msg := decodeDetail(br, st.ErrBuf)
		st.ErrBuf = Buffer{}
		panic(errors.New(errors.PhaseCall, errors.KindPanic).Detail(msg).Build())

	default:
		panic(errors.Protocol(errors.PhaseCall, "envelope status code %d is not part of the contract", st.Code))
	}
}

// Do wraps a caller-side invocation: it supplies the Status, invokes fn
// with it, and Checks the outcome.
func Do[R any](br *Bridge, fn func(*Status) R) (R, error) {
	var st Status
	r := fn(&st)
	if err := Check(br, &st); err != nil {
		var zero R
		return zero, err
	}
	return r, nil
}

// encodeFailure serializes err into an owned detail buffer.
func encodeFailure(br *Bridge, err error) Buffer {
	kind := uint32(0)
	if e, ok := err.(*errors.Error); ok {
		kind = e.Kind.Code()
	}
	return encodeDetail(br, kind, err.Error())
}

// encodeDetail writes (kind u32, len u32, message) big-endian into a fresh
// buffer. The detail is best-effort: if the bridge cannot even allocate
// it, the status carries an empty ErrBuf and only the code survives.
func encodeDetail(br *Bridge, kind uint32, msg string) Buffer {
	w, err := NewWriter(br)
	if err != nil {
		Logger().Warn("cannot allocate envelope detail", zap.Error(err))
		return Buffer{}
	}
	if err := w.WriteU32(kind); err == nil {
		err = w.WriteU32(uint32(len(msg)))
	}
	if err == nil {
		err = w.WriteBytes([]byte(msg))
	}
	if err != nil {
		Logger().Warn("cannot serialize envelope detail", zap.Error(err))
		w.Discard()
		return Buffer{}
	}
	return w.Finalize()
}

// decodeDetail lifts (kind, message) out of an owned detail buffer and
// frees it. An empty buffer decodes to an unknown failure.
func decodeDetail(br *Bridge, buf Buffer) (uint32, string) {
	if buf.Empty() {
		return 0, "no failure detail provided"
	}

	r := NewReader(br, buf)
	kind, err := r.ReadU32()
	if err != nil {
		freeDetail(br, buf)
		return 0, "corrupt failure detail"
	}
	n, err := r.ReadU32()
	if err != nil {
		freeDetail(br, buf)
		return kind, "corrupt failure detail"
	}
	msg, err := r.ReadBytes(n)
	if err != nil {
		freeDetail(br, buf)
		return kind, "corrupt failure detail"
	}

	freeDetail(br, buf)
	return kind, string(msg)
}

func freeDetail(br *Bridge, buf Buffer) {
	if err := br.free(buf); err != nil {
		Logger().Warn("cannot free envelope detail", zap.Error(err))
	}
}
