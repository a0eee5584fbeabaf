package delegate

import (
	"reflect"

	"github.com/name1e5s/uniffi-go/errors"
)

// Coerce narrows a dynamically typed delegate result to the concrete type
// the caller declared. A mismatch is an expected, reportable failure: the
// delegate simply returned something else, which the caller surfaces
// rather than the bridge swallowing or crashing on it.
//
// Path, when given, names the method result for the error message.
func Coerce[T any](v any, path ...string) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, errors.CoercionFailed(path, typeName[T](), dynamicName(v))
	}
	return t, nil
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func dynamicName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
