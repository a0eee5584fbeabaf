package shape

import (
	"go.bytecodealliance.org/wit"

	"github.com/name1e5s/uniffi-go/errors"
)

// FromWIT maps an already-resolved WIT type to a return shape. A nil type
// means the function has no result and is Void. WIT has no erased
// generics, so FromWIT never yields Generic; that shape only enters
// through the definition language's "any" placeholder.
func FromWIT(t wit.Type) (Shape, error) {
	if t == nil {
		return Void{}, nil
	}

	switch typ := t.(type) {
	case wit.Bool:
		return Concrete{Type: "bool"}, nil
	case wit.U8:
		return Concrete{Type: "u8"}, nil
	case wit.S8:
		return Concrete{Type: "i8"}, nil
	case wit.U16:
		return Concrete{Type: "u16"}, nil
	case wit.S16:
		return Concrete{Type: "i16"}, nil
	case wit.U32:
		return Concrete{Type: "u32"}, nil
	case wit.S32:
		return Concrete{Type: "i32"}, nil
	case wit.U64:
		return Concrete{Type: "u64"}, nil
	case wit.S64:
		return Concrete{Type: "i64"}, nil
	case wit.F32:
		return Concrete{Type: "f32"}, nil
	case wit.F64:
		return Concrete{Type: "f64"}, nil
	case wit.Char:
		return Concrete{Type: "char"}, nil
	case wit.String:
		return Concrete{Type: "string"}, nil
	case *wit.TypeDef:
		return fromTypeDef(typ)
	default:
		return nil, errors.New(errors.PhaseShape, errors.KindInvalidDefinition).
			Detail("unsupported WIT type: %T", t).
			Build()
	}
}

func fromTypeDef(t *wit.TypeDef) (Shape, error) {
	// A list of bytes is the one compound this boundary moves whole.
	if l, ok := t.Kind.(*wit.List); ok {
		if _, isU8 := l.Type.(wit.U8); isU8 {
			return Concrete{Type: "bytes"}, nil
		}
	}

	if t.Name != nil {
		return Concrete{Type: *t.Name}, nil
	}

	// Anonymous alias of another type.
	if inner, ok := t.Kind.(wit.Type); ok {
		return FromWIT(inner)
	}

	return nil, errors.New(errors.PhaseShape, errors.KindInvalidDefinition).
		Detail("unsupported anonymous WIT type: %T", t.Kind).
		Build()
}
