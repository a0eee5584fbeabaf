package shape

import "fmt"

// Shape classifies what a wrapped method hands back to its caller. The set
// is closed: generated code switches over exactly these three cases, and
// the choice is made once per method when scaffolding is generated, never
// per call.
type Shape interface {
	isShape()
	fmt.Stringer
}

// Void is the shape of a method with no return value. The thunk's natural
// result, if any, is discarded rather than coerced.
type Void struct{}

// Generic is the shape of a method returning the erased placeholder type.
// Call sites receive a dynamically typed value and coerce it themselves.
type Generic struct{}

// Concrete is the shape of a method returning one declared type, carried
// by its name in the definition language.
type Concrete struct {
	Type string
}

func (Void) isShape()     {}
func (Generic) isShape()  {}
func (Concrete) isShape() {}

func (Void) String() string    { return "void" }
func (Generic) String() string { return "generic" }

func (c Concrete) String() string { return fmt.Sprintf("concrete(%s)", c.Type) }

// Select resolves a declared return type name to its Shape. Absent,
// "void" and "unit" declarations are Void; the erased placeholder "any"
// is Generic; every other name is Concrete. Select is total and
// deterministic.
func Select(declared string) Shape {
	switch declared {
	case "", "void", "unit":
		return Void{}
	case "any":
		return Generic{}
	default:
		return Concrete{Type: declared}
	}
}
