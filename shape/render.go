package shape

// TypeRenderer turns a Concrete type name from the definition language
// into the target language's spelling. The selector treats renderings as
// opaque facts; it never inspects or normalizes them.
type TypeRenderer interface {
	Render(declared string) string
}

// GoRenderer renders declared type names as Go types. Names outside the
// definition language's primitive vocabulary pass through verbatim, so a
// definition may name any Go type the generated package can see.
type GoRenderer struct{}

var goTypes = map[string]string{
	"bool":   "bool",
	"i8":     "int8",
	"i16":    "int16",
	"i32":    "int32",
	"i64":    "int64",
	"u8":     "uint8",
	"u16":    "uint16",
	"u32":    "uint32",
	"u64":    "uint64",
	"f32":    "float32",
	"f64":    "float64",
	"char":   "rune",
	"string": "string",
	"bytes":  "[]byte",
	"any":    "any",
}

func (GoRenderer) Render(declared string) string {
	if t, ok := goTypes[declared]; ok {
		return t
	}
	return declared
}

var _ TypeRenderer = GoRenderer{}
