package wat

// Binary encoding constants from the wasm spec.
const (
	secType   = 1
	secImport = 2
	secFunc   = 3
	secMemory = 5
	secGlobal = 6
	secExport = 7
	secCode   = 10
	secData   = 11

	valI32 = 0x7F
	valI64 = 0x7E
	valF32 = 0x7D
	valF64 = 0x7C

	funcTypeMarker = 0x60
	blockEmpty     = 0x40

	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03

	opEnd = 0x0B
)

type funcType struct {
	params  []byte
	results []byte
}

type funcImport struct {
	module  string
	name    string
	typeIdx uint32
}

type function struct {
	typeIdx uint32
	locals  []byte // one valtype per local, params excluded
	body    []byte // encoded expr without the trailing end
}

type global struct {
	valType byte
	mutable bool
	init    []byte // encoded const expr without the trailing end
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type memType struct {
	min uint32
	max *uint32
}

type dataSeg struct {
	offset []byte // encoded const expr without the trailing end
	init   []byte
}

type module struct {
	types   []funcType
	imports []funcImport
	funcs   []function
	mems    []memType
	globals []global
	exports []export
	data    []dataSeg
}

// appendU32 appends the unsigned LEB128 encoding of v.
func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

// appendI64 appends the signed LEB128 encoding of v.
func appendI64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendI32(b []byte, v int32) []byte {
	return appendI64(b, int64(v))
}

func appendName(b []byte, s string) []byte {
	b = appendU32(b, uint32(len(s)))
	return append(b, s...)
}

func appendSection(b []byte, id byte, content []byte) []byte {
	b = append(b, id)
	b = appendU32(b, uint32(len(content)))
	return append(b, content...)
}

func (m *module) encode() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	if len(m.types) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.types)))
		for _, t := range m.types {
			sec = append(sec, funcTypeMarker)
			sec = appendU32(sec, uint32(len(t.params)))
			sec = append(sec, t.params...)
			sec = appendU32(sec, uint32(len(t.results)))
			sec = append(sec, t.results...)
		}
		out = appendSection(out, secType, sec)
	}

	if len(m.imports) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, kindFunc)
			sec = appendU32(sec, imp.typeIdx)
		}
		out = appendSection(out, secImport, sec)
	}

	if len(m.funcs) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec = appendU32(sec, f.typeIdx)
		}
		out = appendSection(out, secFunc, sec)
	}

	if len(m.mems) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.mems)))
		for _, mem := range m.mems {
			if mem.max != nil {
				sec = append(sec, 0x01)
				sec = appendU32(sec, mem.min)
				sec = appendU32(sec, *mem.max)
			} else {
				sec = append(sec, 0x00)
				sec = appendU32(sec, mem.min)
			}
		}
		out = appendSection(out, secMemory, sec)
	}

	if len(m.globals) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.globals)))
		for _, g := range m.globals {
			sec = append(sec, g.valType)
			if g.mutable {
				sec = append(sec, 0x01)
			} else {
				sec = append(sec, 0x00)
			}
			sec = append(sec, g.init...)
			sec = append(sec, opEnd)
		}
		out = appendSection(out, secGlobal, sec)
	}

	if len(m.exports) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.exports)))
		for _, e := range m.exports {
			sec = appendName(sec, e.name)
			sec = append(sec, e.kind)
			sec = appendU32(sec, e.idx)
		}
		out = appendSection(out, secExport, sec)
	}

	if len(m.funcs) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body []byte
			groups := groupLocals(f.locals)
			body = appendU32(body, uint32(len(groups)))
			for _, g := range groups {
				body = appendU32(body, g.count)
				body = append(body, g.valType)
			}
			body = append(body, f.body...)
			body = append(body, opEnd)

			sec = appendU32(sec, uint32(len(body)))
			sec = append(sec, body...)
		}
		out = appendSection(out, secCode, sec)
	}

	if len(m.data) > 0 {
		var sec []byte
		sec = appendU32(sec, uint32(len(m.data)))
		for _, d := range m.data {
			sec = append(sec, 0x00)
			sec = append(sec, d.offset...)
			sec = append(sec, opEnd)
			sec = appendU32(sec, uint32(len(d.init)))
			sec = append(sec, d.init...)
		}
		out = appendSection(out, secData, sec)
	}

	return out
}

type localGroup struct {
	count   uint32
	valType byte
}

// groupLocals runs consecutive locals of one type into count+type pairs,
// the shape the code section wants.
func groupLocals(locals []byte) []localGroup {
	var groups []localGroup
	for _, vt := range locals {
		if n := len(groups); n > 0 && groups[n-1].valType == vt {
			groups[n-1].count++
			continue
		}
		groups = append(groups, localGroup{count: 1, valType: vt})
	}
	return groups
}
