package wat

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

const (
	opIf   = 0x04
	opElse = 0x05
)

type pendingFunc struct {
	sig    funcType
	names  map[string]uint32
	locals []byte
	body   []sexpr
}

type pendingGlobal struct {
	idx  uint32
	init sexpr
}

type builder struct {
	mod         *module
	funcNames   map[string]uint32
	globalNames map[string]uint32
	memNames    map[string]uint32
	typeKeys    map[string]uint32

	pendingFuncs   []pendingFunc
	pendingGlobals []pendingGlobal
	pendingExports []sexpr
	pendingData    []sexpr
}

// build turns a parsed (module ...) form into an encodable module. It runs
// two passes so that exports and call sites can reference functions declared
// later in the source.
func build(root []sexpr) (*module, error) {
	if len(root) != 1 {
		return nil, errors.New("source must contain exactly one (module ...) form")
	}
	top := root[0]
	if top.kind != listExpr || len(top.list) == 0 || top.list[0].kind != atomExpr || top.list[0].atom != "module" {
		return nil, fmt.Errorf("line %d: top-level form must be (module ...)", top.line)
	}

	b := &builder{
		mod:         &module{},
		funcNames:   make(map[string]uint32),
		globalNames: make(map[string]uint32),
		memNames:    make(map[string]uint32),
		typeKeys:    make(map[string]uint32),
	}
	for _, field := range top.list[1:] {
		if err := b.declare(field); err != nil {
			return nil, err
		}
	}
	if err := b.compile(); err != nil {
		return nil, err
	}
	return b.mod, nil
}

func (b *builder) declare(field sexpr) error {
	if field.kind != listExpr || len(field.list) == 0 || field.list[0].kind != atomExpr {
		return fmt.Errorf("line %d: module fields must be (keyword ...) lists", field.line)
	}
	switch field.list[0].atom {
	case "import":
		return b.declareImport(field)
	case "func":
		return b.declareFunc(field)
	case "memory":
		return b.declareMemory(field)
	case "global":
		return b.declareGlobal(field)
	case "export":
		b.pendingExports = append(b.pendingExports, field)
		return nil
	case "data":
		b.pendingData = append(b.pendingData, field)
		return nil
	}
	return fmt.Errorf("line %d: unsupported module field %q", field.line, field.list[0].atom)
}

func (b *builder) declareImport(field sexpr) error {
	// Imported functions occupy the low end of the index space, so they
	// must all be declared before the first local function.
	if len(b.pendingFuncs) > 0 {
		return fmt.Errorf("line %d: imports must precede function definitions", field.line)
	}
	items := field.list[1:]
	if len(items) != 3 || items[0].kind != strExpr || items[1].kind != strExpr {
		return fmt.Errorf("line %d: import needs a module name, a field name and a descriptor", field.line)
	}
	desc := items[2]
	if desc.kind != listExpr || len(desc.list) == 0 || desc.list[0].kind != atomExpr || desc.list[0].atom != "func" {
		return fmt.Errorf("line %d: only (func ...) imports are supported", field.line)
	}

	rest := desc.list[1:]
	idx := uint32(len(b.mod.imports))
	if len(rest) > 0 && rest[0].kind == atomExpr && strings.HasPrefix(rest[0].atom, "$") {
		if err := b.bindName(b.funcNames, rest[0].atom, idx, "function", field.line); err != nil {
			return err
		}
		rest = rest[1:]
	}
	sig, _, leftover, err := parseSignature(rest)
	if err != nil {
		return err
	}
	if len(leftover) > 0 {
		return fmt.Errorf("line %d: unexpected tokens in import descriptor", field.line)
	}

	b.mod.imports = append(b.mod.imports, funcImport{
		module:  items[0].atom,
		name:    items[1].atom,
		typeIdx: b.internType(sig),
	})
	return nil
}

func (b *builder) declareFunc(field sexpr) error {
	items := field.list[1:]
	idx := uint32(len(b.mod.imports) + len(b.pendingFuncs))
	if len(items) > 0 && items[0].kind == atomExpr && strings.HasPrefix(items[0].atom, "$") {
		if err := b.bindName(b.funcNames, items[0].atom, idx, "function", field.line); err != nil {
			return err
		}
		items = items[1:]
	}
	items = b.inlineExports(items, kindFunc, idx)

	sig, names, items, err := parseSignature(items)
	if err != nil {
		return err
	}

	var locals []byte
	for len(items) > 0 {
		it := items[0]
		if !isClause(it, "local") {
			break
		}
		rest := it.list[1:]
		if len(rest) == 2 && rest[0].kind == atomExpr && strings.HasPrefix(rest[0].atom, "$") {
			vt, ok := valTypeByte(rest[1])
			if !ok {
				return fmt.Errorf("line %d: unknown value type in local clause", it.line)
			}
			names[rest[0].atom] = uint32(len(sig.params) + len(locals))
			locals = append(locals, vt)
		} else {
			for _, t := range rest {
				vt, ok := valTypeByte(t)
				if !ok {
					return fmt.Errorf("line %d: unknown value type in local clause", it.line)
				}
				locals = append(locals, vt)
			}
		}
		items = items[1:]
	}

	b.pendingFuncs = append(b.pendingFuncs, pendingFunc{sig: sig, names: names, locals: locals, body: items})
	return nil
}

func (b *builder) declareMemory(field sexpr) error {
	items := field.list[1:]
	idx := uint32(len(b.mod.mems))
	if len(items) > 0 && items[0].kind == atomExpr && strings.HasPrefix(items[0].atom, "$") {
		if err := b.bindName(b.memNames, items[0].atom, idx, "memory", field.line); err != nil {
			return err
		}
		items = items[1:]
	}
	items = b.inlineExports(items, kindMemory, idx)

	if len(items) == 0 || len(items) > 2 || items[0].kind != atomExpr {
		return fmt.Errorf("line %d: memory needs a min and an optional max page count", field.line)
	}
	min, err := parseU32(items[0].atom, field.line)
	if err != nil {
		return err
	}
	mem := memType{min: min}
	if len(items) == 2 {
		if items[1].kind != atomExpr {
			return fmt.Errorf("line %d: memory max must be a page count", field.line)
		}
		max, err := parseU32(items[1].atom, field.line)
		if err != nil {
			return err
		}
		mem.max = &max
	}
	b.mod.mems = append(b.mod.mems, mem)
	return nil
}

func (b *builder) declareGlobal(field sexpr) error {
	items := field.list[1:]
	idx := uint32(len(b.mod.globals))
	if len(items) > 0 && items[0].kind == atomExpr && strings.HasPrefix(items[0].atom, "$") {
		if err := b.bindName(b.globalNames, items[0].atom, idx, "global", field.line); err != nil {
			return err
		}
		items = items[1:]
	}
	items = b.inlineExports(items, kindGlobal, idx)

	if len(items) != 2 {
		return fmt.Errorf("line %d: global needs a type and an init expression", field.line)
	}
	g := global{}
	t := items[0]
	switch {
	case t.kind == atomExpr:
		vt, ok := valTypeByte(t)
		if !ok {
			return fmt.Errorf("line %d: unknown global type %q", t.line, t.atom)
		}
		g.valType = vt
	case isClause(t, "mut") && len(t.list) == 2:
		vt, ok := valTypeByte(t.list[1])
		if !ok {
			return fmt.Errorf("line %d: unknown global type", t.line)
		}
		g.valType = vt
		g.mutable = true
	default:
		return fmt.Errorf("line %d: global type must be a value type or (mut type)", t.line)
	}

	b.mod.globals = append(b.mod.globals, g)
	b.pendingGlobals = append(b.pendingGlobals, pendingGlobal{idx: idx, init: items[1]})
	return nil
}

func (b *builder) compile() error {
	for _, pg := range b.pendingGlobals {
		fe := &funcEncoder{b: b}
		if err := fe.expr(pg.init); err != nil {
			return err
		}
		b.mod.globals[pg.idx].init = fe.out
	}
	for _, pf := range b.pendingFuncs {
		fe := &funcEncoder{b: b, names: pf.names}
		for _, e := range pf.body {
			if err := fe.expr(e); err != nil {
				return err
			}
		}
		b.mod.funcs = append(b.mod.funcs, function{
			typeIdx: b.internType(pf.sig),
			locals:  pf.locals,
			body:    fe.out,
		})
	}
	for _, pe := range b.pendingExports {
		if err := b.compileExport(pe); err != nil {
			return err
		}
	}
	for _, pd := range b.pendingData {
		if err := b.compileData(pd); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) compileExport(field sexpr) error {
	items := field.list[1:]
	if len(items) != 2 || items[0].kind != strExpr || items[1].kind != listExpr || len(items[1].list) != 2 {
		return fmt.Errorf("line %d: export needs a name and a descriptor", field.line)
	}
	desc := items[1]
	if desc.list[0].kind != atomExpr {
		return fmt.Errorf("line %d: export descriptor must start with a keyword", field.line)
	}

	var kind byte
	var names map[string]uint32
	var what string
	switch desc.list[0].atom {
	case "func":
		kind, names, what = kindFunc, b.funcNames, "function"
	case "memory":
		kind, names, what = kindMemory, b.memNames, "memory"
	case "global":
		kind, names, what = kindGlobal, b.globalNames, "global"
	default:
		return fmt.Errorf("line %d: unsupported export kind %q", field.line, desc.list[0].atom)
	}
	idx, err := resolveIdx(names, desc.list[1], what)
	if err != nil {
		return err
	}
	b.mod.exports = append(b.mod.exports, export{name: items[0].atom, kind: kind, idx: idx})
	return nil
}

func (b *builder) compileData(field sexpr) error {
	items := field.list[1:]
	if len(items) == 0 || items[0].kind != listExpr {
		return fmt.Errorf("line %d: data needs an offset expression", field.line)
	}
	fe := &funcEncoder{b: b}
	if err := fe.expr(items[0]); err != nil {
		return err
	}
	var init []byte
	for _, it := range items[1:] {
		if it.kind != strExpr {
			return fmt.Errorf("line %d: data payload must be string literals", it.line)
		}
		init = append(init, it.atom...)
	}
	b.mod.data = append(b.mod.data, dataSeg{offset: fe.out, init: init})
	return nil
}

func (b *builder) inlineExports(items []sexpr, kind byte, idx uint32) []sexpr {
	for len(items) > 0 {
		it := items[0]
		if !isClause(it, "export") || len(it.list) != 2 || it.list[1].kind != strExpr {
			break
		}
		b.mod.exports = append(b.mod.exports, export{name: it.list[1].atom, kind: kind, idx: idx})
		items = items[1:]
	}
	return items
}

func (b *builder) bindName(names map[string]uint32, name string, idx uint32, what string, line int) error {
	if _, dup := names[name]; dup {
		return fmt.Errorf("line %d: duplicate %s name %q", line, what, name)
	}
	names[name] = idx
	return nil
}

// internType returns the index of sig in the type section, adding it on
// first use.
func (b *builder) internType(sig funcType) uint32 {
	key := string(sig.params) + "|" + string(sig.results)
	if idx, ok := b.typeKeys[key]; ok {
		return idx
	}
	idx := uint32(len(b.mod.types))
	b.typeKeys[key] = idx
	b.mod.types = append(b.mod.types, sig)
	return idx
}

// parseSignature consumes leading (param ...) and (result ...) clauses and
// returns the signature, the named-parameter index map and the remaining
// items.
func parseSignature(items []sexpr) (funcType, map[string]uint32, []sexpr, error) {
	var sig funcType
	names := make(map[string]uint32)
	i := 0
loop:
	for ; i < len(items); i++ {
		it := items[i]
		if it.kind != listExpr || len(it.list) == 0 || it.list[0].kind != atomExpr {
			break
		}
		switch it.list[0].atom {
		case "param":
			rest := it.list[1:]
			if len(rest) == 2 && rest[0].kind == atomExpr && strings.HasPrefix(rest[0].atom, "$") {
				vt, ok := valTypeByte(rest[1])
				if !ok {
					return sig, nil, nil, fmt.Errorf("line %d: unknown value type in param clause", it.line)
				}
				names[rest[0].atom] = uint32(len(sig.params))
				sig.params = append(sig.params, vt)
				continue
			}
			for _, t := range rest {
				vt, ok := valTypeByte(t)
				if !ok {
					return sig, nil, nil, fmt.Errorf("line %d: unknown value type in param clause", it.line)
				}
				sig.params = append(sig.params, vt)
			}
		case "result":
			for _, t := range it.list[1:] {
				vt, ok := valTypeByte(t)
				if !ok {
					return sig, nil, nil, fmt.Errorf("line %d: unknown value type in result clause", it.line)
				}
				sig.results = append(sig.results, vt)
			}
		default:
			break loop
		}
	}
	return sig, names, items[i:], nil
}

type funcEncoder struct {
	b     *builder
	names map[string]uint32 // params and locals, nil for const exprs
	out   []byte
}

// expr encodes one folded instruction: operand lists first, then the
// operator with its immediates.
func (fe *funcEncoder) expr(e sexpr) error {
	if e.kind != listExpr {
		return fmt.Errorf("line %d: expected an instruction list", e.line)
	}
	if len(e.list) == 0 || e.list[0].kind != atomExpr {
		return fmt.Errorf("line %d: instruction list must start with an operator", e.line)
	}
	op := e.list[0].atom
	switch op {
	case "if":
		return fe.ifExpr(e)
	case "then", "else":
		return fmt.Errorf("line %d: %s is only valid inside if", e.line, op)
	}

	args := e.list[1:]
	var imms []sexpr
	i := 0
	for ; i < len(args) && args[i].kind == atomExpr; i++ {
		imms = append(imms, args[i])
	}
	for _, operand := range args[i:] {
		if err := fe.expr(operand); err != nil {
			return err
		}
	}
	return fe.emit(op, imms, e.line)
}

func (fe *funcEncoder) ifExpr(e sexpr) error {
	items := e.list[1:]
	blocktype := byte(blockEmpty)
	if len(items) > 0 && isClause(items[0], "result") {
		r := items[0]
		if len(r.list) != 2 {
			return fmt.Errorf("line %d: if result clause needs one type", r.line)
		}
		vt, ok := valTypeByte(r.list[1])
		if !ok {
			return fmt.Errorf("line %d: unknown value type in result clause", r.line)
		}
		blocktype = vt
		items = items[1:]
	}

	thenAt := -1
	for i, it := range items {
		if isClause(it, "then") {
			thenAt = i
			break
		}
	}
	if thenAt < 0 {
		return fmt.Errorf("line %d: if without a then clause", e.line)
	}

	for _, cond := range items[:thenAt] {
		if err := fe.expr(cond); err != nil {
			return err
		}
	}
	fe.out = append(fe.out, opIf, blocktype)
	for _, it := range items[thenAt].list[1:] {
		if err := fe.expr(it); err != nil {
			return err
		}
	}

	rest := items[thenAt+1:]
	switch {
	case len(rest) == 0:
	case len(rest) == 1 && isClause(rest[0], "else"):
		fe.out = append(fe.out, opElse)
		for _, it := range rest[0].list[1:] {
			if err := fe.expr(it); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("line %d: unexpected tokens after then clause", e.line)
	}
	fe.out = append(fe.out, opEnd)
	return nil
}

func (fe *funcEncoder) emit(op string, imms []sexpr, line int) error {
	if p, ok := prefixedOps[op]; ok {
		if len(imms) != 0 {
			return fmt.Errorf("line %d: %s takes no immediates", line, op)
		}
		fe.out = append(fe.out, 0xFC)
		fe.out = appendU32(fe.out, p.subop)
		for i := 0; i < p.memCount; i++ {
			fe.out = append(fe.out, 0x00)
		}
		return nil
	}

	info, ok := ops[op]
	if !ok {
		return fmt.Errorf("line %d: unsupported instruction %q", line, op)
	}
	switch info.imm {
	case immNone:
		if len(imms) != 0 {
			return fmt.Errorf("line %d: %s takes no immediates", line, op)
		}
		fe.out = append(fe.out, info.opcode)

	case immLocal, immGlobal, immFunc:
		if len(imms) != 1 {
			return fmt.Errorf("line %d: %s needs one index", line, op)
		}
		var names map[string]uint32
		var what string
		switch info.imm {
		case immLocal:
			names, what = fe.names, "local"
		case immGlobal:
			names, what = fe.b.globalNames, "global"
		case immFunc:
			names, what = fe.b.funcNames, "function"
		}
		idx, err := resolveIdx(names, imms[0], what)
		if err != nil {
			return err
		}
		fe.out = append(fe.out, info.opcode)
		fe.out = appendU32(fe.out, idx)

	case immI32:
		if len(imms) != 1 {
			return fmt.Errorf("line %d: %s needs one constant", line, op)
		}
		v, err := parseI32(imms[0].atom, imms[0].line)
		if err != nil {
			return err
		}
		fe.out = append(fe.out, info.opcode)
		fe.out = appendI32(fe.out, v)

	case immI64:
		if len(imms) != 1 {
			return fmt.Errorf("line %d: %s needs one constant", line, op)
		}
		v, err := parseI64(imms[0].atom, imms[0].line)
		if err != nil {
			return err
		}
		fe.out = append(fe.out, info.opcode)
		fe.out = appendI64(fe.out, v)

	case immMem:
		if len(imms) != 0 {
			return fmt.Errorf("line %d: %s takes no immediates", line, op)
		}
		fe.out = append(fe.out, info.opcode, 0x00)

	case immMemarg:
		offset := uint32(0)
		alignBytes := info.align
		for _, im := range imms {
			var err error
			switch {
			case strings.HasPrefix(im.atom, "offset="):
				offset, err = parseU32(strings.TrimPrefix(im.atom, "offset="), im.line)
			case strings.HasPrefix(im.atom, "align="):
				alignBytes, err = parseU32(strings.TrimPrefix(im.atom, "align="), im.line)
			default:
				err = fmt.Errorf("line %d: unexpected immediate %q", im.line, im.atom)
			}
			if err != nil {
				return err
			}
		}
		if alignBytes == 0 || alignBytes&(alignBytes-1) != 0 {
			return fmt.Errorf("line %d: alignment must be a power of two", line)
		}
		fe.out = append(fe.out, info.opcode)
		fe.out = appendU32(fe.out, uint32(bits.TrailingZeros32(alignBytes)))
		fe.out = appendU32(fe.out, offset)
	}
	return nil
}

func isClause(e sexpr, name string) bool {
	return e.kind == listExpr && len(e.list) > 0 && e.list[0].kind == atomExpr && e.list[0].atom == name
}

func valTypeByte(t sexpr) (byte, bool) {
	if t.kind != atomExpr {
		return 0, false
	}
	switch t.atom {
	case "i32":
		return valI32, true
	case "i64":
		return valI64, true
	case "f32":
		return valF32, true
	case "f64":
		return valF64, true
	}
	return 0, false
}

func resolveIdx(names map[string]uint32, tok sexpr, what string) (uint32, error) {
	if tok.kind != atomExpr {
		return 0, fmt.Errorf("line %d: expected a %s index", tok.line, what)
	}
	if strings.HasPrefix(tok.atom, "$") {
		idx, ok := names[tok.atom]
		if !ok {
			return 0, fmt.Errorf("line %d: unknown %s %q", tok.line, what, tok.atom)
		}
		return idx, nil
	}
	return parseU32(tok.atom, tok.line)
}

func parseU32(s string, line int) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid index %q", line, s)
	}
	return uint32(v), nil
}

// parseI32 accepts both signed and unsigned spellings and wraps to the
// two's-complement bit pattern, matching how const immediates behave.
func parseI32(s string, line int) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
		return 0, fmt.Errorf("line %d: invalid i32 constant %q", line, s)
	}
	return int32(uint32(v)), nil
}

func parseI64(s string, line int) (int64, error) {
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return int64(v), nil
	}
	return 0, fmt.Errorf("line %d: invalid i64 constant %q", line, s)
}

type immKind int

const (
	immNone immKind = iota
	immLocal
	immGlobal
	immFunc
	immI32
	immI64
	immMem
	immMemarg
)

type opInfo struct {
	opcode byte
	imm    immKind
	align  uint32 // natural alignment in bytes, memarg ops only
}

var ops = map[string]opInfo{
	"unreachable": {opcode: 0x00},
	"nop":         {opcode: 0x01},
	"return":      {opcode: 0x0F},
	"call":        {opcode: 0x10, imm: immFunc},
	"drop":        {opcode: 0x1A},
	"select":      {opcode: 0x1B},

	"local.get":  {opcode: 0x20, imm: immLocal},
	"local.set":  {opcode: 0x21, imm: immLocal},
	"local.tee":  {opcode: 0x22, imm: immLocal},
	"global.get": {opcode: 0x23, imm: immGlobal},
	"global.set": {opcode: 0x24, imm: immGlobal},

	"i32.load":    {opcode: 0x28, imm: immMemarg, align: 4},
	"i64.load":    {opcode: 0x29, imm: immMemarg, align: 8},
	"i32.load8_u": {opcode: 0x2D, imm: immMemarg, align: 1},
	"i32.store":   {opcode: 0x36, imm: immMemarg, align: 4},
	"i64.store":   {opcode: 0x37, imm: immMemarg, align: 8},
	"i32.store8":  {opcode: 0x3A, imm: immMemarg, align: 1},

	"memory.size": {opcode: 0x3F, imm: immMem},
	"memory.grow": {opcode: 0x40, imm: immMem},

	"i32.const": {opcode: 0x41, imm: immI32},
	"i64.const": {opcode: 0x42, imm: immI64},

	"i32.eqz":  {opcode: 0x45},
	"i32.eq":   {opcode: 0x46},
	"i32.ne":   {opcode: 0x47},
	"i32.lt_s": {opcode: 0x48},
	"i32.lt_u": {opcode: 0x49},
	"i32.gt_s": {opcode: 0x4A},
	"i32.gt_u": {opcode: 0x4B},
	"i32.le_s": {opcode: 0x4C},
	"i32.le_u": {opcode: 0x4D},
	"i32.ge_s": {opcode: 0x4E},
	"i32.ge_u": {opcode: 0x4F},

	"i32.add":   {opcode: 0x6A},
	"i32.sub":   {opcode: 0x6B},
	"i32.mul":   {opcode: 0x6C},
	"i32.div_u": {opcode: 0x6E},
	"i32.rem_u": {opcode: 0x70},
	"i32.and":   {opcode: 0x71},
	"i32.or":    {opcode: 0x72},
	"i32.xor":   {opcode: 0x73},
	"i32.shl":   {opcode: 0x74},
	"i32.shr_u": {opcode: 0x76},

	"i64.add": {opcode: 0x7C},
	"i64.sub": {opcode: 0x7D},
}

var prefixedOps = map[string]struct {
	subop    uint32
	memCount int
}{
	"memory.copy": {subop: 10, memCount: 2},
	"memory.fill": {subop: 11, memCount: 1},
}
