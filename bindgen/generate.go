package bindgen

import (
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
	"github.com/name1e5s/uniffi-go/shape"
)

// runtimeModule is the import path of the runtime library the generated
// scaffolding links against.
const runtimeModule = "github.com/name1e5s/uniffi-go"

// Generator renders Go scaffolding for one validated definition. Shapes
// are selected once, at construction; emission never re-derives them.
type Generator struct {
	cfg      *Config
	renderer shape.TypeRenderer
	shapes   map[string]map[string]shape.Shape
}

// NewGenerator prepares a generator for cfg. cfg must have validated.
func NewGenerator(cfg *Config) *Generator {
	shapes := make(map[string]map[string]shape.Shape, len(cfg.Delegates))
	for _, d := range cfg.Delegates {
		byMethod := make(map[string]shape.Shape, len(d.Methods))
		for _, m := range d.Methods {
			byMethod[m.Name] = shape.Select(m.Returns)
		}
		shapes[d.Name] = byMethod
	}
	return &Generator{cfg: cfg, renderer: shape.GoRenderer{}, shapes: shapes}
}

// Generate renders the scaffolding source, gofmt-formatted.
func (g *Generator) Generate() ([]byte, error) {
	var b strings.Builder
	g.header(&b)
	g.imports(&b)
	g.checks(&b)
	for _, d := range g.cfg.Delegates {
		g.delegate(&b, d)
	}
	for _, o := range g.cfg.Objects {
		g.object(&b, o)
	}

	src, err := format.Source([]byte(b.String()))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidDefinition, err, "generated source does not parse")
	}
	Logger().Debug("scaffolding rendered",
		zap.String("module", g.cfg.Module),
		zap.Int("bytes", len(src)))
	return src, nil
}

// Write renders the scaffolding into dir/<module>/<module>.go.
func Write(cfg *Config, dir string) (string, error) {
	src, err := NewGenerator(cfg).Generate()
	if err != nil {
		return "", err
	}

	pkgDir := filepath.Join(dir, cfg.Module)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return "", errors.Wrap(errors.PhaseGenerate, errors.KindUnknown, err, "output directory is not writable")
	}
	path := filepath.Join(pkgDir, cfg.Module+".go")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return "", errors.Wrap(errors.PhaseGenerate, errors.KindUnknown, err, "scaffolding is not writable")
	}

	Logger().Info("scaffolding written",
		zap.String("module", cfg.Module),
		zap.String("path", path))
	return path, nil
}

func (g *Generator) header(b *strings.Builder) {
	fmt.Fprintf(b, "// Code generated by uniffi-go. DO NOT EDIT.\n\n")
	fmt.Fprintf(b, "// Package %s is generated scaffolding; it belongs in Go module %s.\n", g.cfg.Module, g.cfg.GoModule)
	fmt.Fprintf(b, "package %s\n\n", g.cfg.Module)
}

func (g *Generator) imports(b *strings.Builder) {
	needDelegate := len(g.cfg.Delegates) > 0 || len(g.cfg.Objects) > 0
	needBuffer := false
	for _, o := range g.cfg.Objects {
		if len(o.Methods) > 0 {
			needBuffer = true
		}
	}

	b.WriteString("import (\n")
	b.WriteString("\t\"fmt\"\n\n")
	fmt.Fprintf(b, "\tuniffi %q\n", runtimeModule)
	if needBuffer {
		fmt.Fprintf(b, "\t%q\n", runtimeModule+"/buffer")
	}
	if needDelegate {
		fmt.Fprintf(b, "\t%q\n", runtimeModule+"/delegate")
	}
	b.WriteString(")\n\n")
}

// checks emits the compatibility facts and the init that enforces them.
func (g *Generator) checks(b *strings.Builder) {
	type sum struct {
		constName string
		owner     string
		method    string
		value     uint16
	}
	var sums []sum
	for _, d := range g.cfg.Delegates {
		for _, m := range d.Methods {
			sums = append(sums, sum{
				constName: "checksum" + exportName(d.Name) + exportName(m.Name),
				owner:     d.Name,
				method:    m.Name,
				value:     uniffi.Checksum(d.Name, m.Name),
			})
		}
	}
	for _, o := range g.cfg.Objects {
		for _, m := range o.Methods {
			sums = append(sums, sum{
				constName: "checksum" + exportName(o.Name) + exportName(m.Name),
				owner:     o.Name,
				method:    m.Name,
				value:     uniffi.Checksum(o.Name, m.Name),
			})
		}
	}

	b.WriteString("// Compatibility facts baked in at generation time.\n")
	fmt.Fprintf(b, "const generatedContractVersion uint32 = %d\n\n", uniffi.ContractVersion)

	if len(sums) > 0 {
		b.WriteString("const (\n")
		for _, s := range sums {
			fmt.Fprintf(b, "\t%s uint16 = %#06x\n", s.constName, s.value)
		}
		b.WriteString(")\n\n")
	}

	b.WriteString("func init() {\n")
	b.WriteString("\tif uniffi.ContractVersion != generatedContractVersion {\n")
	fmt.Fprintf(b, "\t\tpanic(fmt.Sprintf(%q, generatedContractVersion, uniffi.ContractVersion))\n",
		g.cfg.Module+": scaffolding speaks contract version %d, runtime speaks %d; regenerate")
	b.WriteString("\t}\n")
	for _, s := range sums {
		fmt.Fprintf(b, "\tmustChecksum(%q, %q, %s)\n", s.owner, s.method, s.constName)
	}
	b.WriteString("}\n\n")

	if len(sums) > 0 {
		b.WriteString("func mustChecksum(iface, method string, want uint16) {\n")
		b.WriteString("\tif got := uniffi.Checksum(iface, method); got != want {\n")
		fmt.Fprintf(b, "\t\tpanic(fmt.Sprintf(%q, iface, method, want, got))\n",
			g.cfg.Module+": checksum mismatch for %s.%s: scaffolding %#06x, runtime %#06x; regenerate")
		b.WriteString("\t}\n")
		b.WriteString("}\n\n")
	}
}

func (g *Generator) delegate(b *strings.Builder, d Delegate) {
	name := exportName(d.Name)
	table := tableName(d.Name)

	fmt.Fprintf(b, "// %s interposes on every call routed through it. One instance may\n", name)
	b.WriteString("// back several objects; its mutable state is shared among them.\n")
	fmt.Fprintf(b, "type %s interface {\n", name)
	for _, m := range d.Methods {
		switch s := g.shapes[d.Name][m.Name].(type) {
		case shape.Void:
			fmt.Fprintf(b, "\t%s(call func())\n", exportName(m.Name))
		case shape.Generic:
			fmt.Fprintf(b, "\t%s(call func() any) any\n", exportName(m.Name))
		case shape.Concrete:
			t := g.renderer.Render(s.Type)
			fmt.Fprintf(b, "\t%s(call func() %s) %s\n", exportName(m.Name), t, t)
		}
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "var %s = delegate.NewTable[%s]()\n\n", table, name)

	fmt.Fprintf(b, "// Register%s issues a handle for d.\n", name)
	fmt.Fprintf(b, "func Register%s(d %s) delegate.Handle {\n", name, name)
	fmt.Fprintf(b, "\treturn %s.Register(d)\n", table)
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "// Unregister%s revokes h and returns the delegate it named.\n", name)
	fmt.Fprintf(b, "func Unregister%s(h delegate.Handle) %s {\n", name, name)
	fmt.Fprintf(b, "\treturn %s.Unregister(h)\n", table)
	b.WriteString("}\n\n")
}

func (g *Generator) object(b *strings.Builder, o Object) {
	name := exportName(o.Name)
	table := tableName(o.Delegate)

	fmt.Fprintf(b, "// %sImpl is the native implementation a %s routes through its delegate.\n", name, name)
	fmt.Fprintf(b, "type %sImpl interface {\n", name)
	for _, m := range o.Methods {
		fmt.Fprintf(b, "\t%s(%s)%s\n", exportName(m.Name), g.paramList(m.Params), g.bareReturn(m.Returns))
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "// %s holds its delegate by handle and never destroys it.\n", name)
	fmt.Fprintf(b, "type %s struct {\n", name)
	fmt.Fprintf(b, "\timpl   %sImpl\n", name)
	b.WriteString("\thandle delegate.Handle\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "// New%s binds impl to the delegate registered under handle.\n", name)
	fmt.Fprintf(b, "func New%s(impl %sImpl, handle delegate.Handle) *%s {\n", name, name, name)
	fmt.Fprintf(b, "\treturn &%s{impl: impl, handle: handle}\n", name)
	b.WriteString("}\n\n")

	del := g.cfg.delegateByName(o.Delegate)
	for _, m := range o.Methods {
		g.method(b, o, m, del, table)
		g.entryPoint(b, o, m)
	}
}

func (g *Generator) method(b *strings.Builder, o Object, m ObjectMethod, del *Delegate, table string) {
	object := exportName(o.Name)
	method := exportName(m.Name)
	callWith := exportName(m.CallWith)
	params := g.paramList(m.Params)
	args := argList(m.Params)
	_, void := shape.Select(m.Returns).(shape.Void)

	fmt.Fprintf(b, "// %s dispatches through %s.%s.\n", method, exportName(del.Name), callWith)

	switch g.shapes[del.Name][m.CallWith].(type) {
	case shape.Void:
		fmt.Fprintf(b, "func (o *%s) %s(%s) {\n", object, method, params)
		fmt.Fprintf(b, "\td := %s.Get(o.handle)\n", table)
		fmt.Fprintf(b, "\td.%s(func() {\n", callWith)
		fmt.Fprintf(b, "\t\to.impl.%s(%s)\n", method, args)
		b.WriteString("\t})\n")
		b.WriteString("}\n\n")

	case shape.Generic:
		if void {
			fmt.Fprintf(b, "func (o *%s) %s(%s) {\n", object, method, params)
			fmt.Fprintf(b, "\td := %s.Get(o.handle)\n", table)
			fmt.Fprintf(b, "\t_ = d.%s(func() any {\n", callWith)
			fmt.Fprintf(b, "\t\to.impl.%s(%s)\n", method, args)
			b.WriteString("\t\treturn nil\n")
			b.WriteString("\t})\n")
			b.WriteString("}\n\n")
			return
		}
		ret := g.renderer.Render(m.Returns)
		fmt.Fprintf(b, "func (o *%s) %s(%s) (%s, error) {\n", object, method, params, ret)
		fmt.Fprintf(b, "\td := %s.Get(o.handle)\n", table)
		fmt.Fprintf(b, "\tout := d.%s(func() any {\n", callWith)
		fmt.Fprintf(b, "\t\treturn o.impl.%s(%s)\n", method, args)
		b.WriteString("\t})\n")
		fmt.Fprintf(b, "\treturn delegate.Coerce[%s](out, %q, %q)\n", ret, o.Name, m.Name)
		b.WriteString("}\n\n")

	case shape.Concrete:
		ret := g.renderer.Render(m.Returns)
		fmt.Fprintf(b, "func (o *%s) %s(%s) %s {\n", object, method, params, ret)
		fmt.Fprintf(b, "\td := %s.Get(o.handle)\n", table)
		fmt.Fprintf(b, "\treturn d.%s(func() %s {\n", callWith, ret)
		fmt.Fprintf(b, "\t\treturn o.impl.%s(%s)\n", method, args)
		b.WriteString("\t})\n")
		b.WriteString("}\n\n")
	}
}

// entryPoint emits the envelope boundary for one method: *buffer.Status as
// the final parameter, result returned directly.
func (g *Generator) entryPoint(b *strings.Builder, o Object, m ObjectMethod) {
	object := exportName(o.Name)
	method := exportName(m.Name)
	entry := object + method
	args := argList(m.Params)
	params := g.paramList(m.Params)
	if params != "" {
		params += ", "
	}
	_, void := shape.Select(m.Returns).(shape.Void)
	_, generic := g.shapes[o.Delegate][m.CallWith].(shape.Generic)

	fmt.Fprintf(b, "// %s is the envelope entry point for %s.%s.\n", entry, object, method)

	if void {
		fmt.Fprintf(b, "func %s(br *buffer.Bridge, o *%s, %sst *buffer.Status) {\n", entry, object, params)
		b.WriteString("\tbuffer.Complete(br, st, func() (struct{}, error) {\n")
		fmt.Fprintf(b, "\t\to.%s(%s)\n", method, args)
		b.WriteString("\t\treturn struct{}{}, nil\n")
		b.WriteString("\t})\n")
		b.WriteString("}\n\n")
		return
	}

	ret := g.renderer.Render(m.Returns)
	fmt.Fprintf(b, "func %s(br *buffer.Bridge, o *%s, %sst *buffer.Status) %s {\n", entry, object, params, ret)
	fmt.Fprintf(b, "\treturn buffer.Complete(br, st, func() (%s, error) {\n", ret)
	if generic {
		fmt.Fprintf(b, "\t\treturn o.%s(%s)\n", method, args)
	} else {
		fmt.Fprintf(b, "\t\treturn o.%s(%s), nil\n", method, args)
	}
	b.WriteString("\t})\n")
	b.WriteString("}\n\n")
}

func (g *Generator) paramList(params []string) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("arg%d %s", i, g.renderer.Render(p))
	}
	return strings.Join(parts, ", ")
}

func (g *Generator) bareReturn(returns string) string {
	if _, void := shape.Select(returns).(shape.Void); void {
		return ""
	}
	return " " + g.renderer.Render(returns)
}

func argList(params []string) string {
	parts := make([]string, len(params))
	for i := range params {
		parts[i] = fmt.Sprintf("arg%d", i)
	}
	return strings.Join(parts, ", ")
}

// exportName turns a definition name into an exported Go identifier:
// "withReturn" and "with_return" both become "WithReturn".
func exportName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[size:])
	}
	return b.String()
}

func tableName(delegateName string) string {
	name := exportName(delegateName)
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:] + "Table"
}
