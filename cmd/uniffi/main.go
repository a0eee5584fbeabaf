package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/term"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/bindgen"
	"github.com/name1e5s/uniffi-go/buffer"
	uniffierrors "github.com/name1e5s/uniffi-go/errors"
	"github.com/name1e5s/uniffi-go/hostbridge"
	"github.com/name1e5s/uniffi-go/wat"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to binding definition file")
		outDir      = flag.String("out", ".", "Output directory for generated scaffolding")
		checkOnly   = flag.Bool("check", false, "Validate the definition and exit")
		guestFile   = flag.String("guest", "", "Drive the allocator contract against a guest module (.wasm or .wat)")
		interactive = flag.Bool("i", false, "Interactive buffer inspector with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		bindgen.SetLogger(logger)
		buffer.SetLogger(logger)
		hostbridge.SetLogger(logger)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *guestFile != "" {
		if err := runGuest(*guestFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: uniffi -config <bindings.toml> [-out dir]")
		fmt.Fprintln(os.Stderr, "       uniffi -config <bindings.toml> -check")
		fmt.Fprintln(os.Stderr, "       uniffi -guest <module.wasm>  (allocator conformance drive)")
		fmt.Fprintln(os.Stderr, "       uniffi -i  (interactive buffer inspector)")
		os.Exit(1)
	}

	if err := run(*configFile, *outDir, *checkOnly); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, outDir string, checkOnly bool) error {
	cfg, err := bindgen.Load(configFile)
	if err != nil {
		return err
	}

	// Show definition info
	fmt.Printf("Definition: %s\n", configFile)
	fmt.Printf("Module: %s\n", cfg.Module)
	fmt.Printf("Delegates: %d\n", len(cfg.Delegates))
	fmt.Printf("Objects: %d\n", len(cfg.Objects))

	fmt.Printf("\nMethods:\n")
	for _, d := range cfg.Delegates {
		for _, m := range d.Methods {
			result := ""
			if m.Returns != "" {
				result = " -> " + m.Returns
			}
			fmt.Printf("  %s.%s()%s\n", d.Name, m.Name, result)
		}
	}
	for _, o := range cfg.Objects {
		for _, m := range o.Methods {
			result := ""
			if m.Returns != "" {
				result = " -> " + m.Returns
			}
			fmt.Printf("  %s.%s(%s)%s  [via %s.%s]\n",
				o.Name, m.Name, paramSummary(m.Params), result, o.Delegate, m.CallWith)
		}
	}

	if checkOnly {
		fmt.Printf("\nDefinition is valid.\n")
		return nil
	}

	path, err := bindgen.Write(cfg, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("\nScaffolding written to %s\n", path)
	return nil
}

func paramSummary(params []string) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("arg%d: %s", i, p)
	}
	return out
}

func runGuest(path string) error {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if strings.HasSuffix(path, ".wat") {
		compiled, err := wat.Compile(string(data))
		if err != nil {
			return fmt.Errorf("compile text module: %w", err)
		}
		data = compiled
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	binding := hostbridge.NewBinding()
	if _, err := binding.Register(ctx, r); err != nil {
		return fmt.Errorf("register bridge module: %w", err)
	}

	compiled, err := r.CompileModule(ctx, data)
	if err != nil {
		return fmt.Errorf("compile module: %w", err)
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("guest"))
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	// Show guest info
	fmt.Printf("Guest: %s\n", path)
	defs := mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("Exported functions:\n")
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}

	if err := hostbridge.VerifyContract(ctx, mod); err != nil {
		return err
	}
	fmt.Printf("\nContract version: %d\n", uniffi.ContractVersion)

	ga, err := hostbridge.NewGuestArena(mod)
	if err != nil {
		return err
	}
	br := buffer.NewBridge(ga, ga.Memory())
	binding.Bind(br)

	if err := driveContract(br); err != nil {
		return err
	}

	stats := br.Stats()
	fmt.Printf("\nBridge stats: %d allocates, %d reserves, %d frees\n",
		stats.Allocates, stats.Reserves, stats.Frees)
	fmt.Printf("Guest passes the allocator contract.\n")
	return nil
}

// driveContract exercises allocate, a write/read round trip, reserve and
// free against the guest's allocator. A protocol violation ends the drive
// and is the verdict.
func driveContract(br *buffer.Bridge) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && uniffierrors.IsProtocol(e) {
				err = e
				return
			}
			panic(r)
		}
	}()

	var st buffer.Status
	buf := br.Allocate(64, &st)
	if err := buffer.Check(br, &st); err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	fmt.Printf("\nallocate(64): data=0x%x cap=%d\n", buf.Data, buf.Cap)

	w, err := buffer.NewWriter(br)
	if err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	probe := []byte("allocator conformance probe")
	if err := w.WriteU32(uint32(len(probe))); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if err := w.WriteBytes(probe); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	out := w.Finalize()
	fmt.Printf("write(%d bytes): data=0x%x cap=%d\n", out.Len, out.Data, out.Cap)

	rd := buffer.NewReader(br, out)
	n, err := rd.ReadU32()
	if err != nil {
		return fmt.Errorf("read length: %w", err)
	}
	got, err := rd.ReadBytes(n)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if !bytes.Equal(got, probe) {
		return fmt.Errorf("probe came back altered: %q", got)
	}
	fmt.Printf("read back: %d bytes intact\n", n)

	grown := br.Reserve(out, 4096, &st)
	if err := buffer.Check(br, &st); err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	fmt.Printf("reserve(+4096): cap %d -> %d, len %d preserved\n", out.Cap, grown.Cap, grown.Len)

	br.Free(grown, &st)
	if err := buffer.Check(br, &st); err != nil {
		return fmt.Errorf("free grown: %w", err)
	}
	br.Free(buf, &st)
	if err := buffer.Check(br, &st); err != nil {
		return fmt.Errorf("free first: %w", err)
	}
	fmt.Printf("free: both buffers retired\n")
	return nil
}
