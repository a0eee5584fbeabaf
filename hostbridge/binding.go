package hostbridge

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/buffer"
	"github.com/name1e5s/uniffi-go/errors"
)

// ModuleName is the host module guests import the bridge from.
const ModuleName = "uniffi"

// Binding exposes the allocator bridge to a wasm guest as host functions.
// Host modules must exist before the guest instantiates, but the bridge
// needs the instantiated guest's memory, so Binding splits the two steps:
// Register before instantiation, Bind after. A guest calling in between is
// a protocol violation.
//
// Exported functions, all using the wasm32 header layout:
//
//	allocate(size, retptr, statusptr)
//	reserve(bufptr, additional, retptr, statusptr)
//	free(bufptr, statusptr)
//	contract_version() -> u32
type Binding struct {
	mu     sync.RWMutex
	bridge *buffer.Bridge
	layout buffer.Layout
}

// NewBinding creates an unbound Binding.
func NewBinding() *Binding {
	return &Binding{layout: buffer.LayoutWasm32}
}

// Register instantiates the host module into r. Call before the guest.
func (b *Binding) Register(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	i32 := api.ValueTypeI32

	builder := r.NewHostModuleBuilder(ModuleName)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostAllocate), []api.ValueType{i32, i32, i32}, nil).
		Export("allocate")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostReserve), []api.ValueType{i32, i32, i32, i32}, nil).
		Export("reserve")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostFree), []api.ValueType{i32, i32}, nil).
		Export("free")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.hostContractVersion), nil, []api.ValueType{i32}).
		Export("contract_version")

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBind, errors.KindMissingExport, err, "host module instantiation failed")
	}
	Logger().Debug("host module registered", zap.String("module", ModuleName))
	return mod, nil
}

// Bind points the host functions at a live bridge. Rebinding is allowed;
// guests observe the new bridge on their next call.
func (b *Binding) Bind(br *buffer.Bridge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bridge = br
}

// current returns the bound bridge or panics: a guest reached a bridge
// entry point before the host finished wiring it.
func (b *Binding) current() *buffer.Bridge {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.bridge == nil {
		panic(errors.Protocol(errors.PhaseBind, "bridge entry point called before Bind"))
	}
	return b.bridge
}

func (b *Binding) hostAllocate(ctx context.Context, mod api.Module, stack []uint64) {
	size := uint32(stack[0])
	retptr := uint32(stack[1])
	statusptr := uint32(stack[2])
	b.doAllocate(NewGuestMemory(mod.Memory()), size, retptr, statusptr)
}

func (b *Binding) hostReserve(ctx context.Context, mod api.Module, stack []uint64) {
	bufptr := uint32(stack[0])
	additional := uint32(stack[1])
	retptr := uint32(stack[2])
	statusptr := uint32(stack[3])
	b.doReserve(NewGuestMemory(mod.Memory()), bufptr, additional, retptr, statusptr)
}

func (b *Binding) hostFree(ctx context.Context, mod api.Module, stack []uint64) {
	bufptr := uint32(stack[0])
	statusptr := uint32(stack[1])
	b.doFree(NewGuestMemory(mod.Memory()), bufptr, statusptr)
}

func (b *Binding) hostContractVersion(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = uint64(uniffi.ContractVersion)
}

func (b *Binding) doAllocate(mem uniffi.Memory, size, retptr, statusptr uint32) {
	br := b.current()

	var st buffer.Status
	buf := br.Allocate(size, &st)
	b.post(mem, retptr, statusptr, buf, st)
}

func (b *Binding) doReserve(mem uniffi.Memory, bufptr, additional, retptr, statusptr uint32) {
	br := b.current()

	buf, err := b.layout.ReadBuffer(mem, bufptr)
	if err != nil {
		panic(escalated(err))
	}

	var st buffer.Status
	out := br.Reserve(buf, additional, &st)
	b.post(mem, retptr, statusptr, out, st)
}

func (b *Binding) doFree(mem uniffi.Memory, bufptr, statusptr uint32) {
	br := b.current()

	buf, err := b.layout.ReadBuffer(mem, bufptr)
	if err != nil {
		panic(escalated(err))
	}

	var st buffer.Status
	br.Free(buf, &st)
	b.post(mem, 0, statusptr, buffer.Buffer{}, st)
}

// post writes the result header (when retptr is nonzero) and the status
// block back into guest memory. A guest handing over unwritable pointers
// has broken the protocol; there is no channel left to report through.
func (b *Binding) post(mem uniffi.Memory, retptr, statusptr uint32, buf buffer.Buffer, st buffer.Status) {
	if retptr != 0 {
		if err := b.layout.WriteBuffer(mem, retptr, buf); err != nil {
			panic(escalated(err))
		}
	}
	if err := b.layout.WriteStatus(mem, statusptr, st); err != nil {
		panic(escalated(err))
	}
}

// escalated upgrades any boundary error to a protocol violation so the
// panic carries a classified value.
func escalated(err error) error {
	if errors.IsProtocol(err) {
		return err
	}
	return errors.Wrap(errors.PhaseBind, errors.KindProtocol, err, "guest handed the bridge an unusable pointer")
}
