package testbed

import (
	"sync"
	"sync/atomic"

	"github.com/name1e5s/uniffi-go/arena"
	"github.com/name1e5s/uniffi-go/buffer"
	"github.com/name1e5s/uniffi-go/delegate"
)

// This file is a hand-maintained mirror of the scaffolding the generator
// emits for an echo definition (one delegate with all three routings, one
// object). Keeping it checked in lets the integration tests drive
// generated-shaped code directly; when the emitter changes shape, update
// this mirror to match.

// EchoDelegate interposes on every call routed through it. One instance may
// back several objects; its mutable state is shared among them.
type EchoDelegate interface {
	WithReturn(call func() any) any
	WithoutReturn(call func())
	WithCounter(call func() int32) int32
}

var echoDelegateTable = delegate.NewTable[EchoDelegate]()

// RegisterEchoDelegate issues a handle for d.
func RegisterEchoDelegate(d EchoDelegate) delegate.Handle {
	return echoDelegateTable.Register(d)
}

// UnregisterEchoDelegate revokes h and returns the delegate it named.
func UnregisterEchoDelegate(h delegate.Handle) EchoDelegate {
	return echoDelegateTable.Unregister(h)
}

// EchoImpl is the native implementation an Echo routes through its delegate.
type EchoImpl interface {
	Len(arg0 string) uint32
	Count() int32
	Ping()
}

// Echo holds its delegate by handle and never destroys it.
type Echo struct {
	impl   EchoImpl
	handle delegate.Handle
}

// NewEcho binds impl to the delegate registered under handle.
func NewEcho(impl EchoImpl, handle delegate.Handle) *Echo {
	return &Echo{impl: impl, handle: handle}
}

// Len dispatches through EchoDelegate.WithReturn.
func (o *Echo) Len(arg0 string) (uint32, error) {
	d := echoDelegateTable.Get(o.handle)
	out := d.WithReturn(func() any {
		return o.impl.Len(arg0)
	})
	return delegate.Coerce[uint32](out, "Echo", "len")
}

// Count dispatches through EchoDelegate.WithCounter.
func (o *Echo) Count() int32 {
	d := echoDelegateTable.Get(o.handle)
	return d.WithCounter(func() int32 {
		return o.impl.Count()
	})
}

// Ping dispatches through EchoDelegate.WithoutReturn.
func (o *Echo) Ping() {
	d := echoDelegateTable.Get(o.handle)
	d.WithoutReturn(func() {
		o.impl.Ping()
	})
}

// EchoLen is the envelope entry point for Echo.Len.
func EchoLen(br *buffer.Bridge, o *Echo, arg0 string, st *buffer.Status) uint32 {
	return buffer.Complete(br, st, func() (uint32, error) {
		return o.Len(arg0)
	})
}

// EchoCount is the envelope entry point for Echo.Count.
func EchoCount(br *buffer.Bridge, o *Echo, st *buffer.Status) int32 {
	return buffer.Complete(br, st, func() (int32, error) {
		return o.Count(), nil
	})
}

// EchoPing is the envelope entry point for Echo.Ping.
func EchoPing(br *buffer.Bridge, o *Echo, st *buffer.Status) {
	buffer.Complete(br, st, func() (struct{}, error) {
		o.Ping()
		return struct{}{}, nil
	})
}

// recordingDelegate counts how often each routing fires and otherwise
// forwards the wrapped call unchanged.
type recordingDelegate struct {
	mu            sync.Mutex
	withReturn    int
	withoutReturn int
	withCounter   int
}

func (d *recordingDelegate) WithReturn(call func() any) any {
	d.mu.Lock()
	d.withReturn++
	d.mu.Unlock()
	return call()
}

func (d *recordingDelegate) WithoutReturn(call func()) {
	d.mu.Lock()
	d.withoutReturn++
	d.mu.Unlock()
	call()
}

func (d *recordingDelegate) WithCounter(call func() int32) int32 {
	d.mu.Lock()
	d.withCounter++
	d.mu.Unlock()
	return call()
}

// echoService is the native implementation behind the fixture.
type echoService struct {
	pings atomic.Int32
}

func (s *echoService) Len(arg0 string) uint32 { return uint32(len(arg0)) }
func (s *echoService) Count() int32           { return s.pings.Load() }
func (s *echoService) Ping()                  { s.pings.Add(1) }

var (
	_ EchoDelegate = (*recordingDelegate)(nil)
	_ EchoImpl     = (*echoService)(nil)
)

// newHostBridge builds a bridge over an in-process arena, the host-only
// configuration every non-guest test runs against.
func newHostBridge() *buffer.Bridge {
	a := arena.New()
	return buffer.NewBridge(a, a)
}
