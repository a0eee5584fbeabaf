package buffer

import "sync"

const (
	// Pool limits to prevent memory bloat
	poolMaxCap = 4096 // max pooled buffer capacity in bytes
)

// Pool recycles Writers bound to a single Bridge, so hot call paths reuse
// native buffers instead of allocating one per call.
type Pool struct {
	br   *Bridge
	pool sync.Pool
}

// NewPool creates a Pool that hands out Writers on br.
func NewPool(br *Bridge) *Pool {
	return &Pool{br: br}
}

// Get returns a Writer positioned at zero. The caller finishes with either
// Finalize (ownership moves out) or Put.
func (p *Pool) Get() (*Writer, error) {
	if w, ok := p.pool.Get().(*Writer); ok {
		w.Reset()
		return w, nil
	}
	return NewWriter(p.br)
}

// Put returns a Writer to the pool. Writers from another bridge and
// writers holding oversized buffers are discarded instead.
func (p *Pool) Put(w *Writer) {
	if w == nil || w.br != p.br {
		return // reject foreign writers
	}
	if w.Cap() > poolMaxCap {
		w.Discard()
		return // reject oversized
	}
	w.Reset()
	p.pool.Put(w)
}
