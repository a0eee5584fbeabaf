package buffer

import "go.uber.org/zap"

// Scope tracks what one native call borrowed and what it allocated only
// for its own duration. Ending the scope invalidates every View it handed
// out and frees every adopted temporary exactly once.
//
// A Scope belongs to a single call and is not safe for concurrent use.
type Scope struct {
	br    *Bridge
	temps []Buffer
	ended bool
}

// View wraps a foreign-owned (ptr, len) pair handed to this call. The view
// reads through the bridge's memory and dies when the scope ends.
func (sc *Scope) View(ptr, length uint32) View {
	return View{Len: length, Data: ptr, mem: sc.br.mem, scope: sc}
}

// Adopt registers a temporary owned Buffer to be freed when the scope
// ends. Use Release if ownership moves out of the call after all.
func (sc *Scope) Adopt(buf Buffer) Buffer {
	if !buf.Empty() {
		sc.temps = append(sc.temps, buf)
	}
	return buf
}

// Release withdraws a previously adopted Buffer from end-of-call cleanup,
// typically because it is being handed across the boundary.
func (sc *Scope) Release(buf Buffer) {
	for i, t := range sc.temps {
		if t.Data == buf.Data && t.Cap == buf.Cap {
			sc.temps = append(sc.temps[:i], sc.temps[i+1:]...)
			return
		}
	}
}

// End closes the scope. Further View reads panic; adopted temporaries are
// freed. End is idempotent.
func (sc *Scope) End() {
	if sc.ended {
		return
	}
	sc.ended = true

	for _, t := range sc.temps {
		if err := sc.br.free(t); err != nil {
			Logger().Warn("scope failed to free temporary", zap.Error(err))
		}
	}
	sc.temps = nil
}
