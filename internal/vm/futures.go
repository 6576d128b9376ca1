package vm

// Future operations. A future is created empty, resolved exactly once,
// and read by blocking wait. Resolution may happen on a detached thread
// (the timed-sleep primitive), so the cell is guarded by its own
// mutex/condition pair.

// resolveFuture assigns the result and wakes every waiter. A second
// resolution is ignored. The cell is addressed by pointer, captured on
// the script thread, so a detached resolver never reads the arena while
// the mutator grows it; the cell stays valid even after the slot is
// swept, and resolving a swept future is harmless.
func (vm *VM) resolveFuture(f *FutureObject, v Value) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.result = v
	f.done = true
	f.cond.Broadcast()
	f.mu.Unlock()

	// The future may already be black when it resolves mid-collection.
	// Detached resolvers pass immediate values only, so the barrier's
	// heap-state reads stay on the script thread.
	vm.writeBarrier(v)
}

// resolvedFuture wraps an already-computed value, as async calls do.
func (vm *VM) resolvedFuture(v Value) Handle {
	h := vm.newFuture()
	f := vm.heap.future(h)
	f.done = true
	f.result = v
	return h
}

// awaitValue blocks until the future resolves. Await on a non-future
// passes the value through.
func (vm *VM) awaitValue(v Value) Value {
	if !v.IsObj() || vm.heap.kind(v.AsHandle()) != KindFuture {
		return v
	}
	f := vm.heap.future(v.AsHandle())
	f.mu.Lock()
	for !f.done {
		f.cond.Wait()
	}
	r := f.result
	f.mu.Unlock()
	return r
}
