package vm

import "github.com/sable-lang/sable/internal/config"

// hashString is FNV-1a.
func hashString(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// internString returns the pooled handle for s, allocating on first
// sight. Interning makes handle identity content equality, which the
// environment tables and Value.Equals rely on. Long strings bypass the
// pool and compare by identity only.
//
// The pool lock is released around allocation: allocating can trigger a
// collection, and collection prunes the pool under the same lock.
func (vm *VM) internString(s string) Handle {
	if len(s) > config.InternMaxLen {
		return vm.allocString(s)
	}

	vm.poolMu.Lock()
	if h, ok := vm.strings[s]; ok {
		vm.poolMu.Unlock()
		return h
	}
	vm.poolMu.Unlock()

	h := vm.allocString(s)

	vm.poolMu.Lock()
	defer vm.poolMu.Unlock()
	// Double-check: another path may have interned s while the lock was
	// released. Keep the existing entry; the fresh object becomes
	// garbage and is swept on a later collection.
	if existing, ok := vm.strings[s]; ok {
		return existing
	}
	vm.strings[s] = h
	return h
}

// pruneStringPool drops pool entries whose strings were not marked,
// between marking and sweeping. The sweep that follows frees them.
func (vm *VM) pruneStringPool() {
	vm.poolMu.Lock()
	defer vm.poolMu.Unlock()
	vm.pruneStringPoolLocked()
}

// pruneStringPoolLocked requires poolMu held. The background collector
// takes poolMu before heap.mu, matching internString's alloc path, so
// the two locks always nest in the same order.
func (vm *VM) pruneStringPoolLocked() {
	for s, h := range vm.strings {
		o := vm.heap.obj(h)
		if !o.marked && !o.permanent {
			delete(vm.strings, s)
		}
	}
}
