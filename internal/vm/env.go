package vm

// Environment operations. Keys are interned string handles; bucket
// selection uses the string's stored hash and entry comparison is
// handle identity.

func (vm *VM) envBucket(key Handle) uint32 {
	return vm.heap.str(key).Hash % envBuckets
}

// envDefine creates or overwrites a binding in env itself.
func (vm *VM) envDefine(env Handle, key Handle, v Value) {
	e := vm.heap.env(env)
	b := vm.envBucket(key)
	locked := vm.lockStores()
	for entry := e.vars[b]; entry != nil; entry = entry.next {
		if entry.key == key {
			entry.value = v
			vm.unlockStores(locked)
			vm.writeBarrier(v)
			return
		}
	}
	e.vars[b] = &varEntry{key: key, value: v, next: e.vars[b]}
	vm.unlockStores(locked)
	vm.writeBarrier(ObjVal(key))
	vm.writeBarrier(v)
}

// envLookup walks the enclosing chain, innermost first.
func (vm *VM) envLookup(env Handle, key Handle) (Value, bool) {
	for env != InvalidHandle {
		e := vm.heap.env(env)
		for entry := e.vars[vm.envBucket(key)]; entry != nil; entry = entry.next {
			if entry.key == key {
				return entry.value, true
			}
		}
		env = e.enclosing
	}
	return NilVal(), false
}

// envLookupLocal checks a single environment without following the
// chain (module member access).
func (vm *VM) envLookupLocal(env Handle, key Handle) (Value, bool) {
	e := vm.heap.env(env)
	for entry := e.vars[vm.envBucket(key)]; entry != nil; entry = entry.next {
		if entry.key == key {
			return entry.value, true
		}
	}
	return NilVal(), false
}

// envAssign sets an existing binding somewhere along the chain. It
// reports false when the name is bound nowhere.
func (vm *VM) envAssign(env Handle, key Handle, v Value) bool {
	locked := vm.lockStores()
	for env != InvalidHandle {
		e := vm.heap.env(env)
		for entry := e.vars[vm.envBucket(key)]; entry != nil; entry = entry.next {
			if entry.key == key {
				entry.value = v
				vm.unlockStores(locked)
				vm.writeBarrier(v)
				return true
			}
		}
		env = e.enclosing
	}
	vm.unlockStores(locked)
	return false
}

// envDefineFn binds into the parallel name-to-function table.
func (vm *VM) envDefineFn(env Handle, key Handle, fn Handle) {
	e := vm.heap.env(env)
	b := vm.envBucket(key)
	locked := vm.lockStores()
	for entry := e.funcs[b]; entry != nil; entry = entry.next {
		if entry.key == key {
			entry.fn = fn
			vm.unlockStores(locked)
			vm.writeBarrier(ObjVal(fn))
			return
		}
	}
	e.funcs[b] = &funcEntry{key: key, fn: fn, next: e.funcs[b]}
	vm.unlockStores(locked)
	vm.writeBarrier(ObjVal(key))
	vm.writeBarrier(ObjVal(fn))
}

// envLookupFn walks the chain through the function tables.
func (vm *VM) envLookupFn(env Handle, key Handle) (Handle, bool) {
	for env != InvalidHandle {
		e := vm.heap.env(env)
		for entry := e.funcs[vm.envBucket(key)]; entry != nil; entry = entry.next {
			if entry.key == key {
				return entry.fn, true
			}
		}
		env = e.enclosing
	}
	return InvalidHandle, false
}
