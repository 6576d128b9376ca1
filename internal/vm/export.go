package vm

// Host-facing value helpers used by the embedding API.

// Abort records a fatal host error from inside a native callback. The
// interpreter surfaces it as a runtime error as soon as the native
// returns; the callback's return value is discarded.
func (vm *VM) Abort(err error) {
	vm.hostErr = err
}

// Protect shields an object from collection while the host assembles a
// structure not yet reachable from any root. Calls pair with Unprotect.
func (vm *VM) Protect(v Value) {
	if v.IsObj() {
		vm.protect(v.AsHandle())
	}
}

// Unprotect releases the n most recent Protect calls.
func (vm *VM) Unprotect(n int) {
	vm.unprotect(n)
}

// InternValue interns a Go string and returns it as a value.
func (vm *VM) InternValue(s string) Value {
	return ObjVal(vm.internString(s))
}

// NewArrayValue allocates an empty array.
func (vm *VM) NewArrayValue() Value {
	return ObjVal(vm.newArray())
}

// ArrayAppend appends to an array value created by the host.
func (vm *VM) ArrayAppend(arr, v Value) {
	if !arr.IsObj() || vm.heap.kind(arr.AsHandle()) != KindArray {
		return
	}
	a := vm.heap.array(arr.AsHandle())
	locked := vm.lockStores()
	a.Items = append(a.Items, v)
	vm.unlockStores(locked)
	vm.writeBarrier(v)
}

// NewMapValue allocates an empty map.
func (vm *VM) NewMapValue() Value {
	return ObjVal(vm.newMap())
}

// MapSet stores into a map value created by the host.
func (vm *VM) MapSet(m, key, v Value) error {
	return vm.setIndex(m, key, v)
}

// Export converts a runtime value to its natural Go representation:
// nil, bool, int64, float64, string, []any for arrays, map[any]any for
// maps, map[string]any for struct instances. Futures are awaited.
// Opaque kinds come back as their printed form.
func (vm *VM) Export(v Value) (any, error) {
	switch {
	case v.IsNil():
		return nil, nil
	case v.IsBool():
		return v.AsBool(), nil
	case v.IsInt():
		return int64(v.AsInt()), nil
	case v.IsFloat():
		return v.AsFloat(), nil
	}

	hd := v.AsHandle()
	switch vm.heap.kind(hd) {
	case KindString:
		return vm.heap.str(hd).Chars, nil
	case KindArray:
		items := vm.heap.array(hd).Items
		out := make([]any, len(items))
		for i, item := range items {
			gov, err := vm.Export(item)
			if err != nil {
				return nil, err
			}
			out[i] = gov
		}
		return out, nil
	case KindMap:
		m := vm.heap.mapObj(hd)
		out := make(map[any]any, len(m.Str)+len(m.Int))
		for k, item := range m.Int {
			gov, err := vm.Export(item)
			if err != nil {
				return nil, err
			}
			out[int64(k)] = gov
		}
		for k, item := range m.Str {
			gov, err := vm.Export(item)
			if err != nil {
				return nil, err
			}
			out[k] = gov
		}
		return out, nil
	case KindStructInstance:
		s := vm.heap.structInst(hd)
		def := vm.heap.structDef(s.Def)
		out := make(map[string]any, len(def.Fields))
		for i, f := range def.Fields {
			gov, err := vm.Export(s.Fields[i])
			if err != nil {
				return nil, err
			}
			out[vm.heap.str(f).Chars] = gov
		}
		return out, nil
	case KindFuture:
		return vm.Export(vm.awaitValue(v))
	case KindResource:
		return vm.heap.resource(hd).Payload, nil
	default:
		return vm.formatValue(v), nil
	}
}
