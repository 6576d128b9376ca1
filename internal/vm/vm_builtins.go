package vm

import (
	"time"

	"github.com/sable-lang/sable/internal/config"
)

var processStart = time.Now()

// RegisterNative binds a host callback into the root environment. The
// function object and its name are flagged permanent; builtins live for
// the whole process. Arity -1 accepts any argument count.
func (vm *VM) RegisterNative(name string, arity int, fn NativeFn) {
	key := vm.internString(name)
	vm.protect(key)
	h := vm.newNative(name, arity, fn)
	vm.unprotect(1)
	vm.MarkPermanent(ObjVal(key))
	vm.MarkPermanent(ObjVal(h))
	vm.envDefineFn(vm.root, key, h)
}

// RegisterBuiltins installs the standard native set. The compiler open
// codes array, map, length, push and pop when they are called directly;
// the natives here make the same names usable as first-class values.
func (vm *VM) RegisterBuiltins() {
	vm.RegisterNative(config.ArrayFuncName, 0, func(vm *VM, args []Value) Value {
		return ObjVal(vm.newArray())
	})
	vm.RegisterNative(config.MapFuncName, 0, func(vm *VM, args []Value) Value {
		return ObjVal(vm.newMap())
	})
	vm.RegisterNative(config.LengthFuncName, 1, func(vm *VM, args []Value) Value {
		v, err := vm.lengthOf(args[0])
		if err != nil {
			return NilVal()
		}
		return v
	})
	vm.RegisterNative(config.PushFuncName, 2, nativePush)
	vm.RegisterNative(config.PopFuncName, 1, nativePop)
	vm.RegisterNative(config.HasFuncName, 2, nativeHas)
	vm.RegisterNative(config.KeysFuncName, 1, nativeKeys)
	vm.RegisterNative(config.ClockFuncName, 0, nativeClock)
	vm.RegisterNative(config.SleepFuncName, 1, nativeSleep)
}

func nativePush(vm *VM, args []Value) Value {
	if !args[0].IsObj() || vm.heap.kind(args[0].AsHandle()) != KindArray {
		return NilVal()
	}
	arr := vm.heap.array(args[0].AsHandle())
	locked := vm.lockStores()
	arr.Items = append(arr.Items, args[1])
	n := len(arr.Items)
	vm.unlockStores(locked)
	vm.writeBarrier(args[1])
	return IntVal(int32(n))
}

func nativePop(vm *VM, args []Value) Value {
	if !args[0].IsObj() || vm.heap.kind(args[0].AsHandle()) != KindArray {
		return NilVal()
	}
	arr := vm.heap.array(args[0].AsHandle())
	locked := vm.lockStores()
	n := len(arr.Items)
	if n == 0 {
		vm.unlockStores(locked)
		return NilVal()
	}
	v := arr.Items[n-1]
	arr.Items = arr.Items[:n-1]
	vm.unlockStores(locked)
	return v
}

// nativeHas reports key presence, which is how scripts tell an absent
// key apart from a present key bound to nil.
func nativeHas(vm *VM, args []Value) Value {
	if !args[0].IsObj() || vm.heap.kind(args[0].AsHandle()) != KindMap {
		return BoolVal(false)
	}
	m := vm.heap.mapObj(args[0].AsHandle())
	key := args[1]
	switch {
	case key.IsInt():
		_, ok := m.Int[key.AsInt()]
		return BoolVal(ok)
	case vm.isString(key):
		_, ok := m.Str[vm.heap.str(key.AsHandle()).Chars]
		return BoolVal(ok)
	default:
		return BoolVal(false)
	}
}

func nativeKeys(vm *VM, args []Value) Value {
	if !args[0].IsObj() || vm.heap.kind(args[0].AsHandle()) != KindMap {
		return NilVal()
	}
	m := vm.heap.mapObj(args[0].AsHandle())
	arrH := vm.newArray()
	// Interning the key strings can allocate, so the result array is
	// shielded until it lands in a register.
	vm.protect(arrH)
	defer vm.unprotect(1)
	for k := range m.Int {
		locked := vm.lockStores()
		arr := vm.heap.array(arrH)
		arr.Items = append(arr.Items, IntVal(k))
		vm.unlockStores(locked)
	}
	for k := range m.Str {
		// Interning can allocate and the allocator takes the heap lock,
		// so the store guard opens after the intern.
		v := ObjVal(vm.internString(k))
		locked := vm.lockStores()
		arr := vm.heap.array(arrH)
		arr.Items = append(arr.Items, v)
		vm.unlockStores(locked)
		vm.writeBarrier(v)
	}
	return ObjVal(arrH)
}

// nativeClock returns seconds of wall time since process start.
func nativeClock(vm *VM, args []Value) Value {
	return FloatVal(time.Since(processStart).Seconds())
}

// nativeSleep returns a future that a detached goroutine resolves after
// the given number of milliseconds. Awaiting it blocks the script.
func nativeSleep(vm *VM, args []Value) Value {
	ms := int64(0)
	switch {
	case args[0].IsInt():
		ms = int64(args[0].AsInt())
	case args[0].IsFloat():
		ms = int64(args[0].AsFloat())
	}
	h := vm.newFuture()
	f := vm.heap.future(h)
	go func() {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		vm.resolveFuture(f, NilVal())
	}()
	return ObjVal(h)
}
