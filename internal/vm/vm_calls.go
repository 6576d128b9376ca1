package vm

// callValue dispatches OP_CALL / OP_ASYNC. funcReg holds the callee and
// the argc arguments sit directly above it; the result replaces the
// callee slot. Scripted calls push a frame whose register window starts
// at the callee slot, so callee R(0) aliases the caller's funcReg and
// the arguments are already in place as R(1..argc).
func (vm *VM) callValue(funcReg, argc int, wrapFuture bool) error {
	callee := vm.reg(funcReg)
	if !callee.IsObj() {
		return vm.runtimeError(errNotCallable, "value of type %s", vm.typeName(callee))
	}
	hd := callee.AsHandle()

	switch vm.heap.kind(hd) {
	case KindFunction:
		f := vm.heap.function(hd)
		if f.IsNative() {
			if f.Arity >= 0 && argc != f.Arity {
				return vm.runtimeError(errWrongArity, "%s expects %d arguments, got %d", f.Name, f.Arity, argc)
			}
			args := vm.registers[vm.regBase+funcReg+1 : vm.regBase+funcReg+1+argc]
			// The result is rooted in the callee register before the future
			// wraps it; wrapping allocates and may collect.
			vm.setReg(funcReg, f.Native(vm, args))
			if vm.hostErr != nil {
				err := vm.hostErr
				vm.hostErr = nil
				return vm.runtimeError(nil, "%s", err)
			}
			if wrapFuture && !vm.isFuture(vm.reg(funcReg)) {
				vm.setReg(funcReg, ObjVal(vm.resolvedFuture(vm.reg(funcReg))))
			}
			return nil
		}
		if argc != f.Arity {
			return vm.runtimeError(errWrongArity, "%s expects %d arguments, got %d", f.Name, f.Arity, argc)
		}
		if err := vm.pushScripted(hd, funcReg); err != nil {
			return err
		}
		if wrapFuture {
			// Async calls run eagerly to completion; the future they
			// return is already resolved.
			result, err := vm.run(vm.frameCount - 1)
			if err != nil {
				return err
			}
			vm.setReg(funcReg, result)
			vm.setReg(funcReg, ObjVal(vm.resolvedFuture(result)))
		}
		return nil

	case KindStructDef:
		// Calling a struct definition instantiates it, one positional
		// argument per declared field.
		def := vm.heap.structDef(hd)
		if argc != len(def.Fields) {
			return vm.runtimeError(errWrongArity, "%s expects %d fields, got %d",
				vm.heap.str(def.Name).Chars, len(def.Fields), argc)
		}
		fields := make([]Value, argc)
		for i := 0; i < argc; i++ {
			fields[i] = vm.reg(funcReg + 1 + i)
		}
		vm.setReg(funcReg, ObjVal(vm.newStructInstance(hd, fields)))
		if wrapFuture {
			vm.setReg(funcReg, ObjVal(vm.resolvedFuture(vm.reg(funcReg))))
		}
		return nil

	default:
		return vm.runtimeError(errNotCallable, "value of type %s", vm.typeName(callee))
	}
}

// pushScripted saves the caller's resume state and opens the callee's
// register window.
func (vm *VM) pushScripted(fn Handle, funcReg int) error {
	if vm.frameCount >= vm.cfg.MaxFrames {
		return vm.runtimeError(errFrameOverflow, "depth %d", vm.frameCount)
	}
	f := vm.heap.function(fn)

	frame := CallFrame{
		chunk:       vm.chunk,
		ip:          vm.ip,
		base:        vm.regBase,
		regTop:      vm.regTop,
		resultReg:   funcReg,
		function:    fn,
		prevGlobals: vm.globals,
	}
	if vm.frameCount < len(vm.frames) {
		vm.frames[vm.frameCount] = frame
	} else {
		vm.frames = append(vm.frames, frame)
	}
	vm.frameCount++

	vm.regBase += funcReg
	vm.regTop = vm.regBase + f.Chunk.MaxRegs + 1
	vm.ensureRegisters(vm.regTop)
	if f.Env != InvalidHandle {
		vm.globals = f.Env
	}
	vm.chunk = f.Chunk
	vm.ip = 0
	return nil
}

func (vm *VM) isFuture(v Value) bool {
	return v.IsObj() && vm.heap.kind(v.AsHandle()) == KindFuture
}
