package vm

import "fmt"

// contextCheckMask throttles cancellation checks to one per 64Ki
// executed instructions.
const contextCheckMask = 0xFFFF

// run is the dispatch loop. It executes until the frame stack pops back
// to entryDepth, so nested invocations (imports, eager async calls)
// recurse into run with the current depth and unwind cleanly.
func (vm *VM) run(entryDepth int) (Value, error) {
	for {
		vm.instructions++
		if vm.instructions&contextCheckMask == 0 {
			if err := vm.Context.Err(); err != nil {
				return NilVal(), vm.runtimeError(err, "execution cancelled")
			}
		}

		ins := vm.chunk.Code[vm.ip]
		vm.ip++

		switch ins.Op() {
		case OP_MOVE:
			vm.setReg(ins.A(), vm.reg(ins.B()))
		case OP_LOADK:
			vm.setReg(ins.A(), vm.chunk.Constants[ins.Bx()])
		case OP_LOADI:
			vm.setReg(ins.A(), IntVal(int32(ins.SBx())))
		case OP_LOADNIL:
			vm.setReg(ins.A(), NilVal())
		case OP_LOADTRUE:
			vm.setReg(ins.A(), BoolVal(true))
		case OP_LOADFALSE:
			vm.setReg(ins.A(), BoolVal(false))

		case OP_CLOSURE:
			// The constant is a prototype; the runtime function binds the
			// environment active at the definition site, so calls made
			// across module boundaries resolve names in their home module.
			proto := vm.heap.function(vm.chunk.Constants[ins.Bx()].AsHandle())
			fn := vm.newFunction(proto.Name, proto.Arity, proto.Chunk, vm.globals)
			vm.setReg(ins.A(), ObjVal(fn))

		case OP_GETGLOBAL:
			key := vm.chunk.Constants[ins.Bx()].AsHandle()
			v, ok := vm.envLookup(vm.globals, key)
			if !ok {
				if fn, found := vm.envLookupFn(vm.globals, key); found {
					v = ObjVal(fn)
				} else {
					return NilVal(), vm.runtimeError(errUndefinedVariable, "%q", vm.heap.str(key).Chars)
				}
			}
			vm.setReg(ins.A(), v)
		case OP_SETGLOBAL:
			key := vm.chunk.Constants[ins.Bx()].AsHandle()
			if !vm.envAssign(vm.globals, key, vm.reg(ins.A())) {
				return NilVal(), vm.runtimeError(errUndefinedVariable, "cannot assign to %q", vm.heap.str(key).Chars)
			}
		case OP_DEFGLOBAL:
			key := vm.chunk.Constants[ins.Bx()].AsHandle()
			vm.envDefine(vm.globals, key, vm.reg(ins.A()))

		case OP_ADD:
			b, c := vm.reg(ins.B()), vm.reg(ins.C())
			if b.IsInt() && c.IsInt() {
				vm.setReg(ins.A(), IntVal(b.AsInt()+c.AsInt()))
			} else {
				v, err := vm.addValues(b, c)
				if err != nil {
					return NilVal(), err
				}
				vm.setReg(ins.A(), v)
			}
		case OP_SUB:
			b, c := vm.reg(ins.B()), vm.reg(ins.C())
			if b.IsInt() && c.IsInt() {
				vm.setReg(ins.A(), IntVal(b.AsInt()-c.AsInt()))
			} else {
				v, err := vm.arithValues("-", b, c)
				if err != nil {
					return NilVal(), err
				}
				vm.setReg(ins.A(), v)
			}
		case OP_MUL:
			b, c := vm.reg(ins.B()), vm.reg(ins.C())
			if b.IsInt() && c.IsInt() {
				vm.setReg(ins.A(), IntVal(b.AsInt()*c.AsInt()))
			} else {
				v, err := vm.arithValues("*", b, c)
				if err != nil {
					return NilVal(), err
				}
				vm.setReg(ins.A(), v)
			}
		case OP_DIV:
			b, c := vm.reg(ins.B()), vm.reg(ins.C())
			if b.IsInt() && c.IsInt() {
				if c.AsInt() == 0 {
					return NilVal(), vm.runtimeError(errDivisionByZero, "%d / 0", b.AsInt())
				}
				vm.setReg(ins.A(), IntVal(b.AsInt()/c.AsInt()))
			} else {
				v, err := vm.arithValues("/", b, c)
				if err != nil {
					return NilVal(), err
				}
				vm.setReg(ins.A(), v)
			}
		case OP_MOD:
			b, c := vm.reg(ins.B()), vm.reg(ins.C())
			if !b.IsInt() || !c.IsInt() {
				return NilVal(), vm.runtimeError(errBadOperand, "%% needs integer operands")
			}
			if c.AsInt() == 0 {
				return NilVal(), vm.runtimeError(errDivisionByZero, "%d %% 0", b.AsInt())
			}
			vm.setReg(ins.A(), IntVal(b.AsInt()%c.AsInt()))
		case OP_NEG:
			b := vm.reg(ins.B())
			switch {
			case b.IsInt():
				vm.setReg(ins.A(), IntVal(-b.AsInt()))
			case b.IsFloat():
				vm.setReg(ins.A(), FloatVal(-b.AsFloat()))
			default:
				return NilVal(), vm.runtimeError(errBadOperand, "operand of unary - must be a number")
			}

		case OP_EQ:
			vm.setReg(ins.A(), BoolVal(vm.valuesEqual(vm.reg(ins.B()), vm.reg(ins.C()))))
		case OP_NE:
			vm.setReg(ins.A(), BoolVal(!vm.valuesEqual(vm.reg(ins.B()), vm.reg(ins.C()))))
		case OP_LT, OP_LE, OP_GT, OP_GE:
			v, err := vm.compareValues(ins.Op(), vm.reg(ins.B()), vm.reg(ins.C()))
			if err != nil {
				return NilVal(), err
			}
			vm.setReg(ins.A(), v)

		case OP_NOT:
			vm.setReg(ins.A(), BoolVal(!vm.reg(ins.B()).Truthy()))

		case OP_JMP, OP_LOOP:
			vm.ip += ins.SBx24()
		case OP_JMPF:
			if !vm.reg(ins.A()).Truthy() {
				vm.ip += ins.SBx()
			}
		case OP_JMPT:
			if vm.reg(ins.A()).Truthy() {
				vm.ip += ins.SBx()
			}

		case OP_CALL:
			if err := vm.callValue(ins.A(), ins.B(), false); err != nil {
				return NilVal(), err
			}
		case OP_ASYNC:
			if err := vm.callValue(ins.A(), ins.B(), true); err != nil {
				return NilVal(), err
			}

		case OP_RETURN, OP_RETURNNIL:
			result := NilVal()
			if ins.Op() == OP_RETURN {
				result = vm.reg(ins.A())
			}
			vm.frameCount--
			f := vm.frames[vm.frameCount]
			vm.chunk = f.chunk
			vm.ip = f.ip
			vm.regBase = f.base
			vm.regTop = f.regTop
			vm.globals = f.prevGlobals
			if vm.frameCount == entryDepth {
				return result, nil
			}
			vm.setReg(f.resultReg, result)

		case OP_GETPROP:
			v, err := vm.getProperty(vm.reg(ins.B()), vm.reg(ins.C()).AsHandle())
			if err != nil {
				return NilVal(), err
			}
			vm.setReg(ins.A(), v)
		case OP_SETPROP:
			if err := vm.setProperty(vm.reg(ins.A()), vm.reg(ins.B()).AsHandle(), vm.reg(ins.C())); err != nil {
				return NilVal(), err
			}
		case OP_GETIDX:
			v, err := vm.getIndex(vm.reg(ins.B()), vm.reg(ins.C()))
			if err != nil {
				return NilVal(), err
			}
			vm.setReg(ins.A(), v)
		case OP_SETIDX:
			if err := vm.setIndex(vm.reg(ins.A()), vm.reg(ins.B()), vm.reg(ins.C())); err != nil {
				return NilVal(), err
			}

		case OP_NEWARRAY:
			vm.setReg(ins.A(), ObjVal(vm.newArray()))
		case OP_NEWMAP:
			vm.setReg(ins.A(), ObjVal(vm.newMap()))
		case OP_STRUCTDEF:
			base, count := ins.B(), ins.C()
			name := vm.reg(base).AsHandle()
			fields := make([]Handle, count)
			for i := 0; i < count; i++ {
				fields[i] = vm.reg(base + 1 + i).AsHandle()
			}
			vm.setReg(ins.A(), ObjVal(vm.newStructDef(name, fields)))

		case OP_PUSH:
			target := vm.reg(ins.A())
			if !target.IsObj() || vm.heap.kind(target.AsHandle()) != KindArray {
				return NilVal(), vm.runtimeError(errBadOperand, "push target must be an array")
			}
			arr := vm.heap.array(target.AsHandle())
			v := vm.reg(ins.B())
			locked := vm.lockStores()
			arr.Items = append(arr.Items, v)
			vm.unlockStores(locked)
			vm.writeBarrier(v)
		case OP_POP:
			target := vm.reg(ins.B())
			if !target.IsObj() || vm.heap.kind(target.AsHandle()) != KindArray {
				return NilVal(), vm.runtimeError(errBadOperand, "pop target must be an array")
			}
			arr := vm.heap.array(target.AsHandle())
			locked := vm.lockStores()
			if n := len(arr.Items); n > 0 {
				vm.setReg(ins.A(), arr.Items[n-1])
				arr.Items = arr.Items[:n-1]
			} else {
				vm.setReg(ins.A(), NilVal())
			}
			vm.unlockStores(locked)
		case OP_LEN:
			v, err := vm.lengthOf(vm.reg(ins.B()))
			if err != nil {
				return NilVal(), err
			}
			vm.setReg(ins.A(), v)

		case OP_IMPORT:
			name := vm.heap.str(vm.chunk.Constants[ins.Bx()].AsHandle()).Chars
			v, err := vm.importModule(name)
			if err != nil {
				return NilVal(), err
			}
			vm.setReg(ins.A(), v)
		case OP_AWAIT:
			vm.setReg(ins.A(), vm.awaitValue(vm.reg(ins.B())))

		case OP_PRINT:
			fmt.Fprintln(vm.out, vm.formatValue(vm.reg(ins.A())))
		case OP_HALT:
			return NilVal(), nil
		case OP_NOP:

		default:
			return NilVal(), vm.runtimeError(nil, "unknown opcode %d", ins.Op())
		}
	}
}
