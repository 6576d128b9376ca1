package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a chunk and its nested function chunks as
// register-style assembly, one instruction per line.
func (vm *VM) Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	vm.disassembleChunk(&b, c, name)
	return b.String()
}

func (vm *VM) disassembleChunk(b *strings.Builder, c *Chunk, name string) {
	fmt.Fprintf(b, "== %s (%d registers) ==\n", name, c.MaxRegs)
	for i, ins := range c.Code {
		vm.disassembleInstruction(b, c, i, ins)
	}
	for _, k := range c.Constants {
		if k.IsObj() && vm.heap.kind(k.AsHandle()) == KindFunction {
			f := vm.heap.function(k.AsHandle())
			if f.Chunk != nil {
				b.WriteByte('\n')
				vm.disassembleChunk(b, f.Chunk, f.Name)
			}
		}
	}
}

func (vm *VM) disassembleInstruction(b *strings.Builder, c *Chunk, i int, ins Instruction) {
	fmt.Fprintf(b, "%04d ", i)
	if i > 0 && c.Lines[i] == c.Lines[i-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(b, "%4d ", c.Lines[i])
	}

	op := ins.Op()
	name := OpcodeNames[op]
	switch op {
	case OP_LOADK, OP_CLOSURE, OP_GETGLOBAL, OP_SETGLOBAL, OP_DEFGLOBAL, OP_IMPORT:
		fmt.Fprintf(b, "%-10s R%d K%d", name, ins.A(), ins.Bx())
		if idx := ins.Bx(); idx < len(c.Constants) {
			fmt.Fprintf(b, " ; %s", vm.inspectValue(c.Constants[idx]))
		}
	case OP_LOADI:
		fmt.Fprintf(b, "%-10s R%d %d", name, ins.A(), ins.SBx())
	case OP_JMP, OP_LOOP:
		fmt.Fprintf(b, "%-10s -> %04d", name, i+1+ins.SBx24())
	case OP_JMPF, OP_JMPT:
		fmt.Fprintf(b, "%-10s R%d -> %04d", name, ins.A(), i+1+ins.SBx())
	case OP_LOADNIL, OP_LOADTRUE, OP_LOADFALSE, OP_NEWARRAY, OP_NEWMAP, OP_PRINT, OP_RETURN:
		fmt.Fprintf(b, "%-10s R%d", name, ins.A())
	case OP_RETURNNIL, OP_HALT, OP_NOP:
		b.WriteString(name)
	case OP_CALL, OP_ASYNC:
		fmt.Fprintf(b, "%-10s R%d args=%d", name, ins.A(), ins.B())
	default:
		fmt.Fprintf(b, "%-10s R%d R%d R%d", name, ins.A(), ins.B(), ins.C())
	}
	b.WriteByte('\n')
}
