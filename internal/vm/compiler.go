package vm

import (
	"fmt"

	"github.com/sable-lang/sable/internal/ast"
	"github.com/sable-lang/sable/internal/config"
	"github.com/sable-lang/sable/internal/token"
)

// Compiler translates one syntax tree into one chunk. Registers are
// assigned by a bump allocator: locals hold their register for the
// whole scope, expression temporaries are released as soon as the value
// they fed consumes them. Register 0 of every window is the callee
// slot and is never assigned.
type Compiler struct {
	vm    *VM
	chunk *Chunk
	file  string

	locals     [config.MaxLocals]local
	localCount int
	scopeDepth int

	nextReg int
	maxReg  int

	line int

	err error
}

type local struct {
	name  string
	depth int
	reg   int
}

// NewCompiler creates a compiler for one source file. The chunk is
// pinned as a GC root while the compiler owns it; Run and importModule
// unpin once a function object takes ownership.
func NewCompiler(vm *VM, file string) *Compiler {
	c := &Compiler{
		vm:      vm,
		chunk:   NewChunk(file),
		file:    file,
		nextReg: 1,
		maxReg:  1,
	}
	vm.pinChunk(c.chunk)
	return c
}

// Compile translates the program and seals the chunk. The first error
// encountered wins; compilation continues past it only to keep the
// compiler's state machine simple.
func (c *Compiler) Compile(program *ast.Program) (*Chunk, error) {
	for _, s := range program.Statements {
		c.compileStatement(s)
		if c.err != nil {
			break
		}
	}
	c.emit(encodeABC(OP_RETURNNIL, 0, 0, 0))
	c.chunk.MaxRegs = c.maxReg
	if c.err != nil {
		c.vm.unpinChunk(c.chunk)
		return nil, c.err
	}
	return c.chunk, nil
}

func (c *Compiler) error(tok token.Token, format string, args ...any) {
	if c.err != nil {
		return
	}
	c.err = fmt.Errorf("%s:%d: %s", c.file, tok.Line, fmt.Sprintf(format, args...))
}

// emit writes one instruction at the current source line.
func (c *Compiler) emit(ins Instruction) int {
	return c.chunk.Write(ins, c.line)
}

func (c *Compiler) at(tok token.Token) {
	c.line = tok.Line
}

// allocReg claims the next register in this window.
func (c *Compiler) allocReg(tok token.Token) int {
	if c.nextReg >= config.MaxRegisters {
		c.error(tok, "expression needs too many registers")
		return config.MaxRegisters - 1
	}
	r := c.nextReg
	c.nextReg++
	if c.nextReg > c.maxReg {
		c.maxReg = c.nextReg
	}
	return r
}

// freeTo releases every temporary at or above mark.
func (c *Compiler) freeTo(mark int) {
	c.nextReg = mark
}

func (c *Compiler) addLocal(tok token.Token, name string, reg int) {
	if c.localCount >= config.MaxLocals {
		c.error(tok, "too many local variables in function")
		return
	}
	c.locals[c.localCount] = local{name: name, depth: c.scopeDepth, reg: reg}
	c.localCount++
}

// resolveLocal finds the innermost binding of name, or -1.
func (c *Compiler) resolveLocal(name string) int {
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return c.locals[i].reg
		}
	}
	return -1
}

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope drops the scope's locals and releases their registers.
func (c *Compiler) endScope() {
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].depth > c.scopeDepth {
		c.localCount--
		c.freeTo(c.locals[c.localCount].reg)
	}
}

// constant adds a value to the pool, bounded by the 16-bit operand.
func (c *Compiler) constant(tok token.Token, v Value) int {
	if len(c.chunk.Constants) >= config.MaxConstants {
		c.error(tok, "too many constants in one chunk")
		return 0
	}
	return c.chunk.AddConstant(v)
}

// stringConstant interns s and adds the handle to the pool. The string
// stays reachable through the pinned chunk.
func (c *Compiler) stringConstant(tok token.Token, s string) int {
	return c.constant(tok, ObjVal(c.vm.internString(s)))
}

// emitJump writes a forward-jump placeholder and returns its index for
// patching.
func (c *Compiler) emitJump(op Opcode, reg int) int {
	if op == OP_JMP {
		return c.emit(encodeSBx24(op, 0))
	}
	return c.emit(encodeAsBx(op, reg, 0))
}

// patchJump points the placeholder at the instruction after the current
// end of the code.
func (c *Compiler) patchJump(tok token.Token, index int) {
	if err := c.chunk.PatchJump(index); err != nil {
		c.error(tok, "%s", err)
	}
}

// emitLoop writes a backward jump to loopStart. Backward distances are
// known when emitted, so no patching is involved.
func (c *Compiler) emitLoop(tok token.Token, loopStart int) {
	offset := loopStart - c.chunk.Len() - 1
	if -offset > MaxJump24 {
		c.error(tok, "loop body too large")
		return
	}
	c.emit(encodeSBx24(OP_LOOP, offset))
}
