package vm

import "fmt"

// Chunk represents one compiled unit: its instruction stream, constant
// pool, and per-instruction line table. A chunk's constants, including
// nested function constants, are reachable only through the chunk.
type Chunk struct {
	// Code is the instruction stream
	Code []Instruction

	// Constants pool - literals, names, nested function prototypes
	Constants []Value

	// Lines maps instruction index to source line number (for errors)
	Lines []int

	// MaxRegs is the register high-water mark the compiler recorded
	MaxRegs int

	// File is the source file name
	File string
}

// NewChunk creates a new empty chunk
func NewChunk(file string) *Chunk {
	return &Chunk{
		Code:      make([]Instruction, 0, 256),
		Constants: make([]Value, 0, 64),
		Lines:     make([]int, 0, 256),
		File:      file,
	}
}

// Write appends an instruction and returns its index
func (c *Chunk) Write(ins Instruction, line int) int {
	c.Code = append(c.Code, ins)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// AddConstant adds a constant to the pool and returns its index
func (c *Chunk) AddConstant(value Value) int {
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// PatchJump rewrites the placeholder at index so it jumps to the current
// end of the code. The field width depends on the opcode: JMP and LOOP
// carry a 24-bit offset, JMPF and JMPT a 16-bit offset plus a register.
func (c *Chunk) PatchJump(index int) error {
	jump := len(c.Code) - index - 1
	ins := c.Code[index]

	switch ins.Op() {
	case OP_JMP, OP_LOOP:
		if jump > MaxJump24 {
			return fmt.Errorf("jump of %d instructions too far", jump)
		}
		c.Code[index] = encodeSBx24(ins.Op(), jump)
	case OP_JMPF, OP_JMPT:
		if jump > MaxJump16 {
			return fmt.Errorf("conditional jump of %d instructions too far", jump)
		}
		c.Code[index] = encodeAsBx(ins.Op(), ins.A(), jump)
	default:
		return fmt.Errorf("cannot patch %s as a jump", OpcodeNames[ins.Op()])
	}
	return nil
}

// Len returns the number of instructions in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}
