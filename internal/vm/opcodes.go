// Package vm implements the sable execution core: a register-based bytecode
// compiler, the interpreter, and a tracing garbage collector.
package vm

// Opcode represents a single VM instruction.
type Opcode byte

const (
	// Register moves and loads
	OP_MOVE      Opcode = iota // R(A) = R(B)
	OP_LOADK                   // R(A) = K(Bx)
	OP_LOADI                   // R(A) = sBx (small integer immediate)
	OP_LOADNIL                 // R(A) = nil
	OP_LOADTRUE                // R(A) = true
	OP_LOADFALSE               // R(A) = false
	OP_CLOSURE                 // R(A) = function K(Bx) bound to the current globals

	// Globals (by-name, through the environment chain)
	OP_GETGLOBAL // R(A) = globals[K(Bx)]
	OP_SETGLOBAL // globals[K(Bx)] = R(A), name must exist
	OP_DEFGLOBAL // define globals[K(Bx)] = R(A)

	// Arithmetic
	OP_ADD // R(A) = R(B) + R(C)
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_NEG // R(A) = -R(B)

	// Comparison
	OP_EQ // R(A) = R(B) == R(C)
	OP_NE
	OP_LT
	OP_LE
	OP_GT
	OP_GE

	// Logic
	OP_NOT // R(A) = !R(B)

	// Control flow
	OP_JMP  // ip += sBx24
	OP_JMPF // if !truthy(R(A)) ip += sBx
	OP_JMPT // if truthy(R(A)) ip += sBx
	OP_LOOP // ip += sBx24 (backward, emitted without patching)

	// Calls
	OP_CALL      // call R(A) with B args in R(A+1..A+B); result lands in R(A)
	OP_ASYNC     // like CALL, but the result is wrapped in a resolved future
	OP_RETURN    // return R(A)
	OP_RETURNNIL // return nil

	// Property and index access; property names are staged in registers
	OP_GETPROP // R(A) = R(B).name, name string in R(C)
	OP_SETPROP // R(A).name = R(C), name string in R(B)
	OP_GETIDX  // R(A) = R(B)[R(C)]
	OP_SETIDX  // R(A)[R(B)] = R(C)

	// Aggregates
	OP_NEWARRAY  // R(A) = []
	OP_NEWMAP    // R(A) = {}
	OP_STRUCTDEF // R(A) = struct def, name in R(B), C field names in R(B+1..B+C)
	OP_PUSH      // append R(B) to array R(A)
	OP_POP       // R(A) = pop from array R(B)
	OP_LEN       // R(A) = length of R(B)

	// Modules and futures
	OP_IMPORT // R(A) = module K(Bx) (compile-and-run on first use)
	OP_AWAIT  // R(A) = await R(B)

	// Misc
	OP_PRINT // print R(A)
	OP_HALT  // stop execution
	OP_NOP
)

// OpcodeNames maps opcodes to their string names (for the disassembler)
var OpcodeNames = map[Opcode]string{
	OP_MOVE:      "MOVE",
	OP_LOADK:     "LOADK",
	OP_LOADI:     "LOADI",
	OP_LOADNIL:   "LOADNIL",
	OP_LOADTRUE:  "LOADTRUE",
	OP_LOADFALSE: "LOADFALSE",
	OP_CLOSURE:   "CLOSURE",

	OP_GETGLOBAL: "GETGLOBAL",
	OP_SETGLOBAL: "SETGLOBAL",
	OP_DEFGLOBAL: "DEFGLOBAL",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",
	OP_NEG: "NEG",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_NOT: "NOT",

	OP_JMP:  "JMP",
	OP_JMPF: "JMPF",
	OP_JMPT: "JMPT",
	OP_LOOP: "LOOP",

	OP_CALL:      "CALL",
	OP_ASYNC:     "ASYNC",
	OP_RETURN:    "RETURN",
	OP_RETURNNIL: "RETURNNIL",

	OP_GETPROP: "GETPROP",
	OP_SETPROP: "SETPROP",
	OP_GETIDX:  "GETIDX",
	OP_SETIDX:  "SETIDX",

	OP_NEWARRAY:  "NEWARRAY",
	OP_NEWMAP:    "NEWMAP",
	OP_STRUCTDEF: "STRUCTDEF",
	OP_PUSH:      "PUSH",
	OP_POP:       "POP",
	OP_LEN:       "LEN",

	OP_IMPORT: "IMPORT",
	OP_AWAIT:  "AWAIT",

	OP_PRINT: "PRINT",
	OP_HALT:  "HALT",
	OP_NOP:   "NOP",
}

// Instruction is one fixed-width 32-bit instruction.
//
// Encodings:
//
//	ABC   [op:8 | A:8 | B:8 | C:8]
//	ABx   [op:8 | A:8 | Bx:16]
//	AsBx  [op:8 | A:8 | sBx:16]   sBx biased by 0x7FFF
//	sBx24 [op:8 | sBx:24]         sBx biased by 0x7FFFFF
type Instruction uint32

const (
	sBx16Bias = 0x7FFF
	sBx24Bias = 0x7FFFFF

	// MaxJump16 and MaxJump24 are the largest encodable forward jump distances
	MaxJump16 = 0x7FFF
	MaxJump24 = 0x7FFFFF
)

func encodeABC(op Opcode, a, b, c int) Instruction {
	return Instruction(uint32(op)<<24 | uint32(a&0xff)<<16 | uint32(b&0xff)<<8 | uint32(c&0xff))
}

func encodeABx(op Opcode, a, bx int) Instruction {
	return Instruction(uint32(op)<<24 | uint32(a&0xff)<<16 | uint32(bx&0xffff))
}

func encodeAsBx(op Opcode, a, sbx int) Instruction {
	return encodeABx(op, a, sbx+sBx16Bias)
}

func encodeSBx24(op Opcode, sbx int) Instruction {
	return Instruction(uint32(op)<<24 | uint32((sbx+sBx24Bias)&0xffffff))
}

func (i Instruction) Op() Opcode { return Opcode(i >> 24) }
func (i Instruction) A() int     { return int(i >> 16 & 0xff) }
func (i Instruction) B() int     { return int(i >> 8 & 0xff) }
func (i Instruction) C() int     { return int(i & 0xff) }
func (i Instruction) Bx() int    { return int(i & 0xffff) }
func (i Instruction) SBx() int   { return int(i&0xffff) - sBx16Bias }
func (i Instruction) SBx24() int { return int(i&0xffffff) - sBx24Bias }
