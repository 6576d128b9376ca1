package vm

import (
	"strings"
	"testing"

	"github.com/sable-lang/sable/internal/lexer"
	"github.com/sable-lang/sable/internal/parser"
)

func compile(t *testing.T, machine *VM, src string) *Chunk {
	t.Helper()
	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser error: %s", errs[0])
	}
	chunk, err := NewCompiler(machine, "test.sbl").Compile(program)
	if err != nil {
		t.Fatalf("compile error: %s", err)
	}
	return chunk
}

func opcodes(c *Chunk) []Opcode {
	ops := make([]Opcode, len(c.Code))
	for i, ins := range c.Code {
		ops[i] = ins.Op()
	}
	return ops
}

func containsOp(c *Chunk, op Opcode) bool {
	for _, got := range opcodes(c) {
		if got == op {
			return true
		}
	}
	return false
}

func TestCompileTerminator(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, "var x = 1;")
	last := chunk.Code[chunk.Len()-1]
	if last.Op() != OP_RETURNNIL {
		t.Errorf("chunk must end with RETURNNIL, got %s", OpcodeNames[last.Op()])
	}
	if chunk.MaxRegs < 1 {
		t.Errorf("register high-water mark not recorded")
	}
}

func TestCompileGlobalsByName(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, "var x = 1; x = 2; print x;")
	for _, op := range []Opcode{OP_DEFGLOBAL, OP_SETGLOBAL, OP_GETGLOBAL, OP_PRINT} {
		if !containsOp(chunk, op) {
			t.Errorf("missing %s", OpcodeNames[op])
		}
	}
}

func TestCompileShortCircuit(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, "var x = 1 == 1 && 2 == 2;")
	if !containsOp(chunk, OP_JMPF) {
		t.Errorf("&& must short-circuit with JMPF")
	}
	chunk = compile(t, machine, "var x = 1 == 2 || 2 == 2;")
	if !containsOp(chunk, OP_JMPT) {
		t.Errorf("|| must short-circuit with JMPT")
	}
}

func TestCompileLoopJumpsBackward(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, "while (true) { }")
	found := false
	for i, ins := range chunk.Code {
		if ins.Op() == OP_LOOP {
			found = true
			if dest := i + 1 + ins.SBx24(); dest >= i {
				t.Errorf("LOOP at %d jumps forward to %d", i, dest)
			}
		}
	}
	if !found {
		t.Fatalf("missing LOOP")
	}
}

// Direct calls of the aggregate builtins compile to dedicated opcodes,
// not generic calls.
func TestCompileBuiltinOpenCoding(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, `
		var a = array();
		push(a, 1);
		var n = length(a);
		var last = pop(a);
		var m = map();
	`)
	for _, op := range []Opcode{OP_NEWARRAY, OP_PUSH, OP_LEN, OP_POP, OP_NEWMAP} {
		if !containsOp(chunk, op) {
			t.Errorf("missing %s", OpcodeNames[op])
		}
	}
	if containsOp(chunk, OP_CALL) {
		t.Errorf("builtin calls must not fall back to CALL")
	}
}

func TestCompileShadowedBuiltinCalls(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, `
		fn use(length) {
			return length(1);
		}
	`)
	// The parameter shadows the builtin inside the function body.
	var fnChunk *Chunk
	for _, k := range chunk.Constants {
		if k.IsObj() && machine.heap.kind(k.AsHandle()) == KindFunction {
			fnChunk = machine.heap.function(k.AsHandle()).Chunk
		}
	}
	if fnChunk == nil {
		t.Fatalf("nested function constant missing")
	}
	if !containsOp(fnChunk, OP_CALL) {
		t.Errorf("shadowed builtin must compile to a generic CALL")
	}
}

func TestCompileStructDef(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, "struct Point { x, y }")
	found := false
	for _, ins := range chunk.Code {
		if ins.Op() == OP_STRUCTDEF {
			found = true
			if ins.C() != 2 {
				t.Errorf("expected 2 fields, got %d", ins.C())
			}
			if ins.A() == ins.B() {
				t.Errorf("destination must not alias the name register")
			}
		}
	}
	if !found {
		t.Fatalf("missing STRUCTDEF")
	}
}

func TestCompileClosureBindsPrototype(t *testing.T) {
	machine := New(nil)
	chunk := compile(t, machine, "fn id(x) { return x; }")
	if !containsOp(chunk, OP_CLOSURE) {
		t.Fatalf("function statement must emit CLOSURE")
	}
	var proto *FunctionObject
	for _, k := range chunk.Constants {
		if k.IsObj() && machine.heap.kind(k.AsHandle()) == KindFunction {
			proto = machine.heap.function(k.AsHandle())
		}
	}
	if proto == nil {
		t.Fatalf("prototype constant missing")
	}
	if proto.Arity != 1 || proto.Name != "id" {
		t.Errorf("prototype wrong: %s/%d", proto.Name, proto.Arity)
	}
	if proto.Env != InvalidHandle {
		t.Errorf("prototype must not carry an environment")
	}
}

func TestCompileIntegerLiteralOverflow(t *testing.T) {
	machine := New(nil)
	p := parser.New(lexer.New("var x = 4294967296;"))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser error: %s", errs[0])
	}
	_, err := NewCompiler(machine, "test.sbl").Compile(program)
	if err == nil || !strings.Contains(err.Error(), "overflows") {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestCompileInvalidAssignTarget(t *testing.T) {
	p := parser.New(lexer.New("1 + 2 = 3;"))
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected a parse error for invalid assignment target")
	}
}

func TestCompileErrorUnpinsChunk(t *testing.T) {
	machine := New(nil)
	p := parser.New(lexer.New("var x = 9999999999999;"))
	program := p.ParseProgram()
	before := len(machine.pinnedChunks)
	_, err := NewCompiler(machine, "test.sbl").Compile(program)
	if err == nil {
		t.Fatalf("expected compile error")
	}
	if len(machine.pinnedChunks) != before {
		t.Errorf("failed compile leaked a pinned chunk")
	}
}
