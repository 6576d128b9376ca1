package vm

import "testing"

func TestInstructionEncodings(t *testing.T) {
	ins := encodeABC(OP_ADD, 1, 2, 3)
	if ins.Op() != OP_ADD || ins.A() != 1 || ins.B() != 2 || ins.C() != 3 {
		t.Errorf("ABC fields lost: %v %d %d %d", ins.Op(), ins.A(), ins.B(), ins.C())
	}

	ins = encodeABx(OP_LOADK, 7, 65535)
	if ins.Op() != OP_LOADK || ins.A() != 7 || ins.Bx() != 65535 {
		t.Errorf("ABx fields lost")
	}

	for _, sbx := range []int{0, 1, -1, 1000, -1000, MaxJump16, -MaxJump16} {
		ins = encodeAsBx(OP_JMPF, 9, sbx)
		if ins.A() != 9 || ins.SBx() != sbx {
			t.Errorf("AsBx(%d) decoded as %d", sbx, ins.SBx())
		}
	}

	for _, sbx := range []int{0, 1, -1, 100000, -100000, MaxJump24, -MaxJump24} {
		ins = encodeSBx24(OP_JMP, sbx)
		if ins.SBx24() != sbx {
			t.Errorf("sBx24(%d) decoded as %d", sbx, ins.SBx24())
		}
	}
}

func TestChunkWrite(t *testing.T) {
	c := NewChunk("test.sbl")
	if idx := c.Write(encodeABC(OP_NOP, 0, 0, 0), 1); idx != 0 {
		t.Errorf("first instruction at %d", idx)
	}
	if idx := c.Write(encodeABC(OP_HALT, 0, 0, 0), 2); idx != 1 {
		t.Errorf("second instruction at %d", idx)
	}
	if c.Len() != 2 || c.Lines[1] != 2 {
		t.Errorf("length or line table wrong")
	}
	if idx := c.AddConstant(IntVal(42)); idx != 0 {
		t.Errorf("first constant at %d", idx)
	}
}

// A patched jump must land exactly one instruction past the last one
// emitted before patching, per the ip-after-increment convention.
func TestPatchJumpDestination(t *testing.T) {
	c := NewChunk("test.sbl")
	at := c.Write(encodeAsBx(OP_JMPF, 3, 0), 1)
	for i := 0; i < 5; i++ {
		c.Write(encodeABC(OP_NOP, 0, 0, 0), 1)
	}
	if err := c.PatchJump(at); err != nil {
		t.Fatal(err)
	}

	ins := c.Code[at]
	if ins.Op() != OP_JMPF || ins.A() != 3 {
		t.Fatalf("patch clobbered opcode or register")
	}
	dest := at + 1 + ins.SBx()
	if dest != c.Len() {
		t.Errorf("jump lands at %d, want %d", dest, c.Len())
	}
}

func TestPatchJump24(t *testing.T) {
	c := NewChunk("test.sbl")
	at := c.Write(encodeSBx24(OP_JMP, 0), 1)
	for i := 0; i < 3; i++ {
		c.Write(encodeABC(OP_NOP, 0, 0, 0), 1)
	}
	if err := c.PatchJump(at); err != nil {
		t.Fatal(err)
	}
	if dest := at + 1 + c.Code[at].SBx24(); dest != c.Len() {
		t.Errorf("jump lands at %d, want %d", dest, c.Len())
	}
}

func TestPatchNonJumpFails(t *testing.T) {
	c := NewChunk("test.sbl")
	at := c.Write(encodeABC(OP_ADD, 0, 1, 2), 1)
	if err := c.PatchJump(at); err == nil {
		t.Errorf("expected patch of non-jump to fail")
	}
}
