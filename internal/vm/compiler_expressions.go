package vm

import (
	"math"

	"github.com/sable-lang/sable/internal/ast"
	"github.com/sable-lang/sable/internal/config"
)

// loadiMin and loadiMax bound the LOADI immediate; integers outside go
// through the constant pool.
const (
	loadiMin = -0x7FFF
	loadiMax = 0x7FFF
)

// compileExpr compiles e so its value lands in dest. Temporaries
// allocated along the way are released before returning.
func (c *Compiler) compileExpr(e ast.Expression, dest int) {
	if c.err != nil {
		return
	}
	c.at(e.GetToken())

	switch e := e.(type) {
	case *ast.Identifier:
		if r := c.resolveLocal(e.Name); r >= 0 {
			if r != dest {
				c.emit(encodeABC(OP_MOVE, dest, r, 0))
			}
			return
		}
		c.emit(encodeABx(OP_GETGLOBAL, dest, c.stringConstant(e.Token, e.Name)))

	case *ast.IntegerLiteral:
		if e.Value < math.MinInt32 || e.Value > math.MaxInt32 {
			c.error(e.Token, "integer literal %d overflows 32 bits", e.Value)
			return
		}
		if e.Value >= loadiMin && e.Value <= loadiMax {
			c.emit(encodeAsBx(OP_LOADI, dest, int(e.Value)))
			return
		}
		c.emit(encodeABx(OP_LOADK, dest, c.constant(e.Token, IntVal(int32(e.Value)))))

	case *ast.FloatLiteral:
		c.emit(encodeABx(OP_LOADK, dest, c.constant(e.Token, FloatVal(e.Value))))

	case *ast.StringLiteral:
		c.emit(encodeABx(OP_LOADK, dest, c.stringConstant(e.Token, e.Value)))

	case *ast.BooleanLiteral:
		if e.Value {
			c.emit(encodeABC(OP_LOADTRUE, dest, 0, 0))
		} else {
			c.emit(encodeABC(OP_LOADFALSE, dest, 0, 0))
		}

	case *ast.NilLiteral:
		c.emit(encodeABC(OP_LOADNIL, dest, 0, 0))

	case *ast.ArrayLiteral:
		c.emit(encodeABC(OP_NEWARRAY, dest, 0, 0))
		for _, el := range e.Elements {
			mark := c.nextReg
			t := c.allocReg(e.Token)
			c.compileExpr(el, t)
			c.at(e.Token)
			c.emit(encodeABC(OP_PUSH, dest, t, 0))
			c.freeTo(mark)
		}

	case *ast.MapLiteral:
		c.emit(encodeABC(OP_NEWMAP, dest, 0, 0))
		for i := range e.Keys {
			mark := c.nextReg
			k := c.allocReg(e.Token)
			c.compileExpr(e.Keys[i], k)
			v := c.allocReg(e.Token)
			c.compileExpr(e.Vals[i], v)
			c.at(e.Token)
			c.emit(encodeABC(OP_SETIDX, dest, k, v))
			c.freeTo(mark)
		}

	case *ast.PrefixExpression:
		c.compileExpr(e.Right, dest)
		c.at(e.Token)
		if e.Operator == "-" {
			c.emit(encodeABC(OP_NEG, dest, dest, 0))
		} else {
			c.emit(encodeABC(OP_NOT, dest, dest, 0))
		}

	case *ast.InfixExpression:
		c.compileInfix(e, dest)

	case *ast.AssignExpression:
		c.compileAssign(e, dest)

	case *ast.CallExpression:
		c.compileCall(e, dest, OP_CALL)

	case *ast.AsyncExpression:
		c.compileCall(e.Call, dest, OP_ASYNC)

	case *ast.AwaitExpression:
		c.compileExpr(e.Value, dest)
		c.at(e.Token)
		c.emit(encodeABC(OP_AWAIT, dest, dest, 0))

	case *ast.IndexExpression:
		mark := c.nextReg
		o := c.allocReg(e.Token)
		c.compileExpr(e.Target, o)
		k := c.allocReg(e.Token)
		c.compileExpr(e.Index, k)
		c.at(e.Token)
		c.emit(encodeABC(OP_GETIDX, dest, o, k))
		c.freeTo(mark)

	case *ast.GetExpression:
		mark := c.nextReg
		o := c.allocReg(e.Token)
		c.compileExpr(e.Object, o)
		c.at(e.Token)
		n := c.allocReg(e.Token)
		c.emit(encodeABx(OP_LOADK, n, c.stringConstant(e.Token, e.Name)))
		c.emit(encodeABC(OP_GETPROP, dest, o, n))
		c.freeTo(mark)

	default:
		c.error(e.GetToken(), "cannot compile expression %T", e)
	}
}

var infixOps = map[string]Opcode{
	"+":  OP_ADD,
	"-":  OP_SUB,
	"*":  OP_MUL,
	"/":  OP_DIV,
	"%":  OP_MOD,
	"==": OP_EQ,
	"!=": OP_NE,
	"<":  OP_LT,
	"<=": OP_LE,
	">":  OP_GT,
	">=": OP_GE,
}

func (c *Compiler) compileInfix(e *ast.InfixExpression, dest int) {
	// Logical operators short-circuit: the left value stays in dest and
	// the right side only runs when it decides the outcome.
	if e.Operator == "&&" || e.Operator == "||" {
		c.compileExpr(e.Left, dest)
		c.at(e.Token)
		op := OP_JMPF
		if e.Operator == "||" {
			op = OP_JMPT
		}
		end := c.emitJump(op, dest)
		c.compileExpr(e.Right, dest)
		c.patchJump(e.Token, end)
		return
	}

	op, ok := infixOps[e.Operator]
	if !ok {
		c.error(e.Token, "unknown operator %q", e.Operator)
		return
	}
	mark := c.nextReg
	b := c.allocReg(e.Token)
	c.compileExpr(e.Left, b)
	r := c.allocReg(e.Token)
	c.compileExpr(e.Right, r)
	c.at(e.Token)
	c.emit(encodeABC(op, dest, b, r))
	c.freeTo(mark)
}

func (c *Compiler) compileAssign(e *ast.AssignExpression, dest int) {
	switch target := e.Target.(type) {
	case *ast.Identifier:
		if r := c.resolveLocal(target.Name); r >= 0 {
			c.compileExpr(e.Value, r)
			c.at(e.Token)
			if dest != r {
				c.emit(encodeABC(OP_MOVE, dest, r, 0))
			}
			return
		}
		c.compileExpr(e.Value, dest)
		c.at(e.Token)
		c.emit(encodeABx(OP_SETGLOBAL, dest, c.stringConstant(target.Token, target.Name)))

	case *ast.IndexExpression:
		mark := c.nextReg
		o := c.allocReg(e.Token)
		c.compileExpr(target.Target, o)
		k := c.allocReg(e.Token)
		c.compileExpr(target.Index, k)
		v := c.allocReg(e.Token)
		c.compileExpr(e.Value, v)
		c.at(e.Token)
		c.emit(encodeABC(OP_SETIDX, o, k, v))
		if dest != v {
			c.emit(encodeABC(OP_MOVE, dest, v, 0))
		}
		c.freeTo(mark)

	case *ast.GetExpression:
		mark := c.nextReg
		o := c.allocReg(e.Token)
		c.compileExpr(target.Object, o)
		n := c.allocReg(e.Token)
		c.emit(encodeABx(OP_LOADK, n, c.stringConstant(target.Token, target.Name)))
		v := c.allocReg(e.Token)
		c.compileExpr(e.Value, v)
		c.at(e.Token)
		c.emit(encodeABC(OP_SETPROP, o, n, v))
		if dest != v {
			c.emit(encodeABC(OP_MOVE, dest, v, 0))
		}
		c.freeTo(mark)

	default:
		c.error(e.Token, "invalid assignment target")
	}
}

// compileCall places the callee and its arguments in contiguous
// registers so the callee's window can alias them in place.
func (c *Compiler) compileCall(e *ast.CallExpression, dest int, op Opcode) {
	if op == OP_CALL && c.compileBuiltinCall(e, dest) {
		return
	}
	if len(e.Args) > 255 {
		c.error(e.Token, "too many call arguments")
		return
	}

	mark := c.nextReg
	f := c.allocReg(e.Token)
	c.compileExpr(e.Callee, f)
	for _, arg := range e.Args {
		r := c.allocReg(e.Token)
		c.compileExpr(arg, r)
		// Nested temporaries are released so the next argument register
		// stays contiguous.
		c.freeTo(r + 1)
	}
	c.at(e.Token)
	c.emit(encodeABC(op, f, len(e.Args), 0))
	if dest != f {
		c.emit(encodeABC(OP_MOVE, dest, f, 0))
	}
	c.freeTo(mark)
}

// compileBuiltinCall open codes direct calls of the aggregate builtins
// onto their dedicated opcodes. A local binding of the same name takes
// precedence and disables the shortcut.
func (c *Compiler) compileBuiltinCall(e *ast.CallExpression, dest int) bool {
	id, ok := e.Callee.(*ast.Identifier)
	if !ok || c.resolveLocal(id.Name) >= 0 {
		return false
	}

	switch {
	case id.Name == config.ArrayFuncName && len(e.Args) == 0:
		c.emit(encodeABC(OP_NEWARRAY, dest, 0, 0))
	case id.Name == config.MapFuncName && len(e.Args) == 0:
		c.emit(encodeABC(OP_NEWMAP, dest, 0, 0))
	case id.Name == config.LengthFuncName && len(e.Args) == 1:
		mark := c.nextReg
		t := c.allocReg(e.Token)
		c.compileExpr(e.Args[0], t)
		c.at(e.Token)
		c.emit(encodeABC(OP_LEN, dest, t, 0))
		c.freeTo(mark)
	case id.Name == config.PushFuncName && len(e.Args) == 2:
		mark := c.nextReg
		a := c.allocReg(e.Token)
		c.compileExpr(e.Args[0], a)
		v := c.allocReg(e.Token)
		c.compileExpr(e.Args[1], v)
		c.at(e.Token)
		c.emit(encodeABC(OP_PUSH, a, v, 0))
		c.emit(encodeABC(OP_LEN, dest, a, 0))
		c.freeTo(mark)
	case id.Name == config.PopFuncName && len(e.Args) == 1:
		mark := c.nextReg
		a := c.allocReg(e.Token)
		c.compileExpr(e.Args[0], a)
		c.at(e.Token)
		c.emit(encodeABC(OP_POP, dest, a, 0))
		c.freeTo(mark)
	default:
		return false
	}
	return true
}
