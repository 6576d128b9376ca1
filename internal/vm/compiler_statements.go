package vm

import "github.com/sable-lang/sable/internal/ast"

func (c *Compiler) compileStatement(s ast.Statement) {
	if c.err != nil {
		return
	}
	c.at(s.GetToken())

	switch s := s.(type) {
	case *ast.VarStatement:
		c.compileVar(s)
	case *ast.FunctionStatement:
		c.compileFunction(s)
	case *ast.ReturnStatement:
		c.compileReturn(s)
	case *ast.IfStatement:
		c.compileIf(s)
	case *ast.WhileStatement:
		c.compileWhile(s)
	case *ast.ForStatement:
		c.compileFor(s)
	case *ast.ForeachStatement:
		c.compileForeach(s)
	case *ast.StructStatement:
		c.compileStruct(s)
	case *ast.ImportStatement:
		c.compileImport(s)
	case *ast.PrintStatement:
		mark := c.nextReg
		r := c.allocReg(s.Token)
		c.compileExpr(s.Value, r)
		c.at(s.Token)
		c.emit(encodeABC(OP_PRINT, r, 0, 0))
		c.freeTo(mark)
	case *ast.BlockStatement:
		c.beginScope()
		for _, inner := range s.Statements {
			c.compileStatement(inner)
		}
		c.endScope()
	case *ast.ExpressionStatement:
		mark := c.nextReg
		r := c.allocReg(s.Token)
		c.compileExpr(s.Expr, r)
		c.freeTo(mark)
	default:
		c.error(s.GetToken(), "cannot compile statement %T", s)
	}
}

// compileVar assigns globals by name through the environment and locals
// to a register held for the rest of the scope. The initializer is
// compiled before the name binds, so `var x = x;` sees the outer x.
func (c *Compiler) compileVar(s *ast.VarStatement) {
	if c.scopeDepth == 0 {
		mark := c.nextReg
		r := c.allocReg(s.Token)
		c.compileExpr(s.Value, r)
		c.at(s.Token)
		c.emit(encodeABx(OP_DEFGLOBAL, r, c.stringConstant(s.Token, s.Name.Name)))
		c.freeTo(mark)
		return
	}
	r := c.allocReg(s.Token)
	c.compileExpr(s.Value, r)
	c.addLocal(s.Token, s.Name.Name, r)
}

// compileFunction compiles the body into its own chunk with a fresh
// compiler, wraps it in a prototype constant, and emits CLOSURE so the
// runtime binds the environment active at the definition site.
func (c *Compiler) compileFunction(s *ast.FunctionStatement) {
	sub := &Compiler{
		vm:      c.vm,
		chunk:   NewChunk(c.file),
		file:    c.file,
		nextReg: 1,
		maxReg:  1,
	}
	c.vm.pinChunk(sub.chunk)
	sub.beginScope()
	for _, p := range s.Params {
		r := sub.allocReg(p.Token)
		sub.addLocal(p.Token, p.Name, r)
	}
	for _, inner := range s.Body.Statements {
		sub.compileStatement(inner)
	}
	sub.at(s.Token)
	sub.emit(encodeABC(OP_RETURNNIL, 0, 0, 0))
	sub.chunk.MaxRegs = sub.maxReg
	if sub.err != nil && c.err == nil {
		c.err = sub.err
	}

	proto := c.vm.newFunction(s.Name.Name, len(s.Params), sub.chunk, InvalidHandle)
	idx := c.constant(s.Token, ObjVal(proto))
	c.vm.unpinChunk(sub.chunk)

	c.at(s.Token)
	if c.scopeDepth == 0 {
		mark := c.nextReg
		r := c.allocReg(s.Token)
		c.emit(encodeABx(OP_CLOSURE, r, idx))
		c.emit(encodeABx(OP_DEFGLOBAL, r, c.stringConstant(s.Token, s.Name.Name)))
		c.freeTo(mark)
		return
	}
	r := c.allocReg(s.Token)
	c.emit(encodeABx(OP_CLOSURE, r, idx))
	c.addLocal(s.Token, s.Name.Name, r)
}

func (c *Compiler) compileReturn(s *ast.ReturnStatement) {
	if s.Value == nil {
		c.emit(encodeABC(OP_RETURNNIL, 0, 0, 0))
		return
	}
	mark := c.nextReg
	r := c.allocReg(s.Token)
	c.compileExpr(s.Value, r)
	c.at(s.Token)
	c.emit(encodeABC(OP_RETURN, r, 0, 0))
	c.freeTo(mark)
}

func (c *Compiler) compileIf(s *ast.IfStatement) {
	mark := c.nextReg
	r := c.allocReg(s.Token)
	c.compileExpr(s.Cond, r)
	c.at(s.Token)
	elseJump := c.emitJump(OP_JMPF, r)
	c.freeTo(mark)

	c.compileStatement(s.Then)

	if s.Else != nil {
		endJump := c.emitJump(OP_JMP, 0)
		c.patchJump(s.Token, elseJump)
		c.compileStatement(s.Else)
		c.patchJump(s.Token, endJump)
		return
	}
	c.patchJump(s.Token, elseJump)
}

func (c *Compiler) compileWhile(s *ast.WhileStatement) {
	loopStart := c.chunk.Len()
	mark := c.nextReg
	r := c.allocReg(s.Token)
	c.compileExpr(s.Cond, r)
	c.at(s.Token)
	exitJump := c.emitJump(OP_JMPF, r)
	c.freeTo(mark)

	c.compileStatement(s.Body)
	c.emitLoop(s.Token, loopStart)
	c.patchJump(s.Token, exitJump)
}

func (c *Compiler) compileFor(s *ast.ForStatement) {
	c.beginScope()
	if s.Init != nil {
		c.compileStatement(s.Init)
	}

	loopStart := c.chunk.Len()
	exitJump := -1
	if s.Cond != nil {
		mark := c.nextReg
		r := c.allocReg(s.Token)
		c.compileExpr(s.Cond, r)
		c.at(s.Token)
		exitJump = c.emitJump(OP_JMPF, r)
		c.freeTo(mark)
	}

	c.compileStatement(s.Body)
	if s.Post != nil {
		c.compileStatement(s.Post)
	}
	c.emitLoop(s.Token, loopStart)
	if exitJump >= 0 {
		c.patchJump(s.Token, exitJump)
	}
	c.endScope()
}

// compileForeach lowers the loop to an index walk: the collection, the
// counter, the cached length, and the constant one live in hidden
// registers for the loop's duration.
func (c *Compiler) compileForeach(s *ast.ForeachStatement) {
	c.beginScope()
	mark := c.nextReg

	col := c.allocReg(s.Token)
	c.compileExpr(s.Collection, col)
	c.at(s.Token)

	idx := c.allocReg(s.Token)
	c.emit(encodeAsBx(OP_LOADI, idx, 0))
	length := c.allocReg(s.Token)
	c.emit(encodeABC(OP_LEN, length, col, 0))
	one := c.allocReg(s.Token)
	c.emit(encodeAsBx(OP_LOADI, one, 1))

	item := c.allocReg(s.Token)
	c.addLocal(s.Name.Token, s.Name.Name, item)

	loopStart := c.chunk.Len()
	cond := c.allocReg(s.Token)
	c.emit(encodeABC(OP_LT, cond, idx, length))
	exitJump := c.emitJump(OP_JMPF, cond)
	c.freeTo(cond)

	c.emit(encodeABC(OP_GETIDX, item, col, idx))
	c.compileStatement(s.Body)
	c.at(s.Token)
	c.emit(encodeABC(OP_ADD, idx, idx, one))
	c.emitLoop(s.Token, loopStart)
	c.patchJump(s.Token, exitJump)

	c.endScope()
	c.freeTo(mark)
}

// compileStruct stages the name and field-name strings in contiguous
// registers and emits STRUCTDEF with an explicit destination.
func (c *Compiler) compileStruct(s *ast.StructStatement) {
	if len(s.Fields) > 255 {
		c.error(s.Token, "struct %s has too many fields", s.Name.Name)
		return
	}
	mark := c.nextReg
	dst := c.allocReg(s.Token)

	base := c.allocReg(s.Token)
	c.emit(encodeABx(OP_LOADK, base, c.stringConstant(s.Token, s.Name.Name)))
	for _, f := range s.Fields {
		r := c.allocReg(f.Token)
		c.emit(encodeABx(OP_LOADK, r, c.stringConstant(f.Token, f.Name)))
	}
	c.emit(encodeABC(OP_STRUCTDEF, dst, base, len(s.Fields)))

	if c.scopeDepth == 0 {
		c.emit(encodeABx(OP_DEFGLOBAL, dst, c.stringConstant(s.Token, s.Name.Name)))
		c.freeTo(mark)
		return
	}
	c.freeTo(base)
	c.addLocal(s.Token, s.Name.Name, dst)
}

func (c *Compiler) compileImport(s *ast.ImportStatement) {
	pathIdx := c.stringConstant(s.Token, s.Path)
	if c.scopeDepth == 0 {
		mark := c.nextReg
		r := c.allocReg(s.Token)
		c.emit(encodeABx(OP_IMPORT, r, pathIdx))
		c.emit(encodeABx(OP_DEFGLOBAL, r, c.stringConstant(s.Token, s.Alias.Name)))
		c.freeTo(mark)
		return
	}
	r := c.allocReg(s.Token)
	c.emit(encodeABx(OP_IMPORT, r, pathIdx))
	c.addLocal(s.Token, s.Alias.Name, r)
}
