// Package ast defines the syntax tree produced by the parser and consumed
// by the bytecode compiler.
package ast

import (
	"github.com/sable-lang/sable/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
	GetToken() token.Token
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// Program is the root node of every tree the parser produces.
type Program struct {
	File       string
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

// Statements

// VarStatement represents `var name = value;`
type VarStatement struct {
	Token token.Token // the 'var' token
	Name  *Identifier
	Value Expression
}

func (vs *VarStatement) statementNode()        {}
func (vs *VarStatement) TokenLiteral() string  { return vs.Token.Lexeme }
func (vs *VarStatement) GetToken() token.Token { return vs.Token }

// FunctionStatement represents `fn name(params) { body }`
type FunctionStatement struct {
	Token  token.Token // the 'fn' token
	Name   *Identifier
	Params []*Identifier
	Body   *BlockStatement
}

func (fs *FunctionStatement) statementNode()        {}
func (fs *FunctionStatement) TokenLiteral() string  { return fs.Token.Lexeme }
func (fs *FunctionStatement) GetToken() token.Token { return fs.Token }

// ReturnStatement represents `return expr;` (expr optional)
type ReturnStatement struct {
	Token token.Token
	Value Expression // nil for bare return
}

func (rs *ReturnStatement) statementNode()        {}
func (rs *ReturnStatement) TokenLiteral() string  { return rs.Token.Lexeme }
func (rs *ReturnStatement) GetToken() token.Token { return rs.Token }

// IfStatement represents `if (cond) { } else { }`
type IfStatement struct {
	Token token.Token
	Cond  Expression
	Then  *BlockStatement
	Else  Statement // *BlockStatement or *IfStatement, nil if absent
}

func (is *IfStatement) statementNode()        {}
func (is *IfStatement) TokenLiteral() string  { return is.Token.Lexeme }
func (is *IfStatement) GetToken() token.Token { return is.Token }

// WhileStatement represents `while (cond) { body }`
type WhileStatement struct {
	Token token.Token
	Cond  Expression
	Body  *BlockStatement
}

func (ws *WhileStatement) statementNode()        {}
func (ws *WhileStatement) TokenLiteral() string  { return ws.Token.Lexeme }
func (ws *WhileStatement) GetToken() token.Token { return ws.Token }

// ForStatement represents `for (init; cond; post) { body }`
type ForStatement struct {
	Token token.Token
	Init  Statement // nil or *VarStatement or *ExpressionStatement
	Cond  Expression
	Post  Statement // nil or *ExpressionStatement
	Body  *BlockStatement
}

func (fs *ForStatement) statementNode()        {}
func (fs *ForStatement) TokenLiteral() string  { return fs.Token.Lexeme }
func (fs *ForStatement) GetToken() token.Token { return fs.Token }

// ForeachStatement represents `foreach (name in collection) { body }`
type ForeachStatement struct {
	Token      token.Token
	Name       *Identifier
	Collection Expression
	Body       *BlockStatement
}

func (fs *ForeachStatement) statementNode()        {}
func (fs *ForeachStatement) TokenLiteral() string  { return fs.Token.Lexeme }
func (fs *ForeachStatement) GetToken() token.Token { return fs.Token }

// StructStatement represents `struct Name { field, field }`
type StructStatement struct {
	Token  token.Token
	Name   *Identifier
	Fields []*Identifier
}

func (ss *StructStatement) statementNode()        {}
func (ss *StructStatement) TokenLiteral() string  { return ss.Token.Lexeme }
func (ss *StructStatement) GetToken() token.Token { return ss.Token }

// ImportStatement represents `import path.segments as alias;`
type ImportStatement struct {
	Token token.Token
	Path  string // dotted logical name, e.g. "lib.vec"
	Alias *Identifier
}

func (is *ImportStatement) statementNode()        {}
func (is *ImportStatement) TokenLiteral() string  { return is.Token.Lexeme }
func (is *ImportStatement) GetToken() token.Token { return is.Token }

// PrintStatement represents `print expr;`
type PrintStatement struct {
	Token token.Token
	Value Expression
}

func (ps *PrintStatement) statementNode()        {}
func (ps *PrintStatement) TokenLiteral() string  { return ps.Token.Lexeme }
func (ps *PrintStatement) GetToken() token.Token { return ps.Token }

// BlockStatement represents `{ statements }`
type BlockStatement struct {
	Token      token.Token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()        {}
func (bs *BlockStatement) TokenLiteral() string  { return bs.Token.Lexeme }
func (bs *BlockStatement) GetToken() token.Token { return bs.Token }

// ExpressionStatement wraps an expression used in statement position.
type ExpressionStatement struct {
	Token token.Token
	Expr  Expression
}

func (es *ExpressionStatement) statementNode()        {}
func (es *ExpressionStatement) TokenLiteral() string  { return es.Token.Lexeme }
func (es *ExpressionStatement) GetToken() token.Token { return es.Token }

// Expressions

type Identifier struct {
	Token token.Token
	Name  string
}

func (i *Identifier) expressionNode()       {}
func (i *Identifier) TokenLiteral() string  { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token { return i.Token }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()       {}
func (il *IntegerLiteral) TokenLiteral() string  { return il.Token.Lexeme }
func (il *IntegerLiteral) GetToken() token.Token { return il.Token }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()       {}
func (fl *FloatLiteral) TokenLiteral() string  { return fl.Token.Lexeme }
func (fl *FloatLiteral) GetToken() token.Token { return fl.Token }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()       {}
func (sl *StringLiteral) TokenLiteral() string  { return sl.Token.Lexeme }
func (sl *StringLiteral) GetToken() token.Token { return sl.Token }

type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()       {}
func (bl *BooleanLiteral) TokenLiteral() string  { return bl.Token.Lexeme }
func (bl *BooleanLiteral) GetToken() token.Token { return bl.Token }

type NilLiteral struct {
	Token token.Token
}

func (nl *NilLiteral) expressionNode()       {}
func (nl *NilLiteral) TokenLiteral() string  { return nl.Token.Lexeme }
func (nl *NilLiteral) GetToken() token.Token { return nl.Token }

// ArrayLiteral represents `[a, b, c]`
type ArrayLiteral struct {
	Token    token.Token
	Elements []Expression
}

func (al *ArrayLiteral) expressionNode()       {}
func (al *ArrayLiteral) TokenLiteral() string  { return al.Token.Lexeme }
func (al *ArrayLiteral) GetToken() token.Token { return al.Token }

// MapLiteral represents `{key: value, ...}`; keys are string or integer literals.
type MapLiteral struct {
	Token token.Token
	Keys  []Expression
	Vals  []Expression
}

func (ml *MapLiteral) expressionNode()       {}
func (ml *MapLiteral) TokenLiteral() string  { return ml.Token.Lexeme }
func (ml *MapLiteral) GetToken() token.Token { return ml.Token }

// PrefixExpression represents `-expr` and `!expr`
type PrefixExpression struct {
	Token    token.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()       {}
func (pe *PrefixExpression) TokenLiteral() string  { return pe.Token.Lexeme }
func (pe *PrefixExpression) GetToken() token.Token { return pe.Token }

// InfixExpression represents `left op right`
type InfixExpression struct {
	Token    token.Token
	Operator string
	Left     Expression
	Right    Expression
}

func (ie *InfixExpression) expressionNode()       {}
func (ie *InfixExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token { return ie.Token }

// AssignExpression represents `target = value` where target is an
// identifier, an index expression, or a property access.
type AssignExpression struct {
	Token  token.Token
	Target Expression
	Value  Expression
}

func (ae *AssignExpression) expressionNode()       {}
func (ae *AssignExpression) TokenLiteral() string  { return ae.Token.Lexeme }
func (ae *AssignExpression) GetToken() token.Token { return ae.Token }

// CallExpression represents `callee(args)`
type CallExpression struct {
	Token  token.Token // the '(' token
	Callee Expression
	Args   []Expression
}

func (ce *CallExpression) expressionNode()       {}
func (ce *CallExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token { return ce.Token }

// AsyncExpression represents `async callee(args)`
type AsyncExpression struct {
	Token token.Token
	Call  *CallExpression
}

func (ae *AsyncExpression) expressionNode()       {}
func (ae *AsyncExpression) TokenLiteral() string  { return ae.Token.Lexeme }
func (ae *AsyncExpression) GetToken() token.Token { return ae.Token }

// AwaitExpression represents `await expr`
type AwaitExpression struct {
	Token token.Token
	Value Expression
}

func (ae *AwaitExpression) expressionNode()       {}
func (ae *AwaitExpression) TokenLiteral() string  { return ae.Token.Lexeme }
func (ae *AwaitExpression) GetToken() token.Token { return ae.Token }

// IndexExpression represents `target[index]`
type IndexExpression struct {
	Token  token.Token // the '[' token
	Target Expression
	Index  Expression
}

func (ie *IndexExpression) expressionNode()       {}
func (ie *IndexExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *IndexExpression) GetToken() token.Token { return ie.Token }

// GetExpression represents `object.name`
type GetExpression struct {
	Token  token.Token // the '.' token
	Object Expression
	Name   string
}

func (ge *GetExpression) expressionNode()       {}
func (ge *GetExpression) TokenLiteral() string  { return ge.Token.Lexeme }
func (ge *GetExpression) GetToken() token.Token { return ge.Token }
