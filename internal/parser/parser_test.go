package parser

import (
	"testing"

	"github.com/sable-lang/sable/internal/ast"
	"github.com/sable-lang/sable/internal/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		t.Fatalf("parser error: %s", p.Errors()[0])
	}
	return program
}

func TestVarStatements(t *testing.T) {
	program := parseProgram(t, "var x = 5; var y = x;")

	if len(program.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(program.Statements))
	}

	names := []string{"x", "y"}
	for i, want := range names {
		stmt, ok := program.Statements[i].(*ast.VarStatement)
		if !ok {
			t.Fatalf("statement %d is not VarStatement, got %T", i, program.Statements[i])
		}
		if stmt.Name.Name != want {
			t.Errorf("statement %d name = %q, want %q", i, stmt.Name.Name, want)
		}
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input string
		check func(t *testing.T, expr ast.Expression)
	}{
		{
			"1 + 2 * 3;",
			func(t *testing.T, expr ast.Expression) {
				add, ok := expr.(*ast.InfixExpression)
				if !ok || add.Operator != "+" {
					t.Fatalf("top operator not +, got %v", expr)
				}
				mul, ok := add.Right.(*ast.InfixExpression)
				if !ok || mul.Operator != "*" {
					t.Fatalf("right side not *, got %v", add.Right)
				}
			},
		},
		{
			"a == b && c != d;",
			func(t *testing.T, expr ast.Expression) {
				and, ok := expr.(*ast.InfixExpression)
				if !ok || and.Operator != "&&" {
					t.Fatalf("top operator not &&, got %v", expr)
				}
			},
		},
		{
			"-x * y;",
			func(t *testing.T, expr ast.Expression) {
				mul, ok := expr.(*ast.InfixExpression)
				if !ok || mul.Operator != "*" {
					t.Fatalf("top operator not *, got %v", expr)
				}
				if _, ok := mul.Left.(*ast.PrefixExpression); !ok {
					t.Fatalf("left side not prefix, got %v", mul.Left)
				}
			},
		},
	}

	for _, tt := range tests {
		program := parseProgram(t, tt.input)
		stmt, ok := program.Statements[0].(*ast.ExpressionStatement)
		if !ok {
			t.Fatalf("not an expression statement: %T", program.Statements[0])
		}
		tt.check(t, stmt.Expr)
	}
}

func TestFunctionStatement(t *testing.T) {
	program := parseProgram(t, "fn add(a, b) { return a + b; }")

	fn, ok := program.Statements[0].(*ast.FunctionStatement)
	if !ok {
		t.Fatalf("not a FunctionStatement: %T", program.Statements[0])
	}
	if fn.Name.Name != "add" {
		t.Errorf("name = %q, want add", fn.Name.Name)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Errorf("unexpected params: %v", fn.Params)
	}
	if len(fn.Body.Statements) != 1 {
		t.Errorf("body statements = %d, want 1", len(fn.Body.Statements))
	}
}

func TestControlFlowStatements(t *testing.T) {
	program := parseProgram(t, `
if (x < 1) { print 1; } else if (x < 2) { print 2; } else { print 3; }
while (x < 10) { x = x + 1; }
for (var i = 0; i < 10; i = i + 1) { print i; }
foreach (item in items) { print item; }
`)
	if len(program.Statements) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(program.Statements))
	}

	ifStmt := program.Statements[0].(*ast.IfStatement)
	elseIf, ok := ifStmt.Else.(*ast.IfStatement)
	if !ok {
		t.Fatalf("else branch is not a chained if: %T", ifStmt.Else)
	}
	if elseIf.Else == nil {
		t.Error("chained if has no final else")
	}

	forStmt := program.Statements[2].(*ast.ForStatement)
	if _, ok := forStmt.Init.(*ast.VarStatement); !ok {
		t.Errorf("for init is not a var statement: %T", forStmt.Init)
	}
	if forStmt.Cond == nil || forStmt.Post == nil {
		t.Error("for statement missing cond or post clause")
	}

	fe := program.Statements[3].(*ast.ForeachStatement)
	if fe.Name.Name != "item" {
		t.Errorf("foreach variable = %q, want item", fe.Name.Name)
	}
}

func TestStructAndImport(t *testing.T) {
	program := parseProgram(t, `
struct Point { x, y }
import lib.vec as v;
import util;
`)
	st := program.Statements[0].(*ast.StructStatement)
	if st.Name.Name != "Point" || len(st.Fields) != 2 {
		t.Fatalf("unexpected struct: %v %v", st.Name, st.Fields)
	}

	imp := program.Statements[1].(*ast.ImportStatement)
	if imp.Path != "lib.vec" || imp.Alias.Name != "v" {
		t.Errorf("import = %q as %q, want lib.vec as v", imp.Path, imp.Alias.Name)
	}

	imp2 := program.Statements[2].(*ast.ImportStatement)
	if imp2.Path != "util" || imp2.Alias.Name != "util" {
		t.Errorf("default alias = %q, want util", imp2.Alias.Name)
	}
}

func TestLiteralsAndAccess(t *testing.T) {
	program := parseProgram(t, `var a = [1, 2.5, "three", true, nil];
var m = {"k": 1, 2: "v"};
var x = m["k"];
var y = p.x;
p.x = 3;
a[0] = 9;
`)
	arr := program.Statements[0].(*ast.VarStatement).Value.(*ast.ArrayLiteral)
	if len(arr.Elements) != 5 {
		t.Fatalf("array elements = %d, want 5", len(arr.Elements))
	}

	m := program.Statements[1].(*ast.VarStatement).Value.(*ast.MapLiteral)
	if len(m.Keys) != 2 {
		t.Fatalf("map keys = %d, want 2", len(m.Keys))
	}

	if _, ok := program.Statements[2].(*ast.VarStatement).Value.(*ast.IndexExpression); !ok {
		t.Error("m[\"k\"] did not parse as index expression")
	}
	if _, ok := program.Statements[3].(*ast.VarStatement).Value.(*ast.GetExpression); !ok {
		t.Error("p.x did not parse as get expression")
	}

	assign := program.Statements[4].(*ast.ExpressionStatement).Expr.(*ast.AssignExpression)
	if _, ok := assign.Target.(*ast.GetExpression); !ok {
		t.Error("p.x = 3 target is not a get expression")
	}

	assign2 := program.Statements[5].(*ast.ExpressionStatement).Expr.(*ast.AssignExpression)
	if _, ok := assign2.Target.(*ast.IndexExpression); !ok {
		t.Error("a[0] = 9 target is not an index expression")
	}
}

func TestAsyncAwait(t *testing.T) {
	program := parseProgram(t, "var f = async work(1); var r = await f;")

	as, ok := program.Statements[0].(*ast.VarStatement).Value.(*ast.AsyncExpression)
	if !ok {
		t.Fatalf("not an async expression")
	}
	if len(as.Call.Args) != 1 {
		t.Errorf("async call args = %d, want 1", len(as.Call.Args))
	}
	if _, ok := program.Statements[1].(*ast.VarStatement).Value.(*ast.AwaitExpression); !ok {
		t.Fatal("not an await expression")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"var = 5;",
		"1 + 2",       // missing semicolon
		"fn (a) { }",  // missing name
		"1 = 2;",      // invalid assignment target
		"if x { }",    // missing parens
	}
	for _, input := range tests {
		p := New(lexer.New(input))
		p.ParseProgram()
		if len(p.Errors()) == 0 {
			t.Errorf("expected parse error for %q", input)
		}
	}
}
