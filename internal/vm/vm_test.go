package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sable-lang/sable/internal/config"
)

func newTestVM() (*VM, *bytes.Buffer) {
	machine := New(nil)
	machine.RegisterBuiltins()
	var out bytes.Buffer
	machine.SetOutput(&out)
	return machine, &out
}

func runScript(t *testing.T, src string) (Value, string) {
	t.Helper()
	machine, out := newTestVM()
	v, err := machine.RunSource(src, "test.sbl")
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	return v, out.String()
}

func runScriptErr(t *testing.T, src string) error {
	t.Helper()
	machine, _ := newTestVM()
	_, err := machine.RunSource(src, "test.sbl")
	if err == nil {
		t.Fatalf("expected a runtime error")
	}
	return err
}

func expectInt(t *testing.T, v Value, want int32) {
	t.Helper()
	if !v.IsInt() {
		t.Fatalf("expected int, got %v", uint64(v))
	}
	if v.AsInt() != want {
		t.Errorf("expected %d, got %d", want, v.AsInt())
	}
}

func expectFloat(t *testing.T, v Value, want float64) {
	t.Helper()
	if !v.IsFloat() {
		t.Fatalf("expected float")
	}
	if v.AsFloat() != want {
		t.Errorf("expected %g, got %g", want, v.AsFloat())
	}
}

func expectString(t *testing.T, machine *VM, v Value, want string) {
	t.Helper()
	if !v.IsObj() || machine.heap.kind(v.AsHandle()) != KindString {
		t.Fatalf("expected string")
	}
	if got := machine.heap.str(v.AsHandle()).Chars; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input string
		want  int32
	}{
		{"return 1 + 2;", 3},
		{"return 10 - 4;", 6},
		{"return 6 * 7;", 42},
		{"return 84 / 2;", 42},
		{"return 17 % 5;", 2},
		{"return -(3 + 4);", -7},
		{"return 2 + 3 * 4;", 14},
		{"return (2 + 3) * 4;", 20},
		{"return 1 + 2 * 3 - 4 / 2;", 5},
	}
	for _, tt := range tests {
		v, _ := runScript(t, tt.input)
		expectInt(t, v, tt.want)
	}
}

func TestFloatPromotion(t *testing.T) {
	v, _ := runScript(t, "return 1 + 2.5;")
	expectFloat(t, v, 3.5)

	v, _ = runScript(t, "return 7.0 / 2;")
	expectFloat(t, v, 3.5)
}

func TestPrintIntegerFastPath(t *testing.T) {
	_, out := runScript(t, "print 1 + 2;")
	if out != "3\n" {
		t.Errorf("expected \"3\\n\", got %q", out)
	}
}

func TestStringConcatCanonicalForms(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`return "n=" + 42;`, "n=42"},
		{`return "f=" + 2.5;`, "f=2.5"},
		{`return "b=" + true;`, "b=true"},
		{`return "x=" + nil;`, "x=nil"},
		{`return 1 + "st";`, "1st"},
		{`return "a" + "b" + "c";`, "abc"},
	}
	for _, tt := range tests {
		machine, _ := newTestVM()
		v, err := machine.RunSource(tt.input, "test.sbl")
		if err != nil {
			t.Fatalf("%s: %s", tt.input, err)
		}
		expectString(t, machine, v, tt.want)
	}
}

func TestDivisionByZeroFatal(t *testing.T) {
	err := runScriptErr(t, "return 1 / 0;")
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("expected division by zero, got %s", err)
	}
	err = runScriptErr(t, "return 1 % 0;")
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("expected division by zero, got %s", err)
	}
}

func TestComparisonAndLogic(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"return 1 < 2;", true},
		{"return 2 <= 1;", false},
		{"return 3 > 2;", true},
		{"return 2 >= 3;", false},
		{"return 1 == 1.0;", true},
		{"return 1 != 2;", true},
		{`return "abc" == "abc";`, true},
		{`return "abc" < "abd";`, true},
		{"return !nil;", true},
		{"return true && false;", false},
		{"return false || true;", true},
		{"return nil && 1 / 0 == 0;", false}, // right side must not run
	}
	for _, tt := range tests {
		v, _ := runScript(t, tt.input)
		if !v.IsBool() && !v.IsNil() {
			t.Fatalf("%s: expected bool-ish result", tt.input)
		}
		if v.Truthy() != tt.want {
			t.Errorf("%s: expected %v", tt.input, tt.want)
		}
	}
}

func TestGlobalsAndLocals(t *testing.T) {
	v, _ := runScript(t, `
		var x = 10;
		{
			var x = 20;
			{
				var y = x + 1;
				x = y;
			}
		}
		return x;
	`)
	expectInt(t, v, 10)

	v, _ = runScript(t, `
		var x = 1;
		x = x + 41;
		return x;
	`)
	expectInt(t, v, 42)
}

func TestUndefinedVariableFatal(t *testing.T) {
	err := runScriptErr(t, "return missing;")
	if !strings.Contains(err.Error(), "undefined variable") {
		t.Errorf("expected undefined variable, got %s", err)
	}
	err = runScriptErr(t, "missing = 1;")
	if !strings.Contains(err.Error(), "undefined variable") {
		t.Errorf("expected undefined variable, got %s", err)
	}
}

func TestControlFlow(t *testing.T) {
	v, _ := runScript(t, `
		var n = 7;
		var kind = "";
		if (n < 0) {
			kind = "negative";
		} else if (n == 0) {
			kind = "zero";
		} else {
			kind = "positive";
		}
		var sum = 0;
		var i = 0;
		while (i < 10) {
			sum = sum + i;
			i = i + 1;
		}
		for (var j = 0; j < 5; j = j + 1) {
			sum = sum + 100;
		}
		return sum;
	`)
	expectInt(t, v, 545)
}

func TestForeach(t *testing.T) {
	v, _ := runScript(t, `
		var total = 0;
		foreach (n in [1, 2, 3, 4]) {
			total = total + n;
		}
		return total;
	`)
	expectInt(t, v, 10)
}

func TestFunctions(t *testing.T) {
	v, _ := runScript(t, `
		fn fib(n) {
			if (n < 2) {
				return n;
			}
			return fib(n - 1) + fib(n - 2);
		}
		return fib(10);
	`)
	expectInt(t, v, 55)

	v, _ = runScript(t, `
		fn add(a, b) {
			return a + b;
		}
		var f = add;
		return f(40, 2);
	`)
	expectInt(t, v, 42)

	// Running off the end of a function returns nil.
	v, _ = runScript(t, `
		fn noop() {}
		return noop();
	`)
	if !v.IsNil() {
		t.Errorf("expected nil return")
	}
}

func TestWrongArityFatal(t *testing.T) {
	err := runScriptErr(t, `
		fn two(a, b) { return a; }
		return two(1);
	`)
	if !strings.Contains(err.Error(), "argument count") {
		t.Errorf("expected arity error, got %s", err)
	}
}

func TestNotCallableFatal(t *testing.T) {
	err := runScriptErr(t, "var x = 3; return x();")
	if !strings.Contains(err.Error(), "call") {
		t.Errorf("expected call error, got %s", err)
	}
}

// Register windows overlap on the shared file; a callee must not
// observe or clobber caller registers outside the argument overlap.
func TestRegisterWindowIsolation(t *testing.T) {
	v, _ := runScript(t, `
		fn scramble(a, b) {
			var x = a * 100;
			var y = b * 100;
			return x + y;
		}
		var keep1 = 1;
		var keep2 = 2;
		var r = scramble(3, 4);
		return keep1 + keep2 + r;
	`)
	expectInt(t, v, 703)
}

func TestFrameOverflowFatal(t *testing.T) {
	cfg := config.Default()
	cfg.MaxFrames = 32
	machine := New(cfg)
	machine.RegisterBuiltins()
	_, err := machine.RunSource(`
		fn loop(n) { return loop(n + 1); }
		return loop(0);
	`, "test.sbl")
	if err == nil || !strings.Contains(err.Error(), "stack overflow") {
		t.Fatalf("expected stack overflow, got %v", err)
	}
}

func TestArrays(t *testing.T) {
	v, _ := runScript(t, `
		var a = [1, 2, 3];
		a[1] = 20;
		push(a, 4);
		return a[0] + a[1] + a[2] + a[3];
	`)
	expectInt(t, v, 28)

	v, _ = runScript(t, `
		var a = [];
		a[4] = 9;
		return length(a);
	`)
	expectInt(t, v, 5)

	v, _ = runScript(t, `
		var a = [1, 2, 3];
		var last = pop(a);
		return last + length(a);
	`)
	expectInt(t, v, 5)

	err := runScriptErr(t, "var a = [1]; return a[3];")
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("expected out of range, got %s", err)
	}
}

func TestArrayGrowthNilFills(t *testing.T) {
	v, _ := runScript(t, `
		var a = [];
		a[2] = 1;
		return a[0];
	`)
	if !v.IsNil() {
		t.Errorf("expected nil fill")
	}
}

func TestMaps(t *testing.T) {
	v, _ := runScript(t, `
		var m = {"one": 1, 2: "two"};
		m["three"] = 3;
		return m["one"] + m["three"];
	`)
	expectInt(t, v, 4)

	machine, _ := newTestVM()
	got, err := machine.RunSource(`var m = {1: "a"}; return m[1];`, "test.sbl")
	if err != nil {
		t.Fatal(err)
	}
	expectString(t, machine, got, "a")
}

// A stored nil reads back as nil; an absent key is a fatal lookup miss.
// has tells the two apart without faulting.
func TestMapMissVersusStoredNil(t *testing.T) {
	v, _ := runScript(t, `
		var m = {"present": nil};
		return m["present"];
	`)
	if !v.IsNil() {
		t.Errorf("expected stored nil to read back")
	}

	err := runScriptErr(t, `
		var m = {"present": nil};
		return m["absent"];
	`)
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected lookup miss, got %s", err)
	}

	v, _ = runScript(t, `
		var m = {"present": nil};
		return has(m, "present") && !has(m, "absent");
	`)
	if !v.Truthy() {
		t.Errorf("expected has to distinguish presence")
	}
}

func TestMapKeysAndLength(t *testing.T) {
	v, _ := runScript(t, `
		var m = {"a": 1, "b": 2, 3: 4};
		return length(keys(m)) + length(m);
	`)
	expectInt(t, v, 6)
}

func TestStructs(t *testing.T) {
	v, _ := runScript(t, `
		struct Point { x, y }
		var p = Point(3, 4);
		p.x = p.x * 10;
		return p.x + p.y;
	`)
	expectInt(t, v, 34)

	err := runScriptErr(t, `
		struct Point { x, y }
		var p = Point(1, 2);
		return p.z;
	`)
	if !strings.Contains(err.Error(), "undefined property") {
		t.Errorf("expected undefined property, got %s", err)
	}

	err = runScriptErr(t, `
		struct Point { x, y }
		return Point(1);
	`)
	if !strings.Contains(err.Error(), "fields") {
		t.Errorf("expected field arity error, got %s", err)
	}
}

func TestStringOps(t *testing.T) {
	v, _ := runScript(t, `return "hello".length;`)
	expectInt(t, v, 5)

	machine, _ := newTestVM()
	got, err := machine.RunSource(`return "hello"[1];`, "test.sbl")
	if err != nil {
		t.Fatal(err)
	}
	expectString(t, machine, got, "e")
}

func TestAsyncAwait(t *testing.T) {
	v, _ := runScript(t, `
		fn work(n) { return n * 2; }
		var f = async work(21);
		return await f;
	`)
	expectInt(t, v, 42)

	// Await on a plain value passes through.
	v, _ = runScript(t, "return await 5;")
	expectInt(t, v, 5)
}

func TestSleepResolvesFuture(t *testing.T) {
	v, _ := runScript(t, `
		var f = sleep(1);
		await f;
		return 1;
	`)
	expectInt(t, v, 1)
}

func writeModule(t *testing.T, dir, name, src string) {
	t.Helper()
	path := filepath.Join(dir, name+config.SourceFileExt)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "mathx", `
		var pi = 3;
		fn square(n) { return n * n; }
	`)

	machine, _ := newTestVM()
	machine.SetBaseDir(dir)
	v, err := machine.RunSource(`
		import mathx;
		return mathx.square(mathx.pi);
	`, filepath.Join(dir, "main.sbl"))
	if err != nil {
		t.Fatal(err)
	}
	expectInt(t, v, 9)
}

// Two aliases of the same logical module observe the same module
// instance, so state mutated through one is visible through the other.
func TestImportAliasIdentity(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "counter", `
		var value = 0;
		fn bump() { value = value + 1; return value; }
	`)

	machine, _ := newTestVM()
	machine.SetBaseDir(dir)
	v, err := machine.RunSource(`
		import counter as a;
		import counter as b;
		a.bump();
		a.bump();
		return b.value;
	`, filepath.Join(dir, "main.sbl"))
	if err != nil {
		t.Fatal(err)
	}
	expectInt(t, v, 2)
}

func TestImportModuleGlobalsStayHome(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "home", `
		var secret = 7;
		fn reveal() { return secret; }
	`)

	machine, _ := newTestVM()
	machine.SetBaseDir(dir)
	// The importing script's own secret must not shadow the module's.
	v, err := machine.RunSource(`
		import home;
		var secret = 99;
		return home.reveal();
	`, filepath.Join(dir, "main.sbl"))
	if err != nil {
		t.Fatal(err)
	}
	expectInt(t, v, 7)
}

func TestImportMissingModuleFatal(t *testing.T) {
	machine, _ := newTestVM()
	machine.SetBaseDir(t.TempDir())
	_, err := machine.RunSource("import nosuch;", "main.sbl")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected module not found, got %v", err)
	}
}

func TestImportMissingMemberFatal(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "tiny", "var x = 1;")

	machine, _ := newTestVM()
	machine.SetBaseDir(dir)
	_, err := machine.RunSource(`
		import tiny;
		return tiny.missing;
	`, filepath.Join(dir, "main.sbl"))
	if err == nil || !strings.Contains(err.Error(), "undefined property") {
		t.Fatalf("expected undefined property, got %v", err)
	}
}

func TestPrintForms(t *testing.T) {
	_, out := runScript(t, `
		print [1, "two", nil];
		print 2.5;
		print true;
	`)
	want := "[1, \"two\", nil]\n2.5\ntrue\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestBuiltinsAsValues(t *testing.T) {
	v, _ := runScript(t, `
		var f = length;
		return f("four");
	`)
	expectInt(t, v, 4)
}
