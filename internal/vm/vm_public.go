package vm

import (
	"fmt"
	"strings"

	"github.com/sable-lang/sable/internal/lexer"
	"github.com/sable-lang/sable/internal/parser"
)

// CompileSource lexes, parses, and compiles one source string.
func (vm *VM) CompileSource(src, file string) (*Chunk, error) {
	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	program.File = file
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("%s: %s", file, strings.Join(errs, "; "))
	}
	return NewCompiler(vm, file).Compile(program)
}

// RunSource compiles and executes one source string, returning the
// value of the script's top-level return (nil when it runs off the
// end).
func (vm *VM) RunSource(src, file string) (Value, error) {
	chunk, err := vm.CompileSource(src, file)
	if err != nil {
		return NilVal(), err
	}
	return vm.Run(chunk)
}
