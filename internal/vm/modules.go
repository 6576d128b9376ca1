package vm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sable-lang/sable/internal/config"
	"github.com/sable-lang/sable/internal/lexer"
	"github.com/sable-lang/sable/internal/parser"
)

// Module loading. An import compiles and runs the module's top level
// once, in a fresh environment chained to the importing globals;
// subsequent imports of the same logical name return the cached module
// object.

// resolveModulePath maps a dotted logical name to a source file,
// searching the importing script's directory first, then the configured
// module paths.
func (vm *VM) resolveModulePath(name string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + config.SourceFileExt

	dirs := make([]string, 0, len(vm.cfg.ModulePaths)+1)
	if vm.baseDir != "" {
		dirs = append(dirs, vm.baseDir)
	} else {
		dirs = append(dirs, ".")
	}
	dirs = append(dirs, vm.cfg.ModulePaths...)

	for _, dir := range dirs {
		path := filepath.Join(dir, rel)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("module %q not found (looked in %s)", name, strings.Join(dirs, ", "))
}

// importModule returns the module object for a logical name, loading it
// on first use. Two aliases of the same logical name observe the same
// module object and therefore the same member state.
func (vm *VM) importModule(name string) (Value, error) {
	if h, ok := vm.moduleCache[name]; ok {
		return ObjVal(h), nil
	}
	if vm.loading[name] {
		return NilVal(), vm.runtimeError(errCyclicImport, "%q", name)
	}

	path, err := vm.resolveModulePath(name)
	if err != nil {
		return NilVal(), vm.runtimeError(nil, "%s", err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return NilVal(), vm.runtimeError(nil, "cannot read module %q: %s", name, err)
	}

	p := parser.New(lexer.New(string(src)))
	program := p.ParseProgram()
	program.File = path
	if errs := p.Errors(); len(errs) > 0 {
		return NilVal(), vm.runtimeError(nil, "module %q: %s", name, errs[0])
	}

	vm.loading[name] = true
	defer delete(vm.loading, name)

	// The module body runs in a fresh environment chained to the globals
	// active at the import site; the first import wins and later aliases
	// share the cached module.
	moduleEnv := vm.newEnv(vm.globals)
	vm.protect(moduleEnv)
	defer vm.unprotect(1)

	chunk, err := NewCompiler(vm, path).Compile(program)
	if err != nil {
		return NilVal(), vm.runtimeError(nil, "module %q: %s", name, err)
	}
	fn := vm.newFunction(name, 0, chunk, moduleEnv)
	vm.unpinChunk(chunk)

	if err := vm.pushModuleFrame(fn, chunk); err != nil {
		return NilVal(), err
	}
	if _, err := vm.run(vm.frameCount - 1); err != nil {
		return NilVal(), err
	}

	mod := vm.newModule(name, moduleEnv)
	vm.moduleCache[name] = mod
	vm.modules[vm.heap.module(mod).ID] = mod
	return ObjVal(mod), nil
}

// pushModuleFrame runs the module's top level in a register window
// opened past the caller's live registers, so the import cannot clobber
// the importing frame.
func (vm *VM) pushModuleFrame(fn Handle, chunk *Chunk) error {
	if vm.frameCount >= vm.cfg.MaxFrames {
		return vm.runtimeError(errFrameOverflow, "depth %d", vm.frameCount)
	}
	f := vm.heap.function(fn)
	window := vm.regTop

	frame := CallFrame{
		chunk:       vm.chunk,
		ip:          vm.ip,
		base:        vm.regBase,
		regTop:      vm.regTop,
		resultReg:   window - vm.regBase,
		function:    fn,
		prevGlobals: vm.globals,
	}
	if vm.frameCount < len(vm.frames) {
		vm.frames[vm.frameCount] = frame
	} else {
		vm.frames = append(vm.frames, frame)
	}
	vm.frameCount++

	vm.regBase = window
	vm.regTop = window + chunk.MaxRegs + 1
	vm.ensureRegisters(vm.regTop)
	vm.registers[window] = ObjVal(fn)
	vm.globals = f.Env
	vm.chunk = chunk
	vm.ip = 0
	return nil
}
