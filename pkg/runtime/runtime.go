// Package runtime is the public embedding API: create a VM, bind Go
// functions, run sable source, and marshal results back to Go values.
package runtime

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/sable-lang/sable/internal/config"
	"github.com/sable-lang/sable/internal/vm"
)

// VM wraps the execution core with a Go-friendly surface.
type VM struct {
	machine    *vm.VM
	marshaller *Marshaller
}

// Option configures a VM at construction.
type Option func(*options)

type options struct {
	cfg *config.Config
	out io.Writer
	ctx context.Context
}

// WithGCMode selects the collector scheduling strategy: "sync",
// "incremental", or "concurrent".
func WithGCMode(mode string) Option {
	return func(o *options) {
		o.cfg.GC.Mode = config.GCMode(mode)
	}
}

// WithOutput redirects script print output.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithContext attaches a cancellation context checked during execution.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithModulePaths sets the import search path.
func WithModulePaths(paths ...string) Option {
	return func(o *options) {
		o.cfg.ModulePaths = paths
	}
}

// New creates a VM with the builtins registered.
func New(opts ...Option) *VM {
	o := &options{cfg: config.Default()}
	for _, opt := range opts {
		opt(o)
	}

	machine := vm.New(o.cfg)
	machine.RegisterBuiltins()
	if o.out != nil {
		machine.SetOutput(o.out)
	}
	if o.ctx != nil {
		machine.Context = o.ctx
	}
	return &VM{machine: machine, marshaller: NewMarshaller(machine)}
}

// Eval compiles and runs src, returning the script's top-level return
// value marshalled to a Go value.
func (v *VM) Eval(src string) (any, error) {
	result, err := v.machine.RunSource(src, "<eval>")
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result)
}

// EvalFile is Eval over a file path, with imports resolved relative to
// the file's directory.
func (v *VM) EvalFile(path string) (any, error) {
	return evalFile(v, path)
}

// Bind registers a Go function as a native callable from scripts. The
// function's arguments and single result are marshalled; an error-typed
// second result aborts the script when non-nil.
func (v *VM) Bind(name string, fn any) error {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return fmt.Errorf("bind %s: %T is not a function", name, fn)
	}
	if ft.NumOut() > 2 {
		return fmt.Errorf("bind %s: at most two results supported", name)
	}
	if ft.NumOut() == 2 && ft.Out(1) != reflect.TypeOf((*error)(nil)).Elem() {
		return fmt.Errorf("bind %s: second result must be error", name)
	}
	if ft.IsVariadic() {
		return fmt.Errorf("bind %s: variadic functions not supported", name)
	}

	arity := ft.NumIn()
	v.machine.RegisterNative(name, arity, func(machine *vm.VM, args []vm.Value) vm.Value {
		in := make([]reflect.Value, arity)
		for i := range in {
			gov, err := v.marshaller.FromValueAs(args[i], ft.In(i))
			if err != nil {
				machine.Abort(fmt.Errorf("%s: argument %d: %w", name, i+1, err))
				return vm.NilVal()
			}
			in[i] = gov
		}
		out := fv.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			machine.Abort(fmt.Errorf("%s: %w", name, out[1].Interface().(error)))
			return vm.NilVal()
		}
		if len(out) == 0 {
			return vm.NilVal()
		}
		result, err := v.marshaller.ToValue(out[0].Interface())
		if err != nil {
			machine.Abort(fmt.Errorf("%s: result: %w", name, err))
			return vm.NilVal()
		}
		return result
	})
	return nil
}

// Stats exposes collector statistics.
func (v *VM) Stats() vm.GCStats {
	return v.machine.Stats()
}
