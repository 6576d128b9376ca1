package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sable-lang/sable/internal/config"
)

var errFrameOverflow = errors.New("call stack overflow")
var errDivisionByZero = errors.New("integer division by zero")
var errNotCallable = errors.New("can only call functions")
var errWrongArity = errors.New("wrong argument count")
var errUndefinedVariable = errors.New("undefined variable")
var errUndefinedProperty = errors.New("undefined property")
var errIndexOutOfRange = errors.New("index out of range")
var errBadOperand = errors.New("invalid operand type")
var errCyclicImport = errors.New("cyclic import")

// CallFrame represents one ongoing call: the caller's resume point, the
// caller's register-window base, the register that receives the return
// value, and the previously active globals.
type CallFrame struct {
	chunk       *Chunk
	ip          int
	base        int    // caller window base to restore
	regTop      int    // caller live-register high mark to restore
	resultReg   int    // relative to the caller's base
	function    Handle // for GC roots and stack traces
	prevGlobals Handle
}

// VM is the runtime context: the shared register file, call-frame stack,
// environment chain, heap, and intern pool, threaded explicitly through
// every operation instead of living in package globals.
type VM struct {
	cfg  *config.Config
	heap *Heap

	registers []Value
	regBase   int
	regTop    int // live registers end; GC marks [0, regTop)

	frames     []CallFrame
	frameCount int

	chunk *Chunk
	ip    int

	root    Handle // process-lifetime global environment
	globals Handle // active environment chain head (module env during import)

	// String intern pool. Strings longer than config.InternMaxLen
	// bypass it.
	strings map[string]Handle
	poolMu  sync.Mutex

	moduleCache map[string]Handle
	modules     map[uuid.UUID]Handle
	loading     map[string]bool
	baseDir     string

	// Chunks still owned by a compiler; their constants are roots until
	// execution takes over.
	pinnedChunks []*Chunk

	// Temporary roots protecting handles during multi-step construction
	tempRoots []Handle

	// Permanently-rooted objects; re-grayed at every mark start so their
	// referents keep tracing.
	permanents []Handle

	instructions uint64 // executed instruction counter

	// Set by Abort inside a native callback; the interpreter turns it
	// into a fatal runtime error when the native returns.
	hostErr error

	out io.Writer

	// Context for cancellation of long-running scripts
	Context context.Context
}

// New creates a VM with the given configuration (nil means defaults).
func New(cfg *config.Config) *VM {
	if cfg == nil {
		cfg = config.Default()
	}
	vm := &VM{
		cfg:         cfg,
		heap:        newHeap(cfg.GC.Trigger),
		registers:   make([]Value, cfg.Registers),
		frames:      make([]CallFrame, 0, 64),
		strings:     make(map[string]Handle),
		moduleCache: make(map[string]Handle),
		modules:     make(map[uuid.UUID]Handle),
		loading:     make(map[string]bool),
		out:         os.Stdout,
		Context:     context.Background(),
	}
	for i := range vm.registers {
		vm.registers[i] = NilVal()
	}
	vm.root = vm.newEnv(InvalidHandle)
	vm.globals = vm.root
	return vm
}

// SetOutput redirects print output (defaults to os.Stdout).
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// SetBaseDir sets the directory imports are resolved against.
func (vm *VM) SetBaseDir(dir string) { vm.baseDir = dir }

// Run executes a compiled chunk to completion. The chunk's top level
// runs as a zero-parameter call.
func (vm *VM) Run(chunk *Chunk) (Value, error) {
	fn := vm.newFunction("main", 0, chunk, vm.globals)
	vm.unpinChunk(chunk)

	vm.chunk = chunk
	vm.ip = 0
	vm.regBase = 0
	vm.regTop = chunk.MaxRegs + 1
	vm.ensureRegisters(vm.regTop)
	vm.registers[0] = ObjVal(fn)

	vm.frames = append(vm.frames[:0], CallFrame{
		chunk:       chunk,
		function:    fn,
		prevGlobals: vm.globals,
	})
	vm.frameCount = 1

	return vm.run(0)
}

// reg and setReg address the current register window.
func (vm *VM) reg(i int) Value       { return vm.registers[vm.regBase+i] }
func (vm *VM) setReg(i int, v Value) { vm.registers[vm.regBase+i] = v }

func (vm *VM) ensureRegisters(n int) {
	for len(vm.registers) < n {
		grown := make([]Value, len(vm.registers)*2)
		copy(grown, vm.registers)
		for i := len(vm.registers); i < len(grown); i++ {
			grown[i] = NilVal()
		}
		vm.registers = grown
	}
}

// runtimeError formats a fatal diagnostic with the current source
// position. Runtime errors abort the whole program; there is no
// exception mechanism.
func (vm *VM) runtimeError(err error, format string, args ...any) error {
	file, line := "?", 0
	if vm.chunk != nil {
		file = vm.chunk.File
		if at := vm.ip - 1; at >= 0 && at < len(vm.chunk.Lines) {
			line = vm.chunk.Lines[at]
		}
	}
	detail := fmt.Sprintf(format, args...)
	if err != nil {
		return fmt.Errorf("%s:%d: %w: %s", file, line, err, detail)
	}
	return fmt.Errorf("%s:%d: %s", file, line, detail)
}

// allocate is the single entry point for heap allocation. It drives the
// collector per the configured mode before carving the slot, so the new
// object cannot be swept by the collection it triggers.
func (vm *VM) allocate(kind ObjKind, data any, size int) Handle {
	h := vm.heap
	switch vm.cfg.GC.Mode {
	case config.GCIncremental:
		if h.phase != phaseIdle {
			vm.gcStep(vm.cfg.GC.StepBudget)
		} else if h.bytesAllocated+size > h.nextGC {
			vm.startIncrementalGC()
		}
	case config.GCConcurrent:
		if h.bytesAllocated+size > h.nextGC && !h.collecting.Load() {
			vm.collectConcurrent()
		}
	default:
		if h.bytesAllocated+size > h.nextGC {
			vm.CollectGarbage()
		}
	}

	// During active marking the new object is allocated black; during a
	// background collection the lists and mark bits are shared state.
	if h.collecting.Load() {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	return h.alloc(kind, data, size, h.markingActive())
}

// Object constructors

func (vm *VM) allocString(s string) Handle {
	return vm.allocate(KindString, &StringObject{Chars: s, Hash: hashString(s)}, stringSize(s))
}

func (vm *VM) newArray() Handle {
	return vm.allocate(KindArray, &ArrayObject{}, arraySize())
}

func (vm *VM) newMap() Handle {
	return vm.allocate(KindMap, &MapObject{
		Str: make(map[string]Value),
		Int: make(map[int32]Value),
	}, mapSize())
}

func (vm *VM) newFunction(name string, arity int, chunk *Chunk, env Handle) Handle {
	return vm.allocate(KindFunction, &FunctionObject{
		Name:  name,
		Arity: arity,
		Chunk: chunk,
		Env:   env,
	}, functionSize())
}

func (vm *VM) newNative(name string, arity int, fn NativeFn) Handle {
	return vm.allocate(KindFunction, &FunctionObject{
		Name:   name,
		Arity:  arity,
		Native: fn,
	}, functionSize())
}

func (vm *VM) newEnv(enclosing Handle) Handle {
	return vm.allocate(KindEnv, &EnvObject{enclosing: enclosing}, envSize())
}

func (vm *VM) newModule(name string, env Handle) Handle {
	return vm.allocate(KindModule, &ModuleObject{
		Name: name,
		ID:   uuid.New(),
		Env:  env,
	}, moduleSize())
}

func (vm *VM) newStructDef(name Handle, fields []Handle) Handle {
	return vm.allocate(KindStructDef, &StructDefObject{
		Name:   name,
		Fields: fields,
	}, structDefSize(len(fields)))
}

func (vm *VM) newStructInstance(def Handle, fields []Value) Handle {
	return vm.allocate(KindStructInstance, &StructInstObject{
		Def:    def,
		Fields: fields,
	}, structInstSize(len(fields)))
}

func (vm *VM) newFuture() Handle {
	f := &FutureObject{}
	f.cond = sync.NewCond(&f.mu)
	return vm.allocate(KindFuture, f, futureSize())
}

// NewResource wraps a host-owned value for native modules. The returned
// value participates in collection like any other heap object.
func (vm *VM) NewResource(kind string, payload any) Value {
	return ObjVal(vm.allocate(KindResource, &ResourceObject{
		ID:      uuid.New(),
		Kind:    kind,
		Payload: payload,
	}, resourceSize()))
}

// NewUpvalue boxes a value for native modules that need a mutable cell.
func (vm *VM) NewUpvalue(v Value) Value {
	return ObjVal(vm.allocate(KindUpvalue, &UpvalueObject{Closed: v}, upvalueSize()))
}

// pinChunk keeps a chunk's constants alive while a compiler still owns
// it; Run and runImport release the pin once a function owns the chunk.
func (vm *VM) pinChunk(c *Chunk) {
	vm.pinnedChunks = append(vm.pinnedChunks, c)
}

func (vm *VM) unpinChunk(c *Chunk) {
	for i, p := range vm.pinnedChunks {
		if p == c {
			vm.pinnedChunks = append(vm.pinnedChunks[:i], vm.pinnedChunks[i+1:]...)
			return
		}
	}
}

// protect shields a handle from collection during multi-step
// construction where it is not yet reachable from any root.
func (vm *VM) protect(h Handle) {
	vm.tempRoots = append(vm.tempRoots, h)
}

func (vm *VM) unprotect(n int) {
	vm.tempRoots = vm.tempRoots[:len(vm.tempRoots)-n]
}

// MarkPermanent flags an object as a process-lifetime root, exempt from
// collection (used for built-in namespaces and natives).
func (vm *VM) MarkPermanent(v Value) {
	if !v.IsObj() {
		return
	}
	h := v.AsHandle()
	o := vm.heap.obj(h)
	if o.permanent {
		return
	}
	o.permanent = true
	o.marked = true
	vm.permanents = append(vm.permanents, h)
}

// Stats returns collector statistics for diagnostics.
func (vm *VM) Stats() GCStats {
	h := vm.heap
	h.mu.Lock()
	defer h.mu.Unlock()
	return GCStats{
		Collections:    h.collections,
		LastPause:      h.lastPause,
		TotalPause:     h.totalPause,
		BytesAllocated: h.bytesAllocated,
		BytesFreed:     h.bytesFreed,
		PeakBytes:      h.peakBytes,
		NextGC:         h.nextGC,
		Mode:           vm.cfg.GC.Mode,
	}
}
