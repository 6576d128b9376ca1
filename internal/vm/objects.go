package vm

import (
	"sync"

	"github.com/google/uuid"
)

// ObjKind tags a heap object. Every heap thing shares the arena slot
// header: kind, mark bit, generation counter, permanent flag, and an
// intrusive next-handle link per generation list.
type ObjKind uint8

const (
	KindFree ObjKind = iota
	KindString
	KindArray
	KindMap
	KindFunction
	KindModule
	KindEnv
	KindStructDef
	KindStructInstance
	KindResource
	KindFuture
	KindUpvalue
)

var objKindNames = map[ObjKind]string{
	KindFree:           "free",
	KindString:         "string",
	KindArray:          "array",
	KindMap:            "map",
	KindFunction:       "function",
	KindModule:         "module",
	KindEnv:            "environment",
	KindStructDef:      "structdef",
	KindStructInstance: "struct",
	KindResource:       "resource",
	KindFuture:         "future",
	KindUpvalue:        "upvalue",
}

func (k ObjKind) String() string { return objKindNames[k] }

// StringObject holds one immutable string. Strings up to the intern
// limit are pooled, so handle identity doubles as content equality.
type StringObject struct {
	Chars string
	Hash  uint32
}

// ArrayObject is a growable value sequence. Index writes past the end
// auto-grow and nil-fill the gap.
type ArrayObject struct {
	Items []Value
}

// MapObject keeps two bucket tables, one per key type. A missing key is
// a lookup miss distinct from a stored nil.
type MapObject struct {
	Str map[string]Value
	Int map[int32]Value
}

// NativeFn is the host-callback signature. The args slice is a live view
// into the current register window and must not be retained past return.
type NativeFn func(vm *VM, args []Value) Value

// FunctionObject is native (wrapping a host callback) or scripted
// (owning one chunk and a captured defining environment). Immutable
// after creation.
type FunctionObject struct {
	Name   string
	Arity  int
	Chunk  *Chunk // nil for natives
	Env    Handle // defining environment; globals resolve through it
	Native NativeFn
}

func (f *FunctionObject) IsNative() bool { return f.Native != nil }

// ModuleObject is a named environment created on first import and cached
// for the process lifetime. The ID is used in diagnostics and the module
// registry.
type ModuleObject struct {
	Name string
	ID   uuid.UUID
	Env  Handle
}

// envBuckets is the fixed bucket count of every environment table.
const envBuckets = 256

// varEntry is one binding in an environment's variable table. Keys are
// interned string handles, so comparison is handle identity.
type varEntry struct {
	key   Handle
	value Value
	next  *varEntry
}

// funcEntry is one binding in the parallel name-to-function table.
type funcEntry struct {
	key  Handle
	fn   Handle
	next *funcEntry
}

// EnvObject is a chained fixed-bucket hash table of name bindings plus a
// parallel function table, with an enclosing back-reference (none for
// the root environment).
type EnvObject struct {
	vars      [envBuckets]*varEntry
	funcs     [envBuckets]*funcEntry
	enclosing Handle
}

// StructDefObject describes one struct declaration: its name and the
// ordered field-name table instances are scanned against.
type StructDefObject struct {
	Name   Handle   // interned string
	Fields []Handle // interned strings
}

// StructInstObject holds one instance's field values, parallel to the
// definition's field table.
type StructInstObject struct {
	Def    Handle
	Fields []Value
}

// ResourceObject wraps a host-owned value handed out to scripts by
// native modules. The ID identifies the resource in diagnostics.
type ResourceObject struct {
	ID      uuid.UUID
	Kind    string
	Payload any
}

// FutureObject is a single-assignment cell guarded by a mutex/condition
// pair: created empty, resolved exactly once, read by blocking wait.
type FutureObject struct {
	mu     sync.Mutex
	cond   *sync.Cond
	done   bool
	result Value
}

// UpvalueObject is a captured variable cell. The register compiler does
// not emit captures; the kind exists for native modules that box values.
type UpvalueObject struct {
	Closed Value
}
