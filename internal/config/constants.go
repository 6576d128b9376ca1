package config

const SourceFileExt = ".sbl"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".sbl", ".sable"}

// ProjectFileName is the optional per-project configuration file
const ProjectFileName = "sable.yaml"

// Register file and call stack limits
const (
	// MaxRegisters is the per-frame register window limit (8-bit operands)
	MaxRegisters = 255

	// MaxLocals is the per-function local variable limit
	MaxLocals = 256

	// MaxConstants is the per-chunk constant pool limit (16-bit indices)
	MaxConstants = 65535

	// DefaultRegisterFileSize is the initial size of the shared register array
	DefaultRegisterFileSize = 16384

	// DefaultMaxFrames bounds call depth; overflow is fatal
	DefaultMaxFrames = 1024
)

// Garbage collector defaults
const (
	// DefaultGCTrigger is the first collection threshold in bytes
	DefaultGCTrigger = 1024 * 1024

	// GCFloor and GCCeiling clamp the adaptive next-collection threshold
	GCFloor   = 32 * 1024
	GCCeiling = 4 * 1024 * 1024

	// DefaultGCStepBudget is the per-pulse trace budget in incremental mode
	DefaultGCStepBudget = 256

	// InternMaxLen is the longest string kept in the intern pool
	InternMaxLen = 256
)

// Built-in function names
const (
	LengthFuncName = "length"
	PushFuncName   = "push"
	PopFuncName    = "pop"
	HasFuncName    = "has"
	KeysFuncName   = "keys"
	ClockFuncName  = "clock"
	SleepFuncName  = "sleep"
	ArrayFuncName  = "array"
	MapFuncName    = "map"
)
