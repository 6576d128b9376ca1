package vm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sable-lang/sable/internal/config"
)

// gcPhase is the incremental collector's explicit state machine.
type gcPhase uint8

const (
	phaseIdle gcPhase = iota
	phaseMarking
	phaseSweeping
)

// GCStats is a snapshot of collector bookkeeping.
type GCStats struct {
	Collections    uint64
	LastPause      time.Duration
	TotalPause     time.Duration
	BytesAllocated int
	BytesFreed     uint64
	PeakBytes      int
	NextGC         int
	Mode           config.GCMode
}

// arena slot header. Objects never move; collection frees or retains in
// place, and freed slots go on a free list for reuse.
type object struct {
	kind      ObjKind
	marked    bool
	permanent bool
	gen       uint32 // 0 = new, >=1 survived a collection (bookkeeping only)
	next      Handle // intrusive generation-list link
	size      int    // accounted allocation size
	data      any    // *StringObject, *ArrayObject, ...
}

// Heap is the handle-addressed arena every runtime object lives in. The
// mutex guards mark bits, the gray worklist, and the generation lists
// whenever a concurrent collection is active; bytecode execution itself
// is single-threaded.
type Heap struct {
	mu sync.Mutex

	slots []object
	free  []Handle

	// Intrusive lists: the nursery holds objects allocated since the
	// last collection, the old list everything that survived one.
	nursery      Handle
	old          Handle
	nurseryCount int

	bytesAllocated int
	nextGC         int

	gray  []Handle
	phase gcPhase

	// Incremental-cycle bookkeeping: heap size when the cycle started and
	// mutator time spent in steps so far.
	cycleBefore int
	cyclePause  time.Duration

	collecting atomic.Bool // background collection in flight

	collections uint64
	bytesFreed  uint64
	lastPause   time.Duration
	totalPause  time.Duration
	peakBytes   int
}

func newHeap(trigger int) *Heap {
	h := &Heap{nextGC: trigger}
	// Slot 0 is reserved so the zero Handle is never a live object.
	h.slots = make([]object, 1, 256)
	return h
}

// obj returns the slot header. The pointer must not be held across an
// allocation; the arena's backing array may move when it grows.
func (h *Heap) obj(hd Handle) *object {
	return &h.slots[hd]
}

// alloc carves a slot, accounts its size, and links it into the nursery.
// Callers drive collection scheduling; alloc itself never collects.
func (h *Heap) alloc(kind ObjKind, data any, size int, allocBlack bool) Handle {
	var hd Handle
	if n := len(h.free); n > 0 {
		hd = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		h.slots = append(h.slots, object{})
		hd = Handle(len(h.slots) - 1)
	}

	o := &h.slots[hd]
	o.kind = kind
	o.data = data
	o.size = size
	o.gen = 0
	o.permanent = false
	o.marked = allocBlack
	if allocBlack {
		// Mid-cycle allocations join the list being swept so the sweep
		// clears their mark; left in the nursery they would stay marked
		// into the next cycle and survive it as false positives.
		o.next = h.old
		h.old = hd
	} else {
		o.next = h.nursery
		h.nursery = hd
		h.nurseryCount++
	}

	h.bytesAllocated += size
	if h.bytesAllocated > h.peakBytes {
		h.peakBytes = h.bytesAllocated
	}
	return hd
}

// release frees one slot in place and returns it to the free list.
func (h *Heap) release(hd Handle) {
	o := &h.slots[hd]
	h.bytesAllocated -= o.size
	h.bytesFreed += uint64(o.size)
	*o = object{kind: KindFree}
	h.free = append(h.free, hd)
}

// spliceNursery moves the whole nursery onto the old-list head. Every
// collection starts with this; nurseries are never scavenged
// independently.
func (h *Heap) spliceNursery() {
	if h.nursery == InvalidHandle {
		return
	}
	tail := h.nursery
	for {
		next := h.slots[tail].next
		if next == InvalidHandle {
			break
		}
		tail = next
	}
	h.slots[tail].next = h.old
	h.old = h.nursery
	h.nursery = InvalidHandle
	h.nurseryCount = 0
}

// markingActive reports whether stores into heap-held references need
// the write barrier.
func (h *Heap) markingActive() bool {
	return h.phase == phaseMarking || h.collecting.Load()
}

// Typed accessors. Projecting under the wrong kind is a programming
// error and panics, mirroring the tag discipline on Value.

func (h *Heap) str(hd Handle) *StringObject  { return h.slots[hd].data.(*StringObject) }
func (h *Heap) array(hd Handle) *ArrayObject { return h.slots[hd].data.(*ArrayObject) }
func (h *Heap) mapObj(hd Handle) *MapObject  { return h.slots[hd].data.(*MapObject) }
func (h *Heap) function(hd Handle) *FunctionObject {
	return h.slots[hd].data.(*FunctionObject)
}
func (h *Heap) module(hd Handle) *ModuleObject { return h.slots[hd].data.(*ModuleObject) }
func (h *Heap) env(hd Handle) *EnvObject       { return h.slots[hd].data.(*EnvObject) }
func (h *Heap) structDef(hd Handle) *StructDefObject {
	return h.slots[hd].data.(*StructDefObject)
}
func (h *Heap) structInst(hd Handle) *StructInstObject {
	return h.slots[hd].data.(*StructInstObject)
}
func (h *Heap) resource(hd Handle) *ResourceObject { return h.slots[hd].data.(*ResourceObject) }
func (h *Heap) future(hd Handle) *FutureObject     { return h.slots[hd].data.(*FutureObject) }
func (h *Heap) upvalue(hd Handle) *UpvalueObject   { return h.slots[hd].data.(*UpvalueObject) }

func (h *Heap) kind(hd Handle) ObjKind {
	if hd == InvalidHandle || int(hd) >= len(h.slots) {
		return KindFree
	}
	return h.slots[hd].kind
}

// Size estimates per kind, matching the allocator's accounting when the
// object is released.
const (
	sizeHeader   = 32
	sizePerValue = 8
)

func stringSize(s string) int  { return sizeHeader + len(s) }
func arraySize() int           { return sizeHeader + 16*sizePerValue }
func mapSize() int             { return sizeHeader + 64 }
func functionSize() int        { return sizeHeader + 64 }
func moduleSize() int          { return sizeHeader + 48 }
func envSize() int             { return sizeHeader + envBuckets*2*sizePerValue }
func structDefSize(n int) int  { return sizeHeader + n*sizePerValue }
func structInstSize(n int) int { return sizeHeader + n*sizePerValue }
func resourceSize() int        { return sizeHeader + 48 }
func futureSize() int          { return sizeHeader + 64 }
func upvalueSize() int         { return sizeHeader + sizePerValue }
