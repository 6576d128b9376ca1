package vm

import "time"

// Tri-color mark-and-sweep over the arena's intrusive lists. Marking is
// worklist-based: marking an object flips its bit and enqueues it gray;
// tracing dequeues and blackens by marking everything the object
// directly references. Sweeping walks the old list once, freeing
// unmarked slots in place.

// CollectGarbage runs one full synchronous collection: mark, trace,
// prune the intern pool, sweep, adapt the threshold. It is a no-op
// while a background collection is in flight.
func (vm *VM) CollectGarbage() {
	h := vm.heap
	if h.collecting.Load() {
		return
	}
	// An interrupted incremental cycle is driven to completion instead
	// of starting a second overlapping one.
	if h.phase != phaseIdle {
		for h.phase != phaseIdle {
			vm.gcStep(1 << 16)
		}
		return
	}

	start := time.Now()
	before := h.bytesAllocated

	h.spliceNursery()
	h.gray = h.gray[:0]
	vm.grayPermanents()
	vm.markRoots()
	vm.traceReferences()
	vm.pruneStringPool()
	freed := vm.sweep()
	vm.adaptThreshold(before, freed)

	h.collections++
	h.lastPause = time.Since(start)
	h.totalPause += h.lastPause
}

// markRoots marks every live register slot, every object reachable from
// an active call frame, the global/definition environments, the module
// cache, and chunks still owned by a compiler.
func (vm *VM) markRoots() {
	for i := 0; i < vm.regTop && i < len(vm.registers); i++ {
		vm.markValue(vm.registers[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		f := &vm.frames[i]
		vm.markObject(f.function)
		vm.markObject(f.prevGlobals)
	}
	vm.markObject(vm.root)
	vm.markObject(vm.globals)
	for _, h := range vm.moduleCache {
		vm.markObject(h)
	}
	for _, c := range vm.pinnedChunks {
		vm.markChunk(c)
	}
	for _, h := range vm.tempRoots {
		vm.markObject(h)
	}
}

// grayPermanents re-enqueues permanently-flagged objects so their
// referents are traced every cycle; their own mark bit never clears.
func (vm *VM) grayPermanents() {
	h := vm.heap
	h.gray = append(h.gray, vm.permanents...)
}

func (vm *VM) markValue(v Value) {
	if v.IsObj() {
		vm.markObject(v.AsHandle())
	}
}

func (vm *VM) markObject(hd Handle) {
	if hd == InvalidHandle {
		return
	}
	h := vm.heap
	o := &h.slots[hd]
	if o.marked {
		return
	}
	o.marked = true
	h.gray = append(h.gray, hd)
}

func (vm *VM) markChunk(c *Chunk) {
	for _, k := range c.Constants {
		vm.markValue(k)
	}
}

// traceReferences drains the gray worklist.
func (vm *VM) traceReferences() {
	h := vm.heap
	for len(h.gray) > 0 {
		hd := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		vm.blacken(hd)
	}
}

// blacken marks everything hd directly references.
func (vm *VM) blacken(hd Handle) {
	h := vm.heap
	switch h.kind(hd) {
	case KindString, KindResource:
		// Leaves.
	case KindArray:
		for _, v := range h.array(hd).Items {
			vm.markValue(v)
		}
	case KindMap:
		m := h.mapObj(hd)
		for _, v := range m.Str {
			vm.markValue(v)
		}
		for _, v := range m.Int {
			vm.markValue(v)
		}
	case KindFunction:
		f := h.function(hd)
		vm.markObject(f.Env)
		if f.Chunk != nil {
			vm.markChunk(f.Chunk)
		}
	case KindModule:
		vm.markObject(h.module(hd).Env)
	case KindEnv:
		e := h.env(hd)
		for _, head := range e.vars {
			for entry := head; entry != nil; entry = entry.next {
				vm.markObject(entry.key)
				vm.markValue(entry.value)
			}
		}
		for _, head := range e.funcs {
			for entry := head; entry != nil; entry = entry.next {
				vm.markObject(entry.key)
				vm.markObject(entry.fn)
			}
		}
		vm.markObject(e.enclosing)
	case KindStructDef:
		d := h.structDef(hd)
		vm.markObject(d.Name)
		for _, f := range d.Fields {
			vm.markObject(f)
		}
	case KindStructInstance:
		s := h.structInst(hd)
		vm.markObject(s.Def)
		for _, v := range s.Fields {
			vm.markValue(v)
		}
	case KindFuture:
		f := h.future(hd)
		f.mu.Lock()
		r := f.result
		f.mu.Unlock()
		vm.markValue(r)
	case KindUpvalue:
		vm.markValue(h.upvalue(hd).Closed)
	}
}

// sweep walks the old list once, freeing unmarked objects and clearing
// survivors' mark bits. Permanent objects stay marked and are never
// freed. Returns the byte count reclaimed.
func (vm *VM) sweep() int {
	h := vm.heap
	freed := 0
	prev := InvalidHandle
	hd := h.old
	for hd != InvalidHandle {
		o := &h.slots[hd]
		next := o.next
		if o.marked || o.permanent {
			if !o.permanent {
				o.marked = false
			}
			o.gen++
			prev = hd
		} else {
			if prev == InvalidHandle {
				h.old = next
			} else {
				h.slots[prev].next = next
			}
			freed += o.size
			h.release(hd)
		}
		hd = next
	}
	return freed
}

// adaptThreshold scales the next collection trigger by the reclaim
// fraction: high reclaim defers the next cycle, low reclaim brings it
// forward. Clamped to the configured floor and ceiling.
func (vm *VM) adaptThreshold(before, freed int) {
	h := vm.heap
	live := h.bytesAllocated
	next := live * 2
	if before > 0 {
		ratio := float64(freed) / float64(before)
		if ratio > 0.5 {
			next = live * 3
		} else if ratio < 0.2 {
			next = live * 3 / 2
		}
	}
	if next < vm.cfg.GC.Floor {
		next = vm.cfg.GC.Floor
	}
	if next > vm.cfg.GC.Ceiling {
		next = vm.cfg.GC.Ceiling
	}
	h.nextGC = next
}

// writeBarrier preserves the tri-color invariant: whenever a possibly
// black object is mutated to reference v during an active marking
// phase, v is re-marked so the sweep cannot drop it. Invoked at every
// mutating store into a heap-held reference.
func (vm *VM) writeBarrier(v Value) {
	if !v.IsObj() {
		return
	}
	h := vm.heap
	if !h.markingActive() {
		return
	}
	if h.collecting.Load() {
		h.mu.Lock()
		vm.markObject(v.AsHandle())
		h.mu.Unlock()
		return
	}
	vm.markObject(v.AsHandle())
}

// lockStores pairs with unlockStores around a mutator store into a
// heap-held reference. While a background collection is in flight the
// store happens under the heap lock, so the tracing thread never
// observes it half-applied. The flag can drop while the lock is held,
// so the caller hands back whether the lock was taken. Allocation must
// not happen between the pair; the allocator takes the same lock.
func (vm *VM) lockStores() bool {
	if vm.heap.collecting.Load() {
		vm.heap.mu.Lock()
		return true
	}
	return false
}

func (vm *VM) unlockStores(locked bool) {
	if locked {
		vm.heap.mu.Unlock()
	}
}
