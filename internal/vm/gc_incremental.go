package vm

import "time"

// Incremental collection spreads one mark/sweep cycle across many small
// steps taken from the allocation path. The phase field is the cycle's
// state machine; between steps the mutator runs freely and the write
// barrier keeps newly stored references out of the sweep.

// startIncrementalGC opens a cycle: splice the nursery, scan the roots,
// enter the marking phase. Tracing happens in later steps.
func (vm *VM) startIncrementalGC() {
	h := vm.heap
	if h.phase != phaseIdle || h.collecting.Load() {
		return
	}
	start := time.Now()
	h.cycleBefore = h.bytesAllocated
	h.cyclePause = 0

	h.spliceNursery()
	h.gray = h.gray[:0]
	vm.grayPermanents()
	vm.markRoots()
	h.phase = phaseMarking
	h.cyclePause += time.Since(start)
}

// gcStep advances the open cycle by at most budget units of work. In the
// marking phase a unit is one object blackened; the sweep runs as a
// single step once the worklist is empty.
func (vm *VM) gcStep(budget int) {
	h := vm.heap
	start := time.Now()

	switch h.phase {
	case phaseMarking:
		for budget > 0 && len(h.gray) > 0 {
			hd := h.gray[len(h.gray)-1]
			h.gray = h.gray[:len(h.gray)-1]
			vm.blacken(hd)
			budget--
		}
		if len(h.gray) == 0 {
			// Registers are not barriered, so rescan the roots before
			// declaring the mark complete. New grays restart tracing.
			vm.markRoots()
			if len(h.gray) == 0 {
				vm.pruneStringPool()
				h.phase = phaseSweeping
			}
		}
	case phaseSweeping:
		freed := vm.sweep()
		vm.adaptThreshold(h.cycleBefore, freed)
		h.phase = phaseIdle
		h.collections++
		h.cyclePause += time.Since(start)
		h.lastPause = h.cyclePause
		h.totalPause += h.cyclePause
		return
	}
	h.cyclePause += time.Since(start)
}
