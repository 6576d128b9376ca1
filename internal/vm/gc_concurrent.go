package vm

import "time"

// Concurrent collection pauses the mutator only for the root scan; a
// background goroutine traces, prunes, sweeps, and then drops the
// collecting flag. While the flag is set, the mutator takes heap.mu for
// every allocation and barrier mark, so list links and mark bits stay
// coherent between the two threads.

const concurrentMarkBatch = 64

// collectConcurrent scans the roots on the caller's thread and hands the
// rest of the cycle to a background goroutine.
func (vm *VM) collectConcurrent() {
	h := vm.heap
	if !h.collecting.CompareAndSwap(false, true) {
		return
	}
	start := time.Now()

	h.mu.Lock()
	before := h.bytesAllocated
	h.spliceNursery()
	h.gray = h.gray[:0]
	vm.grayPermanents()
	vm.markRoots()
	h.mu.Unlock()

	h.lastPause = time.Since(start)
	h.totalPause += h.lastPause

	go vm.backgroundCollect(before)
}

// backgroundCollect drains the worklist in short batches, releasing the
// heap lock between batches so allocation and barrier marks are not
// starved, then prunes and sweeps.
func (vm *VM) backgroundCollect(before int) {
	h := vm.heap

	h.mu.Lock()
	for len(h.gray) > 0 {
		n := 0
		for len(h.gray) > 0 && n < concurrentMarkBatch {
			hd := h.gray[len(h.gray)-1]
			h.gray = h.gray[:len(h.gray)-1]
			vm.blacken(hd)
			n++
		}
		if len(h.gray) == 0 {
			break
		}
		h.mu.Unlock()
		time.Sleep(50 * time.Microsecond)
		h.mu.Lock()
	}
	h.mu.Unlock()

	// poolMu before heap.mu, the same order as the interning alloc path.
	vm.poolMu.Lock()
	h.mu.Lock()
	// Barrier marks may have queued between the unlock above and here.
	for len(h.gray) > 0 {
		hd := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		vm.blacken(hd)
	}
	vm.pruneStringPoolLocked()
	freed := vm.sweep()
	vm.adaptThreshold(before, freed)
	h.collections++
	h.mu.Unlock()
	vm.poolMu.Unlock()

	h.collecting.Store(false)
}
