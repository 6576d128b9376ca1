package vm

import (
	"fmt"
	"testing"
	"time"

	"github.com/sable-lang/sable/internal/config"
)

func TestSyncCollectReachability(t *testing.T) {
	machine := New(nil)

	keep := machine.allocString("survivor-held-by-register")
	machine.registers[0] = ObjVal(keep)
	machine.regTop = 1

	var garbage []Handle
	for i := 0; i < 100; i++ {
		garbage = append(garbage, machine.allocString(fmt.Sprintf("unreferenced-%d", i)))
	}

	before := machine.heap.bytesAllocated
	machine.CollectGarbage()

	if machine.heap.kind(keep) != KindString {
		t.Fatalf("reachable object was swept")
	}
	for _, g := range garbage {
		if machine.heap.kind(g) != KindFree {
			t.Fatalf("unreachable object survived")
		}
	}
	if machine.heap.bytesAllocated >= before {
		t.Errorf("no bytes reclaimed")
	}
	if stats := machine.Stats(); stats.Collections != 1 {
		t.Errorf("expected 1 collection, got %d", stats.Collections)
	}
}

func TestSweepTracesThroughAggregates(t *testing.T) {
	machine := New(nil)

	inner := machine.allocString("held-through-array-and-map")
	arr := machine.newArray()
	machine.heap.array(arr).Items = append(machine.heap.array(arr).Items, ObjVal(inner))
	m := machine.newMap()
	machine.heap.mapObj(m).Str["k"] = ObjVal(arr)
	machine.registers[0] = ObjVal(m)
	machine.regTop = 1

	machine.CollectGarbage()

	if machine.heap.kind(inner) != KindString || machine.heap.kind(arr) != KindArray {
		t.Fatalf("transitively reachable objects were swept")
	}
}

// An object stored into an already-marked container mid-cycle must
// survive; only the write barrier can save it.
func TestWriteBarrierDuringIncrementalMark(t *testing.T) {
	cfg := config.Default()
	cfg.GC.Mode = config.GCIncremental
	machine := New(cfg)

	hidden := machine.allocString("stored-after-mark-started")
	doomed := machine.allocString("no-barrier-no-mercy")
	arr := machine.newArray()
	machine.registers[0] = ObjVal(arr)
	machine.regTop = 1

	machine.startIncrementalGC()
	if machine.heap.phase != phaseMarking {
		t.Fatalf("cycle did not open")
	}

	a := machine.heap.array(arr)
	a.Items = append(a.Items, ObjVal(hidden))
	machine.writeBarrier(ObjVal(hidden))

	for machine.heap.phase != phaseIdle {
		machine.gcStep(4)
	}

	if machine.heap.kind(hidden) != KindString {
		t.Fatalf("barriered object was swept")
	}
	if machine.heap.kind(doomed) != KindFree {
		t.Errorf("unreferenced object survived the cycle")
	}
}

func TestIncrementalAllocationsStayBlack(t *testing.T) {
	cfg := config.Default()
	cfg.GC.Mode = config.GCIncremental
	machine := New(cfg)

	machine.startIncrementalGC()
	fresh := machine.allocString("allocated-mid-mark")
	for machine.heap.phase != phaseIdle {
		machine.gcStep(4)
	}

	// Allocated black during marking, so it survives this cycle even
	// though nothing references it; the next cycle frees it.
	if machine.heap.kind(fresh) != KindString {
		t.Fatalf("allocate-black object swept in its own cycle")
	}
	machine.CollectGarbage()
	if machine.heap.kind(fresh) != KindFree {
		t.Errorf("garbage survived the following cycle")
	}
}

func TestConcurrentCollect(t *testing.T) {
	cfg := config.Default()
	cfg.GC.Mode = config.GCConcurrent
	machine := New(cfg)

	keep := machine.allocString("survivor-during-background-cycle")
	machine.registers[0] = ObjVal(keep)
	machine.regTop = 1
	var garbage []Handle
	for i := 0; i < 50; i++ {
		garbage = append(garbage, machine.allocString(fmt.Sprintf("background-garbage-%d", i)))
	}

	machine.collectConcurrent()
	waitForCollector(t, machine)

	if machine.heap.kind(keep) != KindString {
		t.Fatalf("reachable object was swept")
	}
	for _, g := range garbage {
		if machine.heap.kind(g) != KindFree {
			t.Fatalf("unreachable object survived")
		}
	}
	if stats := machine.Stats(); stats.Collections != 1 {
		t.Errorf("expected 1 collection, got %d", stats.Collections)
	}
}

func waitForCollector(t *testing.T, machine *VM) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for machine.heap.collecting.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("background collection did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStringPoolPrune(t *testing.T) {
	machine := New(nil)

	h := machine.internString("transient-pool-entry")
	if machine.heap.kind(h) != KindString {
		t.Fatalf("intern failed")
	}

	machine.CollectGarbage()

	machine.poolMu.Lock()
	_, stillPooled := machine.strings["transient-pool-entry"]
	machine.poolMu.Unlock()
	if stillPooled {
		t.Errorf("unreachable pool entry survived the prune")
	}
	if machine.heap.kind(h) != KindFree {
		t.Errorf("pruned string was not swept")
	}

	// Re-interning after the prune builds a fresh object.
	again := machine.internString("transient-pool-entry")
	if machine.heap.kind(again) != KindString {
		t.Errorf("re-intern after prune failed")
	}
}

func TestInternIdentity(t *testing.T) {
	machine := New(nil)
	a := machine.internString("same-content")
	b := machine.internString("same-content")
	if a != b {
		t.Errorf("interned strings must share a handle")
	}

	long := make([]byte, config.InternMaxLen+1)
	for i := range long {
		long[i] = 'x'
	}
	c := machine.internString(string(long))
	d := machine.internString(string(long))
	if c == d {
		t.Errorf("over-limit strings must bypass the pool")
	}
}

// Permanent objects are never swept and their referents are re-traced
// every cycle.
func TestPermanentObjectsTraced(t *testing.T) {
	machine := New(nil)

	child := machine.allocString("child-of-a-permanent")
	arr := machine.newArray()
	machine.heap.array(arr).Items = append(machine.heap.array(arr).Items, ObjVal(child))
	machine.MarkPermanent(ObjVal(arr))

	machine.CollectGarbage()
	machine.CollectGarbage()

	if machine.heap.kind(arr) != KindArray {
		t.Fatalf("permanent object was swept")
	}
	if machine.heap.kind(child) != KindString {
		t.Fatalf("permanent's child was swept")
	}
}

func TestAdaptiveThresholdClamped(t *testing.T) {
	cfg := config.Default()
	machine := New(cfg)

	for i := 0; i < 200; i++ {
		machine.allocString(fmt.Sprintf("threshold-fodder-%d", i))
	}
	machine.CollectGarbage()

	next := machine.Stats().NextGC
	if next < cfg.GC.Floor || next > cfg.GC.Ceiling {
		t.Errorf("nextGC %d outside [%d, %d]", next, cfg.GC.Floor, cfg.GC.Ceiling)
	}
}

func TestGenerationCounterAdvances(t *testing.T) {
	machine := New(nil)
	keep := machine.allocString("generation-counter-case")
	machine.registers[0] = ObjVal(keep)
	machine.regTop = 1

	if machine.heap.obj(keep).gen != 0 {
		t.Fatalf("new object must start at generation 0")
	}
	machine.CollectGarbage()
	if machine.heap.obj(keep).gen != 1 {
		t.Errorf("survivor generation not advanced")
	}
	machine.CollectGarbage()
	if machine.heap.obj(keep).gen != 2 {
		t.Errorf("survivor generation not advanced again")
	}
}

func TestFreeSlotReuse(t *testing.T) {
	machine := New(nil)
	dead := machine.allocString("short-lived")
	machine.CollectGarbage()
	if machine.heap.kind(dead) != KindFree {
		t.Fatalf("object not freed")
	}
	reborn := machine.allocString("slot-reuser")
	if reborn != dead {
		t.Errorf("free slot not reused: got %d, want %d", reborn, dead)
	}
}

// Stores into arrays, maps, environments, and struct fields keep
// landing while background cycles trace the same objects. The race
// detector checks that every such store is lock-coherent with the
// tracing thread; the assertions check nothing stored behind the
// marking wave is dropped.
func TestConcurrentCollectionDuringStores(t *testing.T) {
	cfg := config.Default()
	cfg.GC.Mode = config.GCConcurrent
	cfg.GC.Trigger = 4 * 1024
	cfg.GC.Floor = 4 * 1024
	machine := New(cfg)
	machine.RegisterBuiltins()

	v, err := machine.RunSource(`
		struct Box { v }
		var arr = [];
		var m = {};
		var b = Box(0);
		var i = 0;
		while (i < 400) {
			push(arr, "item-" + i);
			m[i] = "value-" + i;
			b.v = "field-" + i;
			arr[0] = "rebound-" + i;
			i = i + 1;
		}
		return length(arr) + length(m);
	`, "stores.sbl")
	if err != nil {
		t.Fatal(err)
	}
	waitForCollector(t, machine)
	if !v.IsInt() || v.AsInt() != 800 {
		t.Fatalf("stores lost under background collection: %v", machine.formatValue(v))
	}
	if machine.Stats().Collections == 0 {
		t.Errorf("collector never ran")
	}
}

// The sleep resolver fires on its own thread while the script keeps
// growing the arena under a tiny trigger.
func TestSleepResolvesWhileArenaGrows(t *testing.T) {
	cfg := config.Default()
	cfg.GC.Trigger = 4 * 1024
	cfg.GC.Floor = 4 * 1024
	machine := New(cfg)
	machine.RegisterBuiltins()

	v, err := machine.RunSource(`
		var f = sleep(5);
		var parts = [];
		var i = 0;
		while (i < 1000) {
			push(parts, "grow-" + i);
			i = i + 1;
		}
		var r = await f;
		return length(parts);
	`, "sleep.sbl")
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsInt() || v.AsInt() != 1000 {
		t.Fatalf("wrong result: %v", machine.formatValue(v))
	}
}

// End-to-end: scripts that allocate heavily complete correctly under
// every collector mode with a tiny trigger.
func TestCollectorModesEndToEnd(t *testing.T) {
	script := `
		var parts = [];
		var i = 0;
		while (i < 500) {
			push(parts, "chunk-" + i);
			i = i + 1;
		}
		return length(parts);
	`
	for _, mode := range []config.GCMode{config.GCSync, config.GCIncremental, config.GCConcurrent} {
		cfg := config.Default()
		cfg.GC.Mode = mode
		cfg.GC.Trigger = 8 * 1024
		cfg.GC.Floor = 8 * 1024

		machine := New(cfg)
		machine.RegisterBuiltins()
		v, err := machine.RunSource(script, "stress.sbl")
		if err != nil {
			t.Fatalf("%s: %s", mode, err)
		}
		if !v.IsInt() || v.AsInt() != 500 {
			t.Fatalf("%s: wrong result", mode)
		}
		if mode == config.GCConcurrent {
			waitForCollector(t, machine)
		}
		if machine.Stats().Collections == 0 {
			t.Errorf("%s: collector never ran", mode)
		}
	}
}
