package stress

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"dynrc/pkg/memory"
)

const (
	slotCount    = 10
	mutatorCount = 7
)

// Concurrent mutation under GC: mutator goroutines churn a shared pool of
// cyclic-typed slots, creating and rewiring 2- and 3-cycles, while one
// collector goroutine runs collections in a loop. After the mutators join,
// the slots are cleared and the shared table dropped, and a bounded number
// of trailing collections must bring the live-object count to zero. The
// count is not compared against the surviving handles before they are
// dropped.
func TestConcurrentMutationUnderGC(t *testing.T) {
	iterations := 100000
	if testing.Short() {
		iterations = 5000
	}

	rt := memory.NewRuntime()
	shared := rt.NewSharedDynamicRC(slotCount)
	for i := 0; i < slotCount; i++ {
		obj := rt.NewDynamicRC(2)
		obj.MarkAsCyclicType()
		shared.SetObject(i, obj)
		obj.Drop()
	}

	var finished atomic.Bool
	var mutators sync.WaitGroup
	for g := 0; g < mutatorCount; g++ {
		mutators.Add(1)
		go func(seed int64) {
			defer mutators.Done()
			churn(rt, shared, seed, iterations)
		}(int64(g + 1))
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for !finished.Load() {
			rt.Collect()
		}
	}()

	mutators.Wait()
	finished.Store(true)
	<-collectorDone

	for i := 0; i < slotCount; i++ {
		shared.ClearObject(i)
	}
	shared.Drop()

	// One collection is not always enough: a cycle freed in round N can
	// expose another suspect for round N+1.
	for i := 0; i < 100 && rt.LiveObjects() != 0; i++ {
		rt.Collect()
	}

	if live := rt.LiveObjects(); live != 0 {
		t.Errorf("expected 0 live objects after quiescent teardown, got %d", live)
	}
	if n := rt.SuspectCount(); n != 0 {
		t.Errorf("expected empty suspect set after teardown, got %d entries", n)
	}
}

func churn(rt *memory.Runtime, shared memory.DynamicRC, seed int64, iterations int) {
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < iterations; i++ {
		if rng.Intn(2) == 0 {
			// Publish three fresh cyclic-typed objects into random slots.
			for k := 0; k < 3; k++ {
				obj := rt.NewDynamicRC(2)
				obj.MarkAsCyclicType()
				shared.SetObject(rng.Intn(slotCount), obj)
				obj.Drop()
			}
		} else {
			// Rewire whatever currently occupies three random slots into a
			// chain or a 3-cycle.
			o1, ok1 := shared.GetObject(rng.Intn(slotCount))
			o2, ok2 := shared.GetObject(rng.Intn(slotCount))
			o3, ok3 := shared.GetObject(rng.Intn(slotCount))
			if ok1 && ok2 && ok3 {
				o1.SetObject(rng.Intn(2), o2)
				o2.SetObject(rng.Intn(2), o3)
				if rng.Intn(2) == 0 {
					o3.SetObject(rng.Intn(2), o1)
				}
			}
			if ok1 {
				o1.Drop()
			}
			if ok2 {
				o2.Drop()
			}
			if ok3 {
				o3.Drop()
			}
		}
	}
}
