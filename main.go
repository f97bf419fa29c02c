package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"

	"dynrc/pkg/memory"
)

var (
	treeDepth  = flag.Int("depth", 10, "Depth of the benchmark trees")
	threads    = flag.Int("threads", 8, "Number of goroutines for the multi-threaded phases")
	iterations = flag.Int("iterations", 100000, "Churn iterations per mutator goroutine")
	slots      = flag.Int("slots", 10, "Shared slot count for the churn phase")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dynrc - dynamic reference counting with a concurrent cycle collector\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs the validation workload: tree builds under every handle type,\n")
		fmt.Fprintf(os.Stderr, "cross-goroutine publication, and concurrent cycle churn under GC.\n")
		fmt.Fprintf(os.Stderr, "Exits non-zero if any object leaks.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	rt := memory.NewRuntime()

	runTreePhases(rt)
	runPublicationPhase(rt)
	runChurnPhase(rt)

	stats := rt.Stats()
	if *verbose {
		fmt.Fprintf(os.Stderr, "collections: %d, freed by collector: %d, cyclic roots: %d, requeued: %d\n",
			stats.Collections, stats.ObjectsFreed, stats.CyclicRoots, stats.RootsRequeued)
	}

	live := rt.LiveObjects()
	fmt.Printf("Global object count : %d\n", live)
	if live != 0 {
		fmt.Fprintf(os.Stderr, "validation failed: %d objects leaked\n", live)
		os.Exit(1)
	}
}

// runTreePhases builds and tears down one tree per handle type.
func runTreePhases(rt *memory.Runtime) {
	logPhase("manual tree")
	buildManualTree(rt, *treeDepth).DeleteObject()

	logPhase("single-thread rc tree")
	buildSingleThreadTree(rt, *treeDepth).Drop()

	logPhase("thread-safe rc tree")
	buildThreadSafeTree(rt, *treeDepth).Drop()

	logPhase("dynamic rc tree")
	buildDynamicTree(rt, *treeDepth).Drop()
}

// runPublicationPhase has every goroutine build private trees and publish
// them through a shared slot, exercising the transitive promotion.
func runPublicationPhase(rt *memory.Runtime) {
	logPhase("cross-goroutine publication")

	shared := rt.NewSharedDynamicRC(1)

	var wg sync.WaitGroup
	for g := 0; g < *threads; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tree := buildDynamicTree(rt, 5)
				shared.SetObject(0, tree)
				tree.Drop()
			}
		}()
	}
	wg.Wait()

	shared.ClearObject(0)
	shared.Drop()
}

// runChurnPhase rewires shared cyclic graphs from all but one goroutine
// while the last one runs the collector, then drains.
func runChurnPhase(rt *memory.Runtime) {
	logPhase("concurrent churn under gc")

	shared := rt.NewSharedDynamicRC(*slots)
	for i := 0; i < *slots; i++ {
		obj := rt.NewDynamicRC(2)
		obj.MarkAsCyclicType()
		shared.SetObject(i, obj)
		obj.Drop()
	}

	var finished atomic.Bool
	var mutators sync.WaitGroup
	for g := 0; g < *threads-1; g++ {
		mutators.Add(1)
		go func(seed int64) {
			defer mutators.Done()
			churn(rt, shared, seed)
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

	for i := 0; i < *slots; i++ {
		shared.ClearObject(i)
	}
	shared.Drop()

	// Residual cycles can take more than one round to drain.
	for i := 0; i < 100 && rt.LiveObjects() != 0; i++ {
		rt.Collect()
	}
}

func churn(rt *memory.Runtime, shared memory.DynamicRC, seed int64) {
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < *iterations; i++ {
		if rng.Intn(2) == 0 {
			for k := 0; k < 3; k++ {
				obj := rt.NewDynamicRC(2)
				obj.MarkAsCyclicType()
				shared.SetObject(rng.Intn(*slots), obj)
				obj.Drop()
			}
		} else {
			o1, ok1 := shared.GetObject(rng.Intn(*slots))
			o2, ok2 := shared.GetObject(rng.Intn(*slots))
			o3, ok3 := shared.GetObject(rng.Intn(*slots))
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

func logPhase(name string) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "phase: %s\n", name)
	}
}

const treeFieldLength = 2

func buildManualTree(rt *memory.Runtime, depth int) memory.ManualObject {
	node := rt.NewManualObject(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		node.SetObject(i, buildManualTree(rt, depth-1))
	}
	return node
}

func buildSingleThreadTree(rt *memory.Runtime, depth int) memory.SingleThreadRC {
	node := rt.NewSingleThreadRC(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		child := buildSingleThreadTree(rt, depth-1)
		node.SetObject(i, child)
		child.Drop()
	}
	return node
}

func buildThreadSafeTree(rt *memory.Runtime, depth int) memory.ThreadSafeRC {
	node := rt.NewThreadSafeRC(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		child := buildThreadSafeTree(rt, depth-1)
		node.SetObject(i, child)
		child.Drop()
	}
	return node
}

func buildDynamicTree(rt *memory.Runtime, depth int) memory.DynamicRC {
	node := rt.NewDynamicRC(treeFieldLength)
	if depth == 0 {
		return node
	}
	for i := 0; i < treeFieldLength; i++ {
		child := buildDynamicTree(rt, depth-1)
		node.SetObject(i, child)
		child.Drop()
	}
	return node
}
