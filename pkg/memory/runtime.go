package memory

import "sync/atomic"

// Runtime is the process-wide state of the memory core: the suspect-root set
// with its list lock, the collector lock, the validation counter and the
// collector statistics. It is a plain value created with NewRuntime rather
// than ambient package globals, so tests and embedders can run isolated
// heaps side by side.
type Runtime struct {
	listLock SpinLock
	suspects map[*HeapObject]struct{}

	gcLock SpinLock

	liveObjects int64

	collections    int64
	collectorFreed int64
	cyclicRoots    int64
	rootsRequeued  int64
}

// CollectorStats is a snapshot of collector activity.
type CollectorStats struct {
	Collections   int64 // Collect invocations completed
	ObjectsFreed  int64 // objects freed by the collector
	CyclicRoots   int64 // scanned roots that were part of a cycle
	RootsRequeued int64 // roots pushed back for a later collection
}

// NewRuntime creates an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		suspects: make(map[*HeapObject]struct{}),
	}
}

// Allocate returns a fresh heap object with reference count 1, all flags
// clear and all fields nil. There is no failure path: allocation exhaustion
// surfaces as a Go runtime out-of-memory abort, which handles must treat as
// fatal anyway.
func (rt *Runtime) Allocate(fieldLength int) *HeapObject {
	o := &HeapObject{
		referenceCount: 1,
		fields:         make([]*HeapObject, fieldLength),
	}
	atomic.AddInt64(&rt.liveObjects, 1)
	return o
}

// free retires an object. Storage reclamation is the Go collector's job once
// the last pointer is gone; this is the lifecycle event that the validation
// counter observes. Freeing twice is a fatal invariant violation.
func (rt *Runtime) free(o *HeapObject) {
	if o.freed {
		panic("memory: double free of heap object")
	}
	o.freed = true
	atomic.AddInt64(&rt.liveObjects, -1)
}

// LiveObjects returns the validation counter: allocations minus frees. After
// a quiescent teardown it must read zero.
func (rt *Runtime) LiveObjects() int64 {
	return atomic.LoadInt64(&rt.liveObjects)
}

// Stats returns a snapshot of collector activity.
func (rt *Runtime) Stats() CollectorStats {
	return CollectorStats{
		Collections:   atomic.LoadInt64(&rt.collections),
		ObjectsFreed:  atomic.LoadInt64(&rt.collectorFreed),
		CyclicRoots:   atomic.LoadInt64(&rt.cyclicRoots),
		RootsRequeued: atomic.LoadInt64(&rt.rootsRequeued),
	}
}

// MarkAsCyclicType flags the object as able to participate in a reference
// cycle. Must be called before the object becomes reachable from another
// thread; afterwards the flag is read-only.
func (rt *Runtime) MarkAsCyclicType(o *HeapObject) {
	o.isCyclicType = true
}

// PromoteToMutex switches the object and its whole reachable subgraph to
// atomic count mode. Required whenever an object is about to become visible
// to a second thread, e.g. a store into a shared slot or a handoff across a
// goroutine boundary.
func (rt *Runtime) PromoteToMutex(o *HeapObject) {
	o.toMutex()
}
