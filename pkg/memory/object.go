package memory

import "sync/atomic"

// HeapObject is the per-object header plus field storage. Fields are owning
// references: each non-nil slot contributes one to the target's reference
// count. The graph formed by fields is genuinely cyclic, so ownership lives
// in the count, not in the slot.
//
// referenceCount is accessed atomically iff isMutex is true. isMutex is
// monotonic (false→true, never back) and reachability-closed: once an object
// is mutex, everything reachable from it is mutex too. The transition happens
// via toMutex strictly before the object is published to a second thread, so
// no lock is needed for it.
type HeapObject struct {
	referenceCount uint64
	isMutex        bool
	spin           SpinLock

	// Cycle-collector state.
	isCyclicType         bool
	readyToReleaseWithGC atomic.Bool
	buffered             atomic.Bool

	freed  bool
	fields []*HeapObject
}

// FieldLength returns the number of field slots, fixed at allocation.
func (o *HeapObject) FieldLength() int {
	return len(o.fields)
}

// IsMutex reports whether the reference count is in atomic mode.
func (o *HeapObject) IsMutex() bool {
	return o.isMutex
}

// IsCyclicType reports whether the object may participate in a reference
// cycle and therefore must be reclaimed through the collector.
func (o *HeapObject) IsCyclicType() bool {
	return o.isCyclicType
}

// RefCount reads the current reference count, honoring the count mode.
func (o *HeapObject) RefCount() uint64 {
	if o.isMutex {
		return atomic.LoadUint64(&o.referenceCount)
	}
	return o.referenceCount
}

// toMutex flips the object and everything reachable from it into atomic
// count mode. The caller must hold the only handle: this runs before the
// first cross-thread publication, which is what makes the plain writes safe.
func (o *HeapObject) toMutex() {
	if o.isMutex {
		return
	}
	o.isMutex = true
	for _, field := range o.fields {
		if field != nil {
			field.toMutex()
		}
	}
}

func (o *HeapObject) lock() {
	o.spin.Lock()
}

func (o *HeapObject) unlock() {
	o.spin.Unlock()
}
