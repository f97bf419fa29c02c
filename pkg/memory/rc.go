package memory

import "sync/atomic"

// Dynamic reference counting
//
// Every object starts with a plain, non-atomic count ("exclusive" mode) and
// is promoted transitively to atomic mode ("mutex" mode, isMutex=true) the
// first time a second thread could observe it. Retain/Release branch on the
// flag inline: the flag is stable after the one-way transition, so the
// branch predicts well and single-threaded workloads never pay for atomics.
//
// Release couples the count with the cycle collector:
//   - a decrement that leaves exactly one reference on a cyclic-typed object
//     with at least one field registers it as a suspected cycle root (only
//     internal references may be left);
//   - a decrement to zero on a cyclic-typed object with at least one field
//     never frees; the object is registered for the collector and dropCyclic
//     hands the whole dead subgraph over to it;
//   - a decrement to zero on anything else (including a zero-field
//     cyclic-typed object) releases the fields and frees on the spot.

// Retain increments the reference count of o.
func (rt *Runtime) Retain(o *HeapObject) {
	if o.isMutex {
		atomic.AddUint64(&o.referenceCount, 1)
	} else {
		o.referenceCount++
	}
}

// Release decrements the reference count of o and, when it reaches zero,
// either frees the object directly or delegates it to the cycle collector.
func (rt *Runtime) Release(o *HeapObject) {
	var prev uint64
	if o.isMutex {
		prev = atomic.AddUint64(&o.referenceCount, ^uint64(0)) + 1
	} else {
		prev = o.referenceCount
		o.referenceCount--
	}

	if prev > 1 {
		rt.trySuspect(o, prev-1)
		return
	}

	// Count is now zero. A zero-field object cannot sit on a cycle, so it
	// skips the collector path no matter how it is typed.
	if o.isCyclicType && len(o.fields) > 0 {
		// The collector owns the final free of cyclic-typed objects. Register
		// the object so the next collection finds it, then mark the dead
		// subgraph.
		if o.buffered.CompareAndSwap(false, true) {
			rt.addSuspect(o)
		}
		rt.dropCyclic(o)
		return
	}

	for _, field := range o.fields {
		if field != nil {
			rt.Release(field)
		}
	}
	rt.free(o)
}

// trySuspect registers o as a candidate cycle root when a decrement left
// exactly one reference on a cyclic-typed object. The CAS on buffered makes
// insertion idempotent.
func (rt *Runtime) trySuspect(o *HeapObject, remaining uint64) {
	if remaining != 1 || !o.isCyclicType || len(o.fields) == 0 {
		return
	}
	if o.buffered.CompareAndSwap(false, true) {
		rt.addSuspect(o)
	}
}

// dropCyclic runs when the count of a cyclic-typed object reaches zero. It
// decrements every child under the object's lock and marks the object ready
// for the collector instead of freeing it.
//
// Slot handling on a child that hit zero: if the child is cyclic-typed and
// buffered it has its own suspect entry, so the slot is cut to keep the
// collector from reclaiming it twice. Either way the drop recurses: a child
// that is not buffered stays linked, and the collector picks it up while
// walking this object's subgraph. Slots whose child stays alive are cut to
// deduplicate the later edge release; a surviving child left with one
// reference is a cycle-root candidate like on any other release path.
func (rt *Runtime) dropCyclic(o *HeapObject) {
	o.lock()
	for i, field := range o.fields {
		if field == nil {
			continue
		}
		prev := atomic.AddUint64(&field.referenceCount, ^uint64(0)) + 1
		if prev == 1 {
			if field.isCyclicType && field.buffered.Load() {
				o.fields[i] = nil
			}
			rt.dropCyclic(field)
		} else {
			rt.trySuspect(field, prev-1)
			o.fields[i] = nil
		}
	}
	o.unlock()
	o.readyToReleaseWithGC.Store(true)
}

// FieldStore writes child into slot index of o, retaining the new value and
// releasing the old one. The store happens under o's lock so it serializes
// with a concurrent collector scan of o; the release of the old value runs
// outside the lock because it may cascade.
//
// Storing into a mutex object requires the child to already be mutex
// (PromoteToMutex before publication); the handle layer enforces that.
func (rt *Runtime) FieldStore(o *HeapObject, index int, child *HeapObject) {
	o.lock()
	if child != nil {
		rt.Retain(child)
	}
	old := o.fields[index]
	o.fields[index] = child
	o.unlock()
	if old != nil {
		rt.Release(old)
	}
}

// FieldLoad reads slot index of o and retains the result before returning
// it; the caller owns the returned reference. Mutex objects are read under
// the object lock so the load-retain pair is atomic with respect to
// concurrent stores and collector scans.
func (rt *Runtime) FieldLoad(o *HeapObject, index int) *HeapObject {
	if !o.isMutex {
		child := o.fields[index]
		if child != nil {
			rt.Retain(child)
		}
		return child
	}
	o.lock()
	child := o.fields[index]
	if child != nil {
		rt.Retain(child)
	}
	o.unlock()
	return child
}
