package memory

// Suspect-root set: cyclic-typed objects whose count dropped to a positive
// value (candidate cycle roots) or to zero (dead, waiting for the
// collector). Guarded by the list lock; membership agrees with the
// per-object buffered flag, except for roots a running collection has
// drained: they keep the flag until they are re-queued or erased.

func (rt *Runtime) addSuspect(o *HeapObject) {
	rt.listLock.Lock()
	rt.suspects[o] = struct{}{}
	rt.listLock.Unlock()
}

// drainSuspects swaps the set with an empty one and returns the previous
// contents.
func (rt *Runtime) drainSuspects() map[*HeapObject]struct{} {
	rt.listLock.Lock()
	drained := rt.suspects
	rt.suspects = make(map[*HeapObject]struct{})
	rt.listLock.Unlock()
	return drained
}

// eraseSuspect removes o from the set and clears its buffered flag, keeping
// the two in agreement.
func (rt *Runtime) eraseSuspect(o *HeapObject) {
	rt.listLock.Lock()
	delete(rt.suspects, o)
	o.buffered.Store(false)
	rt.listLock.Unlock()
}

// SuspectCount returns the current size of the suspect-root set.
func (rt *Runtime) SuspectCount() int {
	rt.listLock.Lock()
	n := len(rt.suspects)
	rt.listLock.Unlock()
	return n
}
