package memory

// Handle types
//
// The core exposes raw operations on *HeapObject; user code holds one of
// four handle flavors over them, trading safety for count traffic:
//
//   ManualObject   no counting at all, explicit subtree delete
//   SingleThreadRC plain counts, never promoted
//   ThreadSafeRC   born in atomic mode
//   DynamicRC      plain counts until published into a shared object, then
//                  promoted transitively
//
// Go has no destructors, so ownership is explicit: Clone retains, Drop
// releases, and GetObject returns a handle that owns a fresh retain.

// ManualObject is an unmanaged handle: stores do not touch counts and the
// whole subtree is deleted explicitly. It exists as the baseline the counted
// handles are measured against.
type ManualObject struct {
	rt  *Runtime
	obj *HeapObject
}

// NewManualObject allocates an unmanaged object.
func (rt *Runtime) NewManualObject(fieldLength int) ManualObject {
	return ManualObject{rt: rt, obj: rt.Allocate(fieldLength)}
}

// SetObject stores child into slot index. Raw slot write: no retain, no
// release of the old value.
func (m ManualObject) SetObject(index int, child ManualObject) {
	m.obj.fields[index] = child.obj
}

// DeleteObject frees the subtree depth-first. The caller guarantees the
// subtree is acyclic and each node is referenced exactly once.
func (m ManualObject) DeleteObject() {
	m.rt.deleteManual(m.obj)
}

func (rt *Runtime) deleteManual(o *HeapObject) {
	for _, field := range o.fields {
		if field != nil {
			rt.deleteManual(field)
		}
	}
	rt.free(o)
}

// SingleThreadRC is a reference-counted handle whose object stays in plain
// count mode for its whole life. It must never be published to another
// goroutine.
type SingleThreadRC struct {
	rt  *Runtime
	obj *HeapObject
}

// NewSingleThreadRC allocates an object with count 1 owned by the handle.
func (rt *Runtime) NewSingleThreadRC(fieldLength int) SingleThreadRC {
	return SingleThreadRC{rt: rt, obj: rt.Allocate(fieldLength)}
}

// Obj exposes the underlying object for inspection.
func (h SingleThreadRC) Obj() *HeapObject { return h.obj }

// Clone returns a second owning handle.
func (h SingleThreadRC) Clone() SingleThreadRC {
	h.rt.Retain(h.obj)
	return h
}

// Drop gives up this handle's reference. The handle is dead afterwards.
func (h SingleThreadRC) Drop() {
	h.rt.Release(h.obj)
}

// MarkAsCyclicType flags the object as a potential cycle participant.
func (h SingleThreadRC) MarkAsCyclicType() {
	h.rt.MarkAsCyclicType(h.obj)
}

// SetObject stores child's object into slot index, retaining it.
func (h SingleThreadRC) SetObject(index int, child SingleThreadRC) {
	h.rt.FieldStore(h.obj, index, child.obj)
}

// ClearObject empties slot index, releasing the old value.
func (h SingleThreadRC) ClearObject(index int) {
	h.rt.FieldStore(h.obj, index, nil)
}

// GetObject loads slot index. The returned handle owns a fresh reference;
// ok is false for an empty slot.
func (h SingleThreadRC) GetObject(index int) (child SingleThreadRC, ok bool) {
	o := h.rt.FieldLoad(h.obj, index)
	if o == nil {
		return SingleThreadRC{}, false
	}
	return SingleThreadRC{rt: h.rt, obj: o}, true
}

// ThreadSafeRC is a reference-counted handle whose object is born in atomic
// mode, so it may be shared across goroutines freely; every count touch
// pays for an atomic operation.
type ThreadSafeRC struct {
	rt  *Runtime
	obj *HeapObject
}

// NewThreadSafeRC allocates an object already promoted to atomic mode.
func (rt *Runtime) NewThreadSafeRC(fieldLength int) ThreadSafeRC {
	o := rt.Allocate(fieldLength)
	o.toMutex()
	return ThreadSafeRC{rt: rt, obj: o}
}

// Obj exposes the underlying object for inspection.
func (h ThreadSafeRC) Obj() *HeapObject { return h.obj }

// Clone returns a second owning handle.
func (h ThreadSafeRC) Clone() ThreadSafeRC {
	h.rt.Retain(h.obj)
	return h
}

// Drop gives up this handle's reference.
func (h ThreadSafeRC) Drop() {
	h.rt.Release(h.obj)
}

// MarkAsCyclicType flags the object as a potential cycle participant. Must
// be called before the object is shared.
func (h ThreadSafeRC) MarkAsCyclicType() {
	h.rt.MarkAsCyclicType(h.obj)
}

// SetObject stores child's object into slot index. The child is promoted
// first: everything reachable from an atomic-mode object must itself be in
// atomic mode.
func (h ThreadSafeRC) SetObject(index int, child ThreadSafeRC) {
	child.obj.toMutex()
	h.rt.FieldStore(h.obj, index, child.obj)
}

// ClearObject empties slot index, releasing the old value.
func (h ThreadSafeRC) ClearObject(index int) {
	h.rt.FieldStore(h.obj, index, nil)
}

// GetObject loads slot index; the returned handle owns a fresh reference.
func (h ThreadSafeRC) GetObject(index int) (child ThreadSafeRC, ok bool) {
	o := h.rt.FieldLoad(h.obj, index)
	if o == nil {
		return ThreadSafeRC{}, false
	}
	return ThreadSafeRC{rt: h.rt, obj: o}, true
}

// DynamicRC is the mode-switching handle: plain counts while the object is
// owned by one goroutine, atomic from the moment it is stored into a shared
// (atomic-mode) object. The promotion runs while the storing goroutine still
// holds the only route to the child, which is what makes it race-free.
type DynamicRC struct {
	rt  *Runtime
	obj *HeapObject
}

// NewDynamicRC allocates an object in plain count mode.
func (rt *Runtime) NewDynamicRC(fieldLength int) DynamicRC {
	return DynamicRC{rt: rt, obj: rt.Allocate(fieldLength)}
}

// NewSharedDynamicRC allocates an object pre-promoted to atomic mode, for
// use as a globally shared slot table.
func (rt *Runtime) NewSharedDynamicRC(fieldLength int) DynamicRC {
	o := rt.Allocate(fieldLength)
	o.toMutex()
	return DynamicRC{rt: rt, obj: o}
}

// Obj exposes the underlying object for inspection.
func (h DynamicRC) Obj() *HeapObject { return h.obj }

// Clone returns a second owning handle.
func (h DynamicRC) Clone() DynamicRC {
	h.rt.Retain(h.obj)
	return h
}

// Drop gives up this handle's reference.
func (h DynamicRC) Drop() {
	h.rt.Release(h.obj)
}

// MarkAsCyclicType flags the object as a potential cycle participant. Must
// be called before cross-goroutine publication.
func (h DynamicRC) MarkAsCyclicType() {
	h.rt.MarkAsCyclicType(h.obj)
}

// SetObject stores child's object into slot index. Storing into an
// atomic-mode object first promotes the child transitively: this is the
// publication point where a second goroutine could start observing it.
func (h DynamicRC) SetObject(index int, child DynamicRC) {
	if h.obj.isMutex {
		h.rt.PromoteToMutex(child.obj)
	}
	h.rt.FieldStore(h.obj, index, child.obj)
}

// ClearObject empties slot index, releasing the old value.
func (h DynamicRC) ClearObject(index int) {
	h.rt.FieldStore(h.obj, index, nil)
}

// GetObject loads slot index; the returned handle owns a fresh reference.
func (h DynamicRC) GetObject(index int) (child DynamicRC, ok bool) {
	o := h.rt.FieldLoad(h.obj, index)
	if o == nil {
		return DynamicRC{}, false
	}
	return DynamicRC{rt: h.rt, obj: o}, true
}
