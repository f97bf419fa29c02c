package memory

import (
	"sync"
	"testing"
)

func TestAllocateInitialState(t *testing.T) {
	rt := NewRuntime()

	o := rt.Allocate(3)

	if o.RefCount() != 1 {
		t.Errorf("expected reference count 1 at birth, got %d", o.RefCount())
	}
	if o.IsMutex() {
		t.Error("fresh object must start in plain count mode")
	}
	if o.IsCyclicType() {
		t.Error("fresh object must not be cyclic-typed")
	}
	if o.readyToReleaseWithGC.Load() || o.buffered.Load() {
		t.Error("collector flags must start clear")
	}
	if o.FieldLength() != 3 {
		t.Errorf("expected field length 3, got %d", o.FieldLength())
	}
	for i, field := range o.fields {
		if field != nil {
			t.Errorf("field %d not nil at birth", i)
		}
	}
	if rt.LiveObjects() != 1 {
		t.Errorf("expected 1 live object, got %d", rt.LiveObjects())
	}
}

func TestAllocateZeroFields(t *testing.T) {
	rt := NewRuntime()

	o := rt.Allocate(0)

	if o.FieldLength() != 0 {
		t.Errorf("expected field length 0, got %d", o.FieldLength())
	}
	rt.Release(o)
	if rt.LiveObjects() != 0 {
		t.Errorf("expected 0 live objects after release, got %d", rt.LiveObjects())
	}
}

func TestPromoteToMutexTransitive(t *testing.T) {
	rt := NewRuntime()

	// Diamond: root → left, root → right, both → shared.
	root := rt.Allocate(2)
	left := rt.Allocate(1)
	right := rt.Allocate(1)
	shared := rt.Allocate(0)

	rt.FieldStore(root, 0, left)
	rt.FieldStore(root, 1, right)
	rt.FieldStore(left, 0, shared)
	rt.FieldStore(right, 0, shared)

	rt.PromoteToMutex(root)

	for name, o := range map[string]*HeapObject{
		"root": root, "left": left, "right": right, "shared": shared,
	} {
		if !o.IsMutex() {
			t.Errorf("%s not promoted to mutex mode", name)
		}
	}

	rt.Release(shared)
	rt.Release(right)
	rt.Release(left)
	rt.Release(root)
	if rt.LiveObjects() != 0 {
		t.Errorf("expected 0 live objects, got %d", rt.LiveObjects())
	}
}

func TestPromoteToMutexIdempotent(t *testing.T) {
	rt := NewRuntime()

	o := rt.Allocate(1)
	rt.PromoteToMutex(o)
	rt.PromoteToMutex(o)

	if !o.IsMutex() {
		t.Error("object should stay in mutex mode")
	}
	rt.Release(o)
}

func TestSpinLockMutualExclusion(t *testing.T) {
	var l SpinLock
	counter := 0

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != 8000 {
		t.Errorf("expected 8000 increments, got %d", counter)
	}
}

func TestDoubleFreePanics(t *testing.T) {
	rt := NewRuntime()
	o := rt.Allocate(0)
	rt.free(o)

	defer func() {
		if recover() == nil {
			t.Error("second free must panic")
		}
	}()
	rt.free(o)
}
