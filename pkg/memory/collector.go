package memory

import "sync/atomic"

// Concurrent partial mark and sweep
//
// The classical Bacon–Rajan partial trace (gray/white/black count
// subtraction) with the synchronization needed to run against live
// mutators: a red pre-pass walks the root's subgraph and takes every
// object's spin lock, so the counts the gray pass snapshots cannot move and
// no external reference to a locked object can be created (FieldStore takes
// the target's lock). Reference: Bacon & Rajan, "Concurrent Cycle
// Collection in Reference Counted Systems" (ECOOP 2001).
//
// Roots whose subgraph contains no edge back to the root are not cycle
// candidates at all: they are collectable only as dead subgraphs handed over
// by dropCyclic, and are otherwise re-queued. They are admitted
// all-or-nothing by checkReadyToCollect instead of being traced, which keeps the destruction of acyclic structure deterministic:
// the releasing mutator marked it, the collector merely frees it.

// objectColor is the per-scan coloring. Red records lock acquisition;
// gray/white/black implement the count-subtraction reachability test.
type objectColor uint8

const (
	colorRed objectColor = iota
	colorGray
	colorWhite
	colorBlack
)

// rootScan is the scratch state for scanning a single suspected root. Color
// and count maps are scoped to the root: the same object may be scanned
// again under another root in the same collection, independently.
type rootScan struct {
	root       *HeapObject
	color      map[*HeapObject]objectColor
	count      map[*HeapObject]int
	visited    []*HeapObject
	cyclicRoot bool
}

func newRootScan(root *HeapObject) *rootScan {
	return &rootScan{
		root:  root,
		color: make(map[*HeapObject]objectColor),
		count: make(map[*HeapObject]int),
	}
}

// Collect runs one cycle-collection round. At most one collection runs at a
// time; mutators keep running and are synchronized with per-object spin
// locks. Roots that cannot be proven unreachable are re-queued for the
// next round rather than reported as errors.
func (rt *Runtime) Collect() {
	rt.gcLock.Lock()
	defer rt.gcLock.Unlock()

	roots := rt.drainSuspects()
	releaseSet := make(map[*HeapObject]struct{})

	for root := range roots {
		scan := newRootScan(root)
		scan.markRed(root)

		if scan.cyclicRoot {
			atomic.AddInt64(&rt.cyclicRoots, 1)

			scan.markGray(root, true)
			scan.markWhite(root)

			for _, o := range scan.visited {
				if scan.color[o] == colorWhite {
					o.readyToReleaseWithGC.Store(true)
					releaseSet[o] = struct{}{}
				}
			}
			for _, o := range scan.visited {
				o.unlock()
			}
		} else {
			for _, o := range scan.visited {
				o.unlock()
			}

			// The root is not part of a cycle: it is collectable only if the
			// mutator already handed the whole subgraph over via dropCyclic.
			subgraph := make(map[*HeapObject]struct{})
			if checkReadyToCollect(root, subgraph) {
				for o := range subgraph {
					releaseSet[o] = struct{}{}
				}
			}
		}
	}

	// Finalization. First drop the edges leaving the release set, then free;
	// the edge drops run the normal release path and may cascade into
	// dropCyclic, which is how a dead cycle lets go of its live neighbors.
	for o := range releaseSet {
		delete(roots, o)
		if o.isCyclicType && o.buffered.Load() {
			rt.eraseSuspect(o)
		}
		for _, field := range o.fields {
			if field != nil && !field.readyToReleaseWithGC.Load() {
				rt.Release(field)
			}
		}
	}
	for o := range releaseSet {
		rt.free(o)
		atomic.AddInt64(&rt.collectorFreed, 1)
	}

	// Whatever survived could not be proven unreachable this round: external
	// references remain or a mutation invalidated the snapshot. Put it back.
	for root := range roots {
		root.buffered.Store(true)
		rt.addSuspect(root)
		atomic.AddInt64(&rt.rootsRequeued, 1)
	}

	atomic.AddInt64(&rt.collections, 1)
}

// markRed walks the subgraph of the scan's root, coloring every object red
// and taking its lock on first visit. A field equal to the root means the
// root sits on a cycle. Self-loops count: current == root still trips the
// flag.
func (s *rootScan) markRed(o *HeapObject) {
	if _, colored := s.color[o]; colored {
		return
	}
	s.color[o] = colorRed
	o.lock()
	s.visited = append(s.visited, o)

	for _, field := range o.fields {
		if field == nil {
			continue
		}
		if field == s.root {
			s.cyclicRoot = true
		}
		s.markRed(field)
	}
}

// markGray snapshots reference counts and subtracts the contribution of
// every edge internal to the subgraph. The root invocation records the full
// count; every other entry edge costs one, as does every re-visit of an
// already gray object. Multiple fields pointing at the same child subtract
// multiple times.
func (s *rootScan) markGray(o *HeapObject, first bool) {
	if s.color[o] == colorGray {
		s.count[o]--
		if s.count[o] < 0 {
			panic("memory: count map underflow in gray scan")
		}
		return
	}
	s.color[o] = colorGray

	refCount := int(atomic.LoadUint64(&o.referenceCount))
	if first {
		s.count[o] = refCount
	} else {
		s.count[o] = refCount - 1
	}

	for _, field := range o.fields {
		if field != nil {
			s.markGray(field, false)
		}
	}
}

// markWhite classifies gray objects: a residual count of zero means every
// reference comes from inside the subgraph, so the object is tentatively
// unreachable (white); anything else is externally referenced and turns
// black, dragging everything it reaches with it.
func (s *rootScan) markWhite(o *HeapObject) {
	if s.color[o] != colorGray {
		return
	}
	if s.count[o] != 0 {
		s.markBlack(o)
		return
	}
	s.color[o] = colorWhite

	for _, field := range o.fields {
		if field != nil {
			s.markWhite(field)
		}
	}
}

// markBlack repaints an externally reachable region black, with no count
// changes. Black dominates: gray or white objects reached from a black one
// are repainted.
func (s *rootScan) markBlack(o *HeapObject) {
	if s.color[o] == colorBlack {
		return
	}
	s.color[o] = colorBlack

	for _, field := range o.fields {
		if field != nil {
			s.markBlack(field)
		}
	}
}

// checkReadyToCollect verifies, with per-object locking, that o and every
// object reachable from it were handed over by the releasing mutator
// (readyToReleaseWithGC set). On success the whole subgraph is in out; on
// failure the admission is abandoned and nothing is collected.
func checkReadyToCollect(o *HeapObject, out map[*HeapObject]struct{}) bool {
	if _, checked := out[o]; checked {
		return true
	}
	if !o.readyToReleaseWithGC.Load() {
		return false
	}
	out[o] = struct{}{}

	o.lock()
	for _, field := range o.fields {
		if field == nil {
			continue
		}
		if !checkReadyToCollect(field, out) {
			o.unlock()
			return false
		}
	}
	o.unlock()
	return true
}
