package memory

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a one-word test-and-set lock. It is never recursive: the
// collector acquires object locks in DFS order and releases them in any
// order after a full root scan, so reacquisition from the same goroutine
// would deadlock.
type SpinLock struct {
	flag uint32
}

// Lock spins until the flag transitions 0→1.
func (l *SpinLock) Lock() {
	for !atomic.CompareAndSwapUint32(&l.flag, 0, 1) {
		runtime.Gosched()
	}
}

// Unlock clears the flag.
func (l *SpinLock) Unlock() {
	atomic.StoreUint32(&l.flag, 0)
}
