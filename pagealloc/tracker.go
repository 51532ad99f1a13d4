package pagealloc

import "sync/atomic"

// Tracker counts pages that are currently alive, i.e. pages constructed by
// some allocator whose last handle has not been released yet. It is safe
// for concurrent use from arbitrary goroutines.
//
// The count is advisory telemetry for an external metrics collector;
// allocators never consult it to admit or reject requests. Allocators
// share the process-wide AllocatedPages instance by default, while tests
// may create private trackers to observe their own allocations in
// isolation.
type Tracker struct {
	count int64
}

// AllocatedPages is the process-wide tracker used by allocators created
// without an explicit one.
var AllocatedPages = NewTracker()

// NewTracker creates a tracker with a zero count.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Get provides the number of currently live pages.
func (t *Tracker) Get() int64 {
	return atomic.LoadInt64(&t.count)
}

func (t *Tracker) inc() {
	atomic.AddInt64(&t.count, 1)
}

func (t *Tracker) dec() {
	atomic.AddInt64(&t.count, -1)
}
