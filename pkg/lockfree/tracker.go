package lockfree

import (
	"sync/atomic"
	"time"

	"github.com/orneryd/tierdb/pkg/decay"
)

// AccessTracker counts accesses to one record and remembers the last one.
type AccessTracker struct {
	count      atomic.Uint64
	lastAccess atomic.Int64 // unix millis
}

// NewAccessTracker returns a tracker with the creation time as its last
// access.
func NewAccessTracker() *AccessTracker {
	t := &AccessTracker{}
	t.lastAccess.Store(time.Now().UnixMilli())
	return t
}

// RecordAccess counts one access at the current time.
func (t *AccessTracker) RecordAccess() {
	t.count.Add(1)
	t.lastAccess.Store(time.Now().UnixMilli())
}

// AccessCount returns the number of recorded accesses.
func (t *AccessTracker) AccessCount() uint64 { return t.count.Load() }

// LastAccess returns the time of the last access.
func (t *AccessTracker) LastAccess() time.Time {
	return time.UnixMilli(t.lastAccess.Load())
}

// Access returns the tracker state in the form the decay scorer reads.
func (t *AccessTracker) Access(class decay.Class) decay.Access {
	return decay.Access{
		Class:       class,
		LastAccess:  t.LastAccess(),
		AccessCount: t.AccessCount(),
	}
}
