package store

import (
	"sync"
	"time"
)

// IDAllocator hands out collision-free monotonic ids. Ids are seeded from
// wall-clock milliseconds so they read like timestamps, but allocation
// never repeats within a session even when calls land on the same tick.
type IDAllocator struct {
	mu   sync.Mutex
	last int64
	now  func() int64
}

// NewIDAllocator creates an allocator backed by the system clock.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		now: func() int64 { return time.Now().UnixMilli() },
	}
}

// NewIDAllocatorForTests creates an allocator with an injected clock.
func NewIDAllocatorForTests(now func() int64) *IDAllocator {
	return &IDAllocator{now: now}
}

// Next returns the next id, strictly greater than every prior one.
func (a *IDAllocator) Next() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.now()
	if id <= a.last {
		id = a.last + 1
	}
	a.last = id
	return id
}
