// Package admission implements a connection-count semaphore bounding how
// many sockets a server accepts concurrently before handing one off to a
// connection task. This generalizes original_source's semaphore.rs (a
// capacity-bounded permit counter guarded by a mutex/condvar) into the
// idiomatic Go shape: a buffered channel of permits, acquired and released
// via blocking channel ops instead of a hand-rolled condition variable.
package admission

import "context"

// Semaphore bounds concurrent admissions to capacity. The zero value is
// not usable; construct with New.
type Semaphore struct {
	permits chan struct{}
}

// New creates a Semaphore allowing up to capacity concurrent holders.
func New(capacity int) *Semaphore {
	s := &Semaphore{permits: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case <-s.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool. Releasing more times than
// Acquire was called is a caller bug; it panics rather than silently
// growing capacity.
func (s *Semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		panic("admission: Release called without a matching Acquire")
	}
}

// Available reports how many permits are currently free, for
// observability only.
func (s *Semaphore) Available() int {
	return len(s.permits)
}
