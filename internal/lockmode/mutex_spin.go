//go:build rvideo_lock_spin

package lockmode

import (
	"runtime"
	"sync"
)

// spinLimit bounds the number of busy-wait iterations a contended acquirer
// performs before parking. Unbounded spinning is what this backend exists
// to avoid: a goroutine pinned to a real-time scheduling priority must not
// starve the CPU a lower-priority lock holder needs in order to run and
// release the lock.
const spinLimit = 100

// Mutex is a bounded-spin exclusive lock: Lock spins for at most spinLimit
// iterations, each a brief check of the locked flag under an internal
// sync.Mutex followed by a yield, then falls back to parking on
// a condition variable rather than spinning further.
type Mutex struct {
	once   sync.Once
	mu     sync.Mutex
	cond   *sync.Cond
	locked bool
}

func (m *Mutex) ensure() {
	m.once.Do(func() { m.cond = sync.NewCond(&m.mu) })
}

// Lock acquires the mutex.
func (m *Mutex) Lock() {
	m.ensure()
	for i := 0; i < spinLimit; i++ {
		m.mu.Lock()
		if !m.locked {
			m.locked = true
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		runtime.Gosched()
	}
	m.mu.Lock()
	for m.locked {
		m.cond.Wait()
	}
	m.locked = true
	m.mu.Unlock()
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	m.locked = false
	m.mu.Unlock()
	m.cond.Signal()
}

// RWMutex is a bounded-spin reader/writer lock with the same spin-then-park
// policy as Mutex. writer is true while a writer holds exclusive access;
// a writer that is still waiting for readers to leave does not stop new
// readers from being admitted. readers counts active shared holders.
type RWMutex struct {
	once    sync.Once
	mu      sync.Mutex
	cond    *sync.Cond
	writer  bool
	readers int
}

func (rw *RWMutex) ensure() {
	rw.once.Do(func() { rw.cond = sync.NewCond(&rw.mu) })
}

// Lock acquires the lock for exclusive (writer) access.
func (rw *RWMutex) Lock() {
	rw.ensure()
	for i := 0; i < spinLimit; i++ {
		rw.mu.Lock()
		if !rw.writer && rw.readers == 0 {
			rw.writer = true
			rw.mu.Unlock()
			return
		}
		rw.mu.Unlock()
		runtime.Gosched()
	}
	rw.mu.Lock()
	for rw.writer || rw.readers > 0 {
		rw.cond.Wait()
	}
	rw.writer = true
	rw.mu.Unlock()
}

// Unlock releases an exclusive (writer) lock.
func (rw *RWMutex) Unlock() {
	rw.mu.Lock()
	rw.writer = false
	rw.mu.Unlock()
	rw.cond.Broadcast()
}

// RLock acquires the lock for shared (reader) access.
func (rw *RWMutex) RLock() {
	rw.ensure()
	for i := 0; i < spinLimit; i++ {
		rw.mu.Lock()
		if !rw.writer {
			rw.readers++
			rw.mu.Unlock()
			return
		}
		rw.mu.Unlock()
		runtime.Gosched()
	}
	rw.mu.Lock()
	for rw.writer {
		rw.cond.Wait()
	}
	rw.readers++
	rw.mu.Unlock()
}

// RUnlock releases a shared (reader) lock.
func (rw *RWMutex) RUnlock() {
	rw.mu.Lock()
	rw.readers--
	empty := rw.readers == 0
	rw.mu.Unlock()
	if empty {
		rw.cond.Broadcast()
	}
}
