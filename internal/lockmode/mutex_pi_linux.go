//go:build rvideo_lock_pi && linux

package lockmode

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futexWaiters is the FUTEX_WAITERS bit the kernel sets in the futex word
// to record that a lock owner must go through the kernel (FUTEX_UNLOCK_PI)
// to release, rather than a plain store. See futex(2) and the PI protocol
// described there.
const futexWaiters = 0x80000000

// Mutex is a kernel-assisted priority-inheritance mutex: contended
// acquisition and release go through FUTEX_LOCK_PI/FUTEX_UNLOCK_PI, so the
// kernel temporarily raises the lock holder's scheduling priority to that
// of the highest-priority waiter, eliminating unbounded priority inversion
// between a real-time producer and a lower-priority lock holder.
//
// word holds 0 when unlocked, or the owning thread's tid (OR'd with
// futexWaiters if a waiter is parked) when locked, per the futex PI wire
// protocol.
type Mutex struct {
	word uint32
}

// Lock acquires the mutex, taking the fast uncontended path with a single
// CAS and falling back to the kernel's PI-aware blocking path otherwise.
func (m *Mutex) Lock() {
	tid := uint32(unix.Gettid())
	if atomic.CompareAndSwapUint32(&m.word, 0, tid) {
		return
	}
	for {
		_, _, errno := unix.Syscall(unix.SYS_FUTEX, uintptr(unsafe.Pointer(&m.word)), uintptr(unix.FUTEX_LOCK_PI), 0, 0, 0, 0)
		switch errno {
		case 0:
			return
		case unix.EAGAIN, unix.EINTR:
			continue
		default:
			// The kernel call failed for a reason a userspace mutex can't
			// recover from (e.g. ENOSYS on a kernel without PI futex
			// support). Fall back to spinning on the CAS rather than
			// panicking a media server over a locking backend.
			if atomic.CompareAndSwapUint32(&m.word, 0, tid) {
				return
			}
		}
	}
}

// Unlock releases the mutex, taking the fast path when no waiter is
// parked and the kernel's unlock path otherwise.
func (m *Mutex) Unlock() {
	tid := uint32(unix.Gettid())
	if atomic.CompareAndSwapUint32(&m.word, tid, 0) {
		return
	}
	unix.Syscall(unix.SYS_FUTEX, uintptr(unsafe.Pointer(&m.word)), uintptr(unix.FUTEX_UNLOCK_PI), 0, 0, 0, 0)
}

// RWMutex layers reader/writer semantics on top of a single PI Mutex: the
// PI mutex serializes writers and is also what a writer blocks on, so a
// writer waiting behind a lower-priority reader still benefits from
// priority inheritance on the primitive that matters most in this server —
// the registry and subscriber-set mutation path is always a writer.
// Readers are tracked with a plain counter guarded by the same PI mutex;
// the shared (read) path is intentionally not PI-boosted, since spec.md's
// fan-out critical sections are already O(1) per subscriber and held only
// for a pointer assignment.
type RWMutex struct {
	writer  Mutex
	readers int32
	drained sync.Mutex
	cond    *sync.Cond
	once    sync.Once
}

func (rw *RWMutex) ensure() {
	rw.once.Do(func() { rw.cond = sync.NewCond(&rw.drained) })
}

// Lock acquires the lock for exclusive (writer) access, then waits for any
// in-flight readers to finish.
func (rw *RWMutex) Lock() {
	rw.ensure()
	rw.writer.Lock()
	rw.drained.Lock()
	for atomic.LoadInt32(&rw.readers) > 0 {
		rw.cond.Wait()
	}
	rw.drained.Unlock()
}

// Unlock releases an exclusive (writer) lock.
func (rw *RWMutex) Unlock() {
	rw.writer.Unlock()
}

// RLock acquires the lock for shared (reader) access. It takes the writer
// PI mutex only to serialize against a concurrent writer's admission
// check, then releases it immediately — readers never hold it while doing
// their own work.
func (rw *RWMutex) RLock() {
	rw.ensure()
	rw.writer.Lock()
	atomic.AddInt32(&rw.readers, 1)
	rw.writer.Unlock()
}

// RUnlock releases a shared (reader) lock.
func (rw *RWMutex) RUnlock() {
	if atomic.AddInt32(&rw.readers, -1) == 0 {
		rw.drained.Lock()
		rw.cond.Broadcast()
		rw.drained.Unlock()
	}
}
