// Package lockmode is the real-time-safe locking façade described in
// spec.md §4.7: a uniform Mutex/RWMutex contract with three compile-time
// selected backends, so the registry and subscriber-set critical sections
// never need to know which one is active.
//
// Exactly one backend is compiled in per build, selected with build tags:
//
//   - (default, no tag): a standard sync.Mutex/sync.RWMutex. Adaptive
//     spin + futex-park, Go's normal fast path.
//   - `-tags rvideo_lock_spin`: a spin-free fork that bounds its busy-wait
//     and parks on a condition variable rather than spinning unboundedly, suitable
//     for threads under a real-time scheduling policy on a general-purpose
//     kernel.
//   - `-tags rvideo_lock_pi`: a kernel-assisted priority-inheritance mutex
//     on Linux (FUTEX_LOCK_PI/FUTEX_UNLOCK_PI), eliminating unbounded
//     priority inversion when the producer runs at a higher scheduling
//     priority than some subscriber connections. Falls back to the
//     default backend on non-Linux targets.
//
// All three expose the same Mutex/RWMutex contract. Critical sections
// throughout rvideo are short — map lookups, subscriber set updates, slot
// cell swaps — so even the default backend behaves boundedly in practice;
// the alternate backends exist for operators who need a harder guarantee.
package lockmode
