//go:build rvideo_lock_pi && !linux

package lockmode

import "sync"

// Mutex falls back to the default backend on platforms without a
// FUTEX_LOCK_PI-capable kernel. Priority inheritance is a Linux-only
// guarantee; operators targeting another OS get best-effort behavior
// instead of a build that fails outright.
type Mutex = sync.Mutex

// RWMutex falls back to the default backend for the same reason as Mutex.
type RWMutex = sync.RWMutex
