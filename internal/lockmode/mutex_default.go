//go:build !rvideo_lock_spin && !rvideo_lock_pi

package lockmode

import "sync"

// Mutex is the default backend: the runtime's own adaptive-spin mutex.
type Mutex = sync.Mutex

// RWMutex is the default backend: the runtime's own reader/writer mutex.
type RWMutex = sync.RWMutex
