// Package registry implements the process-wide mapping from stream id to
// stream handle described in spec.md §4.2: lazily initialized, at most
// 65536 concurrently registered streams, monotonically assigned ids that
// are never reused within one process run.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rvideo/rvideo/internal/lockmode"
	"github.com/rvideo/rvideo/internal/stream"
	"github.com/rvideo/rvideo/internal/wire"
)

// ErrTooManyStreams is returned by Register once all 65536 ids have been
// assigned, whether or not those streams are still registered.
var ErrTooManyStreams = errors.New("registry: too many streams (max 65536)")

// maxStreams is the largest number of concurrently registered streams;
// ids are u16, so the valid range is [0, 65535].
const maxStreams = 1 << 16

// Registry holds the stream_id -> *stream.Stream mapping for one server.
// The registry lock is held only across map mutations, never across I/O or
// frame publication — fan-out happens on the *stream.Stream returned by
// Lookup, outside the registry's lock.
type Registry struct {
	mu      lockmode.RWMutex
	streams map[uint16]*stream.Stream
	nextID  uint32 // wider than uint16 so it can detect exhaustion past 65535
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		streams: make(map[uint16]*stream.Stream),
	}
}

// Register allocates the next free id, creates an empty stream and inserts
// it. It fails with ErrTooManyStreams once 65536 ids have been assigned;
// ids are never reused, so deregistered streams do not free capacity.
func (r *Registry) Register(format wire.Format, width, height uint16) (*stream.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.streams) >= maxStreams {
		return nil, ErrTooManyStreams
	}
	if r.nextID >= maxStreams {
		return nil, ErrTooManyStreams
	}

	id := uint16(r.nextID)
	r.nextID++

	s := stream.New(id, format, width, height)
	r.streams[id] = s

	slog.Debug("stream registered", "stream_id", id, "format", format, "width", width, "height", height)
	return s, nil
}

// Deregister removes a stream from the registry and terminates every
// connected subscriber with "stream gone". Deregistering an id that is not
// (or no longer) present is a benign no-op, never an error.
func (r *Registry) Deregister(id uint16) {
	r.mu.Lock()
	s, ok := r.streams[id]
	if ok {
		delete(r.streams, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	slog.Debug("stream deregistered", "stream_id", id)
}

// Lookup returns the stream for id, if registered.
func (r *Registry) Lookup(id uint16) (*stream.Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[id]
	return s, ok
}

// Count returns the number of currently registered streams, used for the
// GREETINGS message.
func (r *Registry) Count() uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint16(len(r.streams))
}

// String is used by debug logging call sites that print the whole registry.
func (r *Registry) String() string {
	return fmt.Sprintf("registry{streams=%d}", r.Count())
}
