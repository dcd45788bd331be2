// Package stream implements the per-stream subscriber set and fan-out
// described in spec.md §4.3/§4.4: one publisher, any number of
// subscribers, each with its own latest-value mailbox so a slow
// subscriber only ever loses frames to drop-oldest, never blocks the
// publisher or any other subscriber.
//
// The design generalizes framebus/internal/bus/bus.go's bus type: that
// bus fans out named *Frame values to named subscribers with a drop
// policy; here subscribers have no identity the stream cares about beyond
// the *slot.Slot handle itself; Subscribe/Unsubscribe is a self-returned
// capability rather than a name.
package stream

import (
	"errors"
	"sync/atomic"

	"github.com/rvideo/rvideo/internal/lockmode"
	"github.com/rvideo/rvideo/internal/slot"
	"github.com/rvideo/rvideo/internal/wire"
)

// ErrClosed is returned by Subscribe once the stream has been closed.
var ErrClosed = errors.New("stream: closed")

// Stream is one registered video stream: immutable format/geometry plus a
// mutable subscriber set.
type Stream struct {
	id     uint16
	format wire.Format
	width  uint16
	height uint16

	mu     lockmode.RWMutex
	subs   map[*slot.Slot]struct{}
	closed bool

	seq uint64
}

// New creates a Stream with no subscribers. format/width/height are fixed
// for the stream's lifetime, matching spec.md §3's immutable StreamInfo.
func New(id uint16, format wire.Format, width, height uint16) *Stream {
	return &Stream{
		id:     id,
		format: format,
		width:  width,
		height: height,
		subs:   make(map[*slot.Slot]struct{}),
	}
}

// ID returns the stream's registry-assigned id.
func (s *Stream) ID() uint16 { return s.id }

// Format returns the stream's pixel/encoding format.
func (s *Stream) Format() wire.Format { return s.format }

// Width returns the stream's frame width in pixels.
func (s *Stream) Width() uint16 { return s.width }

// Height returns the stream's frame height in pixels.
func (s *Stream) Height() uint16 { return s.height }

// Info returns the StreamInfo wire record for this stream, as sent in the
// STREAM-INFO message.
func (s *Stream) Info() wire.StreamInfo {
	return wire.StreamInfo{StreamID: s.id, Format: s.format, Width: s.width, Height: s.height}
}

// Subscribe registers a new subscriber and returns its mailbox. Each
// connection owns exactly one slot; it must call Unsubscribe with the same
// slot when done. Subscribe fails once the stream is closed.
func (s *Stream) Subscribe() (*slot.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sl := slot.New()
	s.subs[sl] = struct{}{}
	return sl, nil
}

// Unsubscribe removes sl from the subscriber set and closes it, waking any
// connection goroutine blocked in Take/TakeTimeout on it. Unsubscribing a
// slot that is not (or no longer) a subscriber is a benign no-op.
func (s *Stream) Unsubscribe(sl *slot.Slot) {
	s.mu.Lock()
	delete(s.subs, sl)
	s.mu.Unlock()
	sl.Close()
}

// Publish fans a new frame out to every current subscriber. The critical
// section is a shared (read) lock held only long enough to snapshot which
// slots are live and push into each — O(N) in subscriber count, never
// blocked by a slow subscriber, since slot.Publish itself never blocks.
func (s *Stream) Publish(metadata, picture []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.subs) == 0 {
		return
	}

	seq := atomic.AddUint64(&s.seq, 1)
	p := &slot.Payload{Metadata: metadata, Picture: picture, Seq: seq}
	for sl := range s.subs {
		sl.Publish(p)
	}
}

// SubscriberCount returns the number of currently subscribed connections,
// used for observability.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close detaches and closes every subscriber's slot and marks the stream
// closed, so subsequent Subscribe calls fail with ErrClosed. Close is
// idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = make(map[*slot.Slot]struct{})
	s.mu.Unlock()

	for sl := range subs {
		sl.Close()
	}
}
