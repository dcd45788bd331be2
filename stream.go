package rvideo

import (
	"github.com/rvideo/rvideo/internal/registry"
	internalstream "github.com/rvideo/rvideo/internal/stream"
	"github.com/rvideo/rvideo/internal/wire"
)

// Format is a closed-set pixel/encoding code, bit-exact with spec.md §3.
type Format = wire.Format

// The format codes a StreamInfo may carry.
const (
	Luma8   = wire.Luma8
	Luma16  = wire.Luma16
	LumaA8  = wire.LumaA8
	LumaA16 = wire.LumaA16
	Rgb8    = wire.Rgb8
	Rgb16   = wire.Rgb16
	RgbA8   = wire.RgbA8
	RgbA16  = wire.RgbA16
	Mjpeg   = wire.Mjpeg
)

// StreamInfo is the immutable (id, format, width, height) record sent to
// every client that selects a stream.
type StreamInfo = wire.StreamInfo

// Frame is a transient (metadata, picture) pair handed to Stream.Send.
// Both byte slices are retained by reference into every subscriber's
// slot, never copied, so the caller must not mutate them after Send
// returns.
type Frame struct {
	Metadata []byte
	Picture  []byte
}

// Stream is a handle to one registered video stream. It is safe for
// concurrent use by one producer and any number of readers of its public
// methods; Send must only be called by the single owning producer, per
// spec.md §4.3.
type Stream struct {
	reg  *registry.Registry
	impl *internalstream.Stream
}

// ID returns the registry-assigned stream id.
func (s *Stream) ID() uint16 { return s.impl.ID() }

// Info returns the stream's immutable StreamInfo record.
func (s *Stream) Info() StreamInfo { return s.impl.Info() }

// Send publishes frame to every currently attached subscriber. Sending to
// zero subscribers is legal and cheap: the only cost is the fan-out
// lock's acquire/release. Send validates raw-format picture length
// against width*height*bpp(format) and metadata length against the wire
// format's limit; it never blocks on a subscriber.
func (s *Stream) Send(frame Frame) error {
	if err := validateFrame(s.impl.Format(), s.impl.Width(), s.impl.Height(), frame); err != nil {
		return err
	}
	s.impl.Publish(frame.Metadata, frame.Picture)
	return nil
}

// SubscriberCount reports how many connections currently subscribe to
// this stream. It is observability only — the fan-out code path never
// needs to know counts.
func (s *Stream) SubscriberCount() int { return s.impl.SubscriberCount() }

// Deregister removes the stream from the registry and terminates every
// connected client's session with StreamGone. Deregistering more than
// once is a benign no-op.
func (s *Stream) Deregister() {
	s.reg.Deregister(s.impl.ID())
}

func validateFrame(format Format, width, height uint16, frame Frame) error {
	if uint64(len(frame.Metadata)) > maxBlockLen {
		return newError("Send", ErrInvalidMetadata, nil)
	}
	if uint64(len(frame.Picture)) > maxBlockLen {
		return newError("Send", ErrInvalidFormat, nil)
	}
	bpp, raw := format.BytesPerPixel()
	if !raw {
		return nil
	}
	want := int(width) * int(height) * bpp
	if len(frame.Picture) != want {
		return newError("Send", ErrInvalidFormat, nil)
	}
	return nil
}

// maxBlockLen is the wire format's 2^32-1 byte block length ceiling.
const maxBlockLen = 1<<32 - 1
