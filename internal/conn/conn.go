// Package conn implements the per-connection state machine described in
// spec.md §4.5: handshake, stream selection, paced frame dispatch with
// ACK gating, and deterministic subscriber teardown.
//
// Go has no analog of tokio's per-await cancellation, so shutdown is wired
// the idiomatic synchronous-Go way instead of spec.md §9's "poll a shared
// flag at every suspension point": a goroutine closes the underlying
// net.Conn when the connection's context is done, which unblocks any
// in-flight Read/Write immediately, and the frame loop additionally checks
// ctx.Err() between iterations so it doesn't re-enter TakeTimeout after
// shutdown.
//
// Each connection is tagged with a random trace id (github.com/google/uuid)
// carried on every log line for that connection, the same way
// stream-capture's RTSP callbacks tag each session with a TraceID.
package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rvideo/rvideo/internal/registry"
	"github.com/rvideo/rvideo/internal/slot"
	"github.com/rvideo/rvideo/internal/wire"
)

// Config bounds the timeouts used during one connection's lifetime. See
// spec.md §9's open question: the ACK timeout is a configuration value,
// not a hard-coded constant.
type Config struct {
	HandshakeTimeout time.Duration
	AckTimeout       time.Duration
	IdleTakeInterval time.Duration
}

// Kind classifies why a connection ended, mirroring the subset of
// rvideo.ErrorKind that a connection can itself produce.
type Kind int

const (
	// KindClosed means the connection's context was cancelled (server
	// shutdown). A peer that closes its end is reported as KindIO.
	KindClosed Kind = iota
	KindStreamNotFound
	KindInvalidFPS
	KindProtocolViolation
	KindIO
	KindTimeout
	KindStreamGone
)

// Error reports why Run returned.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conn: %v", e.Err)
	}
	return "conn: closed"
}

func (e *Error) Unwrap() error { return e.Err }

// Run drives one accepted socket through the full protocol state machine
// until the connection ends, for any reason. It never panics on a
// malformed peer; every fatal condition is returned as an *Error.
func Run(ctx context.Context, nc net.Conn, reg *registry.Registry, cfg Config) error {
	defer nc.Close()
	go func() {
		<-ctx.Done()
		nc.Close()
	}()

	log := slog.With("remote", nc.RemoteAddr(), "trace_id", uuid.New().String())

	if err := writeGreetings(nc, reg, cfg.HandshakeTimeout); err != nil {
		log.Debug("greetings write failed", "err", err)
		return &Error{Kind: KindIO, Err: err}
	}

	streamID, fps, err := readStreamSelect(nc, cfg.HandshakeTimeout)
	if err != nil {
		log.Debug("stream-select read failed", "err", err)
		if errors.Is(err, wire.ErrInvalidFPS) {
			return &Error{Kind: KindInvalidFPS, Err: err}
		}
		return &Error{Kind: KindIO, Err: err}
	}

	st, ok := reg.Lookup(streamID)
	if !ok {
		log.Debug("unknown stream selected", "stream_id", streamID)
		return &Error{Kind: KindStreamNotFound, Err: fmt.Errorf("stream %d not registered", streamID)}
	}

	if err := writeStreamInfo(nc, st.Info(), cfg.HandshakeTimeout); err != nil {
		log.Debug("stream-info write failed", "err", err)
		return &Error{Kind: KindIO, Err: err}
	}

	sl, err := st.Subscribe()
	if err != nil {
		log.Debug("subscribe failed", "err", err)
		return &Error{Kind: KindStreamGone, Err: err}
	}
	defer st.Unsubscribe(sl)

	log.Debug("stream connection established", "stream_id", streamID, "fps", fps)
	return stream(ctx, nc, sl, fps, cfg)
}

func writeGreetings(nc net.Conn, reg *registry.Registry, timeout time.Duration) error {
	buf := wire.EncodeGreetings(reg.Count(), nil)
	return writeAll(nc, buf, timeout)
}

func readStreamSelect(nc net.Conn, timeout time.Duration) (uint16, uint8, error) {
	buf := make([]byte, wire.StreamSelectLen)
	if err := readFull(nc, buf, timeout); err != nil {
		return 0, 0, err
	}
	return wire.DecodeStreamSelect(buf)
}

func writeStreamInfo(nc net.Conn, info wire.StreamInfo, timeout time.Duration) error {
	buf := wire.EncodeStreamInfo(info, nil)
	return writeAll(nc, buf, timeout)
}

// stream runs the STREAMING / AWAIT_ACK loop until the connection ends.
func stream(ctx context.Context, nc net.Conn, sl *slot.Slot, fps uint8, cfg Config) error {
	interval := time.Second / time.Duration(fps)
	var lastSent time.Time

	for {
		if ctx.Err() != nil {
			return &Error{Kind: KindClosed, Err: ctx.Err()}
		}

		if wait := interval - time.Since(lastSent); !lastSent.IsZero() && wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return &Error{Kind: KindClosed, Err: ctx.Err()}
			}
		}

		p, ok, timedOut := sl.TakeTimeout(cfg.IdleTakeInterval)
		if timedOut {
			continue
		}
		if !ok {
			return &Error{Kind: KindStreamGone, Err: errors.New("stream deregistered")}
		}

		if err := writeFrame(nc, p, cfg.AckTimeout); err != nil {
			return err
		}
		lastSent = time.Now()

		if err := readAck(nc, cfg.AckTimeout); err != nil {
			return err
		}
	}
}

func writeFrame(nc net.Conn, p *slot.Payload, timeout time.Duration) error {
	if err := writeAll(nc, wire.EncodeBlockHeader(uint32(len(p.Metadata)), nil), timeout); err != nil {
		return &Error{Kind: KindIO, Err: err}
	}
	if len(p.Metadata) > 0 {
		if err := writeAll(nc, p.Metadata, timeout); err != nil {
			return &Error{Kind: KindIO, Err: err}
		}
	}
	if err := writeAll(nc, wire.EncodeBlockHeader(uint32(len(p.Picture)), nil), timeout); err != nil {
		return &Error{Kind: KindIO, Err: err}
	}
	if len(p.Picture) > 0 {
		if err := writeAll(nc, p.Picture, timeout); err != nil {
			return &Error{Kind: KindIO, Err: err}
		}
	}
	return nil
}

func readAck(nc net.Conn, timeout time.Duration) error {
	buf := make([]byte, 1)
	if err := readFull(nc, buf, timeout); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindIO, Err: err}
	}
	if err := wire.DecodeAck(buf[0]); err != nil {
		return &Error{Kind: KindProtocolViolation, Err: err}
	}
	return nil
}

func writeAll(nc net.Conn, buf []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := nc.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := nc.Write(buf)
	return err
}

func readFull(nc net.Conn, buf []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := io.ReadFull(nc, buf)
	return err
}
