// Package rvclient is a minimal synchronous client for rvideo's wire
// protocol, intended for tests and small demos — not a CLI, and not part
// of the server's public surface. It is grounded on original_source's
// synchronous Client (src/client.rs: connect, select_stream, then iterate
// frames), adapted to Go's error-return idiom instead of an Iterator, and
// to send the ACK byte the frame loop requires, which the Rust client
// never did.
package rvclient

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rvideo/rvideo/internal/wire"
)

// Client is a connected rvideo session, ready to select a stream and pull
// frames one at a time.
type Client struct {
	conn             net.Conn
	timeout          time.Duration
	streamsAvailable uint16
	ready            bool
}

// Connect dials addr and reads the server's GREETINGS.
func Connect(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("rvclient: connect: %w", err)
	}
	c := &Client{conn: conn, timeout: timeout}

	buf := make([]byte, wire.GreetingsLen)
	if err := c.readFull(buf); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rvclient: reading greetings: %w", err)
	}
	if buf[0] != 'R' {
		conn.Close()
		return nil, fmt.Errorf("rvclient: bad greeting magic byte %#x", buf[0])
	}
	c.streamsAvailable = uint16(buf[1]) | uint16(buf[2])<<8
	return c, nil
}

// StreamsAvailable returns the server's advertised stream count from
// GREETINGS.
func (c *Client) StreamsAvailable() uint16 { return c.streamsAvailable }

// SelectStream sends STREAM-SELECT and returns the server's STREAM-INFO.
// After this call succeeds the client is ready to pull frames with Next.
func (c *Client) SelectStream(streamID uint16, fps uint8) (wire.StreamInfo, error) {
	buf, err := wire.EncodeStreamSelect(streamID, fps, nil)
	if err != nil {
		return wire.StreamInfo{}, fmt.Errorf("rvclient: encoding stream-select: %w", err)
	}
	if err := c.writeAll(buf); err != nil {
		return wire.StreamInfo{}, fmt.Errorf("rvclient: writing stream-select: %w", err)
	}

	infoBuf := make([]byte, wire.StreamInfoLen)
	if err := c.readFull(infoBuf); err != nil {
		return wire.StreamInfo{}, fmt.Errorf("rvclient: reading stream-info: %w", err)
	}
	info, err := wire.DecodeStreamInfo(infoBuf)
	if err != nil {
		return wire.StreamInfo{}, fmt.Errorf("rvclient: decoding stream-info: %w", err)
	}
	if info.StreamID != streamID {
		return wire.StreamInfo{}, fmt.Errorf("rvclient: server returned stream id %d, selected %d", info.StreamID, streamID)
	}
	c.ready = true
	return info, nil
}

// Frame is one (metadata, picture) pair pulled from the connection.
type Frame struct {
	Metadata []byte
	Picture  []byte
}

// Next reads the next frame, then sends the ACK byte that authorizes the
// server to send another. It must only be called after a successful
// SelectStream.
func (c *Client) Next() (Frame, error) {
	if !c.ready {
		return Frame{}, fmt.Errorf("rvclient: Next called before SelectStream")
	}

	metaLen, err := c.readBlockHeader()
	if err != nil {
		return Frame{}, fmt.Errorf("rvclient: reading metadata header: %w", err)
	}
	var metadata []byte
	if metaLen > 0 {
		metadata = make([]byte, metaLen)
		if err := c.readFull(metadata); err != nil {
			return Frame{}, fmt.Errorf("rvclient: reading metadata: %w", err)
		}
	}

	picLen, err := c.readBlockHeader()
	if err != nil {
		return Frame{}, fmt.Errorf("rvclient: reading picture header: %w", err)
	}
	picture := make([]byte, picLen)
	if err := c.readFull(picture); err != nil {
		return Frame{}, fmt.Errorf("rvclient: reading picture: %w", err)
	}

	if err := c.writeAll([]byte{wire.EncodeAck()}); err != nil {
		return Frame{}, fmt.Errorf("rvclient: writing ack: %w", err)
	}

	return Frame{Metadata: metadata, Picture: picture}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) readBlockHeader() (uint32, error) {
	buf := make([]byte, wire.BlockHeaderLen)
	if err := c.readFull(buf); err != nil {
		return 0, err
	}
	return wire.DecodeBlockHeader(buf)
}

func (c *Client) readFull(buf []byte) error {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	_, err := io.ReadFull(c.conn, buf)
	return err
}

func (c *Client) writeAll(buf []byte) error {
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(buf)
	return err
}
