package conn

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rvideo/rvideo/internal/registry"
	"github.com/rvideo/rvideo/internal/wire"
)

func testConfig() Config {
	return Config{
		HandshakeTimeout: time.Second,
		AckTimeout:       time.Second,
		IdleTakeInterval: 20 * time.Millisecond,
	}
}

// TestHandshakeAndOneFrame exercises spec.md §8 scenario 1 end to end over
// an in-memory pipe.
func TestHandshakeAndOneFrame(t *testing.T) {
	reg := registry.New()
	st, err := reg.Register(wire.Luma8, 2, 2)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, server, reg, testConfig()) }()

	greetings := make([]byte, wire.GreetingsLen)
	mustRead(t, client, greetings)
	if !bytes.Equal(greetings, []byte{0x52, 0x01, 0x00}) {
		t.Fatalf("greetings = %x, want 52 01 00", greetings)
	}

	sel, err := wire.EncodeStreamSelect(st.ID(), 30, nil)
	if err != nil {
		t.Fatalf("EncodeStreamSelect failed: %v", err)
	}
	mustWrite(t, client, sel)

	info := make([]byte, wire.StreamInfoLen)
	mustRead(t, client, info)
	want := wire.EncodeStreamInfo(wire.StreamInfo{StreamID: st.ID(), Format: wire.Luma8, Width: 2, Height: 2}, nil)
	if !bytes.Equal(info, want) {
		t.Fatalf("stream-info = %x, want %x", info, want)
	}

	st.Publish(nil, []byte{0xAA, 0xBB, 0xCC, 0xDD})

	metaLen := make([]byte, wire.BlockHeaderLen)
	mustRead(t, client, metaLen)
	if binary.LittleEndian.Uint32(metaLen) != 0 {
		t.Fatalf("metadata length = %x, want 0", metaLen)
	}

	picHeader := make([]byte, wire.BlockHeaderLen)
	mustRead(t, client, picHeader)
	if binary.LittleEndian.Uint32(picHeader) != 4 {
		t.Fatalf("picture length = %x, want 4", picHeader)
	}
	pic := make([]byte, 4)
	mustRead(t, client, pic)
	if !bytes.Equal(pic, []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Fatalf("picture = %x, want aabbccdd", pic)
	}

	mustWrite(t, client, []byte{0x00})

	cancel()
	client.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run never returned after cancellation")
	}
}

// TestUnknownStreamClosesWithoutStreamInfo covers scenario 3: selecting an
// unregistered id gets no STREAM-INFO and the connection is closed.
func TestUnknownStreamClosesWithoutStreamInfo(t *testing.T) {
	reg := registry.New()
	if _, err := reg.Register(wire.Luma8, 2, 2); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, server, reg, testConfig()) }()

	greetings := make([]byte, wire.GreetingsLen)
	mustRead(t, client, greetings)

	sel, _ := wire.EncodeStreamSelect(5, 30, nil)
	mustWrite(t, client, sel)

	select {
	case err := <-done:
		cerr, ok := err.(*Error)
		if !ok || cerr.Kind != KindStreamNotFound {
			t.Fatalf("Run() = %v, want KindStreamNotFound", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run never returned for an unknown stream id")
	}
}

// TestBadAckClosesConnection covers scenario 4.
func TestBadAckClosesConnection(t *testing.T) {
	reg := registry.New()
	st, _ := reg.Register(wire.Luma8, 1, 1)

	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, server, reg, testConfig()) }()

	mustRead(t, client, make([]byte, wire.GreetingsLen))
	sel, _ := wire.EncodeStreamSelect(st.ID(), 30, nil)
	mustWrite(t, client, sel)
	mustRead(t, client, make([]byte, wire.StreamInfoLen))

	st.Publish(nil, []byte{1})
	mustRead(t, client, make([]byte, wire.BlockHeaderLen))
	mustRead(t, client, make([]byte, wire.BlockHeaderLen))
	mustRead(t, client, make([]byte, 1))

	mustWrite(t, client, []byte{0x01})

	select {
	case err := <-done:
		cerr, ok := err.(*Error)
		if !ok || cerr.Kind != KindProtocolViolation {
			t.Fatalf("Run() = %v, want KindProtocolViolation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run never returned on a bad ACK")
	}
}

// TestDeregisterDuringStreamingEndsWithStreamGone covers scenario 6.
func TestDeregisterDuringStreamingEndsWithStreamGone(t *testing.T) {
	reg := registry.New()
	st, _ := reg.Register(wire.Luma8, 1, 1)

	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, server, reg, testConfig()) }()

	mustRead(t, client, make([]byte, wire.GreetingsLen))
	sel, _ := wire.EncodeStreamSelect(st.ID(), 30, nil)
	mustWrite(t, client, sel)
	mustRead(t, client, make([]byte, wire.StreamInfoLen))

	reg.Deregister(st.ID())

	select {
	case err := <-done:
		cerr, ok := err.(*Error)
		if !ok || cerr.Kind != KindStreamGone {
			t.Fatalf("Run() = %v, want KindStreamGone", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run never returned after deregistration")
	}
}

func mustRead(t *testing.T, c net.Conn, buf []byte) {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
}

func mustWrite(t *testing.T, c net.Conn, buf []byte) {
	t.Helper()
	c.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := c.Write(buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
