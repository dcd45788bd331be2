package rvideo

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func TestCreateStreamAndSendToZeroSubscribers(t *testing.T) {
	s := NewServer(DefaultServerConfig())
	st, err := s.CreateStream(Luma8, 2, 2)
	if err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}
	if err := st.Send(Frame{Picture: []byte{1, 2, 3, 4}}); err != nil {
		t.Errorf("Send to zero subscribers should succeed, got %v", err)
	}
}

func TestSendRejectsWrongRawPictureLength(t *testing.T) {
	s := NewServer(DefaultServerConfig())
	st, _ := s.CreateStream(Luma8, 2, 2)
	err := st.Send(Frame{Picture: []byte{1, 2, 3}})
	var rerr *Error
	if err == nil {
		t.Fatal("expected an error for a 3-byte picture on a 2x2 Luma8 stream")
	}
	if !errors.As(err, &rerr) || rerr.Kind != ErrInvalidFormat {
		t.Errorf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestSendAllowsArbitraryMjpegLength(t *testing.T) {
	s := NewServer(DefaultServerConfig())
	st, _ := s.CreateStream(Mjpeg, 0, 0)
	if err := st.Send(Frame{Picture: []byte{1, 2, 3, 4, 5}}); err != nil {
		t.Errorf("Mjpeg picture length should be unconstrained, got %v", err)
	}
}

func TestServeAndFullHandshakeOverTCP(t *testing.T) {
	s := NewServer(DefaultServerConfig())
	st, err := s.CreateStream(Luma8, 2, 2)
	if err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(addr) }()
	defer s.Shutdown()

	var cli net.Conn
	for i := 0; i < 50; i++ {
		cli, err = net.DialTimeout("tcp", addr, 20*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("never connected: %v", err)
	}
	defer cli.Close()

	greetings := make([]byte, 3)
	cli.SetDeadline(time.Now().Add(time.Second))
	if _, err := readFull(cli, greetings); err != nil {
		t.Fatalf("reading greetings failed: %v", err)
	}
	if !bytes.Equal(greetings, []byte{0x52, 0x01, 0x00}) {
		t.Fatalf("greetings = %x, want 52 01 00", greetings)
	}

	if _, err := cli.Write([]byte{0x00, 0x00, 30}); err != nil {
		t.Fatalf("writing stream-select failed: %v", err)
	}

	info := make([]byte, 7)
	if _, err := readFull(cli, info); err != nil {
		t.Fatalf("reading stream-info failed: %v", err)
	}
	want := []byte{0x00, 0x00, byte(Luma8), 0x02, 0x00, 0x02, 0x00}
	if !bytes.Equal(info, want) {
		t.Fatalf("stream-info = %x, want %x", info, want)
	}

	if err := st.Send(Frame{Picture: []byte{0xAA, 0xBB, 0xCC, 0xDD}}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	frame := make([]byte, 4+4+4)
	if _, err := readFull(cli, frame); err != nil {
		t.Fatalf("reading frame failed: %v", err)
	}
	if !bytes.Equal(frame, []byte{0, 0, 0, 0, 4, 0, 0, 0, 0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Fatalf("frame = %x", frame)
	}
	if _, err := cli.Write([]byte{0x00}); err != nil {
		t.Fatalf("writing ack failed: %v", err)
	}
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

