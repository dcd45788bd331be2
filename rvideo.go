// Package rvideo is an in-process real-time video streaming server:
// register one or more streams, hand finished frames to them, and serve a
// binary TCP protocol that lets remote clients select a stream and pull
// frames at a client-chosen frame rate.
//
// The producer side never blocks on a slow client: each subscriber has a
// single-slot, drop-oldest mailbox, and publication is fan-out over those
// mailboxes under a short-held lock (see internal/stream, internal/slot).
// The wire protocol is a small fixed-layout binary handshake followed by
// a metadata-block/picture-block/ACK loop (see internal/wire,
// internal/conn).
//
// Most programs only need one server; CreateStream and Serve operate on
// a lazily initialized package-level default Server, mirroring
// original_source's DEFAULT_SERVER. Programs that need more than one
// server, or custom ServerConfig, should use NewServer directly.
package rvideo

import "sync"

var (
	defaultServerOnce sync.Once
	defaultServer     *Server
)

func defaultServerInstance() *Server {
	defaultServerOnce.Do(func() {
		defaultServer = NewServer(DefaultServerConfig())
	})
	return defaultServer
}

// CreateStream registers a stream with the package-level default server.
func CreateStream(format Format, width, height uint16) (*Stream, error) {
	return defaultServerInstance().CreateStream(format, width, height)
}

// Serve starts the package-level default server's listener on addr. It
// blocks the calling goroutine.
func Serve(addr string) error {
	return defaultServerInstance().Serve(addr)
}
