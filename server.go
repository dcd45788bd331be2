package rvideo

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/rvideo/rvideo/internal/admission"
	"github.com/rvideo/rvideo/internal/conn"
	"github.com/rvideo/rvideo/internal/registry"
)

// Server owns a stream registry and a TCP listener. The zero value is not
// usable; construct with NewServer.
type Server struct {
	cfg ServerConfig
	reg *registry.Registry
	adm *admission.Semaphore

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a Server with its own stream registry, isolated from
// any other Server in the process. Most programs only need one server and
// can use the package-level CreateStream/Serve functions instead, which
// operate on a lazily initialized default Server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		cfg: cfg,
		reg: registry.New(),
		adm: admission.New(cfg.MaxClients),
	}
}

// CreateStream registers a new stream with this server and returns a
// handle for sending frames to it. It fails with ErrTooManyStreams once
// all 65536 stream ids have been assigned; ids are never reused, so
// deregistering a stream does not free one.
func (s *Server) CreateStream(format Format, width, height uint16) (*Stream, error) {
	impl, err := s.reg.Register(format, width, height)
	if err != nil {
		if errors.Is(err, registry.ErrTooManyStreams) {
			return nil, newError("CreateStream", ErrTooManyStreams, err)
		}
		return nil, newError("CreateStream", ErrIO, err)
	}
	return &Stream{reg: s.reg, impl: impl}, nil
}

// Serve listens on addr and accepts connections until the server is
// shut down or the listener errors. It blocks the calling goroutine;
// callers that want a non-blocking server should run Serve in its own
// goroutine.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return newError("Serve", ErrIO, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	slog.Debug("rvideo server listening", "addr", ln.Addr())

	connCfg := conn.Config{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		AckTimeout:       s.cfg.AckTimeout,
		IdleTakeInterval: s.cfg.IdleTakeInterval,
	}

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return newError("Serve", ErrIO, err)
			}
		}

		if err := s.adm.Acquire(ctx); err != nil {
			nc.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.adm.Release()
			if err := conn.Run(ctx, nc, s.reg, connCfg); err != nil {
				slog.Debug("connection ended", "remote", nc.RemoteAddr(), "err", err)
			}
		}()
	}
}

// Shutdown closes the listening socket and cancels every in-flight
// connection; it blocks until all connection goroutines have returned.
// Shutdown on a Server that was never Served is a no-op.
func (s *Server) Shutdown() {
	s.mu.Lock()
	ln, cancel := s.listener, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
}

// StreamCount returns the number of currently registered streams.
func (s *Server) StreamCount() uint16 { return s.reg.Count() }
