package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpxfer/protocol"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ErrServerClosed is returned by Serve when Close was called before it started.
var ErrServerClosed = errors.New("server closed")

// Server accepts connections one at a time and answers a single GET on each.
// A slow client holds up everyone queued behind it unless ReadTimeout is set.
type Server struct {
	Resolver    *Resolver
	Framer      protocol.Framer
	Logger      zerolog.Logger
	ReadTimeout time.Duration // zero means no deadline

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// New returns a server for resolver using the single-shot framer.
func New(resolver *Resolver) *Server {
	return &Server{
		Resolver: resolver,
		Framer:   protocol.SingleShotFramer{BufferSize: protocol.DefaultHeaderBufferSize},
		Logger:   zerolog.Nop(),
	}
}

// ListenAndServe listens on network ("tcp" or "unix") and addr, then serves.
func (s *Server) ListenAndServe(network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln until Close is called, in which case it
// returns nil. Accept errors are retried with a growing pause and
// per-connection failures never end the loop.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.Logger.Info().Str("addr", ln.Addr().String()).Str("root", s.Resolver.Root()).Msg("serving")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			// errors such as EMFILE are retried, never fatal
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			s.Logger.Warn().Err(err).Dur("retry", backoff).Msg("accept failed")
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.handle(conn)
	}
}

// Addr returns the listener address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the accept loop. The connection being served, if any, is
// allowed to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	if s.ReadTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			s.Logger.Debug().Err(err).Str("remote", remote).Msg("dropping connection")
			return
		}
	}

	msg, err := s.Framer.ReadHeaderBlock(conn)
	if err != nil {
		s.Logger.Debug().Err(err).Str("remote", remote).Msg("dropping connection")
		return
	}
	reqLine, err := protocol.ParseRequestLine(msg.FirstLine())
	if err != nil {
		s.Logger.Debug().Err(err).Str("remote", remote).Msg("dropping connection")
		return
	}

	var resp *Response
	kind := "-"
	if reqLine.Method != protocol.MethodGet {
		resp = MethodNotAllowedResponse()
	} else {
		res := s.Resolver.Resolve(reqLine.Path)
		kind = res.Kind.String()
		if res.Err != nil {
			s.Logger.Warn().Err(res.Err).Str("path", reqLine.Path).Msg("resolve failed")
		}
		resp = Generate(res)
	}
	defer resp.Close()

	n, err := resp.WriteTo(conn)
	event := s.Logger.Info()
	if err != nil {
		event = s.Logger.Warn().Err(err)
	}
	event.Str("remote", remote).
		Str("method", reqLine.Method).
		Str("path", reqLine.Path).
		Str("resource", kind).
		Int("status", resp.Code).
		Int64("bytes", n).
		Msg("request")
}
