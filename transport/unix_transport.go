package transport

import (
	"errors"
	"io"
	"net"
	"syscall"

	httperrors "github.com/nczempin/httpxfer/errors"
)

// UnixTransport implements the Transport interface using Unix domain sockets.
// It lets the downloader talk to a server listening on a socket file while the
// request still carries the URL's host in its Host header.
type UnixTransport struct {
	path string
	conn net.Conn
}

// NewUnixTransport creates a new UnixTransport that dials path on Connect
func NewUnixTransport(path string) *UnixTransport {
	return &UnixTransport{
		path: path,
		conn: nil,
	}
}

// Connect establishes a Unix domain socket connection.
// host and port are ignored; the socket path was fixed by NewUnixTransport.
func (t *UnixTransport) Connect(host string, port int) error {
	conn, err := net.Dial("unix", t.path)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return httperrors.NewTransportError(httperrors.TransportErrorConnectionRefused, "failed to connect to "+t.path, err)
		}
		return httperrors.NewTransportError(httperrors.TransportErrorSocketConnectFailure, "failed to connect to "+t.path, err)
	}

	t.conn = conn
	return nil
}

// Write sends data over the Unix domain socket
func (t *UnixTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "write on closed connection", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// Read receives data from the Unix domain socket
func (t *UnixTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "not connected", nil)
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

// Close closes the Unix domain socket connection
func (t *UnixTransport) Close() error {
	if t.conn == nil {
		return nil // Idempotent close
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "close failed", err)
	}

	return nil
}
