package transport

import (
	"errors"
	"io"
	"net"
	"strconv"
	"syscall"

	httperrors "github.com/nczempin/httpxfer/errors"
)

// TcpTransport implements the Transport interface using TCP sockets
type TcpTransport struct {
	conn net.Conn
}

// NewTcpTransport creates a new TcpTransport instance
func NewTcpTransport() *TcpTransport {
	return &TcpTransport{
		conn: nil,
	}
}

// Connect establishes a TCP connection to the specified host and port
func (t *TcpTransport) Connect(host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return classifyDialError(addr, err)
	}

	// Set TCP_NODELAY to disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "failed to set TCP_NODELAY", err)
		}
	}

	t.conn = conn
	return nil
}

// classifyDialError maps a net.Dial failure onto the transport taxonomy.
func classifyDialError(addr string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return httperrors.NewTransportError(httperrors.TransportErrorDnsFailure, "failed to resolve "+addr, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionRefused, "failed to connect to "+addr, err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketConnectFailure, "failed to connect to "+addr, err)
}

// Write sends data over the TCP connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		// Check for broken pipe or connection reset
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "write on closed connection", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// Read receives data from the TCP connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
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

// Close closes the TCP connection
func (t *TcpTransport) Close() error {
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
