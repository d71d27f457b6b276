//go:build linux

package transport

import (
	"errors"
	"net"
	"strconv"
	"syscall"

	"github.com/iceber/iouring-go"
	sockaddrnet "github.com/libp2p/go-sockaddr/net"

	httperrors "github.com/nczempin/httpxfer/errors"
)

// UringTransport implements Transport using io_uring for async I/O
type UringTransport struct {
	iour   *iouring.IOURing
	fd     int
	closed bool
}

// NewUringTransport creates a new TCP transport with io_uring
func NewUringTransport() (*UringTransport, error) {
	// Create io_uring instance with queue depth of 32
	iour, err := iouring.New(32)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringTransport{
		iour:   iour,
		fd:     -1,
		closed: false,
	}, nil
}

// Connect establishes a TCP connection using io_uring
func (t *UringTransport) Connect(host string, port int) error {
	if t.fd >= 0 {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketConnectFailure,
			"already connected",
			nil,
		)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			"failed to resolve "+addr,
			err,
		)
	}

	sa := sockaddrnet.NetAddrToSockaddr(tcpAddr)
	if sa == nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"unsupported address "+tcpAddr.String(),
			nil,
		)
	}

	fd, err := syscall.Socket(sockaddrnet.NetAddrAF(tcpAddr), syscall.SOCK_STREAM, 0)
	if err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	// Set TCP_NODELAY
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		syscall.Close(fd)
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}

	prepReq, err := iouring.Connect(fd, sa)
	if err != nil {
		syscall.Close(fd)
		return httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to prepare connect request",
			err,
		)
	}

	ch := make(chan iouring.Result, 1)
	if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
		syscall.Close(fd)
		return httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit connect request",
			err,
		)
	}

	// Wait for connect to complete
	result := <-ch
	if _, err := result.ReturnInt(); err != nil {
		syscall.Close(fd)
		code := httperrors.TransportErrorSocketConnectFailure
		if errors.Is(err, syscall.ECONNREFUSED) {
			code = httperrors.TransportErrorConnectionRefused
		}
		return httperrors.NewTransportError(code, "failed to connect to "+addr, err)
	}

	t.fd = fd
	t.closed = false
	return nil
}

// Write sends data over the connection using io_uring
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.fd < 0 || t.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketWriteFailure,
			"not connected",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		ch := make(chan iouring.Result, 1)
		prepReq := iouring.Send(t.fd, buf[totalWritten:], 0)
		if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			code := httperrors.TransportErrorSocketWriteFailure
			if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
				code = httperrors.TransportErrorConnectionClosed
			}
			return totalWritten, httperrors.NewTransportError(code, "write failed", err)
		}

		if n <= 0 {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data from the connection using io_uring
func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.fd < 0 || t.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketReadFailure,
			"not connected",
			nil,
		)
	}

	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Recv(t.fd, buf, 0)
	if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketReadFailure,
			"read failed",
			err,
		)
	}

	if n == 0 && len(buf) > 0 {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed by peer",
			nil,
		)
	}

	return n, nil
}

// Close closes the connection
func (t *UringTransport) Close() error {
	if t.fd < 0 {
		return nil // Already closed or never connected
	}

	fd := t.fd
	t.fd = -1
	t.closed = true
	if err := syscall.Close(fd); err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}

	return nil
}

// Destroy cleans up resources including the io_uring instance
func (t *UringTransport) Destroy() {
	t.Close()
	if t.iour != nil {
		t.iour.Close()
		t.iour = nil
	}
}
