//go:build linux

package transport

import (
	"errors"
	"net"
	"os"
	"strconv"

	"github.com/godzie44/go-uring/uring"
	"golang.org/x/sys/unix"

	httperrors "github.com/nczempin/httpxfer/errors"
)

// UringTransportV2 implements Transport using godzie44/go-uring for async I/O
type UringTransportV2 struct {
	ring *uring.Ring
	fd   int
	file *os.File
}

// NewUringTransportV2 creates a new TCP transport with io_uring (v2 using godzie44/go-uring)
func NewUringTransportV2() (*UringTransportV2, error) {
	// Create io_uring instance with queue depth of 32
	ring, err := uring.New(32)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringTransportV2{
		ring: ring,
		fd:   -1,
	}, nil
}

// Connect establishes a TCP connection. The connect itself is blocking;
// only reads and writes go through the ring.
func (t *UringTransportV2) Connect(host string, port int) error {
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

	family, sa := unixSockaddr(tcpAddr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		code := httperrors.TransportErrorSocketConnectFailure
		if errors.Is(err, unix.ECONNREFUSED) {
			code = httperrors.TransportErrorConnectionRefused
		}
		return httperrors.NewTransportError(code, "failed to connect to "+addr, err)
	}

	// Set TCP_NODELAY
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}

	t.fd = fd
	t.file = os.NewFile(uintptr(fd), "socket")
	return nil
}

func unixSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa4.Addr[:], ip4)
		return unix.AF_INET, sa4
	}
	sa6 := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa6.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa6
}

// complete submits the queued SQE and returns the completion result.
func (t *UringTransportV2) complete(queueErr error, failure httperrors.TransportError) (int, error) {
	if queueErr != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to queue request",
			queueErr,
		)
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit request",
			err,
		)
	}

	cqe, err := t.ring.WaitCQEvents(1)
	if err != nil {
		return 0, httperrors.NewTransportError(failure, "failed to wait for completion", err)
	}

	if err := cqe.Error(); err != nil {
		t.ring.SeenCQE(cqe)
		return 0, httperrors.NewTransportError(failure, "operation failed", err)
	}

	n := int(cqe.Res)
	t.ring.SeenCQE(cqe)
	return n, nil
}

// Write sends data over the connection using io_uring
func (t *UringTransportV2) Write(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketWriteFailure,
			"not connected",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		queueErr := t.ring.QueueSQE(uring.Write(t.file.Fd(), buf[totalWritten:], 0), 0, 0)
		n, err := t.complete(queueErr, httperrors.TransportErrorSocketWriteFailure)
		if err != nil {
			return totalWritten, err
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
func (t *UringTransportV2) Read(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketReadFailure,
			"not connected",
			nil,
		)
	}

	queueErr := t.ring.QueueSQE(uring.Read(t.file.Fd(), buf, 0), 0, 0)
	n, err := t.complete(queueErr, httperrors.TransportErrorSocketReadFailure)
	if err != nil {
		return 0, err
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
func (t *UringTransportV2) Close() error {
	if t.fd < 0 {
		return nil
	}

	var err error
	if t.file != nil {
		err = t.file.Close()
		t.file = nil
	}
	t.fd = -1

	if err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}

// Destroy cleans up resources including the io_uring instance
func (t *UringTransportV2) Destroy() {
	t.Close()
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
}
