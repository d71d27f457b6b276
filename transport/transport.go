package transport

import (
	"fmt"

	httperrors "github.com/nczempin/httpxfer/errors"
)

// Transport defines the interface for network I/O operations.
// Implementations include TCP, Unix domain sockets and two io_uring backends.
type Transport interface {
	// Connect establishes a connection to the specified host and port.
	// For Unix sockets the dial target is fixed at construction and host is
	// only used for logging.
	Connect(host string, port int) error

	// Write sends data to the connected peer.
	// Returns the number of bytes written or an error.
	Write(buf []byte) (int, error)

	// Read receives data from the connected peer.
	// A peer close is reported as TransportErrorConnectionClosed.
	Read(buf []byte) (int, error)

	// Close closes the connection.
	Close() error
}

// Destroyer is implemented by transports that own resources beyond the
// connection itself, such as an io_uring instance.
type Destroyer interface {
	Destroy()
}

// Kind names a transport implementation selectable from the command line.
type Kind string

const (
	KindTcp    Kind = "tcp"
	KindUnix   Kind = "unix"
	KindUring  Kind = "uring"
	KindUring2 Kind = "uring2"
)

// New builds the transport named by kind. socketPath is required for KindUnix
// and ignored otherwise.
func New(kind Kind, socketPath string) (Transport, error) {
	switch kind {
	case KindTcp, "":
		return NewTcpTransport(), nil
	case KindUnix:
		if socketPath == "" {
			return nil, httperrors.NewInvalidArgumentError("unix transport needs a socket path")
		}
		return NewUnixTransport(socketPath), nil
	case KindUring:
		t, err := NewUringTransport()
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindUring2:
		t, err := NewUringTransportV2()
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, httperrors.NewInvalidArgumentError(fmt.Sprintf("unknown transport %q", kind))
	}
}

// Release closes t and frees any extra resources it holds.
func Release(t Transport) {
	if d, ok := t.(Destroyer); ok {
		d.Destroy()
		return
	}
	t.Close()
}
