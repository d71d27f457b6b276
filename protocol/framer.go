package protocol

import (
	"bytes"
	"fmt"
	"io"

	httperrors "github.com/nczempin/httpxfer/errors"
)

const (
	// DefaultHeaderBufferSize is the capacity of the single bounded read.
	DefaultHeaderBufferSize = 4096
	// DefaultChunkSize is the read size used by AccumulatingFramer.
	DefaultChunkSize = 1024
	// DefaultMaxHeaderBytes caps the header block an AccumulatingFramer will buffer.
	DefaultMaxHeaderBytes = 64 << 10

	maxEmptyReads = 100
)

var headerTerminator = []byte("\r\n\r\n")

// FramedMessage is a header block split off the front of a byte stream.
// Header always ends with CRLFCRLF. BodyPrefix holds whatever the same
// read(s) returned past the terminator; callers must consume it before
// reading further from the source.
type FramedMessage struct {
	Header     []byte
	BodyPrefix []byte
}

// BodyPrefixLength is the number of body bytes already read past the header.
func (m *FramedMessage) BodyPrefixLength() int {
	return len(m.BodyPrefix)
}

// FirstLine returns the request or status line without its CRLF.
func (m *FramedMessage) FirstLine() string {
	line := m.Header
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return string(bytes.TrimSuffix(line, []byte("\r")))
}

// Headers parses the header fields that follow the first line.
func (m *FramedMessage) Headers() Headers {
	return ParseHeaders(m.Header)
}

// Framer locates the end of the header block in a byte stream.
type Framer interface {
	ReadHeaderBlock(src io.Reader) (*FramedMessage, error)
}

// SingleShotFramer performs exactly one bounded read. If the terminator is
// not inside that read the message is rejected, even if more bytes would
// have completed it.
type SingleShotFramer struct {
	BufferSize int
}

// ReadHeaderBlock implements Framer.
func (f SingleShotFramer) ReadHeaderBlock(src io.Reader) (*FramedMessage, error) {
	size := f.BufferSize
	if size <= 0 {
		size = DefaultHeaderBufferSize
	}

	buf := make([]byte, size)
	n, err := src.Read(buf)
	if n <= 0 {
		return nil, emptyReadError(err)
	}
	buf = buf[:n]

	end := bytes.Index(buf, headerTerminator)
	if end < 0 {
		return nil, httperrors.NewProtocolError(
			httperrors.ProtocolErrorMalformedHeader,
			fmt.Sprintf("header terminator not found in first %d bytes", n),
		)
	}
	return split(buf, end+len(headerTerminator)), nil
}

// AccumulatingFramer keeps reading until the terminator arrives, the peer
// closes, or MaxHeaderBytes have been buffered.
type AccumulatingFramer struct {
	ChunkSize      int
	MaxHeaderBytes int
}

// ReadHeaderBlock implements Framer.
func (f AccumulatingFramer) ReadHeaderBlock(src io.Reader) (*FramedMessage, error) {
	chunk := f.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	limit := f.MaxHeaderBytes
	if limit <= 0 {
		limit = DefaultMaxHeaderBytes
	}

	buf := make([]byte, 0, chunk)
	tmp := make([]byte, chunk)
	empty := 0
	for {
		n, err := src.Read(tmp)
		if n > 0 {
			empty = 0
			// the terminator may straddle two reads
			from := len(buf) - (len(headerTerminator) - 1)
			if from < 0 {
				from = 0
			}
			buf = append(buf, tmp[:n]...)
			if i := bytes.Index(buf[from:], headerTerminator); i >= 0 {
				return split(buf, from+i+len(headerTerminator)), nil
			}
			if len(buf) >= limit {
				return nil, httperrors.NewProtocolError(
					httperrors.ProtocolErrorMalformedHeader,
					fmt.Sprintf("header block exceeds %d bytes", limit),
				)
			}
		}

		if err != nil {
			if len(buf) == 0 {
				return nil, emptyReadError(err)
			}
			if httperrors.IsConnectionClosed(err) {
				return nil, httperrors.NewProtocolError(
					httperrors.ProtocolErrorMalformedHeader,
					fmt.Sprintf("connection closed after %d bytes, before end of headers", len(buf)),
				)
			}
			return nil, readError(err)
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return nil, readError(io.ErrNoProgress)
			}
		}
	}
}

// NewFramer returns the framing strategy called name: "single" or "accumulate".
func NewFramer(name string) (Framer, error) {
	switch name {
	case "single", "":
		return SingleShotFramer{BufferSize: DefaultHeaderBufferSize}, nil
	case "accumulate":
		return AccumulatingFramer{ChunkSize: DefaultChunkSize, MaxHeaderBytes: DefaultMaxHeaderBytes}, nil
	default:
		return nil, httperrors.NewInvalidArgumentError(fmt.Sprintf("unknown framer %q", name))
	}
}

func split(buf []byte, end int) *FramedMessage {
	return &FramedMessage{
		Header:     buf[:end:end],
		BodyPrefix: buf[end:],
	}
}

func emptyReadError(err error) error {
	if err == nil || httperrors.IsConnectionClosed(err) {
		return httperrors.NewProtocolError(httperrors.ProtocolErrorNoResponse, "peer sent nothing")
	}
	return readError(err)
}

func readError(err error) error {
	if _, ok := httperrors.AsHttpError(err); ok {
		return err
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
}
