package errors

import (
	stderrors "errors"
	"fmt"
	"io"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorFile
	ErrorInvalidArgument
)

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketCreateFailure
	TransportErrorSocketConnectFailure
	TransportErrorConnectionRefused
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorDnsFailure
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorSocketCreateFailure:
		return "socket creation failed"
	case TransportErrorSocketConnectFailure:
		return "socket connection failed"
	case TransportErrorConnectionRefused:
		return "connection refused"
	case TransportErrorSocketReadFailure:
		return "socket read failed"
	case TransportErrorSocketWriteFailure:
		return "socket write failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorDnsFailure:
		return "host not found"
	case TransportErrorIoUringInit:
		return "io_uring initialization failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submit failed"
	default:
		return fmt.Sprintf("transport error %d", int(e))
	}
}

// ProtocolError represents protocol-layer specific errors
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorMalformedURL
	ProtocolErrorNoResponse
	ProtocolErrorMalformedHeader
	ProtocolErrorInvalidStatusLine
	ProtocolErrorInvalidRequestLine
	ProtocolErrorStatus
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorMalformedURL:
		return "malformed URL"
	case ProtocolErrorNoResponse:
		return "no response"
	case ProtocolErrorMalformedHeader:
		return "malformed header"
	case ProtocolErrorInvalidStatusLine:
		return "invalid status line"
	case ProtocolErrorInvalidRequestLine:
		return "invalid request line"
	case ProtocolErrorStatus:
		return "unexpected status"
	default:
		return fmt.Sprintf("protocol error %d", int(e))
	}
}

// FileError represents local filesystem errors on the download side
type FileError int

const (
	FileErrorNone FileError = iota
	FileErrorOutputCreate
	FileErrorOutputWrite
)

func (e FileError) String() string {
	switch e {
	case FileErrorOutputCreate:
		return "cannot create output file"
	case FileErrorOutputWrite:
		return "cannot write output file"
	default:
		return fmt.Sprintf("file error %d", int(e))
	}
}

// HttpError is the main error type for the transfer programs
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	FileErr       FileError
	StatusCode    int
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("transport error: %s", e.TransportErr)
	case ErrorProtocol:
		if e.ProtocolErr == ProtocolErrorStatus {
			typeStr = fmt.Sprintf("server error: status %d", e.StatusCode)
		} else {
			typeStr = fmt.Sprintf("protocol error: %s", e.ProtocolErr)
		}
	case ErrorFile:
		typeStr = fmt.Sprintf("file error: %s", e.FileErr)
	case ErrorInvalidArgument:
		typeStr = "invalid argument"
	default:
		typeStr = "unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewStatusError reports a response whose status code was not 200.
// The reason phrase is kept as the message.
func NewStatusError(code int, reason string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: ProtocolErrorStatus,
		StatusCode:  code,
		Message:     reason,
	}
}

// NewFileError creates a new local file error
func NewFileError(err FileError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorFile,
		FileErr:       err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// AsHttpError finds the first *HttpError in err's chain.
func AsHttpError(err error) (*HttpError, bool) {
	var httpErr *HttpError
	if stderrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsTransport reports whether err carries the given transport error code.
func IsTransport(err error, code TransportError) bool {
	httpErr, ok := AsHttpError(err)
	return ok && httpErr.Type == ErrorTransport && httpErr.TransportErr == code
}

// IsProtocol reports whether err carries the given protocol error code.
func IsProtocol(err error, code ProtocolError) bool {
	httpErr, ok := AsHttpError(err)
	return ok && httpErr.Type == ErrorProtocol && httpErr.ProtocolErr == code
}

// IsFile reports whether err carries the given file error code.
func IsFile(err error, code FileError) bool {
	httpErr, ok := AsHttpError(err)
	return ok && httpErr.Type == ErrorFile && httpErr.FileErr == code
}

// IsConnectionClosed reports whether err means the peer closed the stream,
// either as a raw io.EOF or as a transport ConnectionClosed error.
func IsConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, io.EOF) || IsTransport(err, TransportErrorConnectionClosed)
}
