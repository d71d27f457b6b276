//go:build !linux

package transport

import (
	httperrors "github.com/nczempin/httpxfer/errors"
)

// io_uring exists only on Linux; elsewhere the uring kinds fail at construction.

func NewUringTransport() (Transport, error) {
	return nil, httperrors.NewTransportError(httperrors.TransportErrorIoUringInit, "io_uring requires linux", nil)
}

func NewUringTransportV2() (Transport, error) {
	return nil, httperrors.NewTransportError(httperrors.TransportErrorIoUringInit, "io_uring requires linux", nil)
}
