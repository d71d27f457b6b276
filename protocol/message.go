package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	httperrors "github.com/nczempin/httpxfer/errors"
)

const (
	Version11 = "HTTP/1.1"
	Version10 = "HTTP/1.0"
	MethodGet = "GET"
	StatusOK  = 200
	crlf      = "\r\n"
)

// Header represents an HTTP header key-value pair
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered header list. Lookups ignore case.
type Headers []Header

// Get returns the first value for key.
func (h Headers) Get(key string) (string, bool) {
	for _, header := range h {
		if strings.EqualFold(header.Key, key) {
			return header.Value, true
		}
	}
	return "", false
}

// ContentLength returns the declared Content-Length, or -1 if it is absent
// or unparseable.
func (h Headers) ContentLength() int64 {
	v, ok := h.Get("Content-Length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// ParseHeaders extracts the header fields of a header block, skipping the
// first (request or status) line. Lines without a colon are ignored.
func ParseHeaders(block []byte) Headers {
	lines := bytes.Split(block, []byte("\n"))
	var headers Headers
	for _, line := range lines[1:] {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			break
		}

		parts := bytes.SplitN(line, []byte(":"), 2)
		if len(parts) == 2 {
			headers = append(headers, Header{
				Key:   strings.TrimSpace(string(parts[0])),
				Value: strings.TrimSpace(string(parts[1])),
			})
		}
	}
	return headers
}

// RequestLine is the first line of a request.
type RequestLine struct {
	Method  string
	Path    string
	Version string
}

// ParseRequestLine splits "METHOD PATH VERSION". The two-token form
// "METHOD PATH" is also accepted and reported as HTTP/1.0.
func ParseRequestLine(line string) (RequestLine, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 3:
		return RequestLine{Method: fields[0], Path: fields[1], Version: fields[2]}, nil
	case 2:
		return RequestLine{Method: fields[0], Path: fields[1], Version: Version10}, nil
	default:
		return RequestLine{}, httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidRequestLine,
			fmt.Sprintf("expected 2 or 3 tokens, got %d", len(fields)),
		)
	}
}

// StatusLine is the first line of a response.
type StatusLine struct {
	Version string
	Code    int
	Reason  string
}

func (s StatusLine) String() string {
	if s.Reason == "" {
		return fmt.Sprintf("%s %d", s.Version, s.Code)
	}
	return fmt.Sprintf("%s %d %s", s.Version, s.Code, s.Reason)
}

// ParseStatusLine parses "HTTP/1.1 200 OK"; the reason phrase may be empty.
func ParseStatusLine(line string) (StatusLine, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return StatusLine{}, httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status line format: %q", line),
		)
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 3 {
		return StatusLine{}, httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status code: %q", parts[1]),
		)
	}

	status := StatusLine{Version: parts[0], Code: code}
	if len(parts) == 3 {
		status.Reason = parts[2]
	}
	return status, nil
}

// HttpRequest represents an outgoing HTTP request
type HttpRequest struct {
	Method  string
	Path    string
	Headers Headers
}

// NewGetRequest builds the single request the downloader ever sends:
// a GET for target's path that asks the server to close afterwards.
func NewGetRequest(target URLTarget) *HttpRequest {
	return &HttpRequest{
		Method: MethodGet,
		Path:   target.Path,
		Headers: Headers{
			{Key: "Host", Value: target.Host},
			{Key: "Connection", Value: "close"},
		},
	}
}

// BuildRequest formats req for the wire.
func BuildRequest(req *HttpRequest) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %s%s", req.Method, req.Path, Version11, crlf)
	for _, header := range req.Headers {
		fmt.Fprintf(&buf, "%s: %s%s", header.Key, header.Value, crlf)
	}
	buf.WriteString(crlf)
	return buf.Bytes()
}

// BuildResponseHeader formats a status line and header block ending in CRLFCRLF.
func BuildResponseHeader(code int, reason string, headers Headers) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s%s", Version11, code, reason, crlf)
	for _, header := range headers {
		fmt.Fprintf(&buf, "%s: %s%s", header.Key, header.Value, crlf)
	}
	buf.WriteString(crlf)
	return buf.Bytes()
}
