package server

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/nczempin/httpxfer/protocol"
)

// blockSize is the unit in which file bodies are copied to the connection.
const blockSize = 8192

const (
	StatusOK                  = 200
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusInternalServerError = 500
)

// StatusText returns the reason phrase for the codes this server emits.
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}

// Response is a status line, headers and an optional body. ContentLength is
// -1 when the length is not declared. Every response closes the connection.
type Response struct {
	Code          int
	Headers       protocol.Headers
	ContentLength int64
	Body          io.Reader

	closer io.Closer
}

// Close releases the body source, if it holds one.
func (resp *Response) Close() error {
	if resp.closer == nil {
		return nil
	}
	err := resp.closer.Close()
	resp.closer = nil
	return err
}

// Header formats the status line and header block.
func (resp *Response) Header() []byte {
	headers := make(protocol.Headers, 0, len(resp.Headers)+2)
	headers = append(headers, resp.Headers...)
	if resp.ContentLength >= 0 {
		headers = append(headers, protocol.Header{Key: "Content-Length", Value: strconv.FormatInt(resp.ContentLength, 10)})
	}
	headers = append(headers, protocol.Header{Key: "Connection", Value: "close"})
	return protocol.BuildResponseHeader(resp.Code, StatusText(resp.Code), headers)
}

// WriteTo writes the header block, then the body in blockSize pieces.
// It returns the number of body bytes written.
func (resp *Response) WriteTo(w io.Writer) (int64, error) {
	if _, err := w.Write(resp.Header()); err != nil {
		return 0, err
	}
	if resp.Body == nil {
		return 0, nil
	}

	var written int64
	buf := make([]byte, blockSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// Generate turns a resolved resource into a response.
func Generate(res Resource) *Response {
	switch res.Kind {
	case KindFile:
		return fileResponse(res)
	case KindListing:
		return listingResponse(res)
	case KindServerError:
		return ServerErrorResponse()
	default:
		return NotFoundResponse()
	}
}

func fileResponse(res Resource) *Response {
	f, err := os.Open(res.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NotFoundResponse()
		}
		return ServerErrorResponse()
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return ServerErrorResponse()
	}

	return &Response{
		Code: StatusOK,
		Headers: protocol.Headers{
			{Key: "Content-Type", Value: res.MimeType},
			{Key: "Content-Disposition", Value: contentDisposition(res.Name)},
		},
		ContentLength: info.Size(),
		Body:          io.LimitReader(f, info.Size()),
		closer:        f,
	}
}

// contentDisposition builds an attachment header value. The quoted filename
// is ASCII only; names outside ASCII also get an RFC 5987 filename*.
func contentDisposition(name string) string {
	var quoted strings.Builder
	ascii := true
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			quoted.WriteByte('\\')
			quoted.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			quoted.WriteByte('_')
		case r > 0x7e:
			ascii = false
			quoted.WriteByte('_')
		default:
			quoted.WriteRune(r)
		}
	}

	value := `attachment; filename="` + quoted.String() + `"`
	if ascii {
		return value
	}

	var ext strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isAttrChar(c) {
			ext.WriteByte(c)
		} else {
			fmt.Fprintf(&ext, "%%%02X", c)
		}
	}
	return value + "; filename*=UTF-8''" + ext.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

// listingResponse renders the whole page before anything is sent so the
// length can be declared.
func listingResponse(res Resource) *Response {
	title := html.EscapeString("Index of " + res.Dir)

	var body bytes.Buffer
	body.WriteString(`<!doctype html><html><head><meta charset="utf-8"><title>`)
	body.WriteString(title)
	body.WriteString("</title></head><body>\n<h1>")
	body.WriteString(title)
	body.WriteString("</h1>\n<ul>\n")
	for _, entry := range res.Entries {
		name := html.EscapeString(entry.Name)
		href := html.EscapeString(entry.Href)
		if entry.IsDir {
			fmt.Fprintf(&body, "<li><a href=\"%s\">%s/</a></li>\n", href, name)
		} else {
			fmt.Fprintf(&body, "<li><a href=\"%s\" download>%s</a></li>\n", href, name)
		}
	}
	body.WriteString("</ul>\n</body></html>\n")

	return textResponse(StatusOK, "text/html; charset=utf-8", body.Bytes())
}

// NotFoundResponse is sent for missing paths and rejected traversals.
func NotFoundResponse() *Response {
	return textResponse(StatusNotFound, "text/plain", []byte("file not found\n"))
}

// ServerErrorResponse is sent when the filesystem refuses a read.
func ServerErrorResponse() *Response {
	return textResponse(StatusInternalServerError, "text/plain", []byte("internal server error\n"))
}

// MethodNotAllowedResponse is sent for every method other than GET.
func MethodNotAllowedResponse() *Response {
	return &Response{
		Code:          StatusMethodNotAllowed,
		Headers:       protocol.Headers{{Key: "Allow", Value: protocol.MethodGet}},
		ContentLength: 0,
	}
}

func textResponse(code int, contentType string, body []byte) *Response {
	return &Response{
		Code:          code,
		Headers:       protocol.Headers{{Key: "Content-Type", Value: contentType}},
		ContentLength: int64(len(body)),
		Body:          bytes.NewReader(body),
	}
}
