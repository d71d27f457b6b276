package client

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	httperrors "github.com/nczempin/httpxfer/errors"
	"github.com/nczempin/httpxfer/protocol"
	"github.com/nczempin/httpxfer/transport"
)

const (
	// IndexFilename is used when the URL path names a directory.
	IndexFilename = "index.html"

	bodyBufferSize = 2048
)

// Downloader fetches one URL per call over its transport and saves the body
// to OutputDir. Nothing is retried.
type Downloader struct {
	transport transport.Transport

	Framer    protocol.Framer
	OutputDir string
	Logger    zerolog.Logger
}

// Result describes a completed download.
type Result struct {
	Target   protocol.URLTarget
	Filename string // path of the written file
	Status   protocol.StatusLine
	Headers  protocol.Headers
	Bytes    int64
}

// NewDownloader creates a downloader on t using the single-shot framer.
func NewDownloader(t transport.Transport) *Downloader {
	return &Downloader{
		transport: t,
		Framer:    protocol.SingleShotFramer{BufferSize: protocol.DefaultHeaderBufferSize},
		OutputDir: ".",
		Logger:    zerolog.Nop(),
	}
}

// Download runs resolve, connect, send, frame, status check and body
// streaming in that order and stops at the first failure. The output file is
// only created once a 200 status has been seen.
func (d *Downloader) Download(rawURL string) (*Result, error) {
	target, err := protocol.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	d.Logger.Info().Str("host", target.Host).Int("port", target.Port).Str("path", target.Path).Msg("downloading")

	if err := d.transport.Connect(target.Host, target.Port); err != nil {
		return nil, err
	}
	defer d.transport.Close()

	request := protocol.BuildRequest(protocol.NewGetRequest(target))
	n, err := d.transport.Write(request)
	if err != nil {
		return nil, err
	}
	if n != len(request) {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "short write", nil)
	}

	msg, err := d.Framer.ReadHeaderBlock(d.transport)
	if err != nil {
		return nil, err
	}
	status, err := protocol.ParseStatusLine(msg.FirstLine())
	if err != nil {
		return nil, err
	}
	headers := msg.Headers()
	d.Logger.Debug().Str("status", status.String()).Int("headers", len(headers)).Int("bodyPrefix", msg.BodyPrefixLength()).Msg("response")

	if status.Code != protocol.StatusOK {
		return nil, httperrors.NewStatusError(status.Code, status.Reason)
	}

	filename := filepath.Join(d.OutputDir, OutputFilename(target.Path))
	written, err := d.save(filename, msg.BodyPrefix)
	if err != nil {
		return nil, err
	}

	if declared := headers.ContentLength(); declared >= 0 && declared != written {
		d.Logger.Warn().Int64("declared", declared).Int64("received", written).Msg("body length differs from Content-Length")
	}

	return &Result{
		Target:   target,
		Filename: filename,
		Status:   status,
		Headers:  headers,
		Bytes:    written,
	}, nil
}

// save writes prefix and then everything the peer sends until it closes.
func (d *Downloader) save(filename string, prefix []byte) (int64, error) {
	f, err := os.Create(filename)
	if err != nil {
		return 0, httperrors.NewFileError(httperrors.FileErrorOutputCreate, filename, err)
	}

	written, err := d.streamBody(f, prefix)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = httperrors.NewFileError(httperrors.FileErrorOutputWrite, filename, cerr)
	}
	return written, err
}

func (d *Downloader) streamBody(f *os.File, prefix []byte) (int64, error) {
	var written int64
	if len(prefix) > 0 {
		n, err := f.Write(prefix)
		written += int64(n)
		if err != nil {
			return written, httperrors.NewFileError(httperrors.FileErrorOutputWrite, f.Name(), err)
		}
	}

	buf := make([]byte, bodyBufferSize)
	for {
		n, err := d.transport.Read(buf)
		if n > 0 {
			m, werr := f.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, httperrors.NewFileError(httperrors.FileErrorOutputWrite, f.Name(), werr)
			}
		}
		if err != nil {
			if httperrors.IsConnectionClosed(err) {
				return written, nil
			}
			return written, err
		}
	}
}

// OutputFilename picks the local name for a URL path: the text after the
// last "/", or index.html when that is empty. A query string is ignored.
func OutputFilename(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	name := path[strings.LastIndexByte(path, '/')+1:]
	if name == "" || name == "." || name == ".." {
		return IndexFilename
	}
	return name
}
