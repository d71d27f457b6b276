package client

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	httperrors "github.com/nczempin/httpxfer/errors"
	"github.com/nczempin/httpxfer/protocol"
	"github.com/nczempin/httpxfer/transport"
)

// setupTestServer creates a one-shot TCP server running handler
func setupTestServer(t *testing.T, handler func(net.Conn)) (string, int, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	addr := listener.Addr().(*net.TCPAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()

	cleanup := func() {
		listener.Close()
		<-done
	}

	return addr.IP.String(), addr.Port, cleanup
}

// readRequest consumes the request so closing the conn does not reset it.
func readRequest(conn net.Conn) string {
	buf := make([]byte, 1024)
	n, _ := conn.Read(buf)
	return string(buf[:n])
}

func newTestDownloader(t *testing.T) (*Downloader, string) {
	t.Helper()

	dir := t.TempDir()
	d := NewDownloader(transport.NewTcpTransport())
	d.OutputDir = dir
	return d, dir
}

func TestOutputFilename(t *testing.T) {
	cases := map[string]string{
		"/":               IndexFilename,
		"":                IndexFilename,
		"/dir/":           IndexFilename,
		"/f.txt":          "f.txt",
		"/a/b/c.tar.gz":   "c.tar.gz",
		"/report?id=7":    "report",
		"/dir/?sort=name": IndexFilename,
		"/..":             IndexFilename,
	}

	for path, want := range cases {
		if got := OutputFilename(path); got != want {
			t.Errorf("OutputFilename(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestDownload_SendsRequestAndSavesBody(t *testing.T) {
	requests := make(chan string, 1)

	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		requests <- readRequest(conn)
		// header and the start of the body share the first segment
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\nhello"))
		time.Sleep(20 * time.Millisecond)
		conn.Write([]byte(" world"))
	})
	defer cleanup()

	d, dir := newTestDownloader(t)
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/files/greeting.txt"

	result, err := d.Download(url)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	want := "GET /files/greeting.txt HTTP/1.1\r\nHost: " + host + "\r\nConnection: close\r\n\r\n"
	if got := <-requests; got != want {
		t.Errorf("Expected request %q, got %q", want, got)
	}

	if result.Filename != filepath.Join(dir, "greeting.txt") {
		t.Errorf("Unexpected filename %q", result.Filename)
	}
	if result.Bytes != 11 || result.Status.Code != 200 {
		t.Errorf("Unexpected result %+v", result)
	}

	content, err := os.ReadFile(result.Filename)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", content)
	}
}

func TestDownload_IndexFilename(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n<ul></ul>"))
	})
	defer cleanup()

	d, dir := newTestDownloader(t)
	result, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if result.Filename != filepath.Join(dir, IndexFilename) {
		t.Errorf("Unexpected filename %q", result.Filename)
	}
}

func TestDownload_NonOKStatusLeavesNoFile(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\n\r\nfile not found\n"))
	})
	defer cleanup()

	d, dir := newTestDownloader(t)
	_, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/missing.txt")

	httpErr, ok := httperrors.AsHttpError(err)
	if !ok || httpErr.ProtocolErr != httperrors.ProtocolErrorStatus {
		t.Fatalf("Expected status error, got %v", err)
	}
	if httpErr.StatusCode != 404 || httpErr.Message != "Not Found" {
		t.Errorf("Unexpected status error %+v", httpErr)
	}

	if _, err := os.Stat(filepath.Join(dir, "missing.txt")); !os.IsNotExist(err) {
		t.Errorf("Output file should not exist, stat returned %v", err)
	}
}

func TestDownload_NonOKStatusKeepsExistingFile(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 500 Internal Server Error\r\n\r\n"))
	})
	defer cleanup()

	d, dir := newTestDownloader(t)
	existing := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/keep.txt"); err == nil {
		t.Fatal("Expected error for 500 status")
	}

	content, _ := os.ReadFile(existing)
	if string(content) != "old" {
		t.Errorf("Existing file was modified: %q", content)
	}
}

func TestDownload_MalformedURL(t *testing.T) {
	d, _ := newTestDownloader(t)

	_, err := d.Download("ftp://example.com/f.txt")
	if !httperrors.IsProtocol(err, httperrors.ProtocolErrorMalformedURL) {
		t.Errorf("Expected MalformedURL, got %v", err)
	}
}

func TestDownload_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	d, _ := newTestDownloader(t)
	_, err = d.Download("http://127.0.0.1:" + strconv.Itoa(port) + "/f.txt")
	if !httperrors.IsTransport(err, httperrors.TransportErrorConnectionRefused) {
		t.Errorf("Expected ConnectionRefused, got %v", err)
	}
}

func TestDownload_HostUnresolved(t *testing.T) {
	d, _ := newTestDownloader(t)

	_, err := d.Download("http://this-is-not-a-real-domain.invalid/f.txt")
	if !httperrors.IsTransport(err, httperrors.TransportErrorDnsFailure) {
		t.Errorf("Expected DnsFailure, got %v", err)
	}
}

func TestDownload_NoResponse(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
	})
	defer cleanup()

	d, _ := newTestDownloader(t)
	_, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/f.txt")
	if !httperrors.IsProtocol(err, httperrors.ProtocolErrorNoResponse) {
		t.Errorf("Expected NoResponse, got %v", err)
	}
}

func TestDownload_MalformedHeader(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n"))
	})
	defer cleanup()

	d, dir := newTestDownloader(t)
	_, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/f.txt")
	if !httperrors.IsProtocol(err, httperrors.ProtocolErrorMalformedHeader) {
		t.Errorf("Expected MalformedHeader, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "f.txt")); !os.IsNotExist(err) {
		t.Errorf("Output file should not exist, stat returned %v", err)
	}
}

func TestDownload_InvalidStatusLine(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("SSH-2.0-OpenSSH\r\n\r\n"))
	})
	defer cleanup()

	d, _ := newTestDownloader(t)
	_, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/f.txt")
	if !httperrors.IsProtocol(err, httperrors.ProtocolErrorInvalidStatusLine) {
		t.Errorf("Expected InvalidStatusLine, got %v", err)
	}
}

func TestDownload_OutputCreateFailed(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\nabc"))
	})
	defer cleanup()

	d, dir := newTestDownloader(t)
	d.OutputDir = filepath.Join(dir, "does", "not", "exist")

	_, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/f.txt")
	if !httperrors.IsFile(err, httperrors.FileErrorOutputCreate) {
		t.Errorf("Expected OutputCreate error, got %v", err)
	}
}

func TestDownload_AccumulatingFramer(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 200 OK\r\n"))
		time.Sleep(20 * time.Millisecond)
		conn.Write([]byte("Content-Length: 3\r\n\r\nxyz"))
	})
	defer cleanup()

	d, _ := newTestDownloader(t)
	d.Framer = protocol.AccumulatingFramer{}

	result, err := d.Download("http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/split.bin")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	content, _ := os.ReadFile(result.Filename)
	if string(content) != "xyz" {
		t.Errorf("Expected %q, got %q", "xyz", content)
	}
}
