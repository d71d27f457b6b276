package server

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func render(t *testing.T, resp *Response) string {
	t.Helper()
	defer resp.Close()

	var buf bytes.Buffer
	if _, err := resp.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	return buf.String()
}

func splitResponse(t *testing.T, wire string) (string, string) {
	t.Helper()

	i := strings.Index(wire, "\r\n\r\n")
	if i < 0 {
		t.Fatalf("Response has no header terminator: %q", wire)
	}
	return wire[:i+4], wire[i+4:]
}

func TestGenerate_File(t *testing.T) {
	root := setupRoot(t, map[string]string{"f.txt": "abcde"})
	r := newTestResolver(t, root)

	header, body := splitResponse(t, render(t, Generate(r.Resolve("/f.txt"))))

	for _, want := range []string{
		"HTTP/1.1 200 OK\r\n",
		"Content-Type: text/plain\r\n",
		"Content-Length: 5\r\n",
		"Content-Disposition: attachment; filename=\"f.txt\"\r\n",
		"Connection: close\r\n",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("Header missing %q:\n%s", want, header)
		}
	}
	if body != "abcde" {
		t.Errorf("Expected body %q, got %q", "abcde", body)
	}
}

func TestGenerate_LargeFileInBlocks(t *testing.T) {
	content := strings.Repeat("0123456789abcdef", 3*blockSize/16+7)
	root := setupRoot(t, map[string]string{"big.bin": content})
	r := newTestResolver(t, root)

	resp := Generate(r.Resolve("/big.bin"))
	if resp.ContentLength != int64(len(content)) {
		t.Errorf("Expected Content-Length %d, got %d", len(content), resp.ContentLength)
	}

	_, body := splitResponse(t, render(t, resp))
	if body != content {
		t.Errorf("Body mismatch: got %d bytes, want %d", len(body), len(content))
	}
}

func TestGenerate_FileVanished(t *testing.T) {
	root := setupRoot(t, map[string]string{"f.txt": "x"})
	r := newTestResolver(t, root)

	res := r.Resolve("/f.txt")
	if err := os.Remove(filepath.Join(root, "f.txt")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	resp := Generate(res)
	if resp.Code != StatusNotFound {
		t.Errorf("Expected 404 for vanished file, got %d", resp.Code)
	}
}

func TestGenerate_Listing(t *testing.T) {
	root := setupRoot(t, map[string]string{"d/a.txt": "a", "d/b.txt": "b"})
	r := newTestResolver(t, root)

	header, body := splitResponse(t, render(t, Generate(r.Resolve("/d"))))

	if !strings.HasPrefix(header, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("Unexpected status line: %q", header)
	}
	if !strings.Contains(header, "Content-Type: text/html; charset=utf-8\r\n") {
		t.Errorf("Missing HTML content type:\n%s", header)
	}
	if want := "Content-Length: " + strconv.Itoa(len(body)) + "\r\n"; !strings.Contains(header, want) {
		t.Errorf("Expected %q in header:\n%s", want, header)
	}

	if n := strings.Count(body, "<a href="); n != 2 {
		t.Errorf("Expected exactly 2 anchors, got %d:\n%s", n, body)
	}
	for _, href := range []string{`href="/d/a.txt"`, `href="/d/b.txt"`} {
		if !strings.Contains(body, href) {
			t.Errorf("Body missing %s:\n%s", href, body)
		}
	}
	if !strings.Contains(body, "<h1>Index of /d</h1>") {
		t.Errorf("Body missing heading:\n%s", body)
	}
}

func TestGenerate_ListingEscapesNames(t *testing.T) {
	res := Resource{
		Kind:    KindListing,
		Dir:     "/<x>",
		Entries: []Entry{{Name: "a&b<c>.txt", Href: "/%3Cx%3E/a&b%3Cc%3E.txt"}},
	}

	body := render(t, Generate(res))
	if strings.Contains(body, "<c>") || strings.Contains(body, "<x>") {
		t.Errorf("Names not escaped:\n%s", body)
	}
	if !strings.Contains(body, "a&amp;b&lt;c&gt;.txt") {
		t.Errorf("Expected escaped name:\n%s", body)
	}
}

func TestGenerate_Errors(t *testing.T) {
	cases := []struct {
		res    Resource
		status string
	}{
		{Resource{Kind: KindNotFound}, "HTTP/1.1 404 Not Found\r\n"},
		{Resource{Kind: KindServerError}, "HTTP/1.1 500 Internal Server Error\r\n"},
	}

	for _, tc := range cases {
		wire := render(t, Generate(tc.res))
		header, body := splitResponse(t, wire)
		if !strings.HasPrefix(header, tc.status) {
			t.Errorf("Expected %q, got %q", tc.status, header)
		}
		if !strings.Contains(header, "Content-Type: text/plain\r\n") {
			t.Errorf("Missing text/plain:\n%s", header)
		}
		if body == "" {
			t.Error("Expected a short body")
		}
	}
}

func TestMethodNotAllowedResponse(t *testing.T) {
	wire := render(t, MethodNotAllowedResponse())

	want := "HTTP/1.1 405 Method Not Allowed\r\nAllow: GET\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	if wire != want {
		t.Errorf("Expected %q, got %q", want, wire)
	}
}

func TestContentDisposition(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"f.txt", `attachment; filename="f.txt"`},
		{"a b.txt", `attachment; filename="a b.txt"`},
		{`say "hi".txt`, `attachment; filename="say \"hi\".txt"`},
		{`back\slash`, `attachment; filename="back\\slash"`},
		{"caf\u00e9.txt", `attachment; filename="caf_.txt"; filename*=UTF-8''caf%C3%A9.txt`},
	}

	for _, tc := range cases {
		if got := contentDisposition(tc.name); got != tc.want {
			t.Errorf("contentDisposition(%q) = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestGenerate_FileWithNonASCIIName(t *testing.T) {
	root := setupRoot(t, map[string]string{"caf\u00e9.txt": "x"})
	r := newTestResolver(t, root)

	header, _ := splitResponse(t, render(t, Generate(r.Resolve("/caf%C3%A9.txt"))))
	want := "Content-Disposition: attachment; filename=\"caf_.txt\"; filename*=UTF-8''caf%C3%A9.txt\r\n"
	if !strings.Contains(header, want) {
		t.Errorf("Header missing %q:\n%s", want, header)
	}
}
