package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultIndexFile is served in place of a listing when a directory has one.
const DefaultIndexFile = "index.html"

// Kind tells the response generator what a request path resolved to.
type Kind int

const (
	KindNotFound Kind = iota
	KindFile
	KindListing
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindListing:
		return "listing"
	case KindServerError:
		return "server-error"
	default:
		return "not-found"
	}
}

// Entry is one link in a generated directory listing.
type Entry struct {
	Name  string
	Href  string
	IsDir bool
}

// Resource is the outcome of resolving one request path. Which fields are set
// depends on Kind: File uses Path, Name, Size and MimeType; Listing uses Dir
// and Entries; ServerError carries Err.
type Resource struct {
	Kind     Kind
	Path     string
	Name     string
	Size     int64
	MimeType string
	Dir      string
	Entries  []Entry
	Err      error
}

// Resolver maps request paths onto a fixed serving root.
type Resolver struct {
	root string // absolute, symlinks evaluated

	IndexFile   string
	MimeTypes   map[string]string
	DefaultType string
}

// NewResolver creates a resolver for root, which must be an existing directory.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("serving root %s is not a directory", root)
	}

	return &Resolver{
		root:        abs,
		IndexFile:   DefaultIndexFile,
		MimeTypes:   DefaultMimeTypes(),
		DefaultType: DefaultMimeType,
	}, nil
}

// Root returns the canonical serving root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve classifies requestPath. Any path containing ".." is NotFound, even
// when it would stay inside the root (a file named "a..b" cannot be served).
// Paths that escape the root through symlinks are NotFound as well.
func (r *Resolver) Resolve(requestPath string) Resource {
	p := requestPath
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	decoded, err := url.PathUnescape(p)
	if err != nil || strings.Contains(decoded, "..") || strings.IndexByte(decoded, 0) >= 0 {
		return Resource{Kind: KindNotFound}
	}
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}

	full := filepath.Join(r.root, filepath.FromSlash(strings.TrimPrefix(decoded, "/")))
	if !r.contains(full) {
		return Resource{Kind: KindNotFound}
	}

	info, err := os.Stat(full)
	if err != nil {
		return statFailure(err)
	}
	if !r.resolvesInside(full) {
		return Resource{Kind: KindNotFound}
	}

	switch {
	case info.IsDir():
		index := filepath.Join(full, r.IndexFile)
		if indexInfo, err := os.Stat(index); err == nil && indexInfo.Mode().IsRegular() && r.resolvesInside(index) {
			return r.file(index, indexInfo)
		}
		return r.listing(decoded, full)
	case info.Mode().IsRegular():
		return r.file(full, info)
	default:
		return Resource{Kind: KindNotFound}
	}
}

func (r *Resolver) contains(path string) bool {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvesInside reports whether path, with every symlink followed, is still
// below the root.
func (r *Resolver) resolvesInside(path string) bool {
	real, err := filepath.EvalSymlinks(path)
	return err == nil && r.contains(real)
}

func (r *Resolver) file(path string, info fs.FileInfo) Resource {
	name := filepath.Base(path)
	return Resource{
		Kind:     KindFile,
		Path:     path,
		Name:     name,
		Size:     info.Size(),
		MimeType: r.mimeType(name),
	}
}

// listing enumerates dir, skipping dot entries. Hrefs are absolute request
// paths built on requestPath; the root gets no doubled separator.
func (r *Resolver) listing(requestPath, dir string) Resource {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return Resource{Kind: KindServerError, Err: err}
	}

	base := requestPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		isDir := de.IsDir()
		href := base + name
		if isDir {
			href += "/"
		}
		entries = append(entries, Entry{
			Name:  name,
			Href:  (&url.URL{Path: href}).EscapedPath(),
			IsDir: isDir,
		})
	}

	return Resource{Kind: KindListing, Path: dir, Dir: requestPath, Entries: entries}
}

func statFailure(err error) Resource {
	if errors.Is(err, fs.ErrPermission) {
		return Resource{Kind: KindServerError, Err: err}
	}
	return Resource{Kind: KindNotFound}
}
