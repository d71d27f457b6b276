package server

import "strings"

// DefaultMimeType is served for files whose extension is not in the table.
const DefaultMimeType = "application/octet-stream"

var defaultMimeTypes = map[string]string{
	"7z":   "application/x-7z-compressed",
	"bmp":  "image/x-ms-bmp",
	"css":  "text/css",
	"csv":  "text/csv",
	"gif":  "image/gif",
	"gz":   "application/gzip",
	"htm":  "text/html; charset=utf-8",
	"html": "text/html; charset=utf-8",
	"ico":  "image/x-icon",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"js":   "application/javascript",
	"json": "application/json",
	"md":   "text/markdown",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"svg":  "image/svg+xml",
	"tar":  "application/x-tar",
	"txt":  "text/plain",
	"wasm": "application/wasm",
	"webm": "video/webm",
	"webp": "image/webp",
	"xml":  "text/xml",
	"zip":  "application/zip",
}

// DefaultMimeTypes returns a copy of the built-in suffix table, keyed by
// extension without the dot.
func DefaultMimeTypes() map[string]string {
	types := make(map[string]string, len(defaultMimeTypes))
	for ext, mimeType := range defaultMimeTypes {
		types[ext] = mimeType
	}
	return types
}

func (r *Resolver) mimeType(name string) string {
	if p := strings.LastIndexByte(name, '.'); p >= 0 {
		if mimeType, ok := r.MimeTypes[strings.ToLower(name[p+1:])]; ok {
			return mimeType
		}
	}
	return r.DefaultType
}
