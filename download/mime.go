// Package download turns a produced file set into something a user can
// save: an HTTP download per file, or files written to a directory.
package download

import (
	"path/filepath"
	"strings"
)

// DefaultMimeType is used for extensions the table does not know.
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	"txt":  "text/plain",
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"xml":  "application/xml",
	"csv":  "text/csv",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// MimeType returns the media type for filename's extension, ignoring case.
func MimeType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	return DefaultMimeType
}
