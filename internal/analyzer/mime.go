package analyzer

import (
	"path/filepath"
	"strings"
)

var imageMIMETypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// MIMETypeFor maps an accepted image file extension to its MIME type.
// Extensions are matched case-insensitively.
func MIMETypeFor(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	mimeType, ok := imageMIMETypes[ext]
	return mimeType, ok
}
