package library

import (
	"path/filepath"
	"strings"
)

// DefaultMimeType is served for records whose extension has no mapping.
const DefaultMimeType = "video/mp4"

var videoMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
}

// IsVideoFile reports whether the file name carries a recognized video
// extension. Content is never inspected.
func IsVideoFile(name string) bool {
	_, ok := videoMimeTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

func MimeType(name string) string {
	if mt, ok := videoMimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return DefaultMimeType
}
