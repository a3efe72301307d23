// Package mime is a pure lookup from file extension to media type. It is
// a named collaborator of the response builder, not part of the core
// subject of this repository.
package mime

import "strings"

var types = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "application/xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".csv":  "text/csv",
	".woff": "font/woff",
	".woff2": "font/woff2",
}

// defaultType is served when the extension is unknown.
const defaultType = "application/octet-stream"

// Lookup returns the media type for path's extension, or defaultType.
func Lookup(path string) string {
	ext := extOf(path)
	if t, ok := types[strings.ToLower(ext)]; ok {
		return t
	}
	return defaultType
}

func extOf(path string) string {
	dot := strings.LastIndexByte(path, '.')
	slash := strings.LastIndexByte(path, '/')
	if dot <= slash {
		return ""
	}
	return path[dot:]
}
