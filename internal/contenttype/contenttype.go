// Package contenttype picks the MIME type sent with each upload.
package contenttype

import (
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const fallback = "application/octet-stream"

// Detect resolves the content type for the file at path, keyed by key.
// Extension lookup wins; unknown extensions fall back to sniffing the file
// contents.
func Detect(path, key string) string {
	if isTextLike(key) {
		return "text/plain; charset=utf-8"
	}

	if mimeType := mime.TypeByExtension(filepath.Ext(key)); mimeType != "" {
		return mimeType
	}

	return sniff(path)
}

func sniff(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return fallback
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n == 0 {
		return fallback
	}
	return mimetype.Detect(buf[:n]).String()
}

func isTextLike(key string) bool {
	return strings.HasSuffix(key, ".yaml") ||
		strings.HasSuffix(key, ".yml") ||
		strings.HasSuffix(key, ".toml") ||
		strings.HasSuffix(key, ".md")
}
