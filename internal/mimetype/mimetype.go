// Package mimetype detects the mime type for a local file, preferring the
// extension table and falling back to content sniffing.
package mimetype

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultType is used when neither the extension nor the content identify
// the file.
const DefaultType = "application/octet-stream"

// sniffLen is the number of leading bytes content sniffing examines,
// matching http.DetectContentType's window.
const sniffLen = 512

// Detect returns the mime type for path. Extension lookup wins; unknown
// extensions fall back to sniffing the file's leading bytes. Detection never
// fails — unreadable files report DefaultType.
func Detect(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			// Strip parameters like "; charset=utf-8" — Drive wants the bare type.
			if idx := strings.IndexByte(mt, ';'); idx >= 0 {
				mt = strings.TrimSpace(mt[:idx])
			}

			return mt
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return DefaultType
	}
	defer f.Close()

	buf := make([]byte, sniffLen)

	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return DefaultType
	}

	mt := http.DetectContentType(buf[:n])
	if idx := strings.IndexByte(mt, ';'); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}

	return mt
}
