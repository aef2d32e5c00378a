package blobstore

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is how many leading bytes DetectMIME looks at.
const SniffLen = 512

var extTypes = map[string]string{
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".zip":  "application/zip",
}

// DetectMIME guesses a display MIME type from the first bytes of a blob.
// Generic sniffing results (octet-stream, zip containers, plain text) defer to
// the declared extension.
func DetectMIME(head []byte, name string) string {
	m := mimetype.Detect(head)
	sniffed := m.String()
	generic := m.Is("application/octet-stream") ||
		m.Is("application/zip") ||
		m.Is("text/plain")
	if !generic {
		return sniffed
	}

	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return sniffed
}
