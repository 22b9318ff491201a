// Package extract provides plain-text extraction from uploaded study
// materials. The RAG engine treats its output as opaque text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for file formats with no extractor.
var ErrUnsupported = errors.New("unsupported file format")

// Text extracts plain text from the given file content, dispatching on
// the filename extension. Supported: .pdf, .html/.htm, .txt, .md.
func Text(content []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".html", ".htm":
		return extractHTML(content)
	case ".txt", ".md", "":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
}
