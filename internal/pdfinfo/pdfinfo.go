// Package pdfinfo inspects local PDF files before upload.
package pdfinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Info describes a local PDF about to be uploaded.
type Info struct {
	Filename  string
	SizeBytes int64
	PageCount int
}

// Inspect validates that path is a readable PDF and returns its basic
// shape. The backend recomputes the authoritative page count on upload.
func Inspect(path string) (Info, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return Info{}, fmt.Errorf("%s: only PDF files are supported", filepath.Base(path))
	}

	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer file.Close()

	return Info{
		Filename:  filepath.Base(path),
		SizeBytes: stat.Size(),
		PageCount: reader.NumPage(),
	}, nil
}
