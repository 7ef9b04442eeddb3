// Package sink stores downloaded artifacts: redacted PDFs and export
// archives.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink writes one named artifact stream and returns its location.
type Sink interface {
	Store(ctx context.Context, name string, content io.Reader) (string, error)
}

// LocalSink writes artifacts under a directory.
type LocalSink struct {
	dir string
}

func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &LocalSink{dir: dir}, nil
}

func (s *LocalSink) Store(_ context.Context, name string, content io.Reader) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
