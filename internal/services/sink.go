package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "treecert/internal/errors"
)

// Sink hands out destinations for finished certificate documents.
type Sink interface {
	Open(ctx context.Context, name string) (Handle, error)
}

// Handle is a transient destination for one document. Commit publishes what
// was written and reports where it ended up. Close releases the handle and
// discards anything that was not committed; it is a no-op after Commit.
type Handle interface {
	io.Writer
	Commit() (string, error)
	Close() error
}

// ValidateFileName rejects names that could escape the destination directory
// or bucket prefix.
func ValidateFileName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty file name", apperrors.ErrInvalidInput)
	case strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\"):
		return fmt.Errorf("%w: suspicious file name %q", apperrors.ErrInvalidInput, name)
	case len(name) > 255:
		return fmt.Errorf("%w: file name too long", apperrors.ErrInvalidInput)
	}
	return nil
}

// tempPattern names in-progress documents independently of the final name, so
// any name that passes ValidateFileName also fits the temp file.
const tempPattern = ".treecert-*.tmp"

// FileSink writes documents into a local directory. Each document is written
// to a temporary file first and renamed into place on Commit.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Open(ctx context.Context, name string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateFileName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &fileHandle{
		file:   f,
		target: filepath.Join(s.dir, name),
	}, nil
}

type fileHandle struct {
	file      *os.File
	target    string
	closed    bool
	committed bool
}

func (h *fileHandle) Write(p []byte) (int, error) {
	return h.file.Write(p)
}

func (h *fileHandle) Commit() (string, error) {
	if err := h.file.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync %s: %w", h.file.Name(), err)
	}
	h.closed = true
	if err := h.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", h.file.Name(), err)
	}
	if err := os.Rename(h.file.Name(), h.target); err != nil {
		return "", fmt.Errorf("failed to move document into place: %w", err)
	}
	h.committed = true
	return h.target, nil
}

func (h *fileHandle) Close() error {
	if h.committed {
		return nil
	}
	if !h.closed {
		h.closed = true
		_ = h.file.Close()
	}
	if err := os.Remove(h.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
