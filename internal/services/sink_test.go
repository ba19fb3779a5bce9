package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "treecert/internal/errors"
)

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "default name", input: "baum_zertifikat_VE-229.pdf"},
		{name: "empty", input: "  ", wantErr: true},
		{name: "parent directory", input: "../etc/passwd", wantErr: true},
		{name: "slash", input: "a/b.pdf", wantErr: true},
		{name: "backslash", input: `a\b.pdf`, wantErr: true},
		{name: "too long", input: strings.Repeat("a", 256), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrInvalidInput) {
					t.Errorf("ValidateFileName(%q) = %v, want ErrInvalidInput", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateFileName(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestFileSink_Commit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := NewFileSink(dir)

	h, err := sink.Open(context.Background(), "baum_zertifikat_VE-229.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := h.Write([]byte("%PDF-1.7")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	location, err := h.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close after commit: %v", err)
	}

	want := filepath.Join(dir, "baum_zertifikat_VE-229.pdf")
	if location != want {
		t.Errorf("location = %q, want %q", location, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Errorf("content = %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the document", len(entries))
	}
}

func TestFileSink_CloseWithoutCommitDiscards(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)

	h, err := sink.Open(context.Background(), "partial.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h.Write([]byte("%PDF-"))
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileSink_RejectsTraversal(t *testing.T) {
	sink := NewFileSink(t.TempDir())
	if _, err := sink.Open(context.Background(), "../escape.pdf"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Open(../escape.pdf) = %v, want ErrInvalidInput", err)
	}
}

func TestFileSink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileSink(t.TempDir()).Open(ctx, "x.pdf"); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() = %v, want context.Canceled", err)
	}
}

func TestFileSink_LongestValidName(t *testing.T) {
	dir := t.TempDir()
	name := strings.Repeat("a", 251) + ".pdf"
	if err := ValidateFileName(name); err != nil {
		t.Fatalf("ValidateFileName: %v", err)
	}

	h, err := NewFileSink(dir).Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%d-byte name): %v", len(name), err)
	}
	defer h.Close()

	if _, err := h.Write([]byte("%PDF-1.7")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	location, err := h.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if location != filepath.Join(dir, name) {
		t.Errorf("location = %q", location)
	}
}
