package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	apperrors "treecert/internal/errors"
)

// StorageService archives certificates in a Cloud Storage bucket and reads them back.
type StorageService struct {
	bucketName string
	prefix     string
	newWriter  func(ctx context.Context, object string) io.WriteCloser
	newReader  func(ctx context.Context, object string) (io.ReadCloser, error)
}

func NewStorageService(client *storage.Client, bucketName, prefix string) *StorageService {
	bucket := client.Bucket(bucketName)
	return &StorageService{
		bucketName: bucketName,
		prefix:     prefix,
		newWriter: func(ctx context.Context, object string) io.WriteCloser {
			w := bucket.Object(object).NewWriter(ctx)
			w.ContentType = "application/pdf"
			return w
		},
		newReader: func(ctx context.Context, object string) (io.ReadCloser, error) {
			r, err := bucket.Object(object).NewReader(ctx)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}
}

// Open starts an upload of name below the configured prefix. The upload runs
// under its own cancellable context so that releasing an uncommitted handle
// aborts it instead of publishing a partial object.
func (s *StorageService) Open(ctx context.Context, name string) (Handle, error) {
	if err := ValidateFileName(name); err != nil {
		return nil, err
	}

	object := s.prefix + name
	uploadCtx, cancel := context.WithCancel(ctx)
	return &objectHandle{
		writer:   s.newWriter(uploadCtx, object),
		cancel:   cancel,
		location: fmt.Sprintf("gs://%s/%s", s.bucketName, object),
	}, nil
}

// Retrieves an archived certificate by file name.
// Returns the file contents as bytes or ErrNotFound if the object does not exist.
func (s *StorageService) FetchFile(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateFileName(name); err != nil {
		return nil, err
	}

	reader, err := s.newReader(ctx, s.prefix+name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

type objectHandle struct {
	writer   io.WriteCloser
	cancel   context.CancelFunc
	location string
}

func (h *objectHandle) Write(p []byte) (int, error) {
	return h.writer.Write(p)
}

func (h *objectHandle) Commit() (string, error) {
	if err := h.writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}
	return h.location, nil
}

func (h *objectHandle) Close() error {
	h.cancel()
	return nil
}
