package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	apperrors "treecert/internal/errors"
)

const pdfMimeType = "application/pdf"

// DriveClient wraps the Drive API calls needed to publish certificates into a folder.
type DriveClient struct {
	client *drive.Service
}

func NewDriveClient(client *drive.Service) *DriveClient {
	return &DriveClient{client: client}
}

// Find looks up a Drive file by exact name inside a folder.
func (d *DriveClient) Find(ctx context.Context, folderID, name string) (*drive.File, error) {
	if d.client == nil {
		return nil, fmt.Errorf("drive client is nil")
	}

	// Single quotes in query literals must be escaped
	escapedFolderID := strings.ReplaceAll(folderID, "'", "\\'")
	escapedName := strings.ReplaceAll(name, "'", "\\'")
	q := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false", escapedFolderID, escapedName)

	list, err := d.client.Files.List().Context(ctx).
		Q(q).
		Fields("files(id, name, webViewLink)").
		PageSize(1).
		Do()
	if err != nil {
		return nil, driveError(err)
	}
	if len(list.Files) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return list.Files[0], nil
}

// Upload stores r as name inside folderID, replacing the content of an
// existing file with the same name.
func (d *DriveClient) Upload(ctx context.Context, folderID, name string, r io.Reader) (*drive.File, error) {
	existing, err := d.Find(ctx, folderID, name)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		file, err := d.client.Files.Update(existing.Id, &drive.File{}).Context(ctx).
			Media(r, googleapi.ContentType(pdfMimeType)).
			Fields("id", "webViewLink").
			Do()
		if err != nil {
			return nil, driveError(err)
		}
		return file, nil
	}

	file, err := d.client.Files.Create(&drive.File{
		Name:     name,
		Parents:  []string{folderID},
		MimeType: pdfMimeType,
	}).Context(ctx).
		Media(r, googleapi.ContentType(pdfMimeType)).
		Fields("id", "webViewLink").
		Do()
	if err != nil {
		return nil, driveError(err)
	}
	return file, nil
}

// Maps Drive API status codes onto the application errors.
func driveError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case 401, 403:
		return fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	case 404:
		return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
	default:
		return err
	}
}

type driveUploader interface {
	Upload(ctx context.Context, folderID, name string, r io.Reader) (*drive.File, error)
}

// DriveSink publishes certificates into a shared Drive folder. Documents are
// buffered in memory and uploaded on Commit.
type DriveSink struct {
	uploader driveUploader
	folderID string
}

func NewDriveSink(client *DriveClient, folderID string) *DriveSink {
	return &DriveSink{uploader: client, folderID: folderID}
}

func (s *DriveSink) Open(ctx context.Context, name string) (Handle, error) {
	if err := ValidateFileName(name); err != nil {
		return nil, err
	}
	return &driveHandle{ctx: ctx, sink: s, name: name}, nil
}

type driveHandle struct {
	ctx  context.Context
	sink *DriveSink
	name string
	buf  bytes.Buffer
}

func (h *driveHandle) Write(p []byte) (int, error) {
	return h.buf.Write(p)
}

func (h *driveHandle) Commit() (string, error) {
	file, err := h.sink.uploader.Upload(h.ctx, h.sink.folderID, h.name, bytes.NewReader(h.buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("failed to upload to Drive: %w", err)
	}
	if file.WebViewLink != "" {
		return file.WebViewLink, nil
	}
	return "drive://" + file.Id, nil
}

func (h *driveHandle) Close() error {
	h.buf.Reset()
	return nil
}
