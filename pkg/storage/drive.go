package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveConfig configures the Google Drive final store.
type DriveConfig struct {
	CredentialsFile string // empty uses Application Default Credentials
}

// Drive stores finished recordings as Drive files inside the destination folder.
// File ids are the object refs.
type Drive struct {
	svc    *drive.Service
	logger *zap.Logger
}

// NewDrive creates a Drive client with the drive.file scope.
func NewDrive(ctx context.Context, cfg DriveConfig, logger *zap.Logger) (*Drive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.ClientOption{option.WithScopes(drive.DriveFileScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	logger.Info("Google Drive final store configured")
	return &Drive{svc: svc, logger: logger}, nil
}

// Put uploads body as a new file named name inside folder and returns its file id.
func (d *Drive) Put(ctx context.Context, body io.Reader, name, contentType, folder string) (string, error) {
	meta := &drive.File{Name: name, MimeType: contentType}
	if folder != "" {
		meta.Parents = []string{folder}
	}
	f, err := d.svc.Files.Create(meta).
		Media(body, googleapi.ContentType(contentType)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", driveError("create file", err)
	}
	return f.Id, nil
}

// SetPubliclyReadable lets anyone with the link read the file.
func (d *Drive) SetPubliclyReadable(ctx context.Context, fileID string) error {
	_, err := d.svc.Permissions.Create(fileID, &drive.Permission{Type: "anyone", Role: "reader"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return driveError("create permission", err)
	}
	return nil
}

// Stat returns the file size and MIME type.
func (d *Drive) Stat(ctx context.Context, fileID string) (ObjectInfo, error) {
	f, err := d.svc.Files.Get(fileID).
		SupportsAllDrives(true).
		Fields("size", "mimeType").
		Context(ctx).
		Do()
	if err != nil {
		return ObjectInfo{}, driveError("get file", err)
	}
	return ObjectInfo{Size: f.Size, ContentType: f.MimeType}, nil
}

// OpenRange downloads the byte range r of the file content. Caller must close the body.
func (d *Drive) OpenRange(ctx context.Context, fileID string, r ByteRange) (io.ReadCloser, error) {
	call := d.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx)
	if !r.IsFull() {
		call.Header().Set("Range", r.Header())
	}
	resp, err := call.Download()
	if err != nil {
		return nil, driveError("download file", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	if !r.IsFull() && resp.StatusCode == http.StatusOK {
		d.logger.Debug("drive ignored range, trimming full body", zap.String("file_id", fileID), zap.String("range", r.Header()))
		return trimToRange(resp.Body, r)
	}
	return resp.Body, nil
}

// Delete removes the file. Deleting a missing file succeeds.
func (d *Drive) Delete(ctx context.Context, fileID string) error {
	err := d.svc.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		if errors.Is(driveError("", err), ErrNotFound) {
			return nil
		}
		return driveError("delete file", err)
	}
	return nil
}

func driveError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
