package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSConfig configures a Google Cloud Storage holding bucket.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // empty uses Application Default Credentials
	SignerAccount   string // service account email used for V4 signing when the credentials carry no key
}

// GCS is a holding-area bucket the browser uploads to directly with a V4 signed URL.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    GCSConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewGCS creates a GCS client bound to cfg.Bucket.
func NewGCS(ctx context.Context, cfg GCSConfig, logger *zap.Logger) (*GCS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	logger.Info("GCS holding bucket configured", zap.String("bucket", cfg.Bucket))
	return &GCS{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error { return g.client.Close() }

// SignedWriteURL returns a V4 signed PUT URL for object, valid for ttl.
func (g *GCS) SignedWriteURL(ctx context.Context, object, contentType string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     g.now().Add(ttl),
	}
	if g.cfg.SignerAccount != "" {
		opts.GoogleAccessID = g.cfg.SignerAccount
	}
	url, err := g.bucket.SignedURL(object, opts)
	if err != nil {
		g.logger.Error("generate signed url failed", zap.String("bucket", g.cfg.Bucket), zap.String("object", object), zap.Error(err))
		return "", fmt.Errorf("signed url: %w", err)
	}
	return url, nil
}

// Stat returns the object's size and the content type it was uploaded with.
func (g *GCS) Stat(ctx context.Context, object string) (ObjectInfo, error) {
	attrs, err := g.bucket.Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("object attrs: %w", err)
	}
	return ObjectInfo{Size: attrs.Size, ContentType: attrs.ContentType}, nil
}

// Open streams the whole object. Caller must close the reader.
func (g *GCS) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	rc, err := g.bucket.Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return rc, nil
}

// Delete removes object. Deleting a missing object succeeds.
func (g *GCS) Delete(ctx context.Context, object string) error {
	err := g.bucket.Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
