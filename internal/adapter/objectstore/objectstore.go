// Package objectstore fetches reference data (gazetteer, country info) from
// S3-compatible storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const scheme = "s3://"

// ErrInvalidURI is returned for locations that are not s3://bucket/key.
var ErrInvalidURI = errors.New("invalid object uri")

// Config holds the MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// getter is the subset of *minio.Client used to read objects.
type getter interface {
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// Client reads objects by s3:// URI.
type Client struct {
	client getter
	logger *slog.Logger
}

// New creates a MinIO-backed client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("missing one or more of MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	logger.Info("object store configured", "endpoint", cfg.Endpoint, "ssl", cfg.UseSSL)
	return &Client{client: mc, logger: logger}, nil
}

// IsURI reports whether location should be fetched from object storage.
func IsURI(location string) bool {
	return strings.HasPrefix(location, scheme)
}

// ParseURI splits s3://bucket/key into its parts.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

// Open streams the object at uri. The caller closes the reader.
func (c *Client) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	obj, err := c.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", uri, err)
	}
	// GetObject is lazy; Stat surfaces missing objects and auth errors up front.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", uri, err)
	}

	c.logger.Info("streaming object", "bucket", bucket, "key", key, "bytes", info.Size)
	return obj, nil
}

// Opener opens s3:// locations through Remote and everything else from the
// local filesystem.
type Opener struct {
	Remote *Client
}

func (o Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsURI(location) {
		return os.Open(location)
	}
	if o.Remote == nil {
		return nil, fmt.Errorf("%s: object store not configured", location)
	}
	return o.Remote.Open(ctx, location)
}
