package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/shadanga/kriya/internal/errs"
)

// GCSStore reads assets from a Google Cloud Storage bucket.
type GCSStore struct {
	client      *storage.Client
	bucket      string
	readTimeout time.Duration
}

// NewGCSStore creates a storage client for bucket. When STORAGE_EMULATOR_HOST
// is set the client talks to the emulator without credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing asset bucket name")
	}
	opts := clientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: c, bucket: bucket, readTimeout: 10 * time.Minute}, nil
}

func clientOptionsFromEnv() []option.ClientOption {
	if strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")) != "" {
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}

// Open starts an object read. The returned reader owns a timeout
// context that is released on Close.
func (g *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, 0, err
	}
	ctx2, cancel := context.WithTimeout(ctx, g.readTimeout)
	r, err := g.client.Bucket(g.bucket).Object(clean).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, 0, errs.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, r.Attrs.Size, nil
}

// Close releases the client.
func (g *GCSStore) Close() error { return g.client.Close() }

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}
