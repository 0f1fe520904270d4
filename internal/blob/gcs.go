package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore serves document blobs from a Google Cloud Storage bucket and
// signs V4 read-only URLs for them.
type GCSStore struct {
	client    *storage.Client
	bucket    string
	accessID  string
	signBytes func([]byte) ([]byte, error)
}

// NewGCSStore creates a store for bucket. With application default
// credentials the access id and signer are detected automatically;
// otherwise set them with WithSigner.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

// WithSigner sets the service account used to sign URLs.
func (s *GCSStore) WithSigner(accessID string, sign func([]byte) ([]byte, error)) *GCSStore {
	s.accessID = accessID
	s.signBytes = sign

	return s
}

func (s *GCSStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat gs://%s/%s: %w", s.bucket, path, err)
	}

	return true, nil
}

// SignReadURL returns a V4 signed GET URL for one object.
func (s *GCSStore) SignReadURL(_ context.Context, path string, expiresAt time.Time) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        expiresAt,
		GoogleAccessID: s.accessID,
		SignBytes:      s.signBytes,
	}

	url, err := s.client.Bucket(s.bucket).SignedURL(path, opts)
	if err != nil {
		return "", fmt.Errorf("sign gs://%s/%s: %w", s.bucket, path, err)
	}

	return url, nil
}

// Shutdown releases the underlying storage client.
func (s *GCSStore) Shutdown() error {
	return s.client.Close()
}
