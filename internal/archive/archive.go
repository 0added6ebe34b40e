// Package archive stores the raw source files of every import in Google
// Cloud Storage, so a statement can always be traced back to the file it
// came from.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Storage is the archive contract consumed by the import pipeline.
type Storage interface {
	// Store uploads the file content and returns its gs:// URI.
	Store(ctx context.Context, filename string, content []byte) (string, error)

	// Fetch downloads the file bytes from the given gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSStorage archives files in a GCS bucket under dated object names.
type GCSStorage struct {
	bucket string
}

// NewGCSStorage creates an archive over the given bucket. It assumes
// Application Default Credentials are configured.
func NewGCSStorage(bucket string) *GCSStorage {
	return &GCSStorage{bucket: bucket}
}

// Store implements Storage. Object names are prefixed with the upload
// date plus a random ID so re-importing the same filename never
// overwrites an earlier archive copy.
func (s *GCSStorage) Store(ctx context.Context, filename string, content []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Store: create storage client: %w", err)
	}
	defer client.Close()

	objectName := fmt.Sprintf("estratti/%s/%s-%s",
		time.Now().Format("2006/01/02"), uuid.New().String(), path.Base(filename))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(content)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Store: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Store: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Fetch implements Storage.
func (s *GCSStorage) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// splitURI parses a gs://bucket/object URI.
func splitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

var _ Storage = (*GCSStorage)(nil)
