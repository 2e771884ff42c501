package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const uploadTimeout = 5 * time.Minute

// GCSStorage mirrors artifacts to a Google Cloud Storage bucket.
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	objectPrefix string
}

// NewGCSStorage creates a client using credentialsFile, or application default
// credentials when it is empty.
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, credentialsFile string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:       client,
		bucket:       bucketName,
		objectPrefix: strings.Trim(objectPrefix, "/"),
	}, nil
}

// Publish uploads a local file to the bucket
func (s *GCSStorage) Publish(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	objectName = s.objectName(objectName)
	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType(objectName)

	if _, err = io.Copy(wc, f); err != nil {
		wc.Close()
		return fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	slog.Debug("Uploaded object", "bucket", s.bucket, "object", objectName)
	return nil
}

// List lists objects under prefix, returned without the configured object prefix.
func (s *GCSStorage) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix: s.objectName(prefix),
	})

	var results []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}

		// Skip directory placeholders
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		results = append(results, s.stripPrefix(attrs.Name))
	}

	return results, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) objectName(name string) string {
	if s.objectPrefix == "" {
		return name
	}
	return s.objectPrefix + "/" + name
}

func (s *GCSStorage) stripPrefix(name string) string {
	if s.objectPrefix == "" {
		return name
	}
	return strings.TrimPrefix(name, s.objectPrefix+"/")
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
