// Package storage mirrors finished artifacts to a storage backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaki95/yt-media-server/config"
)

var ErrUnknownStorageType = errors.New("unknown storage type")

// Storage receives artifacts after they have been written locally.
type Storage interface {
	// Publish makes the local file available under objectName.
	Publish(ctx context.Context, localPath, objectName string) error

	// List returns the object names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// New builds the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", config.StorageLocal:
		return NewLocalStorage(cfg.AudioDir, cfg.DataDir), nil
	case config.StorageGCS:
		return NewGCSStorage(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix, cfg.GCS.CredentialsFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorageType, cfg.Type)
	}
}
