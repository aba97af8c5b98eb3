// Package blobstore stores product images in an external object store.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"storefront/internal/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyObject = errors.New("object is empty")

// UploadInput is a single file to store.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Reference locates a stored object.
type Reference struct {
	URL         string
	StorageID   string
	ContentType string
}

// Store uploads and deletes objects. Implementations are safe for concurrent use.
type Store interface {
	Upload(ctx context.Context, in UploadInput) (Reference, error)
	Delete(ctx context.Context, ref Reference) error
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.StorageS3:
		store, err := NewS3Store(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageMinIO:
		return NewMinIOStore(ctx, cfg, logger)
	case config.StorageMemory, "":
		logger.Warn("Using in-memory blob store; uploaded images are not persisted")
		return NewMemoryStore(cfg.PublicURL, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// prepare resolves the content type and the object key for in.
func prepare(prefix string, in UploadInput) (key, contentType string, err error) {
	if len(in.Data) == 0 {
		return "", "", ErrEmptyObject
	}

	detected := mimetype.Detect(in.Data)
	contentType = in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detected.String()
	}

	ext := strings.ToLower(path.Ext(in.Filename))
	if ext == "" {
		ext = detected.Extension()
	}

	key = uuid.NewString() + ext
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key, contentType, nil
}

// objectURL joins a base URL and an object key.
func objectURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
