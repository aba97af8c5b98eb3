package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var _ Store = (*MinIOStore)(nil)

// MinIOStore stores objects in a MinIO server.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewMinIOClient creates a MinIO client without touching the network.
func NewMinIOClient(cfg config.StorageConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(strings.TrimRight(host, "/"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// NewMinIOStore connects to MinIO and creates the bucket when it is missing.
func NewMinIOStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinIOStore, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		logger.Info("Creating storage bucket", zap.String("bucket", cfg.Bucket))
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return newMinIOStore(client, cfg), nil
}

func newMinIOStore(client *minio.Client, cfg config.StorageConfig) *MinIOStore {
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = objectURL(client.EndpointURL().String(), cfg.Bucket)
	}
	return &MinIOStore{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: publicURL,
	}
}

func (s *MinIOStore) Upload(ctx context.Context, in UploadInput) (Reference, error) {
	key, contentType, err := prepare(s.prefix, in)
	if err != nil {
		return Reference{}, err
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(in.Data),
		int64(len(in.Data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to upload to minio: %w", err)
	}

	return Reference{
		URL:         objectURL(s.publicURL, key),
		StorageID:   key,
		ContentType: contentType,
	}, nil
}

func (s *MinIOStore) Delete(ctx context.Context, ref Reference) error {
	if ref.StorageID == "" {
		return errors.New("storage key is required")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, ref.StorageID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
