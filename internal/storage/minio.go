package storage

import (
	"context"
	"fmt"
	"io"

	"formintake/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects and creates the bucket when it does not exist yet.
func NewMinioStore(ctx context.Context, cfg MinioConfig, log *logger.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioStore) Upload(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) (*UploadResult, error) {
	info, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object: %w", err)
	}
	return &UploadResult{ObjectName: info.Key, Size: info.Size}, nil
}

func (m *MinioStore) Delete(ctx context.Context, objectName string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (m *MinioStore) Close() error { return nil }
