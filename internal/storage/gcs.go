package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSStore struct {
	client     *storage.Client
	bucketName string
}

func NewGCSStore(ctx context.Context, bucketName, credentialsPath string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{client: client, bucketName: bucketName}, nil
}

func (g *GCSStore) Upload(ctx context.Context, reader io.Reader, _ int64, objectName, contentType string) (*UploadResult, error) {
	writer := g.client.Bucket(g.bucketName).Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType

	size, err := io.Copy(writer, reader)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return &UploadResult{ObjectName: objectName, Size: size}, nil
}

func (g *GCSStore) Delete(ctx context.Context, objectName string) error {
	if err := g.client.Bucket(g.bucketName).Object(objectName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object from GCS: %w", err)
	}
	return nil
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}
