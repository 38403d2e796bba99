// Package storage keeps the original uploads that templates are generated from.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

type UploadResult struct {
	ObjectName string
	Size       int64
}

type ObjectStore interface {
	Upload(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) (*UploadResult, error)
	Delete(ctx context.Context, objectName string) error
	Close() error
}

// GenerateObjectName places an upload under uploads/<owner>/<unix><ext>.
func GenerateObjectName(owner, originalFilename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("uploads/%s/%d%s", owner, now.Unix(), ext)
}

// Nop discards uploads. Used when no storage driver is configured.
type Nop struct{}

func (Nop) Upload(_ context.Context, r io.Reader, _ int64, objectName, _ string) (*UploadResult, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}
	return &UploadResult{ObjectName: objectName, Size: n}, nil
}

func (Nop) Delete(context.Context, string) error { return nil }

func (Nop) Close() error { return nil }
