package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines minimal object storage operations required by the
// snapshot run artifact flow (run summaries and creation logs).
// It is intentionally small so we can swap MinIO/AWS-S3 implementations
// without touching business logic.
type ObjectStorage interface {
	// PutObject uploads an object.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error

	// GetObject opens a reader for an object.
	// Caller must close the returned reader.
	GetObject(ctx context.Context, bucket, objectKey string) (ObjectReader, error)

	// PresignDownload returns a presigned URL for downloading an object via HTTP GET.
	PresignDownload(ctx context.Context, bucket, objectKey string, ttl time.Duration) (string, error)

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectReader is a streaming reader for object data.
type ObjectReader interface {
	Read(p []byte) (int, error)
	Close() error
}

// ObjectStat contains object metadata.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
