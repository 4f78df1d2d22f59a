package outbound

import (
	"context"
	"io"
	"time"
)

// S3File represents metadata about a file in S3.
type S3File struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// S3Reader lists published files in a bucket.
type S3Reader interface {
	ListFiles(ctx context.Context, bucket, prefix string) ([]S3File, error)
}

// S3Writer uploads files to a bucket.
type S3Writer interface {
	// WriteFile writes content to key, replacing any existing object.
	WriteFile(ctx context.Context, bucket, key string, content io.Reader, contentType string) error
}
