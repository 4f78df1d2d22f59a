package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// s3WriterAPI defines the subset of S3 operations needed by the Writer.
type s3WriterAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Compile-time check that Writer implements outbound.S3Writer
var _ outbound.S3Writer = (*Writer)(nil)

// Writer implements the S3Writer interface using the AWS SDK.
type Writer struct {
	client s3WriterAPI
	logger *slog.Logger
}

// NewWriter creates a new S3 Writer with optional S3 client options.
func NewWriter(cfg aws.Config, logger *slog.Logger, optFns ...func(*s3.Options)) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		client: s3.NewFromConfig(cfg, optFns...),
		logger: logger.With("component", "s3-writer"),
	}
}

// WriteFile writes content to key, replacing any existing object.
func (w *Writer) WriteFile(ctx context.Context, bucket, key string, content io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   content,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("failed to write %s to S3 (%s): %w", key, apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("failed to write %s to S3: %w", key, err)
	}

	w.logger.Debug("wrote file to S3", "bucket", bucket, "key", key)
	return nil
}

// ObjectSize returns the size of the object at key, or -1 if it does not exist.
func (w *Writer) ObjectSize(ctx context.Context, bucket, key string) (int64, error) {
	out, err := w.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return -1, nil
		}
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return -1, nil
		}
		return 0, fmt.Errorf("failed to check if file exists: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}
