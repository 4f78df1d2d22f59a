// Package s3 publishes synced files to an S3 bucket and lists what has
// been published.
package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// ErrStopWalk ends a Walk early without an error.
var ErrStopWalk = errors.New("stop walk")

type listAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ outbound.S3Reader = (*Reader)(nil)

// Reader lists the objects published below a prefix.
type Reader struct {
	client listAPI
	logger *slog.Logger
}

// NewReader creates a Reader. optFns are passed to the S3 client, e.g.
// awsutil.S3Options for a local endpoint.
func NewReader(cfg aws.Config, logger *slog.Logger, optFns ...func(*s3.Options)) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		client: s3.NewFromConfig(cfg, optFns...),
		logger: logger.With("component", "s3-reader"),
	}
}

// Walk calls fn for every object below prefix, page by page. Directory
// markers (keys ending in "/") are skipped. Returning ErrStopWalk from fn
// stops the walk; any other error is returned.
func (r *Reader) Walk(ctx context.Context, bucket, prefix string, fn func(outbound.S3File) error) error {
	pages := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			file, ok := toFile(obj)
			if !ok {
				continue
			}
			if err := fn(file); err != nil {
				if errors.Is(err, ErrStopWalk) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// ListFiles returns every object below prefix sorted by key.
func (r *Reader) ListFiles(ctx context.Context, bucket, prefix string) ([]outbound.S3File, error) {
	var files []outbound.S3File
	err := r.Walk(ctx, bucket, prefix, func(f outbound.S3File) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	r.logger.Debug("listed published files", "bucket", bucket, "prefix", prefix, "files", len(files))
	return files, nil
}

func toFile(obj types.Object) (outbound.S3File, bool) {
	if obj.Key == nil || obj.Size == nil || obj.LastModified == nil || strings.HasSuffix(*obj.Key, "/") {
		return outbound.S3File{}, false
	}
	return outbound.S3File{Key: *obj.Key, Size: *obj.Size, LastModified: *obj.LastModified}, true
}
