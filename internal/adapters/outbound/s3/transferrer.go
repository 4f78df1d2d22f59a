package s3

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that Transferrer implements outbound.Transferrer
var _ outbound.Transferrer = (*Transferrer)(nil)

// TransferrerConfig holds configuration for the S3 transferrer.
type TransferrerConfig struct {
	Bucket string

	// Prefix is prepended to every key. {user} is replaced by the target user.
	Prefix string

	// SkipUnchanged skips files whose object already has the local size.
	SkipUnchanged bool

	Logger *slog.Logger
}

// TransferrerConfigDefaults returns the defaults applied to zero-valued fields.
func TransferrerConfigDefaults() TransferrerConfig {
	return TransferrerConfig{
		Prefix: "{user}/www",
		Logger: slog.Default(),
	}
}

// Transferrer uploads the files of a sync request to S3. A file
// .../www/./<rel> is stored under <prefix>/<rel>.
type Transferrer struct {
	config TransferrerConfig
	writer *Writer
	logger *slog.Logger
}

// NewTransferrer creates a transferrer writing through writer.
func NewTransferrer(config TransferrerConfig, writer *Writer) (*Transferrer, error) {
	if writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	defaults := TransferrerConfigDefaults()
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Transferrer{
		config: config,
		writer: writer,
		logger: config.Logger.With("component", "s3-transferrer"),
	}, nil
}

// Destination implements outbound.Transferrer.
func (t *Transferrer) Destination(target entity.RemoteTarget) string {
	return "s3://" + t.config.Bucket + "/" + t.prefix(target) + "/"
}

func (t *Transferrer) prefix(target entity.RemoteTarget) string {
	return strings.Trim(strings.ReplaceAll(t.config.Prefix, "{user}", target.User), "/")
}

// Key returns the object key for an rsync path.
func (t *Transferrer) Key(target entity.RemoteTarget, rsyncPath string) (string, error) {
	rel, err := entity.WebRelative(rsyncPath)
	if err != nil {
		return "", err
	}
	return path.Join(t.prefix(target), filepath.ToSlash(rel)), nil
}

// Transfer implements outbound.Transferrer. It stops at the first failing
// file and reports how many were uploaded before it.
func (t *Transferrer) Transfer(ctx context.Context, req entity.SyncRequest) (int, error) {
	sent := 0
	for _, file := range req.Files {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		key, err := t.Key(req.Target, file)
		if err != nil {
			return sent, err
		}

		uploaded, err := t.upload(ctx, file, key)
		if err != nil {
			return sent, err
		}
		if uploaded {
			sent++
		}
	}

	t.logger.Info("uploaded files", "request", req.ID, "uploaded", sent, "files", len(req.Files))
	return sent, nil
}

func (t *Transferrer) upload(ctx context.Context, file, key string) (bool, error) {
	f, err := os.Open(file)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	if t.config.SkipUnchanged {
		info, err := f.Stat()
		if err != nil {
			return false, fmt.Errorf("failed to stat %s: %w", file, err)
		}
		size, err := t.writer.ObjectSize(ctx, t.config.Bucket, key)
		if err != nil {
			return false, err
		}
		if size == info.Size() {
			t.logger.Debug("unchanged, skipping", "key", key)
			return false, nil
		}
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := t.writer.WriteFile(ctx, t.config.Bucket, key, f, contentType); err != nil {
		return false, err
	}
	return true, nil
}
