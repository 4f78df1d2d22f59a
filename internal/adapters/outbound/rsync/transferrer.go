package rsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/retry"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that Transferrer implements outbound.Transferrer
var _ outbound.Transferrer = (*Transferrer)(nil)

// retryableExitCodes are rsync exit statuses caused by the network or the
// remote side rather than by the request.
var retryableExitCodes = map[int]bool{
	10:  true, // error in socket I/O
	12:  true, // error in rsync protocol data stream
	30:  true, // timeout in data send/receive
	35:  true, // timeout waiting for daemon connection
	255: true, // ssh connection failure
}

// TransferrerConfig holds rsync configuration.
type TransferrerConfig struct {
	// Binary is the rsync executable.
	Binary string

	// Args are passed before the file list. -R keeps the part of each path
	// after the "./" marker.
	Args []string

	// BatchSize limits the number of files per rsync invocation.
	BatchSize int

	Retry  retry.Config
	Output io.Writer
	Logger *slog.Logger
}

// TransferrerConfigDefaults returns the configuration matching a plain
// `rsync -avR`.
func TransferrerConfigDefaults() TransferrerConfig {
	return TransferrerConfig{
		Binary:    "rsync",
		Args:      []string{"-avR"},
		BatchSize: 500,
		Retry:     retry.DefaultConfig(),
		Output:    io.Discard,
	}
}

// Transferrer copies files with rsync.
type Transferrer struct {
	config TransferrerConfig
	run    CommandFunc
	logger *slog.Logger
}

// NewTransferrer creates an rsync transferrer. A nil run uses ExecCommand.
func NewTransferrer(config TransferrerConfig, run CommandFunc) *Transferrer {
	defaults := TransferrerConfigDefaults()
	if config.Binary == "" {
		config.Binary = defaults.Binary
	}
	if config.Args == nil {
		config.Args = defaults.Args
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Retry.MaxRetries == 0 && config.Retry.InitialBackoff == 0 {
		config.Retry = defaults.Retry
	}
	if config.Output == nil {
		config.Output = defaults.Output
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if run == nil {
		run = ExecCommand
	}

	return &Transferrer{
		config: config,
		run:    run,
		logger: config.Logger.With("component", "rsync-transferrer"),
	}
}

// Destination implements outbound.Transferrer.
func (t *Transferrer) Destination(target entity.RemoteTarget) string {
	return target.Destination()
}

// Transfer implements outbound.Transferrer. Files are sent in batches; a
// failed batch stops the transfer and the count covers completed batches.
func (t *Transferrer) Transfer(ctx context.Context, req entity.SyncRequest) (int, error) {
	if err := req.Target.Validate(); err != nil {
		return 0, err
	}
	dest := t.Destination(req.Target)

	sent := 0
	for start := 0; start < len(req.Files); start += t.config.BatchSize {
		end := min(start+t.config.BatchSize, len(req.Files))
		batch := req.Files[start:end]

		args := make([]string, 0, len(t.config.Args)+len(batch)+1)
		args = append(args, t.config.Args...)
		args = append(args, batch...)
		args = append(args, dest)

		err := retry.DoVoid(ctx, t.config.Retry, isRetryable, func(attempt int, err error, backoff time.Duration) {
			t.logger.Warn("rsync failed, retrying",
				"request", req.ID,
				"attempt", attempt,
				"exitCode", exitCode(err),
				"backoff", backoff,
				"error", err)
		}, func() error {
			return t.run(ctx, t.config.Output, t.config.Binary, args...)
		})
		if err != nil {
			return sent, fmt.Errorf("rsync to %s failed: %w", dest, err)
		}
		sent += len(batch)
	}

	t.logger.Info("synced files", "request", req.ID, "files", sent, "destination", dest)
	return sent, nil
}

func isRetryable(err error) bool {
	return retryableExitCodes[exitCode(err)]
}
