package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that Executor implements outbound.SyncDispatcher
var _ outbound.SyncDispatcher = (*Executor)(nil)

// ExecutorConfig holds configuration for the executor.
type ExecutorConfig struct {
	// Ledger stores executed requests (optional).
	Ledger outbound.SyncLedger

	// Metrics is the metrics recorder (optional).
	Metrics outbound.SyncMetricsRecorder

	Logger *slog.Logger
}

// Executor copies the files of a request and then builds its gifs on the
// remote host.
type Executor struct {
	transferrer outbound.Transferrer
	runner      outbound.RemoteRunner
	ledger      outbound.SyncLedger
	metrics     outbound.SyncMetricsRecorder
	logger      *slog.Logger
}

// NewExecutor creates an executor. runner may be nil when no request
// carries gif jobs.
func NewExecutor(config ExecutorConfig, transferrer outbound.Transferrer, runner outbound.RemoteRunner) (*Executor, error) {
	if transferrer == nil {
		return nil, fmt.Errorf("transferrer is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Executor{
		transferrer: transferrer,
		runner:      runner,
		ledger:      config.Ledger,
		metrics:     config.Metrics,
		logger:      config.Logger.With("component", "sync-executor"),
	}, nil
}

// Dispatch implements outbound.SyncDispatcher by executing req in process.
func (e *Executor) Dispatch(ctx context.Context, req entity.SyncRequest) error {
	_, err := e.Execute(ctx, req)
	return err
}

// Execute runs req. Failed gif commands do not fail the request; they are
// listed in the result with status partial.
func (e *Executor) Execute(ctx context.Context, req entity.SyncRequest) (entity.SyncResult, error) {
	result := entity.SyncResult{
		RequestID:   req.ID,
		Destination: e.transferrer.Destination(req.Target),
		StartedAt:   time.Now().UTC(),
	}

	if err := req.Validate(); err != nil {
		return result, fmt.Errorf("invalid sync request: %w", err)
	}

	logger := e.logger.With("request", req.ID)

	if len(req.Files) > 0 {
		logger.Info("syncing files", "files", len(req.Files), "destination", result.Destination)
		n, err := e.transferrer.Transfer(ctx, req)
		result.Transferred = n
		if err != nil {
			result.Status = entity.SyncStatusFailed
			result.Error = err.Error()
			e.finish(ctx, &result, req.Files)
			return result, fmt.Errorf("failed to transfer files: %w", err)
		}
	}

	result.FailedGifs = e.makeGifs(ctx, logger, req)

	result.Status = entity.SyncStatusSucceeded
	if len(result.FailedGifs) > 0 {
		result.Status = entity.SyncStatusPartial
	}
	e.finish(ctx, &result, req.Files)

	logger.Info("sync finished",
		"status", result.Status,
		"transferred", result.Transferred,
		"failedGifs", len(result.FailedGifs),
		"duration", result.Duration(),
	)
	return result, nil
}

// makeGifs runs the gif commands and returns those that failed.
func (e *Executor) makeGifs(ctx context.Context, logger *slog.Logger, req entity.SyncRequest) []string {
	var failed []string
	for _, job := range req.Gifs {
		cmd, err := job.Command(req.Target)
		if err != nil {
			logger.Warn("skipping gif", "directory", job.Directory, "error", err)
			failed = append(failed, job.Directory)
			continue
		}
		if e.runner == nil {
			logger.Warn("no remote runner configured for gif", "command", cmd)
			failed = append(failed, cmd)
			continue
		}

		logger.Info("make gif", "command", cmd)
		if err := e.runner.Run(ctx, req.Target, cmd); err != nil {
			logger.Error("gif command failed", "command", cmd, "error", err)
			failed = append(failed, cmd)
		}
	}
	return failed
}

func (e *Executor) finish(ctx context.Context, result *entity.SyncResult, files []string) {
	result.FinishedAt = time.Now().UTC()

	if e.ledger != nil {
		if err := e.ledger.RecordRun(ctx, *result, files); err != nil {
			e.logger.Error("failed to record sync run", "request", result.RequestID, "error", err)
		}
	}
	if e.metrics != nil {
		e.metrics.RecordSync(ctx, result.Status, result.Transferred, result.Duration())
		e.metrics.RecordGifFailures(ctx, len(result.FailedGifs))
	}
}
