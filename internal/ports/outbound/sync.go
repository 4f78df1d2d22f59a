package outbound

import (
	"context"
	"time"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
)

// SyncQueue stores the paths of output files waiting to be synced.
// Implementations deduplicate paths and keep insertion order.
type SyncQueue interface {
	// Add records paths. Paths already queued are ignored.
	Add(ctx context.Context, paths ...string) error

	// List returns the queued paths in insertion order.
	List(ctx context.Context) ([]string, error)

	// Remove drops the given paths and keeps any other queued path.
	Remove(ctx context.Context, paths ...string) error

	// Clear removes all queued paths.
	Clear(ctx context.Context) error
}

// SyncDispatcher hands a sync request to whatever executes it, either in
// process or through a message queue.
type SyncDispatcher interface {
	Dispatch(ctx context.Context, req entity.SyncRequest) error
}

// Transferrer copies the files of a request to the remote web area.
type Transferrer interface {
	// Transfer copies req.Files and returns how many files were sent.
	Transfer(ctx context.Context, req entity.SyncRequest) (int, error)

	// Destination describes where files end up, for logs and the ledger.
	Destination(target entity.RemoteTarget) string
}

// RemoteRunner executes a shell command on the remote host of target.
type RemoteRunner interface {
	Run(ctx context.Context, target entity.RemoteTarget, command string) error
}

// SyncRun is one executed request as stored in the ledger.
type SyncRun struct {
	Result entity.SyncResult
	Files  []string
}

// SyncLedger keeps a history of executed sync requests.
type SyncLedger interface {
	// RecordRun stores the result together with the files of the request.
	RecordRun(ctx context.Context, result entity.SyncResult, files []string) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]SyncRun, error)
}

// SyncMetricsRecorder records sync execution metrics.
type SyncMetricsRecorder interface {
	RecordSync(ctx context.Context, status entity.SyncStatus, files int, duration time.Duration)
	RecordGifFailures(ctx context.Context, count int)
}
