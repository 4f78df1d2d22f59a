package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that SyncLedger implements outbound.SyncLedger.
var _ outbound.SyncLedger = (*SyncLedger)(nil)

// SyncLedger is a PostgreSQL implementation of the outbound.SyncLedger port.
// A request that is executed again, e.g. after redelivery, replaces its
// earlier run.
type SyncLedger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSyncLedger creates a new PostgreSQL sync ledger.
func NewSyncLedger(pool *pgxpool.Pool, logger *slog.Logger) (*SyncLedger, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncLedger{
		pool:   pool,
		logger: logger.With("component", "sync-ledger"),
	}, nil
}

// RecordRun implements outbound.SyncLedger. The run and its files are
// written in one transaction.
func (l *SyncLedger) RecordRun(ctx context.Context, result entity.SyncResult, files []string) error {
	if result.RequestID == "" {
		return fmt.Errorf("sync result has no request id")
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			l.logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	failedGifs := result.FailedGifs
	if failedGifs == nil {
		failedGifs = []string{}
	}

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO sync_runs (request_id, status, transferred, failed_gifs, destination, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO UPDATE SET
			status = EXCLUDED.status,
			transferred = EXCLUDED.transferred,
			failed_gifs = EXCLUDED.failed_gifs,
			destination = EXCLUDED.destination,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
		RETURNING id
	`, result.RequestID, string(result.Status), result.Transferred, failedGifs,
		result.Destination, result.Error, result.StartedAt, result.FinishedAt).Scan(&runID)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM sync_files WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("deleting previous sync files: %w", err)
	}

	if len(files) > 0 {
		rows := make([][]any, len(files))
		for i, f := range files {
			rows[i] = []any{runID, i, f}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"sync_files"},
			[]string{"run_id", "position", "path"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copying sync files: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}

	l.logger.Debug("recorded sync run", "request", result.RequestID, "status", result.Status, "files", len(files))
	return nil
}

// RecentRuns implements outbound.SyncLedger. A limit <= 0 returns all runs.
func (l *SyncLedger) RecentRuns(ctx context.Context, limit int) ([]outbound.SyncRun, error) {
	query := `
		SELECT id, request_id, status, transferred, failed_gifs, destination, error, started_at, finished_at
		FROM sync_runs
		ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []outbound.SyncRun
	var ids []int64
	index := make(map[int64]int)
	for rows.Next() {
		var id int64
		var status string
		var r entity.SyncResult
		if err := rows.Scan(&id, &r.RequestID, &status, &r.Transferred, &r.FailedGifs,
			&r.Destination, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		r.Status = entity.SyncStatus(status)
		if len(r.FailedGifs) == 0 {
			r.FailedGifs = nil
		}
		index[id] = len(runs)
		ids = append(ids, id)
		runs = append(runs, outbound.SyncRun{Result: r})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	fileRows, err := l.pool.Query(ctx, `
		SELECT run_id, path
		FROM sync_files
		WHERE run_id = ANY($1)
		ORDER BY run_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying sync files: %w", err)
	}
	defer fileRows.Close()

	for fileRows.Next() {
		var runID int64
		var path string
		if err := fileRows.Scan(&runID, &path); err != nil {
			return nil, fmt.Errorf("scanning sync file: %w", err)
		}
		i := index[runID]
		runs[i].Files = append(runs[i].Files, path)
	}
	if err := fileRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync files: %w", err)
	}
	return runs, nil
}
