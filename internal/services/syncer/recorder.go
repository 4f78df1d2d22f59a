package syncer

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// SaveFunc writes an output file to path.
type SaveFunc func(path string) error

// Recorder is the output sink of an analysis job. Every file written
// through it is queued on the collector.
type Recorder struct {
	collector *Collector
	logger    *slog.Logger
}

// NewRecorder creates a recorder feeding collector.
func NewRecorder(collector *Collector, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		collector: collector,
		logger:    logger.With("component", "sync-recorder"),
	}
}

// Record creates the parent directory of path if needed and queues path.
func (r *Recorder) Record(ctx context.Context, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return r.collector.Append(ctx, path)
}

// Wrap returns save with recording: the parent directory is created before
// save runs and the path is queued once save succeeds.
func (r *Recorder) Wrap(ctx context.Context, save SaveFunc) SaveFunc {
	return func(path string) error {
		if err := ensureDir(path); err != nil {
			return err
		}
		if err := save(path); err != nil {
			return err
		}
		return r.collector.Append(ctx, path)
	}
}

// SavePlot saves p with the given size to path, the format following the
// file extension, and records it.
func (r *Recorder) SavePlot(ctx context.Context, p *plot.Plot, w, h vg.Length, path string) error {
	return r.Wrap(ctx, func(path string) error {
		if err := p.Save(w, h, path); err != nil {
			return fmt.Errorf("failed to save plot %s: %w", path, err)
		}
		return nil
	})(path)
}

// Create creates path for writing and records it.
func (r *Recorder) Create(ctx context.Context, path string) (*os.File, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := r.collector.Append(ctx, path); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Dump gob-encodes v into f and records the file.
func (r *Recorder) Dump(ctx context.Context, v any, f *os.File) error {
	if f == nil {
		r.logger.Warn("dump called without a file")
		return fmt.Errorf("dump: no file to write to")
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode into %s: %w", f.Name(), err)
	}
	return r.collector.Append(ctx, f.Name())
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
