// Package filequeue stores queued output paths in a plain text file, one
// path per line. The file can live on a volume shared between a container
// that records paths and the host that flushes them.
package filequeue

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// DefaultPath is the queue file used when none is configured.
const DefaultPath = "file_sync_storage.txt"

// Compile-time check that Queue implements outbound.SyncQueue
var _ outbound.SyncQueue = (*Queue)(nil)

// Queue is a file backed implementation of outbound.SyncQueue.
type Queue struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a queue stored at path. An empty path means DefaultPath.
// The file is created on first Add.
func New(path string, logger *slog.Logger) *Queue {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		path:   path,
		logger: logger.With("component", "file-sync-queue", "path", path),
	}
}

// Path returns the queue file.
func (q *Queue) Path() string {
	return q.path
}

// Add implements outbound.SyncQueue.
func (q *Queue) Add(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.read()
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p] = struct{}{}
	}

	var fresh []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return nil
	}

	if dir := filepath.Dir(q.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create queue directory: %w", err)
		}
	}
	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open queue file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, p := range fresh {
		w.WriteString(p)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close queue file: %w", err)
	}

	q.logger.Debug("queued paths", "added", len(fresh))
	return nil
}

// List implements outbound.SyncQueue. A missing file is an empty queue.
func (q *Queue) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read()
}

// Remove implements outbound.SyncQueue. The remaining paths are written to a
// temporary file that replaces the queue file.
func (q *Queue) Remove(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.read()
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		drop[strings.TrimSpace(p)] = struct{}{}
	}
	var kept []string
	for _, p := range existing {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(existing) {
		return nil
	}
	if len(kept) == 0 {
		if err := os.Remove(q.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to clear queue file: %w", err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(q.path), filepath.Base(q.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create queue file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, p := range kept {
		w.WriteString(p)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close queue file: %w", err)
	}
	if err := os.Rename(tmp.Name(), q.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace queue file: %w", err)
	}
	q.logger.Debug("removed paths", "removed", len(existing)-len(kept), "kept", len(kept))
	return nil
}

// Clear implements outbound.SyncQueue.
func (q *Queue) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.Remove(q.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear queue file: %w", err)
	}
	return nil
}

// read returns the unique non-empty lines of the queue file in order.
// Duplicates can appear when another process appended concurrently.
func (q *Queue) read() ([]string, error) {
	f, err := os.Open(q.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open queue file: %w", err)
	}
	defer f.Close()

	var paths []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}
	return paths, nil
}
