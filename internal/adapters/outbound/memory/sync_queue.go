package memory

import (
	"context"
	"sync"

	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that SyncQueue implements outbound.SyncQueue
var _ outbound.SyncQueue = (*SyncQueue)(nil)

// SyncQueue is an in-process queue of output paths.
type SyncQueue struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

// NewSyncQueue creates an empty queue.
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{seen: make(map[string]struct{})}
}

// Add implements outbound.SyncQueue.
func (q *SyncQueue) Add(_ context.Context, paths ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range paths {
		if _, ok := q.seen[p]; ok {
			continue
		}
		q.seen[p] = struct{}{}
		q.paths = append(q.paths, p)
	}
	return nil
}

// List implements outbound.SyncQueue.
func (q *SyncQueue) List(_ context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.paths))
	copy(out, q.paths)
	return out, nil
}

// Remove implements outbound.SyncQueue.
func (q *SyncQueue) Remove(_ context.Context, paths ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	drop := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		drop[p] = struct{}{}
		delete(q.seen, p)
	}
	kept := q.paths[:0]
	for _, p := range q.paths {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	q.paths = kept
	return nil
}

// Clear implements outbound.SyncQueue.
func (q *SyncQueue) Clear(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paths = nil
	q.seen = make(map[string]struct{})
	return nil
}
