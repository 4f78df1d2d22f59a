package memory

import (
	"context"
	"sync"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that SyncLedger implements outbound.SyncLedger
var _ outbound.SyncLedger = (*SyncLedger)(nil)

// SyncLedger keeps sync runs in memory.
type SyncLedger struct {
	mu   sync.RWMutex
	runs []outbound.SyncRun
}

// NewSyncLedger creates an empty ledger.
func NewSyncLedger() *SyncLedger {
	return &SyncLedger{}
}

// RecordRun implements outbound.SyncLedger.
func (l *SyncLedger) RecordRun(_ context.Context, result entity.SyncResult, files []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, outbound.SyncRun{
		Result: result,
		Files:  append([]string(nil), files...),
	})
	return nil
}

// RecentRuns implements outbound.SyncLedger.
func (l *SyncLedger) RecentRuns(_ context.Context, limit int) ([]outbound.SyncRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.runs) {
		limit = len(l.runs)
	}
	out := make([]outbound.SyncRun, 0, limit)
	for i := len(l.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.runs[i])
	}
	return out, nil
}
