package memory

import (
	"context"
	"sync"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that Dispatcher implements outbound.SyncDispatcher
var _ outbound.SyncDispatcher = (*Dispatcher)(nil)

// Dispatcher stores dispatched requests for inspection in tests.
type Dispatcher struct {
	mu       sync.Mutex
	requests []entity.SyncRequest
	err      error
}

// NewDispatcher creates a dispatcher that accepts every request.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// SetError makes subsequent Dispatch calls fail with err.
func (d *Dispatcher) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Dispatch implements outbound.SyncDispatcher.
func (d *Dispatcher) Dispatch(_ context.Context, req entity.SyncRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.requests = append(d.requests, req)
	return nil
}

// Requests returns all dispatched requests.
func (d *Dispatcher) Requests() []entity.SyncRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]entity.SyncRequest, len(d.requests))
	copy(out, d.requests)
	return out
}
