// Package memory provides in-memory implementations of the outbound ports.
//
// They are used by tests and by tools that do not need persistence.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that EventSource implements outbound.EventSource
var _ outbound.EventSource = (*EventSource)(nil)

// EventSource serves event arrays registered per file and tree.
type EventSource struct {
	mu    sync.RWMutex
	files map[string]map[string]*entity.EventArray
	reads [][]string
}

// NewEventSource creates an empty source.
func NewEventSource() *EventSource {
	return &EventSource{
		files: make(map[string]map[string]*entity.EventArray),
	}
}

// AddTree registers the content of tree in file.
func (s *EventSource) AddTree(file, tree string, data *entity.EventArray) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files[file] == nil {
		s.files[file] = make(map[string]*entity.EventArray)
	}
	s.files[file][tree] = data
}

// Read implements outbound.EventSource.
func (s *EventSource) Read(ctx context.Context, files []string, tree string, branches []string) (*entity.EventArray, error) {
	s.mu.Lock()
	s.reads = append(s.reads, append([]string(nil), files...))
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out, _ := entity.NewEventArray()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trees, ok := s.files[f]
		if !ok {
			return nil, fmt.Errorf("open %s: file not found", f)
		}
		data, ok := trees[tree]
		if !ok {
			return nil, fmt.Errorf("%s: tree %q not found", f, tree)
		}

		part, err := project(data, branches)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		out, err = out.Concat(part)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	return out, nil
}

// Reads returns the file lists of every Read call, oldest first.
func (s *EventSource) Reads() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]string, len(s.reads))
	copy(out, s.reads)
	return out
}

func project(data *entity.EventArray, branches []string) (*entity.EventArray, error) {
	if len(branches) == 0 {
		return data, nil
	}
	cols := make([]*entity.Column, 0, len(branches))
	for _, b := range branches {
		c, err := data.Column(b)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return entity.NewEventArray(cols...)
}
