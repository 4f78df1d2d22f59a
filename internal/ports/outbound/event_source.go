// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
)

// EventSource reads columnar event data from tree files.
type EventSource interface {
	// Read concatenates the given branches of tree over files, in file order.
	// An empty branches slice reads every branch of the tree.
	Read(ctx context.Context, files []string, tree string, branches []string) (*entity.EventArray, error)
}
