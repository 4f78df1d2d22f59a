package outbound

import (
	"context"
	"time"
)

// GeneratorMetricsRecorder records data generator metrics.
type GeneratorMetricsRecorder interface {
	// RecordChunkLoaded records a loaded chunk with its row count and load time.
	RecordChunkLoaded(ctx context.Context, strategy string, rows int, duration time.Duration)

	// RecordSelection records the fraction of events kept by a selection.
	RecordSelection(ctx context.Context, efficiency float64)
}
