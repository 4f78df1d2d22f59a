package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

var (
	_ outbound.GeneratorMetricsRecorder = (*Metrics)(nil)
	_ outbound.SyncMetricsRecorder      = (*Metrics)(nil)
)

// Metrics records generator and sync metrics with OpenTelemetry.
type Metrics struct {
	chunkLoadDuration   metric.Float64Histogram
	chunkRows           metric.Int64Counter
	selectionEfficiency metric.Float64Histogram
	syncDuration        metric.Float64Histogram
	syncFiles           metric.Int64Counter
	gifFailures         metric.Int64Counter
}

// NewMetrics creates a recorder on the global meter provider.
// meterName should typically be the package or tool name.
func NewMetrics(meterName string) (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider(), meterName)
}

// NewMetricsWithProvider creates a recorder on provider.
func NewMetricsWithProvider(provider metric.MeterProvider, meterName string) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	m.chunkLoadDuration, err = meter.Float64Histogram(
		"datagen_chunk_load_duration_seconds",
		metric.WithDescription("Time taken to read and select one chunk"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create datagen_chunk_load_duration_seconds histogram: %w", err)
	}

	m.chunkRows, err = meter.Int64Counter(
		"datagen_rows_loaded_total",
		metric.WithDescription("Total number of events served in chunks"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create datagen_rows_loaded_total counter: %w", err)
	}

	m.selectionEfficiency, err = meter.Float64Histogram(
		"datagen_selection_efficiency",
		metric.WithDescription("Fraction of events kept by the selection"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create datagen_selection_efficiency histogram: %w", err)
	}

	m.syncDuration, err = meter.Float64Histogram(
		"sync_duration_seconds",
		metric.WithDescription("Time taken to execute a sync request"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_duration_seconds histogram: %w", err)
	}

	m.syncFiles, err = meter.Int64Counter(
		"sync_files_total",
		metric.WithDescription("Total number of files transferred"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_files_total counter: %w", err)
	}

	m.gifFailures, err = meter.Int64Counter(
		"sync_gif_failures_total",
		metric.WithDescription("Total number of remote gif commands that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync_gif_failures_total counter: %w", err)
	}

	return m, nil
}

// RecordChunkLoaded records the load time and size of a chunk.
func (m *Metrics) RecordChunkLoaded(ctx context.Context, strategy string, rows int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))
	m.chunkLoadDuration.Record(ctx, duration.Seconds(), attrs)
	m.chunkRows.Add(ctx, int64(rows), attrs)
}

// RecordSelection records the selection efficiency of a chunk.
func (m *Metrics) RecordSelection(ctx context.Context, efficiency float64) {
	m.selectionEfficiency.Record(ctx, efficiency)
}

// RecordSync records an executed sync request.
func (m *Metrics) RecordSync(ctx context.Context, status entity.SyncStatus, files int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	m.syncDuration.Record(ctx, duration.Seconds(), attrs)
	m.syncFiles.Add(ctx, int64(files), attrs)
}

// RecordGifFailures counts failed remote gif commands.
func (m *Metrics) RecordGifFailures(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.gifFailures.Add(ctx, int64(count))
}
