// Package datagen serves columnar event data to a training loop in chunks.
//
// A Generator resolves its inputs to a list of ROOT files and splits either
// the files or the selected events into NSplit near-equal chunks with
// partition.Split. Chunk i is loaded on demand and cached until another
// chunk is requested.
package datagen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/partition"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// tracerName is the instrumentation name for this service.
const tracerName = "github.com/hephy-analysis/analysis-tools/internal/services/datagen"

// Strategy selects what is partitioned into chunks.
type Strategy string

const (
	// SplitFiles assigns whole files to chunks.
	SplitFiles Strategy = "files"
	// SplitEvents assigns event rows to chunks after the selection.
	SplitEvents Strategy = "events"
)

// ParseStrategy parses a strategy name case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case SplitFiles:
		return SplitFiles, nil
	case SplitEvents:
		return SplitEvents, nil
	default:
		return "", fmt.Errorf("splitting strategy must be %q or %q, got %q", SplitFiles, SplitEvents, s)
	}
}

// All as chunk index loads every event as one chunk.
const All = -1

// PerFile as NSplit with the files strategy makes every file its own chunk.
const PerFile = -1

// ErrEmptyChunk is returned when a matrix is requested from a chunk
// without events.
var ErrEmptyChunk = errors.New("chunk has no events")

// ErrNotLoaded is returned by the reshaping helpers before any chunk is loaded.
var ErrNotLoaded = errors.New("no chunk loaded")

// Config holds configuration for the generator.
type Config struct {
	// Inputs are .root files (local paths or root:// URLs) or directories
	// containing .root files.
	Inputs []string

	// Branches to read. Empty means every branch of the tree.
	Branches []string

	// NSplit is the number of chunks. PerFile with SplitFiles yields one
	// chunk per input file.
	NSplit int

	// Strategy is SplitFiles or SplitEvents.
	Strategy Strategy

	// TreeName is the name of the tree inside every file.
	TreeName string

	// Selection filters events after reading (optional).
	Selection Selection

	// Metrics is the metrics recorder (optional).
	Metrics outbound.GeneratorMetricsRecorder

	Logger *slog.Logger
}

// ConfigDefaults returns the defaults applied to zero-valued fields.
func ConfigDefaults() Config {
	return Config{
		NSplit:   1,
		Strategy: SplitFiles,
		TreeName: "Events",
		Logger:   slog.Default(),
	}
}

// Generator loads chunks of event data.
type Generator struct {
	config  Config
	files   []string
	source  outbound.EventSource
	metrics outbound.GeneratorMetricsRecorder
	logger  *slog.Logger

	mu    sync.Mutex
	index int
	data  *entity.EventArray
}

// New resolves the inputs and validates the split configuration.
func New(config Config, source outbound.EventSource) (*Generator, error) {
	if source == nil {
		return nil, fmt.Errorf("event source is required")
	}

	defaults := ConfigDefaults()
	if config.Strategy == "" {
		config.Strategy = defaults.Strategy
	}
	if config.TreeName == "" {
		config.TreeName = defaults.TreeName
	}
	if config.NSplit == 0 {
		config.NSplit = defaults.NSplit
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	strategy, err := ParseStrategy(string(config.Strategy))
	if err != nil {
		return nil, err
	}
	config.Strategy = strategy

	files, err := ResolveInputs(config.Inputs)
	if err != nil {
		return nil, err
	}

	if config.Strategy == SplitFiles && config.NSplit < 0 {
		config.NSplit = len(files)
	}
	if config.NSplit <= 0 {
		return nil, fmt.Errorf("%w: need to split in a positive number of chunks, got %d", partition.ErrInvalidArgument, config.NSplit)
	}

	logger := config.Logger.With("component", "datagen")
	logger.Debug("generator configured",
		"files", len(files),
		"nSplit", config.NSplit,
		"strategy", config.Strategy,
		"tree", config.TreeName,
	)

	return &Generator{
		config:  config,
		files:   files,
		source:  source,
		metrics: config.Metrics,
		logger:  logger,
		index:   All,
	}, nil
}

// Len returns the number of chunks.
func (g *Generator) Len() int {
	return g.config.NSplit
}

// Files returns the resolved input files.
func (g *Generator) Files() []string {
	out := make([]string, len(g.files))
	copy(out, g.files)
	return out
}

// Strategy returns the splitting strategy in use.
func (g *Generator) Strategy() Strategy {
	return g.config.Strategy
}

// Load reads chunk index and caches it. A negative index loads all data as
// a single chunk. If small is positive the chunk is capped at small events.
func (g *Generator) Load(ctx context.Context, index, small int) (*entity.EventArray, error) {
	start := time.Now()

	nSplit, cacheIndex := g.config.NSplit, index
	if index < 0 {
		nSplit, index, cacheIndex = 1, 0, All
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "datagen.Load",
		trace.WithAttributes(
			attribute.Int("chunk.index", index),
			attribute.Int("chunk.n_split", nSplit),
			attribute.String("chunk.strategy", string(g.config.Strategy)),
		),
	)
	defer span.End()

	data, err := g.load(ctx, nSplit, index, small)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load chunk")
		return nil, err
	}
	span.SetAttributes(attribute.Int("chunk.rows", data.Len()))

	g.mu.Lock()
	g.index = cacheIndex
	g.data = data
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.RecordChunkLoaded(ctx, string(g.config.Strategy), data.Len(), time.Since(start))
	}
	return data, nil
}

func (g *Generator) load(ctx context.Context, nSplit, index, small int) (*entity.EventArray, error) {
	files := g.files
	if g.config.Strategy == SplitFiles {
		r, err := partition.Split(len(g.files), nSplit, index)
		if err != nil {
			return nil, fmt.Errorf("selecting files for chunk %d: %w", index, err)
		}
		if r.Empty() {
			g.logger.Debug("loaded chunk", "index", index, "files", 0, "rows", r.String())
			empty, _ := entity.NewEventArray()
			return empty, nil
		}
		files = g.files[r.Start:r.Stop]
	} else if _, err := partition.Split(0, nSplit, index); err != nil {
		return nil, fmt.Errorf("chunk %d: %w", index, err)
	}

	array, err := g.source.Read(ctx, files, g.config.TreeName, g.config.Branches)
	if err != nil {
		return nil, fmt.Errorf("reading chunk %d: %w", index, err)
	}

	if g.config.Selection != nil {
		before := array.Len()
		array, err = applySelection(array, g.config.Selection)
		if err != nil {
			return nil, fmt.Errorf("applying selection to chunk %d: %w", index, err)
		}

		efficiency := 0.0
		if before > 0 {
			efficiency = float64(array.Len()) / float64(before)
		}
		g.logger.Info("Applying selection with efficiency", "efficiency", fmt.Sprintf("%4.3f", efficiency))
		if g.metrics != nil {
			g.metrics.RecordSelection(ctx, efficiency)
		}
	}

	rows := partition.Range{Start: 0, Stop: array.Len()}
	if g.config.Strategy == SplitEvents {
		rows, err = partition.Split(array.Len(), nSplit, index)
		if err != nil {
			return nil, fmt.Errorf("selecting events for chunk %d: %w", index, err)
		}
	}
	if small > 0 && rows.Start+small < rows.Stop {
		rows.Stop = rows.Start + small
	}

	g.logger.Debug("loaded chunk",
		"index", index,
		"files", len(files),
		"rows", rows.String(),
	)
	return array.Slice(rows.Start, rows.Stop), nil
}

// Get returns chunk index, from the cache when it is the last one loaded.
func (g *Generator) Get(ctx context.Context, index int) (*entity.EventArray, error) {
	g.mu.Lock()
	if index < 0 {
		index = All
	}
	if g.data != nil && index == g.index {
		data := g.data
		g.mu.Unlock()
		return data, nil
	}
	g.mu.Unlock()

	return g.Load(ctx, index, 0)
}

// Data returns the cached chunk, or nil before the first load.
func (g *Generator) Data() *entity.EventArray {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.data
}

// Index returns the index of the cached chunk. It is All after loading
// everything and also before the first load; use Data to tell them apart.
func (g *Generator) Index() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index
}
