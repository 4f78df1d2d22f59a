// Package main provides datagen, which splits ROOT ntuples into chunks and
// loads one chunk for training or plotting.
//
// Example:
//
//	datagen --input /eos/ntuples/ttbar --n-split 10 --index 3 \
//	    --branches met_pt,nJet,jet_pt --selection 'met_pt > 100' \
//	    --scalar met_pt,nJet --vector jet_pt --pad-target 4
//
//	datagen --config ttbar.yaml --index 0 --ranges
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/groot"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/telemetry"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/env"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/partition"
	"github.com/hephy-analysis/analysis-tools/internal/services/datagen"
)

// Build-time variables
var (
	GitCommit string
	GitBranch string
	BuildTime string
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if GitCommit == "" {
					GitCommit = setting.Value
				}
			case "vcs.time":
				if BuildTime == "" {
					BuildTime = setting.Value
				}
			}
		}
	}
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// listFlag collects repeatable, comma separated values.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

type cliConfig struct {
	inputs    []string
	branches  []string
	nSplit    int
	strategy  datagen.Strategy
	tree      string
	selection string
	index     int
	small     int
	ranges    bool
	scalar    []string
	vector    []string
	padTarget int
	padValue  float64
	verbose   bool
	version   bool
}

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("datagen", flag.ContinueOnError)

	var inputs, branches, scalar, vector listFlag
	configFile := fs.String("config", "", "YAML generator configuration; flags override its values")
	fs.Var(&inputs, "input", "ROOT file, root:// URL or directory (repeatable, comma separated)")
	fs.Var(&branches, "branches", "Branches to read (default: all)")
	fs.Var(&scalar, "scalar", "Scalar branches to stack into a matrix")
	fs.Var(&vector, "vector", "Jagged branches to pad into a tensor")
	nSplit := fs.Int("n-split", 1, "Number of chunks; -1 with --strategy files means one chunk per file")
	strategy := fs.String("strategy", string(datagen.SplitFiles), "Split strategy: files or events")
	tree := fs.String("tree", "Events", "Tree name")
	selection := fs.String("selection", "", "Event selection expression, e.g. 'met_pt > 100 && nJet >= 2'")
	index := fs.Int("index", -1, "Chunk to load; -1 loads everything")
	small := fs.Int("small", 0, "Keep only the first N events of the chunk")
	ranges := fs.Bool("ranges", false, "Print the chunk table and exit")
	padTarget := fs.Int("pad-target", 0, "Entries per event for --vector (default: longest list)")
	padValue := fs.Float64("pad-value", 0, "Fill value for padded entries")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	version := fs.Bool("version", false, "Show version information and exit")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	inputs = append(inputs, fs.Args()...)

	cfg := cliConfig{
		inputs:    inputs,
		branches:  branches,
		nSplit:    *nSplit,
		tree:      *tree,
		selection: *selection,
		index:     *index,
		small:     *small,
		ranges:    *ranges,
		scalar:    scalar,
		vector:    vector,
		padTarget: *padTarget,
		padValue:  *padValue,
		verbose:   *verbose,
		version:   *version,
	}
	if cfg.version {
		return cfg, nil
	}

	strategyName := *strategy
	if *configFile != "" {
		fc, err := datagen.LoadConfigFile(*configFile)
		if err != nil {
			return cliConfig{}, err
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		if len(cfg.inputs) == 0 {
			cfg.inputs = fc.Inputs
		}
		if !set["branches"] && len(fc.Branches) > 0 {
			cfg.branches = fc.Branches
		}
		if !set["n-split"] && fc.NSplit != 0 {
			cfg.nSplit = fc.NSplit
		}
		if !set["strategy"] && fc.Strategy != "" {
			strategyName = fc.Strategy
		}
		if !set["tree"] && fc.Tree != "" {
			cfg.tree = fc.Tree
		}
		if !set["selection"] && fc.Selection != "" {
			cfg.selection = fc.Selection
		}
	}

	s, err := datagen.ParseStrategy(strategyName)
	if err != nil {
		return cliConfig{}, err
	}
	cfg.strategy = s

	if len(cfg.inputs) == 0 {
		return cliConfig{}, fmt.Errorf("no input given (use --input)")
	}
	if cfg.padTarget < 0 {
		return cliConfig{}, fmt.Errorf("--pad-target must not be negative, got %d", cfg.padTarget)
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}
	if cfg.version {
		fmt.Fprintf(out, "datagen\n")
		fmt.Fprintf(out, "  Commit:     %s\n", GitCommit)
		fmt.Fprintf(out, "  Branch:     %s\n", GitBranch)
		fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		return nil
	}

	logger := env.NewLogger(os.Stderr, cfg.verbose)
	slog.SetDefault(logger)

	shutdown, err := initTelemetry(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	genConfig := datagen.Config{
		Inputs:   cfg.inputs,
		Branches: cfg.branches,
		NSplit:   cfg.nSplit,
		Strategy: cfg.strategy,
		TreeName: cfg.tree,
		Logger:   logger,
	}
	if cfg.selection != "" {
		sel, err := datagen.ExprSelection(cfg.selection)
		if err != nil {
			return err
		}
		genConfig.Selection = sel
	}
	if metrics, err := telemetry.NewMetrics("datagen"); err != nil {
		logger.Warn("metrics disabled", "error", err)
	} else {
		genConfig.Metrics = metrics
	}

	gen, err := datagen.New(genConfig, groot.NewSource(logger))
	if err != nil {
		return err
	}

	if cfg.ranges {
		return printRanges(ctx, out, gen)
	}

	data, err := gen.Load(ctx, cfg.index, cfg.small)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "chunk %s of %d: %d events, branches %s\n",
		chunkName(cfg.index), gen.Len(), data.Len(), strings.Join(data.Names(), ","))

	if len(cfg.scalar) > 0 {
		m, err := gen.ScalarBranches(cfg.scalar)
		if err != nil {
			return err
		}
		rows, cols := m.Dims()
		fmt.Fprintf(out, "scalar matrix: %d x %d\n", rows, cols)
	}
	if len(cfg.vector) > 0 {
		target := cfg.padTarget
		if target == 0 {
			if target, err = longestList(gen, cfg.vector); err != nil {
				return err
			}
		}
		tensor, err := gen.VectorBranches(cfg.vector, target, cfg.padValue)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "vector tensor: %v\n", tensor.Shape)
	}
	return nil
}

func chunkName(index int) string {
	if index < 0 {
		return "all"
	}
	return fmt.Sprint(index)
}

// printRanges prints which files or events every chunk covers. The events
// strategy needs the event count, so everything is read once.
func printRanges(ctx context.Context, out io.Writer, gen *datagen.Generator) error {
	if gen.Strategy() == datagen.SplitFiles {
		files := gen.Files()
		ranges, err := partition.Ranges(len(files), gen.Len())
		if err != nil {
			return err
		}
		for i, r := range ranges {
			fmt.Fprintf(out, "%d\t%s\t%d files\n", i, r, r.Len())
			for _, f := range files[r.Start:r.Stop] {
				fmt.Fprintf(out, "\t%s\n", f)
			}
		}
		return nil
	}

	data, err := gen.Load(ctx, datagen.All, 0)
	if err != nil {
		return err
	}
	ranges, err := partition.Ranges(data.Len(), gen.Len())
	if err != nil {
		return err
	}
	for i, r := range ranges {
		fmt.Fprintf(out, "%d\t%s\t%d events\n", i, r, r.Len())
	}
	return nil
}

func longestList(gen *datagen.Generator, branches []string) (int, error) {
	longest := 0
	for _, b := range branches {
		rows, err := gen.VectorBranch(b)
		if err != nil {
			return 0, err
		}
		for _, r := range rows {
			longest = max(longest, len(r))
		}
	}
	return max(longest, 1), nil
}

func initTelemetry(ctx context.Context, logger *slog.Logger) (func(context.Context) error, error) {
	version := GitCommit
	if version == "" {
		version = "dev"
	}
	cfg := telemetry.Config{
		ServiceName:    "datagen",
		ServiceVersion: version,
		Environment:    env.Get("ENVIRONMENT", "local"),
		OTLPEndpoint:   env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
	shutdown, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.OTLPEndpoint != "" {
		logger.Info("telemetry enabled", "endpoint", cfg.OTLPEndpoint)
	}
	return shutdown, nil
}
