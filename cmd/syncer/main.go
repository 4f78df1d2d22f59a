// Package main provides syncer, which queues analysis output files and
// copies them to the EOS web area.
//
// Usage:
//
//	syncer record <paths...>           queue files for the next flush
//	syncer list                        show queued files
//	syncer flush                       sync queued files
//	syncer clear                       drop queued files
//	syncer gif [--delay N] <dir> <pattern> <name>
//	                                   build a gif remotely from synced images
//	syncer remote-ls                   list the remote web area
//	syncer history [--limit N]         show recent syncs from the ledger
//
// The queue backend (SYNC_QUEUE=file|redis), dispatch mode
// (SYNC_MODE=direct|publish) and transfer (SYNC_TRANSFER=rsync|s3) are read
// from the environment, optionally through .env files.
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
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/telemetry"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/env"
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
		slog.Error("syncer failed", "error", err)
		os.Exit(1)
	}
}

const usage = `usage: syncer [--verbose] <command> [arguments]

commands:
  record <paths...>                      queue files for the next flush
  list                                   show queued files
  flush                                  sync queued files
  clear                                  drop queued files
  gif [--delay N] <dir> <pattern> <name> build a gif remotely from synced images
  remote-ls                              list the remote web area
  history [--limit N]                    show recent syncs from the ledger
`

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("syncer", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	version := fs.Bool("version", false, "Show version information and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *version {
		fmt.Fprintf(out, "syncer\n")
		fmt.Fprintf(out, "  Commit:     %s\n", GitCommit)
		fmt.Fprintf(out, "  Branch:     %s\n", GitBranch)
		fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		return nil
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no command given")
	}

	logger := env.NewLogger(os.Stderr, *verbose)
	slog.SetDefault(logger)

	name, cmdArgs := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := initTelemetry(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, out, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd(ctx, a, cmdArgs)
}

func initTelemetry(ctx context.Context, logger *slog.Logger) (func(context.Context) error, error) {
	version := GitCommit
	if version == "" {
		version = "dev"
	}
	cfg := telemetry.Config{
		ServiceName:    "syncer",
		ServiceVersion: version,
		Environment:    env.Get("ENVIRONMENT", "local"),
		OTLPEndpoint:   env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
	shutdown, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.OTLPEndpoint != "" {
		logger.Debug("telemetry enabled", "endpoint", cfg.OTLPEndpoint)
	}
	return shutdown, nil
}
