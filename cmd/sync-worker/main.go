// Package main implements an SQS consumer that executes the sync requests
// published by the syncer: it copies the listed files to the EOS web area
// (or an S3 bucket) and builds the requested gifs on the remote host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/postgres"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/rsync"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/s3"
	sqsadapter "github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/sqs"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/telemetry"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/awsutil"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/env"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
	syncworker "github.com/hephy-analysis/analysis-tools/internal/services/sync_worker"
	"github.com/hephy-analysis/analysis-tools/internal/services/syncer"
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

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	queueURL    string
	dbURL       string
	workers     int
	maxReceives int
	transfer    string
	bucket      string
	prefix      string
	version     bool
}

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("sync-worker", flag.ContinueOnError)
	queueURL := fs.String("queue", "", "SQS Queue URL")
	dbURL := fs.String("db", "", "PostgreSQL connection URL for the sync ledger (optional)")
	workers := fs.Int("workers", 2, "Number of concurrent sync executions")
	maxReceives := fs.Int("max-receives", 0, "Drop a failing request after this many deliveries (0 keeps it for the redrive policy)")
	transfer := fs.String("transfer", "", "Transfer method: rsync or s3")
	bucket := fs.String("bucket", "", "S3 bucket for -transfer=s3")
	version := fs.Bool("version", false, "Show version information and exit")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{
		queueURL:    *queueURL,
		dbURL:       *dbURL,
		workers:     *workers,
		maxReceives: *maxReceives,
		transfer:    strings.ToLower(*transfer),
		bucket:      *bucket,
		prefix:      env.Get("S3_PREFIX", ""),
		version:     *version,
	}
	if cfg.version {
		return cfg, nil
	}

	if cfg.queueURL == "" {
		cfg.queueURL = env.Get("AWS_SQS_QUEUE_URL", "")
	}
	if cfg.queueURL == "" {
		return cliConfig{}, fmt.Errorf("queue URL not provided (use -queue flag or AWS_SQS_QUEUE_URL env var)")
	}
	if cfg.dbURL == "" {
		cfg.dbURL = env.Get("DATABASE_URL", "")
	}
	if cfg.transfer == "" {
		cfg.transfer = strings.ToLower(env.Get("SYNC_TRANSFER", "rsync"))
	}
	if cfg.bucket == "" {
		cfg.bucket = env.Get("S3_BUCKET", "")
	}

	switch cfg.transfer {
	case "rsync":
	case "s3":
		if cfg.bucket == "" {
			return cliConfig{}, fmt.Errorf("bucket not provided (use -bucket flag or S3_BUCKET env var)")
		}
	default:
		return cliConfig{}, fmt.Errorf("unknown transfer method %q (use rsync or s3)", cfg.transfer)
	}
	if cfg.workers <= 0 {
		return cliConfig{}, fmt.Errorf("workers must be positive, got %d", cfg.workers)
	}

	return cfg, nil
}

func run(ctx context.Context, args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}
	if cfg.version {
		fmt.Printf("sync-worker\n  Commit:     %s\n  Branch:     %s\n  Build Time: %s\n", GitCommit, GitBranch, BuildTime)
		return nil
	}

	logger := env.NewLogger(os.Stdout, false)
	slog.SetDefault(logger)

	logger.Info("starting sync worker", "queue", cfg.queueURL, "transfer", cfg.transfer, "workers", cfg.workers)

	shutdownTelemetry, err := initTelemetry(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	awsEnv := awsutil.ConfigFromEnv()
	awsCfg, err := awsutil.Load(ctx, awsEnv)
	if err != nil {
		return err
	}

	consumer, err := sqsadapter.NewConsumer(awsCfg, sqsadapter.Config{
		QueueURL: cfg.queueURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating SQS consumer: %w", err)
	}
	defer consumer.Close()

	var transferrer outbound.Transferrer
	if cfg.transfer == "s3" {
		writer := s3.NewWriter(awsCfg, logger, awsutil.S3Options(awsEnv)...)
		transferrer, err = s3.NewTransferrer(s3.TransferrerConfig{
			Bucket:        cfg.bucket,
			Prefix:        cfg.prefix,
			SkipUnchanged: true,
			Logger:        logger,
		}, writer)
		if err != nil {
			return fmt.Errorf("creating S3 transferrer: %w", err)
		}
	} else {
		transferrer = rsync.NewTransferrer(rsync.TransferrerConfig{Logger: logger}, nil)
	}
	runner := rsync.NewSSHRunner(rsync.SSHConfig{Logger: logger}, nil)

	execConfig := syncer.ExecutorConfig{Logger: logger}
	if cfg.dbURL != "" {
		pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.dbURL))
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		logger.Info("PostgreSQL connected")

		ledger, err := postgres.NewSyncLedger(pool, logger)
		if err != nil {
			return fmt.Errorf("creating sync ledger: %w", err)
		}
		execConfig.Ledger = ledger
	}
	metrics, err := telemetry.NewMetrics("sync-worker")
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}
	execConfig.Metrics = metrics

	executor, err := syncer.NewExecutor(execConfig, transferrer, runner)
	if err != nil {
		return fmt.Errorf("creating executor: %w", err)
	}

	service, err := syncworker.NewService(syncworker.Config{
		Workers:     cfg.workers,
		MaxReceives: cfg.maxReceives,
		Logger:      logger,
	}, consumer, executor)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	logger.Info("service started, waiting for messages...")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("running service: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func initTelemetry(ctx context.Context, logger *slog.Logger) (func(context.Context) error, error) {
	version := GitCommit
	if version == "" {
		version = "dev"
	}
	cfg := telemetry.Config{
		ServiceName:    "sync-worker",
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
