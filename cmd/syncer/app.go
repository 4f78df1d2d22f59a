package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/filequeue"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/postgres"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/redis"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/rsync"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/s3"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/sns"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/telemetry"
	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/awsutil"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
	"github.com/hephy-analysis/analysis-tools/internal/services/syncer"
)

// app holds the components a command works with.
type app struct {
	target    entity.RemoteTarget
	collector *syncer.Collector
	// remoteList prints the remote web area.
	remoteList func(ctx context.Context) error
	// ledger is nil unless DATABASE_URL is set.
	ledger  outbound.SyncLedger
	out     io.Writer
	logger  *slog.Logger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg syncConfig, out io.Writer, logger *slog.Logger) (*app, error) {
	target, err := entity.NewRemoteTarget(cfg.User, cfg.Host, cfg.WebRoot)
	if err != nil {
		return nil, err
	}
	a := &app{target: target, out: out, logger: logger}

	queue, err := a.newQueue(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var awsCfg aws.Config
	awsEnv := awsutil.ConfigFromEnv()
	if cfg.Transfer == "s3" || cfg.Mode == "publish" {
		if awsCfg, err = awsutil.Load(ctx, awsEnv); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.DatabaseURL))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if a.ledger, err = postgres.NewSyncLedger(pool, logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	runner := rsync.NewSSHRunner(rsync.SSHConfig{Output: out, Logger: logger}, nil)

	var transferrer outbound.Transferrer
	switch cfg.Transfer {
	case "s3":
		writer := s3.NewWriter(awsCfg, logger, awsutil.S3Options(awsEnv)...)
		tr, err := s3.NewTransferrer(s3.TransferrerConfig{
			Bucket:        cfg.Bucket,
			Prefix:        cfg.Prefix,
			SkipUnchanged: true,
			Logger:        logger,
		}, writer)
		if err != nil {
			a.Close()
			return nil, err
		}
		transferrer = tr
		reader := s3.NewReader(awsCfg, logger, awsutil.S3Options(awsEnv)...)
		a.remoteList = func(ctx context.Context) error {
			return listBucket(ctx, out, reader, cfg.Bucket, tr.Destination(target))
		}
	default:
		transferrer = rsync.NewTransferrer(rsync.TransferrerConfig{Output: out, Logger: logger}, nil)
		a.remoteList = func(ctx context.Context) error {
			return runner.List(ctx, target)
		}
	}

	var dispatcher outbound.SyncDispatcher
	switch cfg.Mode {
	case "publish":
		pub, err := sns.NewPublisher(awssns.NewFromConfig(awsCfg), sns.Config{
			TopicARN: cfg.TopicARN,
			Logger:   logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		dispatcher = pub
	default:
		execConfig := syncer.ExecutorConfig{Ledger: a.ledger, Logger: logger}
		if metrics, err := telemetry.NewMetrics("syncer"); err == nil {
			execConfig.Metrics = metrics
		}
		exec, err := syncer.NewExecutor(execConfig, transferrer, runner)
		if err != nil {
			a.Close()
			return nil, err
		}
		dispatcher = exec
	}

	a.collector, err = syncer.NewCollector(syncer.CollectorConfig{
		Target:  target,
		ListDir: cfg.ListDir,
		Logger:  logger,
	}, queue, dispatcher)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.collector.Start(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) newQueue(cfg syncConfig) (outbound.SyncQueue, error) {
	if cfg.Queue == "redis" {
		q, err := redis.NewSyncQueue(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Name:     cfg.User,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("creating redis queue: %w", err)
		}
		a.closers = append(a.closers, func() { _ = q.Close() })
		return q, nil
	}
	return filequeue.New(cfg.QueueFile, a.logger), nil
}

// listBucket prints the objects below the destination prefix.
func listBucket(ctx context.Context, out io.Writer, reader outbound.S3Reader, bucket, destination string) error {
	prefix := strings.TrimPrefix(destination, "s3://"+bucket+"/")
	files, err := reader.ListFiles(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(out, "%10d  %s  %s\n", f.Size, f.LastModified.Format("2006-01-02 15:04"), f.Key)
	}
	return nil
}
