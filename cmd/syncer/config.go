package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/filequeue"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/env"
)

// syncConfig is the environment driven configuration of the syncer.
type syncConfig struct {
	// User owns the remote web area. Read from CERN_USER.
	User    string
	Host    string
	WebRoot string

	// Queue is "file" or "redis".
	Queue         string
	QueueFile     string
	RedisAddr     string
	RedisPassword string

	// Mode is "direct" (sync in this process) or "publish" (hand the
	// request to a sync worker through SNS).
	Mode     string
	TopicARN string

	// Transfer is "rsync" or "s3".
	Transfer string
	Bucket   string
	Prefix   string

	ListDir string

	// DatabaseURL enables the ledger. Optional.
	DatabaseURL string
}

func configFromEnv() (syncConfig, error) {
	cfg := syncConfig{
		User:          env.Get("CERN_USER", ""),
		Host:          env.Get("SYNC_REMOTE_HOST", ""),
		WebRoot:       env.Get("SYNC_WEB_ROOT", ""),
		Queue:         strings.ToLower(env.Get("SYNC_QUEUE", "file")),
		QueueFile:     env.Get("SYNC_QUEUE_FILE", filequeue.DefaultPath),
		RedisAddr:     env.Get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env.Get("REDIS_PASSWORD", ""),
		Mode:          strings.ToLower(env.Get("SYNC_MODE", "direct")),
		TopicARN:      env.Get("SNS_TOPIC_ARN", ""),
		Transfer:      strings.ToLower(env.Get("SYNC_TRANSFER", "rsync")),
		Bucket:        env.Get("S3_BUCKET", ""),
		Prefix:        env.Get("S3_PREFIX", ""),
		ListDir:       env.Get("SYNC_LIST_DIR", os.TempDir()),
		DatabaseURL:   env.Get("DATABASE_URL", ""),
	}
	if cfg.User == "" {
		cfg.User = env.Get("USER", "")
	}
	return cfg, cfg.validate()
}

func (c syncConfig) validate() error {
	if c.User == "" {
		return fmt.Errorf("CERN_USER environment variable is required")
	}
	switch c.Queue {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown SYNC_QUEUE %q (use file or redis)", c.Queue)
	}
	switch c.Mode {
	case "direct":
	case "publish":
		if c.TopicARN == "" {
			return fmt.Errorf("SNS_TOPIC_ARN is required with SYNC_MODE=publish")
		}
	default:
		return fmt.Errorf("unknown SYNC_MODE %q (use direct or publish)", c.Mode)
	}
	switch c.Transfer {
	case "rsync":
	case "s3":
		if c.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required with SYNC_TRANSFER=s3")
		}
	default:
		return fmt.Errorf("unknown SYNC_TRANSFER %q (use rsync or s3)", c.Transfer)
	}
	return nil
}
