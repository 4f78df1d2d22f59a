// Package syncworker consumes sync requests from SQS and executes them.
//
// Requests are published to SNS by the syncer when SYNC_MODE=publish; the
// queue subscribed to that topic delivers them wrapped in an SNS envelope.
package syncworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// ErrMalformedRequest is returned for messages that do not hold a valid
// sync request.
var ErrMalformedRequest = errors.New("malformed sync request")

// Executor runs a decoded request.
type Executor interface {
	Execute(ctx context.Context, req entity.SyncRequest) (entity.SyncResult, error)
}

// Config holds configuration for the sync worker service.
type Config struct {
	// Workers is the number of concurrent request processors.
	Workers int

	// BatchSize is how many messages to fetch at once (max 10).
	BatchSize int

	// MaxReceives drops a failing message after this many deliveries.
	// Zero leaves failing messages to the queue's redrive policy.
	MaxReceives int

	// ReceiveBackoff is the pause after a failed receive.
	ReceiveBackoff time.Duration

	// Logger for the service.
	Logger *slog.Logger
}

// ConfigDefaults returns sensible defaults for the sync worker service.
func ConfigDefaults() Config {
	return Config{
		Workers:        2,
		BatchSize:      10,
		ReceiveBackoff: 5 * time.Second,
		Logger:         slog.Default(),
	}
}

// Service is the sync worker service.
type Service struct {
	config    Config
	consumer  outbound.SQSConsumer
	executor  Executor
	logger    *slog.Logger
	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a new sync worker service.
func NewService(config Config, consumer outbound.SQSConsumer, executor Executor) (*Service, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	defaults := ConfigDefaults()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.ReceiveBackoff <= 0 {
		config.ReceiveBackoff = defaults.ReceiveBackoff
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Service{
		config:   config,
		consumer: consumer,
		executor: executor,
		logger:   config.Logger.With("component", "sync-worker"),
		stopCh:   make(chan struct{}),
	}, nil
}

// Run starts the workers and blocks until the context is cancelled or Stop
// is called. Messages already handed to workers are finished first.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting sync worker service",
		"workers", s.config.Workers,
		"batchSize", s.config.BatchSize,
	)

	msgCh := make(chan outbound.SQSMessage, s.config.Workers*2)
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i, msgCh)
	}

	shutdown := func(err error) error {
		close(msgCh)
		s.wg.Wait()
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context cancelled, stopping message fetcher")
			return shutdown(ctx.Err())
		case <-s.stopCh:
			s.logger.Info("stop signal received, stopping message fetcher")
			return shutdown(nil)
		default:
		}

		messages, err := s.consumer.ReceiveMessages(ctx, s.config.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return shutdown(ctx.Err())
			}
			s.logger.Error("failed to receive messages", "error", err)
			select {
			case <-ctx.Done():
				return shutdown(ctx.Err())
			case <-s.stopCh:
				return shutdown(nil)
			case <-time.After(s.config.ReceiveBackoff):
			}
			continue
		}

		for _, msg := range messages {
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return shutdown(ctx.Err())
			}
		}
	}
}

// Stop signals the service to stop.
func (s *Service) Stop() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Service) worker(ctx context.Context, id int, msgCh <-chan outbound.SQSMessage) {
	defer s.wg.Done()
	logger := s.logger.With("worker", id)

	for msg := range msgCh {
		err := s.processMessage(ctx, msg)
		if err != nil {
			retry := !errors.Is(err, ErrMalformedRequest) &&
				(s.config.MaxReceives <= 0 || msg.ReceiveCount < s.config.MaxReceives)
			if retry {
				logger.Error("failed to process message",
					"messageID", msg.MessageID,
					"receiveCount", msg.ReceiveCount,
					"error", err,
				)
				// Left on the queue; it becomes visible again after the visibility timeout.
				continue
			}
			logger.Error("dropping message",
				"messageID", msg.MessageID,
				"receiveCount", msg.ReceiveCount,
				"error", err,
			)
		}

		if err := s.consumer.DeleteMessage(ctx, msg.ReceiptHandle); err != nil {
			logger.Error("failed to delete message",
				"messageID", msg.MessageID,
				"error", err,
			)
		}
	}
}

func (s *Service) processMessage(ctx context.Context, msg outbound.SQSMessage) error {
	req, err := DecodeRequest(msg.Body)
	if err != nil {
		return err
	}

	s.logger.Debug("processing sync request",
		"request", req.ID,
		"files", len(req.Files),
		"gifs", len(req.Gifs),
	)

	if _, err := s.executor.Execute(ctx, req); err != nil {
		return fmt.Errorf("sync request %s: %w", req.ID, err)
	}
	return nil
}

// DecodeRequest parses a message body holding a SyncRequest, either directly
// or inside an SNS notification envelope.
func DecodeRequest(body string) (entity.SyncRequest, error) {
	var snsWrapper struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &snsWrapper); err == nil && snsWrapper.Message != "" {
		body = snsWrapper.Message
	}

	var req entity.SyncRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return entity.SyncRequest{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if err := req.Validate(); err != nil {
		return entity.SyncRequest{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return req, nil
}
