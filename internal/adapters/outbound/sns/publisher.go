// Package sns hands sync requests to a sync worker through an SNS topic.
//
// Requests are serialized as JSON. Two message attributes allow
// subscriptions to filter:
//   - eventType: always "sync_request"
//   - user: the remote user of the request's target
//
// Transient failures are retried with exponential backoff.
package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/retry"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// EventTypeSyncRequest is the eventType attribute of published requests.
const EventTypeSyncRequest = "sync_request"

// Compile-time check that Publisher implements outbound.SyncDispatcher
var _ outbound.SyncDispatcher = (*Publisher)(nil)

// SNSClient defines the subset of SNS client methods used by Publisher.
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config holds configuration for the SNS publisher.
type Config struct {
	// TopicARN is the topic the sync worker's queue subscribes to.
	TopicARN string

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	Logger *slog.Logger
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Logger:         slog.Default(),
	}
}

// Publisher publishes sync requests to SNS.
type Publisher struct {
	client SNSClient
	config Config
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher creates a new SNS publisher.
func NewPublisher(client SNSClient, config Config) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("sns client is required")
	}
	if config.TopicARN == "" {
		return nil, errors.New("topic ARN is required")
	}

	defaults := ConfigDefaults()
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Publisher{
		client: client,
		config: config,
		logger: config.Logger.With("component", "sns-publisher"),
	}, nil
}

// Dispatch implements outbound.SyncDispatcher by publishing req.
func (p *Publisher) Dispatch(ctx context.Context, req entity.SyncRequest) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return errors.New("publisher is closed")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal sync request: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(p.config.TopicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventTypeSyncRequest),
			},
			"user": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.Target.User),
			},
		},
	}

	cfg := retry.Config{
		MaxRetries:     p.config.MaxRetries,
		InitialBackoff: p.config.InitialBackoff,
		MaxBackoff:     p.config.MaxBackoff,
		BackoffFactor:  p.config.BackoffFactor,
	}
	onRetry := func(attempt int, err error, backoff time.Duration) {
		p.logger.Warn("publish failed, retrying",
			"attempt", attempt,
			"maxRetries", p.config.MaxRetries,
			"backoff", backoff,
			"error", err,
			"request", req.ID,
		)
	}

	out, err := retry.Do(ctx, cfg, isRetryableError, onRetry, func() (*sns.PublishOutput, error) {
		return p.client.Publish(ctx, input)
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}

	p.logger.Info("published sync request",
		"request", req.ID,
		"files", len(req.Files),
		"gifs", len(req.Gifs),
		"messageID", aws.ToString(out.MessageId),
	)
	return nil
}

// isRetryableError determines if an error should trigger a retry.
func isRetryableError(err error) bool {
	var throttleErr *types.ThrottledException
	if errors.As(err, &throttleErr) {
		return true
	}
	var internalErr *types.InternalErrorException
	if errors.As(err, &internalErr) {
		return true
	}
	var kmsThrottleErr *types.KMSThrottlingException
	if errors.As(err, &kmsThrottleErr) {
		return true
	}

	// Requests that can never succeed.
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return false
	}
	var authErr *types.AuthorizationErrorException
	if errors.As(err, &authErr) {
		return false
	}
	var invalidParam *types.InvalidParameterException
	if errors.As(err, &invalidParam) {
		return false
	}

	// Network issues and unknown errors.
	return true
}

// Close marks the publisher as closed.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.logger.Debug("SNS publisher closed")
	})
	return nil
}
