package outbound

import "context"

// SQSMessage is a message received from a queue.
type SQSMessage struct {
	MessageID string

	// ReceiptHandle is needed to delete the message after processing.
	ReceiptHandle string

	// Body is the raw message body, a JSON document.
	Body string

	// ReceiveCount is how often the message has been delivered, including
	// this delivery.
	ReceiveCount int
}

// SQSConsumer consumes messages from a queue.
type SQSConsumer interface {
	// ReceiveMessages fetches up to maxMessages from the queue.
	// Returns an empty slice if no messages are available.
	ReceiveMessages(ctx context.Context, maxMessages int) ([]SQSMessage, error)

	// DeleteMessage removes a successfully processed message from the queue.
	DeleteMessage(ctx context.Context, receiptHandle string) error

	Close() error
}
