package syncworker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/memory"
	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
	"github.com/hephy-analysis/analysis-tools/internal/services/syncer"
	"github.com/hephy-analysis/analysis-tools/internal/testutil"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockSQSConsumer struct {
	mu             sync.Mutex
	messages       []outbound.SQSMessage
	deletedHandles []string
	receiveErrs    int
}

func (m *mockSQSConsumer) ReceiveMessages(ctx context.Context, maxMessages int) ([]outbound.SQSMessage, error) {
	m.mu.Lock()
	if m.receiveErrs > 0 {
		m.receiveErrs--
		m.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	n := min(maxMessages, len(m.messages))
	batch := m.messages[:n]
	m.messages = m.messages[n:]
	m.mu.Unlock()

	if len(batch) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return batch, nil
}

func (m *mockSQSConsumer) DeleteMessage(_ context.Context, receiptHandle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedHandles = append(m.deletedHandles, receiptHandle)
	return nil
}

func (m *mockSQSConsumer) Close() error { return nil }

func (m *mockSQSConsumer) deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletedHandles...)
}

type mockExecutor struct {
	mu       sync.Mutex
	executed []string
	failIDs  map[string]bool
}

func (m *mockExecutor) Execute(_ context.Context, req entity.SyncRequest) (entity.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, req.ID)
	if m.failIDs[req.ID] {
		return entity.SyncResult{RequestID: req.ID, Status: entity.SyncStatusFailed}, errors.New("rsync exit status 23")
	}
	return entity.SyncResult{RequestID: req.ID, Status: entity.SyncStatusSucceeded}, nil
}

type recordingTransferrer struct {
	mu    sync.Mutex
	files []string
}

func (r *recordingTransferrer) Transfer(_ context.Context, req entity.SyncRequest) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, req.Files...)
	return len(req.Files), nil
}

func (r *recordingTransferrer) Destination(target entity.RemoteTarget) string {
	return target.Destination()
}

// =============================================================================
// Helpers
// =============================================================================

func requestBody(t *testing.T, id string, wrapInSNS bool) string {
	t.Helper()
	target, _ := entity.NewRemoteTarget("rschoefb", "", "")
	data, err := json.Marshal(entity.SyncRequest{
		ID:     id,
		Files:  []string{"/home/u/www/./" + id + ".png"},
		Target: target,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !wrapInSNS {
		return string(data)
	}
	envelope, _ := json.Marshal(map[string]string{
		"Type":    "Notification",
		"Message": string(data),
	})
	return string(envelope)
}

func runUntil(t *testing.T, svc *Service, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	for !done() {
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for messages to be processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	svc.Stop()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestNewService_Validation(t *testing.T) {
	if _, err := NewService(Config{}, nil, &mockExecutor{}); err == nil {
		t.Error("expected error for nil consumer")
	}
	if _, err := NewService(Config{}, &mockSQSConsumer{}, nil); err == nil {
		t.Error("expected error for nil executor")
	}

	svc, err := NewService(Config{}, &mockSQSConsumer{}, &mockExecutor{})
	if err != nil {
		t.Fatal(err)
	}
	if svc.config.Workers != 2 || svc.config.BatchSize != 10 {
		t.Errorf("defaults not applied: %+v", svc.config)
	}
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr bool
	}{
		{"plain", requestBody(t, "r1", false), "r1", false},
		{"sns envelope", requestBody(t, "r2", true), "r2", false},
		{"not json", "rsync me", "", true},
		{"empty request", `{"id":"r3","target":{"user":"u","host":"h","root":"/w"}}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest(tt.body)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRequest) {
					t.Errorf("expected ErrMalformedRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID = %s, expected %s", req.ID, tt.wantID)
			}
		})
	}
}

func TestService_ProcessesAndDeletes(t *testing.T) {
	consumer := &mockSQSConsumer{
		messages: []outbound.SQSMessage{
			{MessageID: "m1", ReceiptHandle: "h1", Body: requestBody(t, "r1", true), ReceiveCount: 1},
			{MessageID: "m2", ReceiptHandle: "h2", Body: requestBody(t, "r2", false), ReceiveCount: 1},
		},
	}
	executor := &mockExecutor{}
	svc, _ := NewService(Config{Workers: 2, Logger: testutil.DiscardLogger()}, consumer, executor)

	runUntil(t, svc, func() bool { return len(consumer.deleted()) == 2 })

	if len(executor.executed) != 2 {
		t.Errorf("executed %v, expected 2 requests", executor.executed)
	}
}

func TestService_FailedMessagesStayOnQueue(t *testing.T) {
	consumer := &mockSQSConsumer{
		messages: []outbound.SQSMessage{
			{MessageID: "m1", ReceiptHandle: "h1", Body: requestBody(t, "bad", false), ReceiveCount: 1},
			{MessageID: "m2", ReceiptHandle: "h2", Body: requestBody(t, "good", false), ReceiveCount: 1},
		},
	}
	executor := &mockExecutor{failIDs: map[string]bool{"bad": true}}
	svc, _ := NewService(Config{Workers: 1, MaxReceives: 3, Logger: testutil.DiscardLogger()}, consumer, executor)

	runUntil(t, svc, func() bool {
		executor.mu.Lock()
		defer executor.mu.Unlock()
		return len(executor.executed) == 2
	})

	deleted := consumer.deleted()
	if len(deleted) != 1 || deleted[0] != "h2" {
		t.Errorf("deleted = %v, expected only h2", deleted)
	}
}

func TestService_DropsAfterMaxReceives(t *testing.T) {
	consumer := &mockSQSConsumer{
		messages: []outbound.SQSMessage{
			{MessageID: "m1", ReceiptHandle: "h1", Body: requestBody(t, "bad", false), ReceiveCount: 3},
		},
	}
	executor := &mockExecutor{failIDs: map[string]bool{"bad": true}}
	svc, _ := NewService(Config{Workers: 1, MaxReceives: 3, Logger: testutil.DiscardLogger()}, consumer, executor)

	runUntil(t, svc, func() bool { return len(consumer.deleted()) == 1 })
}

func TestService_DropsMalformedMessages(t *testing.T) {
	consumer := &mockSQSConsumer{
		messages: []outbound.SQSMessage{
			{MessageID: "m1", ReceiptHandle: "h1", Body: "not a request", ReceiveCount: 1},
		},
	}
	executor := &mockExecutor{}
	svc, _ := NewService(Config{Workers: 1, Logger: testutil.DiscardLogger()}, consumer, executor)

	runUntil(t, svc, func() bool { return len(consumer.deleted()) == 1 })

	executor.mu.Lock()
	defer executor.mu.Unlock()
	if len(executor.executed) != 0 {
		t.Errorf("malformed message reached the executor: %v", executor.executed)
	}
}

func TestService_RecoversFromReceiveErrors(t *testing.T) {
	consumer := &mockSQSConsumer{
		receiveErrs: 2,
		messages: []outbound.SQSMessage{
			{MessageID: "m1", ReceiptHandle: "h1", Body: requestBody(t, "r1", false), ReceiveCount: 1},
		},
	}
	svc, _ := NewService(Config{
		Workers:        1,
		ReceiveBackoff: time.Millisecond,
		Logger:         testutil.DiscardLogger(),
	}, consumer, &mockExecutor{})

	runUntil(t, svc, func() bool { return len(consumer.deleted()) == 1 })
}

func TestService_StopsOnContextCancel(t *testing.T) {
	svc, _ := NewService(Config{Logger: testutil.DiscardLogger()}, &mockSQSConsumer{}, &mockExecutor{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestService_WithExecutorAndLedger(t *testing.T) {
	transferrer := &recordingTransferrer{}
	ledger := memory.NewSyncLedger()
	executor, err := syncer.NewExecutor(syncer.ExecutorConfig{Ledger: ledger, Logger: testutil.DiscardLogger()}, transferrer, nil)
	if err != nil {
		t.Fatal(err)
	}

	consumer := &mockSQSConsumer{
		messages: []outbound.SQSMessage{
			{MessageID: "m1", ReceiptHandle: "h1", Body: requestBody(t, "r1", true), ReceiveCount: 1},
		},
	}
	svc, _ := NewService(Config{Workers: 1, Logger: testutil.DiscardLogger()}, consumer, executor)

	runUntil(t, svc, func() bool { return len(consumer.deleted()) == 1 })

	runs, _ := ledger.RecentRuns(context.Background(), 0)
	if len(runs) != 1 || runs[0].Result.Status != entity.SyncStatusSucceeded {
		t.Fatalf("unexpected ledger runs: %+v", runs)
	}
	if len(transferrer.files) != 1 || !strings.HasSuffix(transferrer.files[0], "r1.png") {
		t.Errorf("transferred %v", transferrer.files)
	}
}
