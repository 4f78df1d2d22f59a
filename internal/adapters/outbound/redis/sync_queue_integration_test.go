//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container and returns a connected SyncQueue.
func setupRedis(t *testing.T, ttl time.Duration) *SyncQueue {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	q, err := NewSyncQueue(Config{
		Addr:      fmt.Sprintf("%s:%s", host, port.Port()),
		TTL:       ttl,
		KeyPrefix: "test",
		Name:      t.Name(),
	}, nil)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	if err := q.Ping(ctx); err != nil {
		t.Fatalf("failed to ping Redis: %v", err)
	}
	return q
}

func TestSyncQueue_Integration_OrderAndDedupe(t *testing.T) {
	q := setupRedis(t, time.Hour)
	ctx := context.Background()

	if err := q.Add(ctx, "/w/www/b.png", "/w/www/a.png"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := q.Add(ctx, "/w/www/c.png", "/w/www/b.png"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	expected := []string{"/w/www/b.png", "/w/www/a.png", "/w/www/c.png"}
	if len(got) != len(expected) {
		t.Fatalf("List() = %v, expected %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("List()[%d] = %s, expected %s", i, got[i], expected[i])
		}
	}

	if err := q.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	got, _ = q.List(ctx)
	if len(got) != 0 {
		t.Errorf("expected empty queue after Clear, got %v", got)
	}
}

func TestSyncQueue_Integration_RemoveKeepsOthers(t *testing.T) {
	q := setupRedis(t, time.Hour)
	ctx := context.Background()

	if err := q.Add(ctx, "/w/www/a.png", "/w/www/b.png", "/w/www/c.png"); err != nil {
		t.Fatal(err)
	}
	if err := q.Remove(ctx, "/w/www/a.png", "/w/www/c.png", "/w/www/missing.png"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	got, err := q.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "/w/www/b.png" {
		t.Errorf("List() after Remove = %v, expected [/w/www/b.png]", got)
	}
	if err := q.Remove(ctx); err != nil {
		t.Errorf("Remove() without paths error = %v", err)
	}
}

func TestSyncQueue_Integration_TTL(t *testing.T) {
	q := setupRedis(t, time.Minute)
	ctx := context.Background()

	if err := q.Add(ctx, "/w/www/a.png"); err != nil {
		t.Fatal(err)
	}
	ttl, err := q.client.TTL(ctx, q.Key()).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected TTL within a minute, got %v", ttl)
	}
}
