package filequeue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_DefaultPath(t *testing.T) {
	q := New("", nil)
	if q.Path() != DefaultPath {
		t.Errorf("Path() = %s, expected %s", q.Path(), DefaultPath)
	}
}

func TestQueue_AddListClear(t *testing.T) {
	ctx := context.Background()
	q := New(filepath.Join(t.TempDir(), "shared", "queue.txt"), nil)

	got, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List() on missing file error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty queue, got %v", got)
	}

	if err := q.Add(ctx, "/w/www/b.png", "/w/www/a.png", "/w/www/b.png"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := q.Add(ctx, " /w/www/a.png ", "", "/w/www/c.png"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err = q.List(ctx)
	if err != nil {
		t.Fatal(err)
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
	if _, err := os.Stat(q.Path()); !os.IsNotExist(err) {
		t.Errorf("expected queue file to be removed, stat error = %v", err)
	}
	if err := q.Clear(ctx); err != nil {
		t.Errorf("Clear() on missing file error = %v", err)
	}
}

func TestQueue_Remove(t *testing.T) {
	ctx := context.Background()
	q := New(filepath.Join(t.TempDir(), "queue.txt"), nil)

	if err := q.Remove(ctx, "/w/www/a.png"); err != nil {
		t.Fatalf("Remove() on missing file error = %v", err)
	}

	_ = q.Add(ctx, "/w/www/a.png", "/w/www/b.png", "/w/www/c.png")
	if err := q.Remove(ctx, "/w/www/a.png", "/w/www/c.png"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	got, err := q.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "/w/www/b.png" {
		t.Errorf("List() after Remove = %v, expected [/w/www/b.png]", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(q.Path()))
	if len(entries) != 1 {
		t.Errorf("expected only the queue file to remain, found %d entries", len(entries))
	}

	_ = q.Add(ctx, "/w/www/d.png")
	if got, _ := q.List(ctx); len(got) != 2 || got[1] != "/w/www/d.png" {
		t.Errorf("List() after Add = %v", got)
	}

	if err := q.Remove(ctx, "/w/www/b.png", "/w/www/d.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(q.Path()); !os.IsNotExist(err) {
		t.Errorf("expected queue file to be removed once empty, stat error = %v", err)
	}
}

func TestQueue_ReadsForeignWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.txt")
	content := "/w/www/a.png\n\n/w/www/b.png\n/w/www/a.png\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := New(path, nil).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "/w/www/a.png" || got[1] != "/w/www/b.png" {
		t.Errorf("List() = %v", got)
	}
}

func TestQueue_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := New(filepath.Join(t.TempDir(), "queue.txt"), nil)
	if err := q.Add(ctx, "/w/www/a.png"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
