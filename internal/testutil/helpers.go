// Package testutil holds helpers shared by unit and integration tests.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// DiscardLogger returns an slog.Logger that writes to io.Discard.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WebDir creates <tmp>/www/<sub> and returns it. Paths below it are
// syncable.
func WebDir(t *testing.T, sub string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "www", sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create web dir: %v", err)
	}
	return dir
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}
